package task

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const (
	testSchedulerInterval = 10 * time.Millisecond
	testSchedulerTimeout  = 2 * time.Second
	testSchedulerName     = "test_task"
)

func TestNewSchedulerDefaultsInterval(testingT *testing.T) {
	scheduler := NewScheduler(testSchedulerName, 0, func(context.Context) {}, nil)
	require.Equal(testingT, time.Minute, scheduler.interval)
	require.NotNil(testingT, scheduler.logger)
}

func TestSchedulerRunsOnTrigger(testingT *testing.T) {
	var runCount int64
	runner := func(context.Context) {
		atomic.AddInt64(&runCount, 1)
	}
	scheduler := NewScheduler(testSchedulerName, time.Hour, runner, nil)
	runtimeContext, cancel := context.WithCancel(context.Background())
	testingT.Cleanup(cancel)

	scheduler.Start(runtimeContext)
	scheduler.Trigger()

	require.Eventually(testingT, func() bool {
		return atomic.LoadInt64(&runCount) > 0
	}, testSchedulerTimeout, testSchedulerInterval)

	scheduler.Stop()
	require.Nil(testingT, scheduler.cancel)
}

func TestSchedulerRunsOnInterval(testingT *testing.T) {
	var runCount int64
	scheduler := NewScheduler(testSchedulerName, testSchedulerInterval, func(context.Context) {
		atomic.AddInt64(&runCount, 1)
	}, nil)
	scheduler.Start(context.Background())
	testingT.Cleanup(scheduler.Stop)

	require.Eventually(testingT, func() bool {
		return atomic.LoadInt64(&runCount) >= 2
	}, testSchedulerTimeout, testSchedulerInterval)
}

func TestSchedulerHandlesNilReceiver(testingT *testing.T) {
	var scheduler *Scheduler
	scheduler.Start(context.Background())
	scheduler.Trigger()
	scheduler.Stop()
}

func TestSchedulerSkipsStartWhenRunnerMissing(testingT *testing.T) {
	scheduler := NewScheduler(testSchedulerName, testSchedulerInterval, nil, nil)
	scheduler.Start(context.Background())
	require.Nil(testingT, scheduler.cancel)
}

func TestSchedulerStartIsIdempotent(testingT *testing.T) {
	scheduler := NewScheduler(testSchedulerName, testSchedulerInterval, func(context.Context) {}, nil)
	scheduler.Start(context.Background())
	doneAfterStart := scheduler.done
	require.NotNil(testingT, scheduler.cancel)
	scheduler.Start(context.Background())
	require.Equal(testingT, doneAfterStart, scheduler.done)
	scheduler.Stop()
}

func TestSchedulerRunNoopWithNilRunner(testingT *testing.T) {
	scheduler := &Scheduler{}
	scheduler.run(context.Background())
}

func TestSchedulerRecoversPanickingRunner(testingT *testing.T) {
	observedCore, observedLogs := observer.New(zap.DebugLevel)
	scheduler := NewScheduler(testSchedulerName, time.Hour, func(context.Context) {
		panic("boom")
	}, zap.New(observedCore))

	require.NotPanics(testingT, func() {
		scheduler.run(context.Background())
	})
	entries := observedLogs.FilterMessage("scheduled_task_panic").All()
	require.Len(testingT, entries, 1)
	require.Equal(testingT, testSchedulerName, entries[0].ContextMap()["task"])
}

type fakeExpiringCache struct {
	mu     sync.Mutex
	calls  []time.Time
	purged int
}

func (cache *fakeExpiringCache) PurgeExpired(now time.Time) int {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.calls = append(cache.calls, now)
	return cache.purged
}

func TestCachePurgeRunnerPassesCurrentTime(testingT *testing.T) {
	fixedNow := time.Date(2024, time.May, 5, 10, 0, 0, 0, time.UTC)
	cache := &fakeExpiringCache{purged: 3}
	observedCore, observedLogs := observer.New(zap.DebugLevel)

	runner := NewCachePurgeRunner(cache, func() time.Time { return fixedNow }, zap.New(observedCore))
	runner(context.Background())

	require.Equal(testingT, []time.Time{fixedNow}, cache.calls)
	require.Equal(testingT, 1, observedLogs.FilterMessage("cache_entries_purged").Len())
}

func TestCachePurgeRunnerSkipsCancelledContext(testingT *testing.T) {
	cache := &fakeExpiringCache{}
	cancelledContext, cancel := context.WithCancel(context.Background())
	cancel()

	NewCachePurgeRunner(cache, nil, nil)(cancelledContext)
	require.Empty(testingT, cache.calls)
}
