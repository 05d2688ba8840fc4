package httpapi_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/proofflow/pkg/runtime"
	"github.com/MarkoPoloResearchLab/proofflow/pkg/widget"
)

const (
	testPreviewEventTimeout = 3 * time.Second
	testPreviewPollInterval = 20 * time.Millisecond
)

type serverSentEvent struct {
	name string
	data string
}

type previewFramePayload struct {
	WidgetID     string `json:"widgetId"`
	Type         string `json:"type"`
	CurrentIndex int    `json:"currentIndex"`
	Hidden       bool   `json:"hidden"`
	HTML         string `json:"html"`
}

type previewStream struct {
	events chan serverSentEvent
	cancel context.CancelFunc
}

func openPreviewStream(testingT *testing.T, server *httptest.Server, widgetID string) *previewStream {
	testingT.Helper()
	streamContext, cancel := context.WithCancel(context.Background())
	testingT.Cleanup(cancel)

	request, err := http.NewRequestWithContext(streamContext, http.MethodGet, server.URL+"/api/admin/widgets/"+widgetID+"/preview/events", nil)
	require.NoError(testingT, err)
	request.Header.Set("Authorization", "Bearer "+testAdminToken)
	response, err := server.Client().Do(request)
	require.NoError(testingT, err)
	require.Equal(testingT, http.StatusOK, response.StatusCode)
	require.Equal(testingT, "text/event-stream", response.Header.Get("Content-Type"))

	stream := &previewStream{events: make(chan serverSentEvent, 32), cancel: cancel}
	go func() {
		defer response.Body.Close()
		readServerSentEvents(response.Body, stream.events)
	}()
	return stream
}

func readServerSentEvents(body io.Reader, events chan<- serverSentEvent) {
	defer close(events)
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var current serverSentEvent
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if current.name != "" {
				events <- current
			}
			current = serverSentEvent{}
		}
	}
}

func (stream *previewStream) next(testingT *testing.T) serverSentEvent {
	testingT.Helper()
	select {
	case event, ok := <-stream.events:
		require.True(testingT, ok, "preview stream closed")
		return event
	case <-time.After(testPreviewEventTimeout):
		testingT.Fatal("timeout waiting for preview event")
		return serverSentEvent{}
	}
}

func (stream *previewStream) nextFrame(testingT *testing.T) previewFramePayload {
	testingT.Helper()
	event := stream.next(testingT)
	require.Equal(testingT, "frame", event.name)
	var frame previewFramePayload
	require.NoError(testingT, json.Unmarshal([]byte(event.data), &frame))
	return frame
}

func TestPreviewStreamReloadsOnTestimonialChanges(t *testing.T) {
	harness := buildAPIHarness(t)
	project := harness.createProject(t, "Acme Coffee")
	harness.createTestimonial(t, project.ID, "Ada", "Quote A", 5, "approved")
	created := harness.createWidget(t, project.ID, widget.TypeGrid, nil)

	server := httptest.NewServer(harness.router)
	defer server.Close()
	stream := openPreviewStream(t, server, created.ID)

	initial := stream.nextFrame(t)
	require.Equal(t, created.ID, initial.WidgetID)
	require.Equal(t, "grid", initial.Type)
	require.Contains(t, initial.HTML, "Quote A")
	require.NotContains(t, initial.HTML, "Quote B")

	harness.createTestimonial(t, project.ID, "Ben", "Quote B", 4, "approved")

	reload := stream.next(t)
	require.Equal(t, "reload", reload.name)
	require.Contains(t, reload.data, `"reason":"testimonials_changed"`)

	refreshed := stream.nextFrame(t)
	require.Contains(t, refreshed.HTML, "Quote A")
	require.Contains(t, refreshed.HTML, "Quote B")

	stream.cancel()
	require.Eventually(t, func() bool {
		return harness.events.SubscriberCount() == 0
	}, testPreviewEventTimeout, testPreviewPollInterval)
}

func TestPreviewStreamFollowsControllerRotation(t *testing.T) {
	harness := buildAPIHarness(t)
	clock := runtime.NewManualClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	harness.admin.WithPreviewClock(clock)

	project := harness.createProject(t, "Acme Coffee")
	harness.createTestimonial(t, project.ID, "Ada", "Quote A", 5, "approved")
	harness.createTestimonial(t, project.ID, "Ben", "Quote B", 4, "approved")
	created := harness.createWidget(t, project.ID, widget.TypeCarousel, map[string]any{"autoPlay": true, "slideInterval": 5000})

	server := httptest.NewServer(harness.router)
	defer server.Close()
	stream := openPreviewStream(t, server, created.ID)
	defer stream.cancel()

	require.Equal(t, 0, stream.nextFrame(t).CurrentIndex)
	require.Equal(t, 1, clock.ActiveTimers())

	clock.Advance(5 * time.Second)
	require.Equal(t, 1, stream.nextFrame(t).CurrentIndex)

	clock.Advance(5 * time.Second)
	require.Equal(t, 0, stream.nextFrame(t).CurrentIndex)

	updated := harness.request(t, http.MethodPatch, "/api/admin/widgets/"+created.ID, map[string]any{"name": "Static", "type": "carousel"}, true)
	require.Equal(t, http.StatusOK, updated.Code)
	require.Equal(t, "reload", stream.next(t).name)
	require.Equal(t, 0, stream.nextFrame(t).CurrentIndex)
	require.Eventually(t, func() bool {
		return clock.ActiveTimers() == 0
	}, testPreviewEventTimeout, testPreviewPollInterval)
}

func TestPreviewStreamUnknownWidget(t *testing.T) {
	harness := buildAPIHarness(t)
	response := harness.request(t, http.MethodGet, "/api/admin/widgets/missing/preview/events", nil, true)
	require.Equal(t, http.StatusNotFound, response.Code)
	require.Equal(t, "unknown_widget", errorValue(t, response))
}
