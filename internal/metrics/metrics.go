package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "proofflow"

// Recorder holds the collectors of the HTTP backend on a private registry.
type Recorder struct {
	registry        *prometheus.Registry
	configRequests  *prometheus.CounterVec
	embedsGenerated *prometheus.CounterVec
	sharePageCache  *prometheus.CounterVec
	previewStreams  prometheus.Gauge
	requestDuration *prometheus.HistogramVec
}

// NewRecorder registers the collectors together with the Go runtime and process collectors.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		configRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "widget_config_requests_total",
			Help:      "Widget configuration requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		embedsGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embed_snippets_generated_total",
			Help:      "Embed snippets generated by format.",
		}, []string{"format"}),
		sharePageCache: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "share_page_cache_total",
			Help:      "Share page render cache lookups by result.",
		}, []string{"result"}),
		previewStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "preview_streams_active",
			Help:      "Open live preview streams.",
		}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (recorder *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(recorder.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (recorder *Recorder) Registry() *prometheus.Registry {
	return recorder.registry
}

func (recorder *Recorder) ConfigRequest(endpoint string, outcome string) {
	if recorder == nil {
		return
	}
	recorder.configRequests.WithLabelValues(endpoint, outcome).Inc()
}

func (recorder *Recorder) EmbedGenerated(format string) {
	if recorder == nil {
		return
	}
	recorder.embedsGenerated.WithLabelValues(format).Inc()
}

func (recorder *Recorder) SharePageCache(hit bool) {
	if recorder == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	recorder.sharePageCache.WithLabelValues(result).Inc()
}

func (recorder *Recorder) PreviewStreamOpened() {
	if recorder == nil {
		return
	}
	recorder.previewStreams.Inc()
}

func (recorder *Recorder) PreviewStreamClosed() {
	if recorder == nil {
		return
	}
	recorder.previewStreams.Dec()
}

func (recorder *Recorder) ObserveRequest(route string, method string, status int, seconds float64) {
	if recorder == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	recorder.requestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(seconds)
}
