package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the operator-facing counters for the search pipeline
// and the dialogue loop. All methods are nil-safe so components can be
// built without metrics in tests.
type Metrics struct {
	searchesTotal           prometheus.Counter
	searchDuration          prometheus.Histogram
	stageFailures           *prometheus.CounterVec
	classifierParseFailures prometheus.Counter
	linksAnalyzed           prometheus.Histogram
	activeDialogues         prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		searchesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "belg_searches_total",
			Help: "Number of search pipeline invocations.",
		}),
		searchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "belg_search_duration_seconds",
			Help:    "End-to-end duration of one pipeline invocation.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		stageFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "belg_pipeline_stage_failures_total",
			Help: "Pipeline short-circuits by stage.",
		}, []string{"stage"}),
		classifierParseFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "belg_classifier_parse_failures_total",
			Help: "LLM classification replies that could not be parsed.",
		}),
		linksAnalyzed: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "belg_links_analyzed",
			Help:    "Unique links collected per search.",
			Buckets: prometheus.LinearBuckets(0, 5, 10),
		}),
		activeDialogues: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "belg_active_dialogues",
			Help: "Conversation states currently held in memory.",
		}),
	}
}

func (m *Metrics) ObserveSearch(d time.Duration, links int) {
	if m == nil {
		return
	}
	m.searchesTotal.Inc()
	m.searchDuration.Observe(d.Seconds())
	m.linksAnalyzed.Observe(float64(links))
}

func (m *Metrics) IncStageFailure(stage string) {
	if m == nil {
		return
	}
	m.stageFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) IncClassifierParseFailure() {
	if m == nil {
		return
	}
	m.classifierParseFailures.Inc()
}

func (m *Metrics) SetActiveDialogues(n int) {
	if m == nil {
		return
	}
	m.activeDialogues.Set(float64(n))
}
