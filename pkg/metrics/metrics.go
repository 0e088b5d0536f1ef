package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the aggregation pipeline.
type Metrics struct {
	FetchPages          prometheus.Counter
	FetchRecords        prometheus.Counter
	FetchUserFailures   prometheus.Counter
	PollTicks           prometheus.Counter
	PollFailures        prometheus.Counter
	RefreshesDiscarded  prometheus.Counter
	AggregationDuration prometheus.Histogram
	LiveClients         prometheus.Gauge
}

// New registers the pipeline metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FetchPages: factory.NewCounter(prometheus.CounterOpts{
			Name: "pulseboard_fetch_pages_total",
			Help: "Number of activity-log pages fetched from the backend.",
		}),
		FetchRecords: factory.NewCounter(prometheus.CounterOpts{
			Name: "pulseboard_fetch_records_total",
			Help: "Number of raw activity records fetched from the backend.",
		}),
		FetchUserFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "pulseboard_fetch_user_failures_total",
			Help: "Number of per-user fetches that failed and were skipped.",
		}),
		PollTicks: factory.NewCounter(prometheus.CounterOpts{
			Name: "pulseboard_poll_ticks_total",
			Help: "Number of recent-activity poll ticks executed.",
		}),
		PollFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "pulseboard_poll_failures_total",
			Help: "Number of recent-activity poll ticks that failed.",
		}),
		RefreshesDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "pulseboard_refreshes_discarded_total",
			Help: "Number of refresh results discarded because a newer generation finished first.",
		}),
		AggregationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pulseboard_aggregation_duration_seconds",
			Help:    "Wall time of one full fetch-normalize-aggregate pass.",
			Buckets: prometheus.DefBuckets,
		}),
		LiveClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pulseboard_live_feed_clients",
			Help: "Currently connected live-feed WebSocket clients.",
		}),
	}
}

// NewUnregistered returns metrics backed by a private registry, for tests.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
