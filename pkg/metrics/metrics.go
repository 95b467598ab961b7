package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Ingest metrics
	EventsReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "theia_events_received_total",
			Help: "Total number of events received on push channels",
		},
	)

	EventsStored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "theia_events_stored_total",
			Help: "Total number of events durably stored",
		},
	)

	ParseFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "theia_parse_failures_total",
			Help: "Total number of inbound messages that failed to parse as events",
		},
	)

	SaveFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "theia_save_failures_total",
			Help: "Total number of store writes that failed",
		},
	)

	// Live pipeline metrics
	LiveSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "theia_live_subscribers",
			Help: "Current number of live subscriptions",
		},
	)

	EventsDispatched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "theia_events_dispatched_total",
			Help: "Total number of events delivered to live subscribers",
		},
	)

	SubscribersEvicted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "theia_subscribers_evicted_total",
			Help: "Total number of live subscribers evicted for failing to drain",
		},
	)

	// Query metrics
	FindQueries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "theia_find_queries_total",
			Help: "Total number of historical queries served",
		},
	)

	FindEventsStreamed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "theia_find_events_streamed_total",
			Help: "Total number of events streamed to historical queries",
		},
	)

	// Channel metrics
	ChannelsOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "theia_channels_open",
			Help: "Currently open message channels by path",
		},
		[]string{"path"},
	)

	// Watcher metrics
	WatcherLinesRead = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "theia_watcher_lines_read_total",
			Help: "Total number of log lines turned into events by this watcher",
		},
	)

	WatcherEventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "theia_watcher_events_dropped_total",
			Help: "Total number of events dropped while the collector was unreachable",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(EventsReceived)
	prometheus.MustRegister(EventsStored)
	prometheus.MustRegister(ParseFailures)
	prometheus.MustRegister(SaveFailures)
	prometheus.MustRegister(LiveSubscribers)
	prometheus.MustRegister(EventsDispatched)
	prometheus.MustRegister(SubscribersEvicted)
	prometheus.MustRegister(FindQueries)
	prometheus.MustRegister(FindEventsStreamed)
	prometheus.MustRegister(ChannelsOpen)
	prometheus.MustRegister(WatcherLinesRead)
	prometheus.MustRegister(WatcherEventsDropped)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
