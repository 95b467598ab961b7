/*
Package metrics exposes Prometheus instrumentation and process health.

All counters and gauges are registered with the default registry at
package init and exported as package-level variables, so any component
can bump them without carrying a handle around:

	metrics.EventsReceived.Inc()
	metrics.LiveSubscribers.Set(float64(n))

The collector mounts Handler() at /metrics and HealthHandler at
/healthz on its regular listener.

# Metric families

	theia_events_received_total        inbound push messages
	theia_events_stored_total          events durably written
	theia_parse_failures_total         unparseable push messages
	theia_save_failures_total          failed store writes
	theia_live_subscribers             current live subscriptions
	theia_events_dispatched_total      deliveries to live subscribers
	theia_subscribers_evicted_total    slow-subscriber evictions
	theia_find_queries_total           historical queries served
	theia_find_events_streamed_total   events streamed to queries
	theia_channels_open{path}          open channels per endpoint
	theia_watcher_lines_read_total     watcher-side line counter
	theia_watcher_events_dropped_total watcher-side drop counter

# Health

Components register their state with RegisterComponent; the aggregate
is "unhealthy" as soon as any component is. /healthz answers 200 when
healthy and 503 otherwise, with a JSON body naming each component.
*/
package metrics
