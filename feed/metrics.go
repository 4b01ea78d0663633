package feed

import "github.com/prometheus/client_golang/prometheus"

var (
	eventsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quartz_feed_events_total",
		Help: "Change-feed events decoded, by op",
	}, []string{"op"})

	eventsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quartz_feed_skipped_total",
		Help: "Change-feed messages skipped because they could not be decoded",
	})

	batchRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quartz_feed_batch_retries_total",
		Help: "Failed attempts to apply a change-feed batch",
	})
)

func init() {
	prometheus.MustRegister(eventsReceived, eventsSkipped, batchRetries)
}
