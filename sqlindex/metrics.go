package sqlindex

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Operation labels
const (
	opInsert = "insert"
	opUpdate = "update"
	opDelete = "delete"
)

var (
	rowsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quartz_index_rows_total",
		Help: "The total number of index rows affected by statements",
	}, []string{"table", "op"})

	batchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quartz_index_batch_failures_total",
		Help: "The total number of failed statement batches",
	}, []string{"table", "op"})

	updateFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quartz_index_update_fallbacks_total",
		Help: "The total number of objects whose index update fell back to delete and insert",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(rowsWritten)
	prometheus.MustRegister(batchFailures)
	prometheus.MustRegister(updateFallbacks)
}
