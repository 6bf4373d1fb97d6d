package loader

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loaderQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "loader_queue_depth",
		Help: "The number of tile load requests waiting for a worker.",
	})

	loaderDispatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loader_dispatched_total",
		Help: "The total number of tile load requests executed.",
	})

	loaderCanceledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loader_canceled_total",
		Help: "The total number of tile load requests dropped by cancellation.",
	})

	loaderFetchErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loader_fetch_errors_total",
		Help: "The total number of failed tile fetches.",
	})
)

func instrumentQueueDepth(depth int) {
	loaderQueueDepth.Set(float64(depth))
}

func instrumentDispatch() {
	loaderDispatchedTotal.Inc()
}

func instrumentCancel() {
	loaderCanceledTotal.Inc()
}

func instrumentFetchError() {
	loaderFetchErrorsTotal.Inc()
}
