// Registers:
//
//	#normflow_events_emitted_total
//	#normflow_stale_updates_total
//	#normflow_buffered_updates_total
//	#normflow_buffer_evictions_total
//	#normflow_reconciliation_failures_total
//	#go_* and process_* system metrics
//
// Exposes them on the configured listen address using the Prometheus HTTP
// handler.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once                   sync.Once
	eventsEmitted          *prometheus.CounterVec
	staleUpdates           *prometheus.CounterVec
	bufferedUpdates        *prometheus.CounterVec
	bufferEvictions        *prometheus.CounterVec
	reconciliationFailures *prometheus.CounterVec
)

// Init registers the normalization counters and serves them over HTTP.
// Subsequent calls are no-ops.
func Init(listen string) {
	once.Do(func() {
		eventsEmitted = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "normflow_events_emitted_total",
				Help: "Number of normalized events handed to consumers",
			},
			[]string{"exchange", "type"},
		)

		staleUpdates = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "normflow_stale_updates_total",
				Help: "Number of book updates discarded as not newer than the applied snapshot",
			},
			[]string{"exchange"},
		)

		bufferedUpdates = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "normflow_buffered_updates_total",
				Help: "Number of book updates buffered before a snapshot was available",
			},
			[]string{"exchange"},
		)

		bufferEvictions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "normflow_buffer_evictions_total",
				Help: "Number of pre-snapshot updates evicted from full ring buffers",
			},
			[]string{"exchange"},
		)

		reconciliationFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "normflow_reconciliation_failures_total",
				Help: "Number of snapshot/update sequence reconciliation failures",
			},
			[]string{"exchange", "mode"},
		)

		_ = prometheus.Register(eventsEmitted)
		_ = prometheus.Register(staleUpdates)
		_ = prometheus.Register(bufferedUpdates)
		_ = prometheus.Register(bufferEvictions)
		_ = prometheus.Register(reconciliationFailures)
		_ = prometheus.Register(collectors.NewGoCollector())
		_ = prometheus.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(listen, nil); err != nil {
				panic("metrics server failed: " + err.Error())
			}
		}()
	})
}

// IncrementEventsEmitted adds n to the emitted-events counter.
func IncrementEventsEmitted(exchange, eventType string, n int) {
	if eventsEmitted != nil && n > 0 {
		eventsEmitted.WithLabelValues(exchange, eventType).Add(float64(n))
	}
}

// IncrementStaleUpdates counts a discarded stale book update.
func IncrementStaleUpdates(exchange string) {
	if staleUpdates != nil {
		staleUpdates.WithLabelValues(exchange).Inc()
	}
}

// IncrementBufferedUpdates counts a pre-snapshot buffered update.
func IncrementBufferedUpdates(exchange string) {
	if bufferedUpdates != nil {
		bufferedUpdates.WithLabelValues(exchange).Inc()
	}
}

// IncrementBufferEvictions counts a silently evicted pre-snapshot update.
func IncrementBufferEvictions(exchange string) {
	if bufferEvictions != nil {
		bufferEvictions.WithLabelValues(exchange).Inc()
	}
}

// IncrementReconciliationFailures counts a sequence reconciliation failure
// under the given policy mode ("strict" or "tolerant").
func IncrementReconciliationFailures(exchange, mode string) {
	if reconciliationFailures != nil {
		reconciliationFailures.WithLabelValues(exchange, mode).Inc()
	}
}
