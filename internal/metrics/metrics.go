// Package metrics is the minimal instrumentation facade for the profiling
// pipeline.
//
// The pipeline and client packages record counters and histograms through
// package-level functions; a process wires a concrete backend (for example
// internal/metrics/datadog) at startup via SetBackend. The default backend is
// a nop, so library code can instrument unconditionally without configuration.
package metrics

import "sync/atomic"

// Labels are metric dimensions (e.g. {"stage": "stats", "status": "ok"}).
type Labels map[string]string

// Backend receives recorded metrics. Implementations must be safe for
// concurrent use; recording should be cheap because it sits on hot paths.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer metrics and can submit them
// on demand. Flush() calls it when present.
type Flusher interface {
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var backend atomic.Value // Backend

func init() {
	backend.Store(Backend(nopBackend{}))
}

// SetBackend replaces the process-wide backend. Intended to be called once
// during startup, before any pipeline runs; it is nonetheless safe to call
// concurrently with recording.
func SetBackend(b Backend) {
	if b == nil {
		b = nopBackend{}
	}
	backend.Store(b)
}

// IncCounter adds delta to a counter.
func IncCounter(name string, delta float64, labels Labels) {
	backend.Load().(Backend).IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample of a distribution.
func ObserveHistogram(name string, value float64, labels Labels) {
	backend.Load().(Backend).ObserveHistogram(name, value, labels)
}

// Flush asks a buffering backend to submit now. A nop for backends that do
// not implement Flusher.
func Flush() error {
	if f, ok := backend.Load().(Flusher); ok {
		return f.Flush()
	}
	return nil
}
