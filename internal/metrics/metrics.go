// Package metrics provides the instrumentation surface of the connection core:
// a Recorder interface with a no-op default and a Prometheus implementation.
package metrics

import "time"

// Operation names passed to ObserveOp.
const (
	OpResolve  = "resolve"
	OpDescribe = "describe"
	OpExecute  = "execute"
	OpTest     = "test"
)

// Recorder defines the metrics surface used across the codebase.
type Recorder interface {
	IncCacheLookup(hit bool)
	IncEngineOpen(kind string, success bool)
	IncSecretFailure()
	ObserveOp(op string, success bool, seconds float64)
}

type noopRecorder struct{}

func (noopRecorder) IncCacheLookup(bool)             {}
func (noopRecorder) IncEngineOpen(string, bool)      {}
func (noopRecorder) IncSecretFailure()               {}
func (noopRecorder) ObserveOp(string, bool, float64) {}

// Nop returns a Recorder that drops everything.
func Nop() Recorder { return noopRecorder{} }

// OrNop returns rec, or the no-op recorder when rec is nil.
func OrNop(rec Recorder) Recorder {
	if rec == nil {
		return Nop()
	}
	return rec
}

// TimeOp starts timing op and returns the function that records it.
func TimeOp(rec Recorder, op string) func(success bool) {
	start := time.Now()
	return func(success bool) {
		OrNop(rec).ObserveOp(op, success, time.Since(start).Seconds())
	}
}
