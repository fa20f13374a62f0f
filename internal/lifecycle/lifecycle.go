// Package lifecycle holds the process run phase shared by the serve command and /health.
package lifecycle

import "sync/atomic"

// Phase is the run phase of the HTTP surface.
type Phase int32

const (
	// Serving is the zero phase: the process accepts lookups.
	Serving Phase = iota
	// Draining means shutdown began; /health reports 503 so callers stop sending lookups.
	Draining
)

// Status is the /health status string for p.
func (p Phase) Status() string {
	if p == Draining {
		return "shutting-down"
	}
	return "healthy"
}

var current atomic.Int32

// Set moves the process to phase p.
func Set(p Phase) {
	current.Store(int32(p))
}

// Current returns the process phase.
func Current() Phase {
	return Phase(current.Load())
}

// IsDraining reports whether shutdown has begun.
func IsDraining() bool {
	return Current() == Draining
}
