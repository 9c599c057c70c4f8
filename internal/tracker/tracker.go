// Package tracker defines how training progress is reported to an experiment
// tracking service.
package tracker

import "context"

// Tracker records metrics against the current training step. Implementations
// need not be safe for concurrent use.
type Tracker interface {
	// SetStep sets the step that subsequent metrics are recorded at.
	SetStep(step int64)
	// LogMetrics records every key/value pair at the current step.
	LogMetrics(ctx context.Context, metrics map[string]float64) error
	// LogImage uploads the image file at path.
	LogImage(ctx context.Context, path string) error
}

// Nop is a Tracker that discards everything. It is used when tracking is off.
var Nop Tracker = nop{}

type nop struct{}

func (nop) SetStep(int64) {}
func (nop) LogMetrics(context.Context, map[string]float64) error { return nil }
func (nop) LogImage(context.Context, string) error { return nil }
