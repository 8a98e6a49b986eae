// Package pipeline provides the shared types and the stage contract of the
// capture-to-frame pipeline.
package pipeline

import (
	"context"
)

// Stage represents a long-running processing stage in the pipeline.
// Execute returns when the stage finishes or ctx is cancelled.
type Stage[In, Out any] interface {
	// Execute runs the stage with the given input and returns the output.
	Execute(ctx context.Context, input In) (Out, error)
}

// StageFunc is a function adapter for Stage interface.
type StageFunc[In, Out any] func(ctx context.Context, input In) (Out, error)

// Execute implements Stage interface.
func (f StageFunc[In, Out]) Execute(ctx context.Context, input In) (Out, error) {
	return f(ctx, input)
}
