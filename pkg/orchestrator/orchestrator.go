// Package orchestrator runs a capture session: it starts the byte source,
// drives the assembly stage and shuts everything down in order.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/user/lcdtap/pkg/fanout"
	"github.com/user/lcdtap/pkg/pipeline"
	"github.com/user/lcdtap/pkg/ports"
)

// SourceKind names the byte source a session reads from.
type SourceKind string

const (
	SourceLive      SourceKind = "live"
	SourceReplay    SourceKind = "replay"
	SourceSimulated SourceKind = "simulated"
)

// Config contains the per-run settings of the orchestrator.
type Config struct {
	Source   SourceKind
	Geometry pipeline.Geometry

	// StopAtEnd ends the session when the source runs dry instead of
	// treating it as a failure.
	StopAtEnd bool

	// Stop, when set, ends the session once closed, e.g. by the preview
	// window.
	Stop <-chan struct{}
}

// Sinks is the fan-out side owned by the orchestrator during a run.
type Sinks interface {
	Close() error
	Stats() []fanout.SinkStats
}

// Orchestrator coordinates the byte source, the assembly stage and the sinks.
type Orchestrator struct {
	source   ports.ByteSource
	assemble pipeline.Stage[pipeline.AssembleInput, pipeline.AssembleResult]
	sinks    Sinks
	logger   ports.Logger
}

// New creates a new Orchestrator. The assembly stage must read from source
// and emit into sinks.
func New(
	source ports.ByteSource,
	assemble pipeline.Stage[pipeline.AssembleInput, pipeline.AssembleResult],
	sinks Sinks,
	logger ports.Logger,
) *Orchestrator {
	return &Orchestrator{
		source:   source,
		assemble: assemble,
		sinks:    sinks,
		logger:   logger,
	}
}

// Run executes the session until ctx is cancelled, config.Stop fires, the
// source ends (with StopAtEnd) or fails. The source is always closed before
// the sinks, so persistent sinks see every assembled frame.
func (o *Orchestrator) Run(ctx context.Context, config Config) (RunResult, error) {
	start := time.Now()
	result := RunResult{Source: config.Source, Geometry: config.Geometry}

	o.logger.Info("Starting capture from %s", config.Source)

	if err := o.source.Start(); err != nil {
		return result, errors.Join(fmt.Errorf("start source: %w", err), o.shutdown())
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if config.Stop != nil {
		go func() {
			select {
			case <-config.Stop:
				o.logger.Info("Preview closed, shutting down...")
				cancel()
			case <-runCtx.Done():
			}
		}()
	}

	assembled, runErr := o.assemble.Execute(runCtx, pipeline.AssembleInput{StopAtEnd: config.StopAtEnd})
	cancel()

	if ctx.Err() != nil {
		o.logger.Warn("Interrupted, shutting down...")
	}

	closeErr := o.shutdown()

	result.Assemble = assembled
	result.Sinks = o.sinks.Stats()
	result.Duration = time.Since(start)

	if runErr != nil {
		o.logger.Error("Session failed: %v", runErr)
		return result, errors.Join(fmt.Errorf("assemble stage: %w", runErr), closeErr)
	}
	if closeErr != nil {
		return result, closeErr
	}

	o.logger.Info("Session finished in %s", result.Duration.Round(time.Millisecond))
	return result, nil
}

// shutdown closes the source, joining its goroutine, then drains and closes
// the sinks.
func (o *Orchestrator) shutdown() error {
	var errs []error
	if err := o.source.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close source: %w", err))
	}
	if err := o.sinks.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sinks: %w", err))
	}
	return errors.Join(errs...)
}

// RunResult contains the results of a session for summary generation.
type RunResult struct {
	Source   SourceKind
	Geometry pipeline.Geometry
	Duration time.Duration

	// Assembler counters
	Assemble pipeline.AssembleResult

	// Per-sink counters in registration order
	Sinks []fanout.SinkStats
}
