// Package assemble implements the frame assembly stage: the main loop that
// pulls scanlines, tracks frame and row continuity and hands completed frames
// to the sinks.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/user/lcdtap/pkg/framing"
	"github.com/user/lcdtap/pkg/pipeline"
	"github.com/user/lcdtap/pkg/ports"
	"github.com/user/lcdtap/pkg/protocol"
)

// ScanlineReader is the decoder side consumed by the stage.
type ScanlineReader interface {
	ReadScanline(ctx context.Context) (pipeline.Scanline, error)
}

// Emitter receives assembled frames. Implementations must not block for long;
// the stage calls them from the decode loop.
type Emitter interface {
	// Emit delivers a frame to every sink.
	Emit(frame pipeline.Frame)

	// EmitDiagnostic delivers a placeholder frame to visual sinks only.
	EmitDiagnostic(frame pipeline.Frame)
}

// Stage assembles scanlines into frames.
type Stage struct {
	reader     ScanlineReader
	emitter    Emitter
	logger     ports.Logger
	geometry   pipeline.Geometry
	diagnostic []byte

	frame        int
	row          int
	framebuffer  []byte
	lastComplete []byte
	pendingSkip  bool
	seq          uint64
}

// NewStage creates an assembly stage. The diagnostic pattern is rendered
// once up front.
func NewStage(reader ScanlineReader, emitter Emitter, renderer ports.Renderer, logger ports.Logger, geometry pipeline.Geometry) *Stage {
	return &Stage{
		reader:       reader,
		emitter:      emitter,
		logger:       logger.WithComponent("assemble"),
		geometry:     geometry,
		diagnostic:   DiagnosticPattern(renderer, geometry),
		frame:        0,
		row:          geometry.Height - 1,
		framebuffer:  make([]byte, geometry.Size()),
		lastComplete: make([]byte, geometry.Size()),
	}
}

// Execute runs the assembly loop until ctx is cancelled or the source fails.
// Cancellation is a normal stop and returns a nil error.
func (s *Stage) Execute(ctx context.Context, input pipeline.AssembleInput) (pipeline.AssembleResult, error) {
	result := pipeline.AssembleResult{}
	start := time.Now()

	s.logger.Debug("Assembling %dx%d frames", s.geometry.Width, s.geometry.Height)

	for {
		if ctx.Err() != nil {
			s.finish(&result, start)
			return result, nil
		}

		sl, err := s.reader.ReadScanline(ctx)
		switch {
		case err == nil:
			s.handleScanline(sl, &result)

		case errors.Is(err, framing.ErrLostSync):
			result.LostSync++
			s.logger.Warn("Lost sync: %v", err)
			s.row = s.geometry.Height - 1

		case errors.Is(err, framing.ErrTimeout):
			result.Timeouts++
			s.emitter.EmitDiagnostic(pipeline.Frame{
				Index:      s.frame,
				Geometry:   s.geometry,
				Pix:        s.diagnostic,
				Diagnostic: true,
			})

		case ctx.Err() != nil:
			s.finish(&result, start)
			return result, nil

		case errors.Is(err, ports.ErrSourceClosed) && input.StopAtEnd:
			s.finish(&result, start)
			return result, nil

		default:
			s.finish(&result, start)
			return result, fmt.Errorf("read scanline: %w", err)
		}
	}
}

func (s *Stage) handleScanline(sl pipeline.Scanline, result *pipeline.AssembleResult) {
	result.Scanlines++
	h := sl.Header

	if h.Overflow {
		result.Overflows++
		s.logger.Warn("Device FIFO overflow reported at frame %d row %d", h.Frame, h.Row)
	}

	// the row after the last visible one is an artifact of the tap
	if h.Row == s.geometry.Height {
		result.ArtifactRows++
		return
	}

	if want := (s.row + 1) % s.geometry.Height; h.Row != want {
		result.RowDiscontinuity++
		s.logger.Warn("Row discontinuity: expected %d, got %d", want, h.Row)
		s.pendingSkip = true
	}
	s.row = h.Row

	if h.Frame != s.frame {
		if want := (s.frame + 1) % protocol.FrameModulus; h.Frame != want {
			result.FrameDiscontinuity++
			s.logger.Warn("Frame discontinuity: expected %d, got %d", want, h.Frame)
		}
		s.finalize(result)
		s.frame = h.Frame
	}

	pitch := s.geometry.Pitch()
	copy(s.framebuffer[h.Row*pitch:(h.Row+1)*pitch], sl.Pixels)
}

// finalize emits the frame just completed. After a row discontinuity the
// previous complete frame is repeated instead of showing a torn one.
func (s *Stage) finalize(result *pipeline.AssembleResult) {
	s.seq++
	frame := pipeline.Frame{
		Seq:      s.seq,
		Index:    s.frame,
		Geometry: s.geometry,
	}

	if s.pendingSkip {
		s.pendingSkip = false
		frame.Pix = s.lastComplete
		frame.Duplicate = true
		result.Duplicates++
	} else {
		// lastComplete is replaced, never mutated, so emitted frames stay immutable
		s.lastComplete = append([]byte(nil), s.framebuffer...)
		frame.Pix = s.lastComplete
	}

	result.FramesEmitted++
	s.emitter.Emit(frame)
}

func (s *Stage) finish(result *pipeline.AssembleResult, start time.Time) {
	result.Duration = time.Since(start)
	s.logger.Info("Assembled %d frames (%d duplicates, %d lost sync) in %s",
		result.FramesEmitted, result.Duplicates, result.LostSync, result.Duration.Round(time.Millisecond))
}

// Ensure Stage implements pipeline.Stage
var _ pipeline.Stage[pipeline.AssembleInput, pipeline.AssembleResult] = (*Stage)(nil)
