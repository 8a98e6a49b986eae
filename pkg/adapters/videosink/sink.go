// Package videosink feeds frames to a constant frame rate video encoder and
// writes the finished container on close.
package videosink

import (
	"fmt"

	"github.com/user/lcdtap/pkg/pipeline"
	"github.com/user/lcdtap/pkg/ports"
)

// DefaultFPS is the refresh rate of the tapped display.
const DefaultFPS = 59.7

// Options configures the video sink.
type Options struct {
	Path    string
	FPS     float64
	Encoder ports.EncoderOptions
}

// Sink implements ports.FrameSink over a ports.VideoEncoder.
type Sink struct {
	encoder ports.VideoEncoder
	fs      ports.FileSystem
	logger  ports.Logger
	opts    Options

	begun  bool
	frames int
	err    error
}

// New creates a video sink. Encoding starts with the first frame so the
// encoder is sized from the frame geometry.
func New(encoder ports.VideoEncoder, fs ports.FileSystem, opts Options, logger ports.Logger) *Sink {
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	return &Sink{
		encoder: encoder,
		fs:      fs,
		logger:  logger.WithComponent("video"),
		opts:    opts,
	}
}

// Name returns the sink name.
func (s *Sink) Name() string {
	return "video"
}

// Accept encodes one frame.
func (s *Sink) Accept(frame pipeline.Frame) error {
	if s.err != nil {
		return s.err
	}

	if !s.begun {
		g := frame.Geometry
		s.logger.Debug("Encoding %dx%d video at %.1f fps with quality %d", g.Width, g.Height, s.opts.FPS, s.opts.Encoder.Quality)
		if err := s.encoder.Begin(g.Width, g.Height, s.opts.FPS, s.opts.Encoder); err != nil {
			// a failed start would fail every later frame the same way
			s.err = fmt.Errorf("begin encoding: %w", err)
			return s.err
		}
		s.begun = true
	}

	if err := s.encoder.EncodeFrame(frame.Image()); err != nil {
		return fmt.Errorf("encode frame %d: %w", frame.Seq, err)
	}
	s.frames++
	return nil
}

// Close finalizes the encoder and writes the container.
func (s *Sink) Close() error {
	if !s.begun {
		return nil
	}
	s.begun = false

	data, err := s.encoder.End()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	if err := s.fs.WriteFile(s.opts.Path, data); err != nil {
		return fmt.Errorf("write %s: %w", s.opts.Path, err)
	}

	s.logger.Info("Video saved to %s (%d frames, %d bytes)", s.opts.Path, s.frames, len(data))
	return nil
}

// Ensure Sink implements ports.FrameSink
var _ ports.FrameSink = (*Sink)(nil)
