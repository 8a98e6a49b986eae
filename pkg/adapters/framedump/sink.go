// Package framedump saves periodic frame snapshots as image files.
package framedump

import (
	"fmt"
	"image"
	"path/filepath"

	"github.com/user/lcdtap/pkg/pipeline"
	"github.com/user/lcdtap/pkg/ports"
)

// Options configures the dump sink.
type Options struct {
	Dir   string
	Every int // save every N-th frame; values below 1 mean every frame
	Scale int // integer upscale factor; values below 1 mean 1
	// Format selects PNG (lossless, default) or JPEG.
	Format ports.ImageFormat
}

// extension returns the file extension for format.
func extension(format ports.ImageFormat) string {
	if format == ports.FormatJPEG {
		return "jpg"
	}
	return "png"
}

// Sink saves frames to files.
type Sink struct {
	fs       ports.FileSystem
	renderer ports.Renderer
	logger   ports.Logger
	opts     Options

	ready bool
	seen  int
	saved int
}

// New creates a frame dump sink.
func New(fs ports.FileSystem, renderer ports.Renderer, opts Options, logger ports.Logger) *Sink {
	if opts.Every < 1 {
		opts.Every = 1
	}
	if opts.Scale < 1 {
		opts.Scale = 1
	}
	return &Sink{
		fs:       fs,
		renderer: renderer,
		logger:   logger.WithComponent("framedump"),
		opts:     opts,
	}
}

// Name returns the sink name.
func (s *Sink) Name() string {
	return "framedump"
}

// Accept saves the frame if it falls on the configured cadence.
func (s *Sink) Accept(frame pipeline.Frame) error {
	s.seen++
	if (s.seen-1)%s.opts.Every != 0 {
		return nil
	}

	if !s.ready {
		if err := s.fs.MkdirAll(s.opts.Dir); err != nil {
			return fmt.Errorf("create %s: %w", s.opts.Dir, err)
		}
		s.ready = true
	}

	var img image.Image = frame.Image()
	if s.opts.Scale > 1 {
		g := frame.Geometry
		img = s.renderer.ResizeImage(img, g.Width*s.opts.Scale, g.Height*s.opts.Scale)
	}

	data, err := s.renderer.EncodeImage(img, s.opts.Format)
	if err != nil {
		return fmt.Errorf("encode frame %d: %w", frame.Seq, err)
	}

	path := filepath.Join(s.opts.Dir, fmt.Sprintf("frame-%06d.%s", frame.Seq, extension(s.opts.Format)))
	if err := s.fs.WriteFile(path, data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	s.saved++
	return nil
}

// Close reports the number of saved frames.
func (s *Sink) Close() error {
	if s.saved > 0 {
		s.logger.Info("Saved %d frames to %s", s.saved, s.opts.Dir)
	}
	return nil
}

// Ensure Sink implements ports.FrameSink
var _ ports.FrameSink = (*Sink)(nil)
