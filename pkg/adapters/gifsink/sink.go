// Package gifsink writes frames to an endlessly looping animated GIF.
//
// Frames are streamed to the file as they arrive: each one is encoded as a
// single-image GIF with a local colour table and its image blocks are
// appended to the output, so memory use does not grow with session length.
package gifsink

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"io"

	"golang.org/x/image/draw"

	"github.com/user/lcdtap/pkg/pipeline"
	"github.com/user/lcdtap/pkg/ports"
)

// MaxFramedrop keeps the per-frame delay at least one centisecond.
const MaxFramedrop = 59

// headerSize is "GIF89a" plus a logical screen descriptor without a global
// colour table.
const headerSize = 13

const trailer = 0x3b

// netscapeLoop is the application extension requesting infinite looping.
var netscapeLoop = []byte{
	0x21, 0xff, 0x0b,
	'N', 'E', 'T', 'S', 'C', 'A', 'P', 'E', '2', '.', '0',
	0x03, 0x01, 0x00, 0x00, 0x00,
}

// Sink implements ports.FrameSink.
type Sink struct {
	fs        ports.FileSystem
	path      string
	logger    ports.Logger
	framedrop int
	delay     int

	w       io.WriteCloser
	buf     bytes.Buffer
	seen    int
	written int
	err     error
}

// New creates a GIF sink. The file is created on the first frame.
// Only every (framedrop+1)-th frame is written.
func New(fs ports.FileSystem, path string, framedrop int, logger ports.Logger) (*Sink, error) {
	if framedrop < 0 || framedrop > MaxFramedrop {
		return nil, fmt.Errorf("gifsink: framedrop must be between 0 and %d, got %d", MaxFramedrop, framedrop)
	}
	return &Sink{
		fs:        fs,
		path:      path,
		logger:    logger.WithComponent("gif"),
		framedrop: framedrop,
		delay:     FrameDelay(framedrop),
	}, nil
}

// FrameDelay returns the per-frame delay in centiseconds for a display
// refreshing at 60 Hz with framedrop frames skipped between writes.
func FrameDelay(framedrop int) int {
	return 100 / (60 / (1 + framedrop))
}

// Name returns the sink name.
func (s *Sink) Name() string {
	return "gif"
}

// Accept writes the frame if it falls on the framedrop cadence.
func (s *Sink) Accept(frame pipeline.Frame) error {
	if s.err != nil {
		return s.err
	}

	s.seen++
	if (s.seen-1)%(s.framedrop+1) != 0 {
		return nil
	}

	if s.w == nil {
		if err := s.open(); err != nil {
			s.err = err
			return err
		}
	}

	s.buf.Reset()
	g := &gif.GIF{
		Image: []*image.Paletted{quantize(frame)},
		Delay: []int{s.delay},
	}
	if err := gif.EncodeAll(&s.buf, g); err != nil {
		return fmt.Errorf("encode frame %d: %w", frame.Seq, err)
	}

	encoded := s.buf.Bytes()
	if len(encoded) < headerSize+1 {
		return fmt.Errorf("encode frame %d: short output", frame.Seq)
	}
	if s.written == 0 {
		if err := s.write(encoded[:headerSize]); err != nil {
			return err
		}
		if err := s.write(netscapeLoop); err != nil {
			return err
		}
	}
	if err := s.write(encoded[headerSize : len(encoded)-1]); err != nil {
		return err
	}

	s.written++
	return nil
}

func (s *Sink) open() error {
	w, err := s.fs.Create(s.path)
	if err != nil {
		return fmt.Errorf("create %s: %w", s.path, err)
	}
	s.w = w
	s.logger.Debug("Writing GIF to %s with %d cs frame delay", s.path, s.delay)
	return nil
}

func (s *Sink) write(p []byte) error {
	if _, err := s.w.Write(p); err != nil {
		s.err = fmt.Errorf("write %s: %w", s.path, err)
		return s.err
	}
	return nil
}

// Close terminates the GIF stream.
func (s *Sink) Close() error {
	if s.w == nil {
		return nil
	}

	var errs []error
	if s.written > 0 && s.err == nil {
		if _, err := s.w.Write([]byte{trailer}); err != nil {
			errs = append(errs, fmt.Errorf("write trailer: %w", err))
		}
	}
	if err := s.w.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close %s: %w", s.path, err))
	}
	s.w = nil

	if len(errs) == 0 {
		s.logger.Info("GIF saved to %s (%d frames)", s.path, s.written)
	}
	return errors.Join(errs...)
}

// quantize converts a frame to a paletted image. Frames with at most 256
// distinct colours map exactly; richer frames are dithered to a fixed palette.
func quantize(frame pipeline.Frame) *image.Paletted {
	g := frame.Geometry
	rect := image.Rect(0, 0, g.Width, g.Height)

	index := make(map[[3]byte]uint8)
	var pal color.Palette
	dst := image.NewPaletted(rect, nil)

	for i, j := 0, 0; i+2 < len(frame.Pix) && j < len(dst.Pix); i, j = i+3, j+1 {
		key := [3]byte{frame.Pix[i], frame.Pix[i+1], frame.Pix[i+2]}
		idx, ok := index[key]
		if !ok {
			if len(pal) == 256 {
				return dither(frame, rect)
			}
			idx = uint8(len(pal))
			index[key] = idx
			pal = append(pal, color.RGBA{R: key[0], G: key[1], B: key[2], A: 0xff})
		}
		dst.Pix[j] = idx
	}

	if len(pal) == 0 {
		pal = color.Palette{color.Black}
	}
	dst.Palette = pal
	return dst
}

func dither(frame pipeline.Frame, rect image.Rectangle) *image.Paletted {
	dst := image.NewPaletted(rect, palette.Plan9)
	draw.FloydSteinberg.Draw(dst, rect, frame.Image(), image.Point{})
	return dst
}

// Ensure Sink implements ports.FrameSink
var _ ports.FrameSink = (*Sink)(nil)
