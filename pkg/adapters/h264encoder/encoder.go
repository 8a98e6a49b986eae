// Package h264encoder provides H.264 video encoding through an ffmpeg
// process. ffmpeg produces an Annex B elementary stream which is muxed into
// MP4 here with mp4ff at the exact capture frame rate.
package h264encoder

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
	"sync"

	"github.com/user/lcdtap/pkg/ports"
)

// Defaults applied when options leave fields empty.
const (
	DefaultPreset = "veryslow"
	DefaultTune   = "animation"
)

// withDefaults fills an empty preset or tune.
func withDefaults(opts ports.EncoderOptions) ports.EncoderOptions {
	if opts.Preset == "" {
		opts.Preset = DefaultPreset
	}
	if opts.Tune == "" {
		opts.Tune = DefaultTune
	}
	return opts
}

// Encoder implements ports.VideoEncoder.
type Encoder struct {
	mu sync.Mutex

	width   int
	height  int
	fps     float64
	options ports.EncoderOptions

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout bytes.Buffer
	stderr bytes.Buffer
	rgba   *image.RGBA

	frameCount int
}

// New creates a new H.264 encoder.
func New() *Encoder {
	return &Encoder{}
}

// Begin starts ffmpeg.
func (e *Encoder) Begin(width, height int, fps float64, opts ports.EncoderOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if opts.Quality < 0 || opts.Quality > 51 {
		return fmt.Errorf("%w: %d", ErrInvalidQuality, opts.Quality)
	}
	opts = withDefaults(opts)

	ffmpegPath, err := FindFFmpeg()
	if err != nil {
		return err
	}

	e.width = width
	e.height = height
	e.fps = fps
	e.options = opts
	e.frameCount = 0
	e.stdout.Reset()
	e.stderr.Reset()
	e.rgba = image.NewRGBA(image.Rect(0, 0, width, height))

	e.cmd = exec.Command(ffmpegPath, ffmpegArgs(width, height, fps, opts)...)
	e.cmd.Stdout = &e.stdout
	e.cmd.Stderr = &e.stderr

	stdin, err := e.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	e.stdin = stdin

	if err := e.cmd.Start(); err != nil {
		e.stdin = nil
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	return nil
}

// EncodeFrame writes one frame to ffmpeg.
func (e *Encoder) EncodeFrame(img image.Image) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stdin == nil {
		return ErrNotInitialized
	}

	draw.Draw(e.rgba, e.rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	if _, err := e.stdin.Write(e.rgba.Pix); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	e.frameCount++
	return nil
}

// End waits for ffmpeg to flush and returns the MP4 data.
func (e *Encoder) End() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stdin == nil {
		return nil, ErrNotInitialized
	}

	e.stdin.Close()
	e.stdin = nil

	if err := e.cmd.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v\nstderr: %s", ErrEncodingFailed, err, e.stderr.String())
	}
	if e.frameCount == 0 {
		return nil, ErrNoFrames
	}

	return buildMP4(splitAccessUnits(e.stdout.Bytes()), e.width, e.height, e.fps)
}

// Ensure Encoder implements ports.VideoEncoder
var _ ports.VideoEncoder = (*Encoder)(nil)
