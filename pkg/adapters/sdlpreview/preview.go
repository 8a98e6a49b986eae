// Package sdlpreview shows frames live in an SDL2 window.
//
// All SDL calls happen on one goroutine locked to its OS thread. Accept only
// posts the newest frame to that goroutine, so a slow display never backs up
// the pipeline. Closing the window is reported through Closed.
package sdlpreview

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/user/lcdtap/pkg/pipeline"
	"github.com/user/lcdtap/pkg/ports"
)

// pollInterval is how often window events are serviced while no frames arrive.
const pollInterval = 15 * time.Millisecond

// Options configures the preview window.
type Options struct {
	Title string
	Scale int
}

// Preview implements ports.FrameSink with an SDL window.
type Preview struct {
	geometry pipeline.Geometry
	opts     Options
	logger   ports.Logger

	frames *mailbox
	quit   chan struct{}
	done   chan struct{}
	closed chan struct{}

	closeOnce  sync.Once
	closedOnce sync.Once
}

// New opens the window. It returns once SDL is initialised or has failed.
func New(geometry pipeline.Geometry, opts Options, logger ports.Logger) (*Preview, error) {
	if opts.Scale < 1 {
		opts.Scale = 1
	}
	if opts.Title == "" {
		opts.Title = "lcdtap"
	}

	p := &Preview{
		geometry: geometry,
		opts:     opts,
		logger:   logger.WithComponent("preview"),
		frames:   newMailbox(),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		closed:   make(chan struct{}),
	}

	ready := make(chan error, 1)
	go p.run(ready)
	if err := <-ready; err != nil {
		return nil, err
	}
	return p, nil
}

// window bundles the SDL objects owned by the render goroutine.
type window struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
}

func (w *window) destroy() {
	if w.texture != nil {
		_ = w.texture.Destroy()
	}
	if w.renderer != nil {
		_ = w.renderer.Destroy()
	}
	if w.window != nil {
		_ = w.window.Destroy()
	}
	sdl.Quit()
}

func (p *Preview) open() (*window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, fmt.Errorf("failed to initialize SDL2: %v", err)
	}

	w := &window{}
	var err error

	width := int32(p.geometry.Width * p.opts.Scale)
	height := int32(p.geometry.Height * p.opts.Scale)
	w.window, err = sdl.CreateWindow(p.opts.Title,
		int32(sdl.WINDOWPOS_CENTERED), int32(sdl.WINDOWPOS_CENTERED),
		width, height,
		uint32(sdl.WINDOW_SHOWN))
	if err != nil {
		w.destroy()
		return nil, fmt.Errorf("failed to create window: %v", err)
	}

	w.renderer, err = sdl.CreateRenderer(w.window, -1, uint32(sdl.RENDERER_ACCELERATED)|uint32(sdl.RENDERER_PRESENTVSYNC))
	if err != nil {
		w.destroy()
		return nil, fmt.Errorf("failed to create renderer: %v", err)
	}

	// the texture is the size of the LCD; scaling happens on copy
	w.texture, err = w.renderer.CreateTexture(uint32(sdl.PIXELFORMAT_RGB24),
		int(sdl.TEXTUREACCESS_STREAMING),
		int32(p.geometry.Width), int32(p.geometry.Height))
	if err != nil {
		w.destroy()
		return nil, fmt.Errorf("failed to create texture: %v", err)
	}

	return w, nil
}

func (p *Preview) run(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(p.done)

	w, err := p.open()
	ready <- err
	if err != nil {
		return
	}
	defer w.destroy()

	p.logger.Debug("Preview window opened at %dx scale", p.opts.Scale)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.quit:
			return
		case <-p.frames.ready():
			if frame, ok := p.frames.take(); ok {
				if err := p.present(w, frame); err != nil {
					p.logger.Debug("Preview render failed: %v", err)
				}
			}
			p.pollEvents()
		case <-ticker.C:
			p.pollEvents()
		}
	}
}

func (p *Preview) present(w *window, frame pipeline.Frame) error {
	if err := w.texture.Update(nil, frame.Pix, frame.Geometry.Pitch()); err != nil {
		return err
	}
	if err := w.renderer.Copy(w.texture, nil, nil); err != nil {
		return err
	}
	w.renderer.Present()
	return nil
}

func (p *Preview) pollEvents() {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch ev := event.(type) {
		case *sdl.QuitEvent:
			p.markClosed()
		case *sdl.WindowEvent:
			if ev.Event == sdl.WINDOWEVENT_CLOSE {
				p.markClosed()
			}
		case *sdl.KeyboardEvent:
			if ev.Type == sdl.KEYDOWN && ev.Keysym.Sym == sdl.K_ESCAPE {
				p.markClosed()
			}
		}
	}
}

func (p *Preview) markClosed() {
	p.closedOnce.Do(func() {
		p.logger.Info("Preview window closed")
		close(p.closed)
	})
}

// Closed is closed when the user closes the window.
func (p *Preview) Closed() <-chan struct{} {
	return p.closed
}

// Name returns the sink name.
func (p *Preview) Name() string {
	return "preview"
}

// Accept hands the frame to the render goroutine, replacing any frame it
// has not drawn yet.
func (p *Preview) Accept(frame pipeline.Frame) error {
	p.frames.put(frame)
	return nil
}

// Close destroys the window and waits for the render goroutine.
func (p *Preview) Close() error {
	p.closeOnce.Do(func() {
		close(p.quit)
	})
	<-p.done
	return nil
}

// Ensure Preview implements ports.FrameSink
var _ ports.FrameSink = (*Preview)(nil)
