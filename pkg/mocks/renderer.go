package mocks

import (
	"image"
	"image/color"
	"sync"

	"github.com/user/lcdtap/pkg/ports"
)

// Renderer is a mock implementation of ports.Renderer.
type Renderer struct {
	CreateCanvasFunc func(width, height int, bg color.Color) ports.Canvas
	EncodeImageFunc  func(img image.Image, format ports.ImageFormat) ([]byte, error)
	ResizeImageFunc  func(img image.Image, width, height int) image.Image

	mu           sync.Mutex
	EncodedCount int
}

func (m *Renderer) CreateCanvas(width, height int, bg color.Color) ports.Canvas {
	if m.CreateCanvasFunc != nil {
		return m.CreateCanvasFunc(width, height, bg)
	}
	return &Canvas{width: width, height: height}
}

func (m *Renderer) EncodeImage(img image.Image, format ports.ImageFormat) ([]byte, error) {
	m.mu.Lock()
	m.EncodedCount++
	m.mu.Unlock()
	if m.EncodeImageFunc != nil {
		return m.EncodeImageFunc(img, format)
	}
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

func (m *Renderer) ResizeImage(img image.Image, width, height int) image.Image {
	if m.ResizeImageFunc != nil {
		return m.ResizeImageFunc(img, width, height)
	}
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

var _ ports.Renderer = (*Renderer)(nil)

// Canvas is a mock implementation of ports.Canvas.
type Canvas struct {
	width  int
	height int

	Rects []image.Rectangle
	Texts []string
}

func (m *Canvas) DrawRect(x, y, w, h int, c color.Color) {
	m.Rects = append(m.Rects, image.Rect(x, y, x+w, y+h))
}

func (m *Canvas) DrawText(text string, x, y int, c color.Color) {
	m.Texts = append(m.Texts, text)
}

func (m *Canvas) ToImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, m.width, m.height))
}

var _ ports.Canvas = (*Canvas)(nil)
