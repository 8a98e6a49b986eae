package pipeline

import (
	"image"
	"time"
)

// =============================================================================
// Stream Types
// =============================================================================

// Chunk is one variable-length buffer produced by a byte source.
// It is never modified after being handed off.
type Chunk []byte

// StreamEvent is either a chunk of data or a timeout marker.
type StreamEvent struct {
	Data    Chunk
	Timeout bool
}

// DataEvent wraps a chunk in a StreamEvent.
func DataEvent(c Chunk) StreamEvent {
	return StreamEvent{Data: c}
}

// TimeoutEvent reports that no data arrived within the polling window.
func TimeoutEvent() StreamEvent {
	return StreamEvent{Timeout: true}
}

// =============================================================================
// Scanline Types
// =============================================================================

// Geometry is the size of the tapped display in pixels.
type Geometry struct {
	Width  int
	Height int
}

// Pitch returns the number of bytes in one RGB row.
func (g Geometry) Pitch() int {
	return g.Width * 3
}

// Size returns the number of bytes in one RGB frame.
func (g Geometry) Size() int {
	return g.Pitch() * g.Height
}

// Header is the decoded metadata at the start of a scanline.
type Header struct {
	Overflow bool
	Frame    int // 0..31
	Row      int // 0..Height, Height is the artifact row
}

// Scanline is one decoded row of RGB pixels.
type Scanline struct {
	Header Header
	Pixels []byte // len == Geometry.Pitch()
}

// =============================================================================
// Frame Types
// =============================================================================

// Frame is an immutable snapshot of a framebuffer handed to sinks.
type Frame struct {
	Seq        uint64 // emission order starting at 1; 0 for diagnostic frames
	Index      int    // hardware frame counter of the frame
	Geometry   Geometry
	Pix        []byte // RGB, Geometry.Size() bytes
	Duplicate  bool   // previous frame re-emitted after a continuity anomaly
	Diagnostic bool   // placeholder emitted while the device is silent
}

// Image converts the frame to an RGBA image.
func (f Frame) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Geometry.Width, f.Geometry.Height))
	for i, j := 0, 0; i+2 < len(f.Pix) && j+3 < len(img.Pix); i, j = i+3, j+4 {
		img.Pix[j] = f.Pix[i]
		img.Pix[j+1] = f.Pix[i+1]
		img.Pix[j+2] = f.Pix[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

// FrameFromImage packs an image into RGB frame pixels of the given geometry.
func FrameFromImage(img image.Image, g Geometry) []byte {
	pix := make([]byte, g.Size())
	b := img.Bounds()
	for y := 0; y < g.Height && y < b.Dy(); y++ {
		for x := 0; x < g.Width && x < b.Dx(); x++ {
			r, gr, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := y*g.Pitch() + x*3
			pix[i] = uint8(r >> 8)
			pix[i+1] = uint8(gr >> 8)
			pix[i+2] = uint8(bl >> 8)
		}
	}
	return pix
}

// =============================================================================
// Assemble Stage Types
// =============================================================================

// AssembleInput contains parameters for the assembly loop.
type AssembleInput struct {
	// StopAtEnd makes the loop return when the source is exhausted
	// instead of treating closure as an error.
	StopAtEnd bool
}

// AssembleResult contains counters collected by the assembly loop.
type AssembleResult struct {
	Scanlines          int
	ArtifactRows       int
	FramesEmitted      int
	Duplicates         int
	LostSync           int
	Timeouts           int
	Overflows          int
	RowDiscontinuity   int
	FrameDiscontinuity int
	Duration           time.Duration
}
