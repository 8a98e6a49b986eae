package ggrenderer

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/user/lcdtap/pkg/ports"
)

func TestRenderer_CreateCanvas(t *testing.T) {
	r := New()

	canvas := r.CreateCanvas(100, 100, color.White)
	if canvas == nil {
		t.Fatal("expected canvas to be created")
	}

	img := canvas.ToImage()
	bounds := img.Bounds()

	if bounds.Dx() != 100 || bounds.Dy() != 100 {
		t.Errorf("expected 100x100, got %dx%d", bounds.Dx(), bounds.Dy())
	}

	r32, g32, b32, _ := img.At(50, 50).RGBA()
	if r32>>8 != 255 || g32>>8 != 255 || b32>>8 != 255 {
		t.Errorf("expected white background, got %d,%d,%d", r32>>8, g32>>8, b32>>8)
	}
}

func TestCanvas_DrawRect(t *testing.T) {
	r := New()
	canvas := r.CreateCanvas(20, 10, color.Black)
	canvas.DrawRect(10, 0, 10, 10, color.RGBA{R: 255, A: 255})

	img := canvas.ToImage()
	if rr, _, _, _ := img.At(15, 5).RGBA(); rr>>8 != 255 {
		t.Errorf("expected red inside rect, got %d", rr>>8)
	}
	if rr, _, _, _ := img.At(5, 5).RGBA(); rr>>8 != 0 {
		t.Errorf("expected black outside rect, got %d", rr>>8)
	}
}

func TestCanvas_DrawText(t *testing.T) {
	r := New()
	canvas := r.CreateCanvas(160, 144, color.Black)
	canvas.DrawText("NO SIGNAL", 80, 72, color.White)

	img := canvas.ToImage()
	lit := 0
	for y := 60; y < 84; y++ {
		for x := 0; x < 160; x++ {
			if rr, _, _, _ := img.At(x, y).RGBA(); rr > 0 {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Error("expected text pixels near the centre")
	}
}

func TestRenderer_EncodePNG(t *testing.T) {
	r := New()

	img := image.NewRGBA(image.Rect(0, 0, 30, 30))

	data, err := r.EncodeImage(img, ports.FormatPNG)
	if err != nil {
		t.Fatalf("EncodeImage failed: %v", err)
	}

	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode failed: %v", err)
	}

	bounds := decoded.Bounds()
	if bounds.Dx() != 30 || bounds.Dy() != 30 {
		t.Errorf("expected 30x30, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestRenderer_EncodeJPEG(t *testing.T) {
	r := New()

	img := image.NewRGBA(image.Rect(0, 0, 50, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 0, A: 255})
		}
	}

	data, err := r.EncodeImage(img, ports.FormatJPEG)
	if err != nil {
		t.Fatalf("EncodeImage failed: %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("jpeg.Decode failed: %v", err)
	}
}

func TestRenderer_EncodeUnsupported(t *testing.T) {
	r := New()
	if _, err := r.EncodeImage(image.NewRGBA(image.Rect(0, 0, 1, 1)), ports.ImageFormat(99)); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestRenderer_ResizeImage(t *testing.T) {
	r := New()

	// 2x1 image: left red, right blue
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(1, 0, color.RGBA{B: 255, A: 255})

	resized := r.ResizeImage(img, 6, 3)

	bounds := resized.Bounds()
	if bounds.Dx() != 6 || bounds.Dy() != 3 {
		t.Errorf("expected 6x3, got %dx%d", bounds.Dx(), bounds.Dy())
	}
	// nearest neighbour keeps hard edges
	if rr, _, bb, _ := resized.At(2, 1).RGBA(); rr>>8 != 255 || bb != 0 {
		t.Errorf("expected pure red at (2,1), got r=%d b=%d", rr>>8, bb>>8)
	}
	if rr, _, bb, _ := resized.At(3, 1).RGBA(); rr != 0 || bb>>8 != 255 {
		t.Errorf("expected pure blue at (3,1), got r=%d b=%d", rr>>8, bb>>8)
	}
}
