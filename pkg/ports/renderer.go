package ports

import (
	"image"
	"image/color"
)

// Renderer abstracts image processing operations.
type Renderer interface {
	// CreateCanvas creates a new drawing canvas with the specified dimensions and background color.
	CreateCanvas(width, height int, bg color.Color) Canvas

	// EncodeImage encodes an image to the specified format.
	EncodeImage(img image.Image, format ImageFormat) ([]byte, error)

	// ResizeImage resizes an image to the specified dimensions.
	ResizeImage(img image.Image, width, height int) image.Image
}

// Canvas provides drawing operations.
type Canvas interface {
	// DrawRect draws a filled rectangle.
	DrawRect(x, y, w, h int, c color.Color)

	// DrawText draws centred text at the specified position.
	DrawText(text string, x, y int, c color.Color)

	// ToImage returns the canvas content as an image.
	ToImage() image.Image
}

// ImageFormat specifies image encoding format.
type ImageFormat int

const (
	FormatPNG ImageFormat = iota
	FormatJPEG
)
