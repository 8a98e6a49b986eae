package ports

import (
	"image"
)

// VideoEncoder abstracts constant frame rate video encoding.
type VideoEncoder interface {
	// Begin initializes the encoder with the specified dimensions and frame rate.
	Begin(width, height int, fps float64, opts EncoderOptions) error

	// EncodeFrame encodes the next frame. Frames are spaced 1/fps apart.
	EncodeFrame(img image.Image) error

	// End finalizes encoding and returns the container data.
	End() ([]byte, error)
}

// EncoderOptions configures video encoding parameters.
type EncoderOptions struct {
	Quality int    // x264 CRF 0-51, 0 is lossless
	Preset  string // x264 preset, e.g. "veryslow"
	Tune    string // x264 tune, e.g. "animation"
}
