package h264encoder

import "errors"

var (
	// ErrNotInitialized is returned when encoder methods are called before initialization.
	ErrNotInitialized = errors.New("h264encoder: encoder not initialized")

	// ErrEncodingFailed is returned when ffmpeg exits with an error.
	ErrEncodingFailed = errors.New("h264encoder: encoding failed")

	// ErrNoFrames is returned when trying to build MP4 with no frames.
	ErrNoFrames = errors.New("h264encoder: no frames to encode")

	// ErrFFmpegNotFound is returned when ffmpeg is not found.
	ErrFFmpegNotFound = errors.New("h264encoder: ffmpeg not found in PATH")

	// ErrInvalidQuality is returned for a CRF outside 0-51.
	ErrInvalidQuality = errors.New("h264encoder: quality must be a CRF between 0 and 51")
)
