package h264encoder

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/user/lcdtap/pkg/ports"
)

// customFFmpegPath overrides discovery when set.
var customFFmpegPath string

// SetFFmpegPath pins the ffmpeg binary used by new encoders.
func SetFFmpegPath(path string) {
	customFFmpegPath = path
}

// IsFFmpegAvailable checks if ffmpeg is available on the system.
func IsFFmpegAvailable() bool {
	_, err := FindFFmpeg()
	return err == nil
}

// FindFFmpeg searches for ffmpeg in PATH and common locations.
// Priority: 1) customFFmpegPath (set via SetFFmpegPath), 2) FFMPEG_PATH env, 3) PATH, 4) common locations
func FindFFmpeg() (string, error) {
	if customFFmpegPath != "" {
		if _, err := os.Stat(customFFmpegPath); err == nil {
			return customFFmpegPath, nil
		}
		return "", fmt.Errorf("%w: custom path %s not found", ErrFFmpegNotFound, customFFmpegPath)
	}

	if envPath := os.Getenv("FFMPEG_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
		return "", fmt.Errorf("%w: FFMPEG_PATH %s not found", ErrFFmpegNotFound, envPath)
	}

	execName := "ffmpeg"
	if runtime.GOOS == "windows" {
		execName = "ffmpeg.exe"
	}
	if path, err := exec.LookPath(execName); err == nil {
		return path, nil
	}

	var commonPaths []string
	switch runtime.GOOS {
	case "windows":
		commonPaths = []string{
			`C:\ffmpeg\bin\ffmpeg.exe`,
			`C:\Program Files\ffmpeg\bin\ffmpeg.exe`,
		}
	case "darwin":
		commonPaths = []string{
			"/opt/homebrew/bin/ffmpeg",
			"/usr/local/bin/ffmpeg",
		}
	default:
		commonPaths = []string{
			"/usr/bin/ffmpeg",
			"/usr/local/bin/ffmpeg",
			"/snap/bin/ffmpeg",
		}
	}

	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", ErrFFmpegNotFound
}

// ffmpegArgs builds the command line that turns raw RGBA frames on stdin
// into an H.264 elementary stream on stdout. Access unit delimiters are
// enabled so the stream can be split into samples without parsing slices.
func ffmpegArgs(width, height int, fps float64, opts ports.EncoderOptions) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", fmt.Sprintf("%.3f", fps),
		"-i", "pipe:0",
		"-c:v", "libx264",
		"-preset", opts.Preset,
		"-crf", fmt.Sprintf("%d", opts.Quality),
		"-bf", "0",
		"-pix_fmt", "yuv420p",
		"-x264-params", "aud=1",
	}
	if opts.Tune != "" {
		args = append(args, "-tune", opts.Tune)
	}
	return append(args, "-f", "h264", "pipe:1")
}
