// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/lcdtap/pkg/adapters/gifsink"
	"github.com/user/lcdtap/pkg/orchestrator"
	"github.com/user/lcdtap/pkg/pipeline"
	"github.com/user/lcdtap/pkg/ports"
	"github.com/user/lcdtap/pkg/protocol"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

// Config represents the full configuration for lcdtap.
type Config struct {
	// Device selection
	DeviceType string                  `yaml:"device_type"`
	Devices    map[string]DeviceConfig `yaml:"devices"`

	// Byte source
	Stream StreamConfig `yaml:"stream"`

	// Wire format
	Protocol ProtocolConfig `yaml:"protocol"`

	// Sinks
	Video VideoConfig `yaml:"video"`

	// Session report path; empty disables the report
	Summary string `yaml:"summary"`

	LogLevel string `yaml:"log_level"`
}

// DeviceConfig describes one tapped display.
type DeviceConfig struct {
	Bitstream string `yaml:"bitstream"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
}

// StreamConfig selects and tunes the byte source.
type StreamConfig struct {
	Record         string `yaml:"record"`
	Replay         string `yaml:"replay"`
	Simulate       bool   `yaml:"simulate"`
	ReadTimeoutMs  int    `yaml:"read_timeout_ms"`
	BufferSize     int    `yaml:"buffer_size"`
	IdleIntervalMs int    `yaml:"idle_interval_ms"`
}

// ProtocolConfig selects the scanline header layout.
type ProtocolConfig struct {
	HeaderLayout string `yaml:"header_layout"`
}

// VideoConfig configures the frame sinks. A sink without an output path is
// disabled.
type VideoConfig struct {
	Preview PreviewConfig `yaml:"preview"`
	GIF     GIFConfig     `yaml:"gif"`
	H264    H264Config    `yaml:"h264"`
	PNG     PNGConfig     `yaml:"png"`
}

// PreviewConfig configures the live window. Scale 0 disables it.
type PreviewConfig struct {
	Scale int `yaml:"scale"`
}

// GIFConfig configures the animated GIF sink.
type GIFConfig struct {
	Filename  string `yaml:"filename"`
	Framedrop int    `yaml:"framedrop"`
}

// H264Config configures the MP4 video sink.
type H264Config struct {
	Filename string  `yaml:"filename"`
	CRF      int     `yaml:"crf"`
	Preset   string  `yaml:"preset"`
	Tune     string  `yaml:"tune"`
	FPS      float64 `yaml:"fps"`
	// FFmpeg pins the ffmpeg binary; empty means FFMPEG_PATH, then PATH.
	FFmpeg   string  `yaml:"ffmpeg"`
}

// PNGConfig configures the frame dump sink.
type PNGConfig struct {
	Dir    string `yaml:"dir"`
	Every  int    `yaml:"every"`
	Scale  int    `yaml:"scale"`
	Format string `yaml:"format"` // png or jpeg
}

// ImageFormat returns the encoding selected by Format.
func (p PNGConfig) ImageFormat() (ports.ImageFormat, error) {
	switch p.Format {
	case "", "png":
		return ports.FormatPNG, nil
	case "jpeg", "jpg":
		return ports.FormatJPEG, nil
	default:
		return 0, fmt.Errorf("%w: unknown frame dump format %q", ErrInvalid, p.Format)
	}
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		DeviceType: "dmg",
		Devices: map[string]DeviceConfig{
			"dmg": {Width: 160, Height: 144},
		},

		Stream: StreamConfig{
			ReadTimeoutMs:  int(protocol.ReadTimeout / time.Millisecond),
			BufferSize:     protocol.BufferSize,
			IdleIntervalMs: int(protocol.IdleInterval / time.Millisecond),
		},

		Protocol: ProtocolConfig{
			HeaderLayout: protocol.LayoutV1.Name,
		},

		Video: VideoConfig{
			Preview: PreviewConfig{Scale: 3},
			GIF:     GIFConfig{Framedrop: 1},
			H264:    H264Config{CRF: 0, Preset: "veryslow", Tune: "animation", FPS: 59.7},
			PNG:     PNGConfig{Every: 60, Scale: 1, Format: "png"},
		},

		LogLevel: "info",
	}
}

// LoadFromFile loads configuration from a YAML file on top of Defaults.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Device returns the selected device.
func (c Config) Device() (DeviceConfig, error) {
	dev, ok := c.Devices[c.DeviceType]
	if !ok {
		return DeviceConfig{}, fmt.Errorf("%w: unknown device type %q", ErrInvalid, c.DeviceType)
	}
	return dev, nil
}

// Geometry returns the selected device's display size.
func (c Config) Geometry() pipeline.Geometry {
	dev, _ := c.Device()
	return pipeline.Geometry{Width: dev.Width, Height: dev.Height}
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c Config) Validate() error {
	dev, err := c.Device()
	if err != nil {
		return err
	}
	// row indices carry 8 bits on the wire
	if dev.Width <= 0 || dev.Height <= 0 || dev.Height > 255 {
		return fmt.Errorf("%w: display size %dx%d", ErrInvalid, dev.Width, dev.Height)
	}

	if _, err := protocol.ParseLayout(c.Protocol.HeaderLayout); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if c.Stream.Record != "" && c.Stream.Replay != "" {
		return fmt.Errorf("%w: record and replay are mutually exclusive", ErrInvalid)
	}
	if c.Stream.Simulate && c.Stream.Replay != "" {
		return fmt.Errorf("%w: simulate and replay are mutually exclusive", ErrInvalid)
	}
	if c.Stream.ReadTimeoutMs < 0 || c.Stream.BufferSize < 0 || c.Stream.IdleIntervalMs < 0 {
		return fmt.Errorf("%w: negative stream setting", ErrInvalid)
	}

	if c.Video.Preview.Scale < 0 {
		return fmt.Errorf("%w: preview scale %d", ErrInvalid, c.Video.Preview.Scale)
	}
	if c.Video.GIF.Framedrop < 0 || c.Video.GIF.Framedrop > gifsink.MaxFramedrop {
		return fmt.Errorf("%w: gif framedrop %d out of range 0..%d", ErrInvalid, c.Video.GIF.Framedrop, gifsink.MaxFramedrop)
	}
	if c.Video.H264.CRF < 0 || c.Video.H264.CRF > 51 {
		return fmt.Errorf("%w: h264 crf %d out of range 0..51", ErrInvalid, c.Video.H264.CRF)
	}
	if c.Video.H264.FPS < 0 {
		return fmt.Errorf("%w: h264 fps %.2f", ErrInvalid, c.Video.H264.FPS)
	}
	if c.Video.PNG.Every < 0 || c.Video.PNG.Scale < 0 {
		return fmt.Errorf("%w: png every/scale must not be negative", ErrInvalid)
	}
	if _, err := c.Video.PNG.ImageFormat(); err != nil {
		return err
	}

	return nil
}

// ReadTimeout returns the bulk read timeout.
func (s StreamConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMs) * time.Millisecond
}

// IdleInterval returns the Timeout cadence of an exhausted replay.
func (s StreamConfig) IdleInterval() time.Duration {
	return time.Duration(s.IdleIntervalMs) * time.Millisecond
}

// SourceKind reports which byte source the stream settings select.
func (s StreamConfig) SourceKind() orchestrator.SourceKind {
	switch {
	case s.Replay != "":
		return orchestrator.SourceReplay
	case s.Simulate:
		return orchestrator.SourceSimulated
	default:
		return orchestrator.SourceLive
	}
}

// ToOrchestratorConfig converts Config to orchestrator.Config.
func (c Config) ToOrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		Source:   c.Stream.SourceKind(),
		Geometry: c.Geometry(),
	}
}
