// Package main provides the CLI entry point for lcdtap.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/ideamans/go-l10n"

	"github.com/user/lcdtap/pkg/adapters/ggrenderer"
	"github.com/user/lcdtap/pkg/adapters/logger"
	"github.com/user/lcdtap/pkg/adapters/osfilesystem"
	"github.com/user/lcdtap/pkg/config"
	"github.com/user/lcdtap/pkg/orchestrator"
	"github.com/user/lcdtap/pkg/ports"
	"github.com/user/lcdtap/pkg/summarizer"
)

// CLI defines the command-line interface with subcommands.
type CLI struct {
	Run     RunCmd     `cmd:"" default:"withargs" help:"Capture the display and feed the configured sinks."`
	Inspect InspectCmd `cmd:"" help:"Decode a record log as fast as possible and print statistics."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// RunCmd defines the run subcommand.
type RunCmd struct {
	Config string `short:"c" type:"existingfile" help:"YAML configuration file."`

	// Source overrides
	Record   string `short:"r" type:"path" help:"Record the raw stream to this file."`
	Replay   string `short:"R" type:"existingfile" help:"Replay a record log instead of opening the device."`
	Simulate bool   `help:"Use a simulated device instead of the USB board."`

	// Sink overrides
	NoPreview bool   `help:"Do not open the preview window."`
	GIF       string `name:"gif" type:"path" help:"Write an animated GIF to this file."`
	MP4       string `name:"mp4" type:"path" help:"Write an H.264 MP4 video to this file."`
	Summary   string `short:"s" type:"path" help:"Write a Markdown session summary to this file."`

	// Logging options
	LogLevel string `short:"l" help:"Log level (debug, info, warn, error); overrides the configuration."`
	Quiet    bool   `short:"Q" help:"Suppress all log output."`
}

// InspectCmd defines the inspect subcommand.
type InspectCmd struct {
	Log     string `arg:"" type:"existingfile" help:"Record log to inspect."`
	Config  string `short:"c" type:"existingfile" help:"YAML configuration file (device geometry and header layout)."`
	Summary string `short:"s" type:"path" help:"Also write the Markdown summary to this file."`

	LogLevel string `short:"l" default:"warn" enum:"debug,info,warn,error" help:"Log level (debug, info, warn, error)."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

var version = "dev"

func main() {
	cli := CLI{}

	ctx := kong.Parse(&cli,
		kong.Name("lcdtap"),
		kong.Description(l10n.T("Capture a handheld LCD through a Glasgow display tap.")),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

// Run executes the run command.
func (cmd *RunCmd) Run() error {
	cfg, err := loadConfig(cmd.Config)
	if err != nil {
		return err
	}
	cmd.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := newLogger(cmd.Quiet, cfg.LogLevel)

	ctx, cancel := signalContext()
	defer cancel()

	fs := osfilesystem.New()
	sess, err := buildSession(cfg, fs, ggrenderer.New(), log)
	if err != nil {
		return err
	}

	result, err := sess.orchestrator.Run(ctx, sess.config)
	if cfg.Summary != "" {
		if werr := writeSummary(fs, cfg.Summary, cfg, result, log); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

// apply overlays command-line flags on the file configuration.
func (cmd *RunCmd) apply(cfg *config.Config) {
	if cmd.Record != "" {
		cfg.Stream.Record = cmd.Record
	}
	if cmd.Replay != "" {
		cfg.Stream.Replay = cmd.Replay
	}
	if cmd.Simulate {
		cfg.Stream.Simulate = true
	}
	if cmd.NoPreview {
		cfg.Video.Preview.Scale = 0
	}
	if cmd.GIF != "" {
		cfg.Video.GIF.Filename = cmd.GIF
	}
	if cmd.MP4 != "" {
		cfg.Video.H264.Filename = cmd.MP4
	}
	if cmd.Summary != "" {
		cfg.Summary = cmd.Summary
	}
	if cmd.LogLevel != "" {
		cfg.LogLevel = cmd.LogLevel
	}
}

// Run executes the inspect command.
func (cmd *InspectCmd) Run() error {
	cfg, err := loadConfig(cmd.Config)
	if err != nil {
		return err
	}
	cfg.Stream = config.StreamConfig{Replay: cmd.Log}
	cfg.Video = config.VideoConfig{}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := newLogger(false, cmd.LogLevel)

	ctx, cancel := signalContext()
	defer cancel()

	fs := osfilesystem.New()
	sess, err := buildInspectSession(cfg, fs, ggrenderer.New(), log)
	if err != nil {
		return err
	}

	result, runErr := sess.orchestrator.Run(ctx, sess.config)

	summary := buildSummary(cfg, result)
	fmt.Print(newFormatter().Format(summary))

	if cmd.Summary != "" {
		if err := summarizer.NewWriter(newFormatter(), fs).Write(cmd.Summary, summary); err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}

// Run executes the version command.
func (cmd *VersionCmd) Run() error {
	fmt.Println(l10n.F("lcdtap version %s", version))
	return nil
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Defaults(), nil
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(quiet bool, level string) ports.Logger {
	if quiet {
		return logger.NewNoop()
	}
	return logger.NewConsole(ports.ParseLogLevel(level))
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

func newFormatter() summarizer.Formatter {
	return summarizer.NewMarkdownFormatter(
		summarizer.WithTranslator(l10n.T),
		summarizer.WithVersion(version),
	)
}

func writeSummary(fs ports.FileSystem, path string, cfg config.Config, result orchestrator.RunResult, log ports.Logger) error {
	if err := summarizer.NewWriter(newFormatter(), fs).Write(path, buildSummary(cfg, result)); err != nil {
		return err
	}
	log.Info("Summary saved to %s", path)
	return nil
}

func buildSummary(cfg config.Config, result orchestrator.RunResult) *summarizer.Summary {
	a := result.Assemble
	b := summarizer.NewBuilder().
		WithSession(summarizer.SessionInfo{
			Source:   string(result.Source),
			Input:    cfg.Stream.Replay,
			Record:   cfg.Stream.Record,
			Device:   cfg.DeviceType,
			Width:    result.Geometry.Width,
			Height:   result.Geometry.Height,
			Layout:   cfg.Protocol.HeaderLayout,
			Duration: result.Duration,
		}).
		WithStream(summarizer.StreamInfo{
			Scanlines:    a.Scanlines,
			ArtifactRows: a.ArtifactRows,
			LostSync:     a.LostSync,
			Timeouts:     a.Timeouts,
			Overflows:    a.Overflows,
		}).
		WithFrames(summarizer.FrameInfo{
			Emitted:              a.FramesEmitted,
			Duplicates:           a.Duplicates,
			RowDiscontinuities:   a.RowDiscontinuity,
			FrameDiscontinuities: a.FrameDiscontinuity,
		})
	for _, s := range result.Sinks {
		b.WithSink(summarizer.SinkInfo{
			Name:      s.Name,
			Delivered: int(s.Delivered),
			Failed:    int(s.Failed),
			Dropped:   int(s.Dropped),
		})
	}
	return b.Build()
}
