package main

import (
	"errors"
	"fmt"

	"github.com/user/lcdtap/pkg/adapters/framedump"
	"github.com/user/lcdtap/pkg/adapters/gifsink"
	"github.com/user/lcdtap/pkg/adapters/glasgow"
	"github.com/user/lcdtap/pkg/adapters/h264encoder"
	"github.com/user/lcdtap/pkg/adapters/sdlpreview"
	"github.com/user/lcdtap/pkg/adapters/simlink"
	"github.com/user/lcdtap/pkg/adapters/videosink"
	"github.com/user/lcdtap/pkg/config"
	"github.com/user/lcdtap/pkg/fanout"
	"github.com/user/lcdtap/pkg/framing"
	"github.com/user/lcdtap/pkg/orchestrator"
	"github.com/user/lcdtap/pkg/ports"
	"github.com/user/lcdtap/pkg/protocol"
	"github.com/user/lcdtap/pkg/recordlog"
	"github.com/user/lcdtap/pkg/stages/assemble"
	"github.com/user/lcdtap/pkg/stages/capture"
	"github.com/user/lcdtap/pkg/stages/replay"
)

// session is a fully wired pipeline ready to run.
type session struct {
	orchestrator *orchestrator.Orchestrator
	config       orchestrator.Config
}

// buildSession wires source, decoder, assembler and sinks from cfg.
// Anything opened before a failure is released again.
func buildSession(cfg config.Config, fs ports.FileSystem, renderer ports.Renderer, log ports.Logger) (*session, error) {
	layout, err := protocol.ParseLayout(cfg.Protocol.HeaderLayout)
	if err != nil {
		return nil, err
	}

	source, err := openSource(cfg, fs, log, false)
	if err != nil {
		return nil, err
	}

	fan := fanout.New(log)
	stop, err := registerSinks(cfg, fan, fs, renderer, log)
	if err != nil {
		return nil, errors.Join(err, fan.Close(), source.Close())
	}

	oc := cfg.ToOrchestratorConfig()
	oc.Stop = stop
	return &session{
		orchestrator: assembleSession(cfg, source, layout, fan, renderer, log),
		config:       oc,
	}, nil
}

// buildInspectSession replays cfg.Stream.Replay without pacing and without sinks.
func buildInspectSession(cfg config.Config, fs ports.FileSystem, renderer ports.Renderer, log ports.Logger) (*session, error) {
	layout, err := protocol.ParseLayout(cfg.Protocol.HeaderLayout)
	if err != nil {
		return nil, err
	}

	source, err := openSource(cfg, fs, log, true)
	if err != nil {
		return nil, err
	}

	oc := cfg.ToOrchestratorConfig()
	oc.StopAtEnd = true
	fan := fanout.New(log)
	return &session{
		orchestrator: assembleSession(cfg, source, layout, fan, renderer, log),
		config:       oc,
	}, nil
}

func assembleSession(cfg config.Config, source ports.ByteSource, layout protocol.HeaderLayout, fan *fanout.Fanout, renderer ports.Renderer, log ports.Logger) *orchestrator.Orchestrator {
	geometry := cfg.Geometry()
	decoder := framing.NewDecoder(source, geometry, layout)
	stage := assemble.NewStage(decoder, fan, renderer, log, geometry)
	return orchestrator.New(source, stage, fan, log)
}

// openSource opens the byte source selected by the stream settings.
func openSource(cfg config.Config, fs ports.FileSystem, log ports.Logger, fast bool) (ports.ByteSource, error) {
	stream := cfg.Stream

	if stream.Replay != "" {
		log.Info("Replaying %s", stream.Replay)
		f, err := fs.Open(stream.Replay)
		if err != nil {
			return nil, fmt.Errorf("open record log: %w", err)
		}
		src, err := replay.New(f, log, replay.Options{
			IdleInterval: stream.IdleInterval(),
			Fast:         fast,
		})
		if err != nil {
			f.Close()
			return nil, err
		}
		return src, nil
	}

	var link ports.Link
	if stream.Simulate {
		log.Info("Using simulated device")
		layout, _ := protocol.ParseLayout(cfg.Protocol.HeaderLayout)
		link = simlink.New(cfg.Geometry(), simlink.Options{Layout: layout})
	} else {
		dev, err := cfg.Device()
		if err != nil {
			return nil, err
		}
		opts := ports.LinkOptions{}
		if dev.Bitstream != "" {
			opts.Bitstream, err = fs.ReadFile(dev.Bitstream)
			if err != nil {
				return nil, fmt.Errorf("read bitstream: %w", err)
			}
		}
		link, err = glasgow.Open(opts, log)
		if err != nil {
			return nil, err
		}
	}

	capOpts := capture.Options{
		BufferSize:  stream.BufferSize,
		ReadTimeout: stream.ReadTimeout(),
	}
	if stream.Record != "" {
		if exists, _ := fs.Exists(stream.Record); exists {
			log.Warn("Overwriting existing record log %s", stream.Record)
		}
		w, err := fs.Create(stream.Record)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("create record log: %w", err), link.Close())
		}
		rec, err := recordlog.NewWriter(w)
		if err != nil {
			return nil, errors.Join(err, w.Close(), link.Close())
		}
		capOpts.Recorder = rec
		log.Info("Recording stream to %s", stream.Record)
	}

	return capture.New(link, log, capOpts), nil
}

// registerSinks creates the configured sinks. The returned channel is closed
// when the preview window is closed; it is nil without a preview.
func registerSinks(cfg config.Config, fan *fanout.Fanout, fs ports.FileSystem, renderer ports.Renderer, log ports.Logger) (<-chan struct{}, error) {
	video := cfg.Video
	geometry := cfg.Geometry()
	var stop <-chan struct{}

	if video.Preview.Scale > 0 {
		preview, err := sdlpreview.New(geometry, sdlpreview.Options{
			Title: "lcdtap",
			Scale: video.Preview.Scale,
		}, log)
		if err != nil {
			return nil, err
		}
		if err := fan.Register(preview, fanout.Visual(), fanout.Lossy()); err != nil {
			return nil, errors.Join(err, preview.Close())
		}
		stop = preview.Closed()
	}

	if video.GIF.Filename != "" {
		gif, err := gifsink.New(fs, video.GIF.Filename, video.GIF.Framedrop, log)
		if err != nil {
			return nil, err
		}
		if err := fan.Register(gif); err != nil {
			return nil, err
		}
	}

	if video.H264.Filename != "" {
		if video.H264.FFmpeg != "" {
			h264encoder.SetFFmpegPath(video.H264.FFmpeg)
		}
		sink := videosink.New(h264encoder.New(), fs, videosink.Options{
			Path: video.H264.Filename,
			FPS:  video.H264.FPS,
			Encoder: ports.EncoderOptions{
				Quality: video.H264.CRF,
				Preset:  video.H264.Preset,
				Tune:    video.H264.Tune,
			},
		}, log)
		if err := fan.Register(sink); err != nil {
			return nil, err
		}
	}

	if video.PNG.Dir != "" {
		format, err := video.PNG.ImageFormat()
		if err != nil {
			return nil, err
		}
		sink := framedump.New(fs, renderer, framedump.Options{
			Dir:    video.PNG.Dir,
			Every:  video.PNG.Every,
			Scale:  video.PNG.Scale,
			Format: format,
		}, log)
		if err := fan.Register(sink); err != nil {
			return nil, err
		}
	}

	return stop, nil
}
