package summarizer

import (
	"testing"
	"time"
)

func TestNewSummary(t *testing.T) {
	before := time.Now()
	summary := NewSummary()
	after := time.Now()

	if summary.GeneratedAt.Before(before) || summary.GeneratedAt.After(after) {
		t.Errorf("GeneratedAt should be between %v and %v, got %v",
			before, after, summary.GeneratedAt)
	}
}

func TestBuilder_WithSession(t *testing.T) {
	summary := NewBuilder().
		WithSession(SessionInfo{Source: "live", Width: 160, Height: 144}).
		Build()

	if summary.Session.Source != "live" {
		t.Errorf("expected source 'live', got '%s'", summary.Session.Source)
	}
	if summary.Session.Width != 160 || summary.Session.Height != 144 {
		t.Errorf("expected 160x144, got %dx%d", summary.Session.Width, summary.Session.Height)
	}
}

func TestBuilder_FullChain(t *testing.T) {
	summary := NewBuilder().
		WithSession(SessionInfo{Source: "replay", Duration: time.Second}).
		WithStream(StreamInfo{Scanlines: 144, Timeouts: 2}).
		WithFrames(FrameInfo{Emitted: 1, Duplicates: 1}).
		WithSink(SinkInfo{Name: "gif", Delivered: 1}).
		WithSink(SinkInfo{Name: "video", Failed: 1}).
		Build()

	if summary.Stream.Scanlines != 144 || summary.Stream.Timeouts != 2 {
		t.Errorf("unexpected stream counters %+v", summary.Stream)
	}
	if summary.Frames.Emitted != 1 || summary.Frames.Duplicates != 1 {
		t.Errorf("unexpected frame counters %+v", summary.Frames)
	}
	if len(summary.Sinks) != 2 || summary.Sinks[1].Name != "video" {
		t.Errorf("expected sinks in registration order, got %+v", summary.Sinks)
	}
}
