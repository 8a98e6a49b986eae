// Package summarizer provides summary generation for capture sessions.
package summarizer

import "time"

// Summary contains all data collected during a capture session.
type Summary struct {
	// Metadata
	GeneratedAt time.Time

	// Where the stream came from and how long it ran
	Session SessionInfo

	// Wire-level counters
	Stream StreamInfo

	// Frame assembly counters
	Frames FrameInfo

	// Per-sink delivery counters
	Sinks []SinkInfo
}

// SessionInfo describes the capture session.
type SessionInfo struct {
	Source   string // live, replay or simulated
	Input    string // record log path for replays
	Record   string // record log path when recording
	Device   string
	Width    int
	Height   int
	Layout   string
	Duration time.Duration
}

// StreamInfo contains decoder counters.
type StreamInfo struct {
	Scanlines    int
	ArtifactRows int
	LostSync     int
	Timeouts     int
	Overflows    int
}

// FrameInfo contains assembler counters.
type FrameInfo struct {
	Emitted              int
	Duplicates           int
	RowDiscontinuities   int
	FrameDiscontinuities int
}

// SinkInfo contains the delivery counters of one sink.
type SinkInfo struct {
	Name      string
	Delivered int
	Failed    int
	Dropped   int
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithSession sets session information.
func (b *Builder) WithSession(session SessionInfo) *Builder {
	b.summary.Session = session
	return b
}

// WithStream sets decoder counters.
func (b *Builder) WithStream(stream StreamInfo) *Builder {
	b.summary.Stream = stream
	return b
}

// WithFrames sets assembler counters.
func (b *Builder) WithFrames(frames FrameInfo) *Builder {
	b.summary.Frames = frames
	return b
}

// WithSink appends one sink's counters.
func (b *Builder) WithSink(sink SinkInfo) *Builder {
	b.summary.Sinks = append(b.summary.Sinks, sink)
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
