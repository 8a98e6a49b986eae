package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/user/lcdtap/pkg/adapters/logger"
	"github.com/user/lcdtap/pkg/fanout"
	"github.com/user/lcdtap/pkg/framing"
	"github.com/user/lcdtap/pkg/mocks"
	"github.com/user/lcdtap/pkg/pipeline"
	"github.com/user/lcdtap/pkg/ports"
	"github.com/user/lcdtap/pkg/protocol"
	"github.com/user/lcdtap/pkg/stages/assemble"
	"github.com/user/lcdtap/pkg/stages/capture"
)

var testGeometry = pipeline.Geometry{Width: 2, Height: 2}

// wireFrames encodes count complete frames followed by the first row of the
// next one, so every listed frame is finalized.
func wireFrames(count int) []byte {
	var out []byte
	pixels := make([]byte, testGeometry.Pitch())
	for f := 0; f <= count; f++ {
		rows := testGeometry.Height
		if f == count {
			rows = 1
		}
		for r := 0; r < rows; r++ {
			h := pipeline.Header{Frame: f, Row: r}
			out = append(out, framing.EncodeScanline(h, pixels, protocol.LayoutV1)...)
		}
	}
	return out
}

// session wires a real decoder, assembler and fan-out around source.
func session(t *testing.T, source ports.ByteSource, sinks ...ports.FrameSink) (*Orchestrator, *fanout.Fanout) {
	t.Helper()
	log := logger.NewNoop()
	fan := fanout.New(log)
	for _, s := range sinks {
		if err := fan.Register(s); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	dec := framing.NewDecoder(source, testGeometry, protocol.LayoutV1)
	stage := assemble.NewStage(dec, fan, &mocks.Renderer{}, log, testGeometry)
	return New(source, stage, fan, log), fan
}

func TestOrchestrator_RunToEnd(t *testing.T) {
	source := &mocks.ByteSource{Events: []pipeline.StreamEvent{
		pipeline.DataEvent(wireFrames(3)),
	}}
	sink := mocks.NewFrameSink("test")
	orch, _ := session(t, source, sink)

	result, err := orch.Run(context.Background(), Config{
		Source:    SourceReplay,
		Geometry:  testGeometry,
		StopAtEnd: true,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !source.Started || !source.Closed {
		t.Error("expected source to be started and closed")
	}
	if !sink.IsClosed() {
		t.Error("expected sink to be closed")
	}
	if got := len(sink.Received()); got != 3 {
		t.Errorf("expected 3 frames delivered, got %d", got)
	}
	if result.Assemble.FramesEmitted != 3 {
		t.Errorf("expected 3 frames emitted, got %d", result.Assemble.FramesEmitted)
	}
	if len(result.Sinks) != 1 || result.Sinks[0].Delivered != 3 {
		t.Errorf("unexpected sink stats %+v", result.Sinks)
	}
	if result.Source != SourceReplay {
		t.Errorf("expected source kind replay, got %s", result.Source)
	}
}

func TestOrchestrator_SourceFailure(t *testing.T) {
	corrupt := errors.New("corrupt entry")
	source := &mocks.ByteSource{Err: corrupt}
	sink := mocks.NewFrameSink("test")
	orch, _ := session(t, source, sink)

	_, err := orch.Run(context.Background(), Config{Source: SourceReplay, StopAtEnd: true})
	if !errors.Is(err, corrupt) {
		t.Errorf("expected source error, got %v", err)
	}
	if !source.Closed || !sink.IsClosed() {
		t.Error("expected source and sink to be closed after a failure")
	}
}

func TestOrchestrator_StopChannel(t *testing.T) {
	link := &mocks.Link{Reads: []mocks.ReadResult{{Data: wireFrames(1)}}}
	source := capture.New(link, logger.NewNoop(), capture.DefaultOptions())
	sink := mocks.NewFrameSink("preview")
	orch, _ := session(t, source, sink)

	stop := make(chan struct{})
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(stop)
	}()

	done := make(chan error, 1)
	go func() {
		_, err := orch.Run(context.Background(), Config{Source: SourceLive, Stop: stop})
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after the stop signal")
	}

	if !link.IsClosed() {
		t.Error("expected link to be closed")
	}
	if got := len(sink.Received()); got != 1 {
		t.Errorf("expected 1 frame before stop, got %d", got)
	}
}

func TestOrchestrator_ContextCancel(t *testing.T) {
	link := &mocks.Link{}
	source := capture.New(link, logger.NewNoop(), capture.DefaultOptions())
	orch, _ := session(t, source)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if _, err := orch.Run(ctx, Config{Source: SourceLive}); err != nil {
		t.Errorf("cancellation should end the session cleanly, got %v", err)
	}
	if !link.IsClosed() {
		t.Error("expected link to be closed")
	}
}

func TestOrchestrator_StartFailure(t *testing.T) {
	source := capture.New(&mocks.Link{}, logger.NewNoop(), capture.DefaultOptions())
	source.Close()
	sink := mocks.NewFrameSink("test")
	orch, _ := session(t, source, sink)

	if _, err := orch.Run(context.Background(), Config{Source: SourceLive}); !errors.Is(err, ports.ErrSourceClosed) {
		t.Errorf("expected ErrSourceClosed, got %v", err)
	}
	if !sink.IsClosed() {
		t.Error("expected sinks to be closed after a failed start")
	}
}

func TestOrchestrator_PassesStopAtEndAndCounters(t *testing.T) {
	source := &mocks.ByteSource{}
	var got pipeline.AssembleInput
	stage := pipeline.StageFunc[pipeline.AssembleInput, pipeline.AssembleResult](
		func(ctx context.Context, in pipeline.AssembleInput) (pipeline.AssembleResult, error) {
			got = in
			return pipeline.AssembleResult{FramesEmitted: 7, Duplicates: 2}, nil
		})
	log := logger.NewNoop()
	orch := New(source, stage, fanout.New(log), log)

	result, err := orch.Run(context.Background(), Config{Source: SourceReplay, StopAtEnd: true, Geometry: testGeometry})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !got.StopAtEnd {
		t.Error("expected StopAtEnd to reach the assembly stage")
	}
	if result.Assemble.FramesEmitted != 7 || result.Assemble.Duplicates != 2 {
		t.Errorf("unexpected counters %+v", result.Assemble)
	}
	if result.Geometry != testGeometry {
		t.Errorf("expected geometry %v, got %v", testGeometry, result.Geometry)
	}
	if !source.Closed {
		t.Error("expected source to be closed")
	}
}
