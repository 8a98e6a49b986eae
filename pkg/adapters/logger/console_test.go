package logger

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/user/lcdtap/pkg/ports"
)

func TestConsoleLogger_LevelsAndStreams(t *testing.T) {
	var out, errOut bytes.Buffer
	log := NewConsoleWriter(ports.LevelInfo, &out, &errOut)

	log.Debug("hidden %d", 1)
	log.Info("chunk %d", 2)
	log.Warn("Lost sync: %v", "row 200")
	log.Error("failed")

	if strings.Contains(out.String(), "hidden") {
		t.Error("debug line should be filtered at info level")
	}
	if out.String() != "chunk 2\n" {
		t.Errorf("unexpected stdout %q", out.String())
	}
	if errOut.String() != "Lost sync: row 200\nfailed\n" {
		t.Errorf("unexpected stderr %q", errOut.String())
	}
}

func TestConsoleLogger_Component(t *testing.T) {
	var out bytes.Buffer
	log := NewConsoleWriter(ports.LevelDebug, &out, &out).WithComponent("capture")

	log.Debug("started")

	if out.String() != "[capture] started\n" {
		t.Errorf("expected component prefix without color, got %q", out.String())
	}
}

func TestConsoleLogger_Quiet(t *testing.T) {
	var out bytes.Buffer
	log := NewConsoleWriter(ports.LevelQuiet, &out, &out)

	log.Error("nothing")

	if out.Len() != 0 {
		t.Errorf("quiet level should suppress errors, got %q", out.String())
	}
}

func TestConsoleLogger_ConcurrentLinesDoNotInterleave(t *testing.T) {
	var out bytes.Buffer
	root := NewConsoleWriter(ports.LevelInfo, &out, &out)

	var wg sync.WaitGroup
	for _, name := range []string{"gif", "video", "preview"} {
		wg.Add(1)
		go func(log ports.Logger) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				log.Info("frame %d", i)
			}
		}(root.WithComponent(name))
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	if len(lines) != 300 {
		t.Fatalf("expected 300 lines, got %d", len(lines))
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "[") || !strings.Contains(line, "] frame ") {
			t.Fatalf("malformed line %q", line)
		}
	}
}
