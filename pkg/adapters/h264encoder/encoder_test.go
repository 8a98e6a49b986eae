package h264encoder

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/lcdtap/pkg/ports"
)

// createTestImage creates a simple test image with gradient
func createTestImage(width, height int, frameNum int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x*255/width + frameNum*10) % 256)
			g := uint8((y*255/height + frameNum*5) % 256)
			b := uint8((x + y + frameNum*3) % 256)
			img.Set(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}

	return img
}

func TestParseAnnexB(t *testing.T) {
	stream := []byte{
		0, 0, 0, 1, 0x09, 0xf0,
		0, 0, 1, 0x67, 0x42,
		0, 0, 0, 1, 0x65, 0x88, 0x84,
	}

	nalus := parseAnnexB(stream)

	want := [][]byte{{0x09, 0xf0}, {0x67, 0x42}, {0x65, 0x88, 0x84}}
	if len(nalus) != len(want) {
		t.Fatalf("expected %d NAL units, got %d", len(want), len(nalus))
	}
	for i := range want {
		if !bytes.Equal(nalus[i], want[i]) {
			t.Errorf("NAL %d: expected %x, got %x", i, want[i], nalus[i])
		}
	}
}

func TestSplitAccessUnits(t *testing.T) {
	sc := []byte{0, 0, 0, 1}
	var stream []byte
	for _, nalu := range [][]byte{
		{0x09, 0x10}, // AUD
		{0x67, 0x01}, // SPS
		{0x68, 0x02}, // PPS
		{0x65, 0x03}, // IDR
		{0x09, 0x30}, // AUD
		{0x41, 0x04}, // non-IDR slice
		{0x41, 0x05}, // slice without delimiter
	} {
		stream = append(stream, sc...)
		stream = append(stream, nalu...)
	}

	units := splitAccessUnits(stream)

	if len(units) != 3 {
		t.Fatalf("expected 3 access units, got %d", len(units))
	}
	if !units[0].keyframe || units[1].keyframe || units[2].keyframe {
		t.Errorf("unexpected keyframe flags: %v %v %v", units[0].keyframe, units[1].keyframe, units[2].keyframe)
	}
	if len(units[0].nalus) != 3 {
		t.Errorf("expected SPS, PPS and IDR in first unit, got %d NAL units", len(units[0].nalus))
	}
}

func TestConvertToAVCC(t *testing.T) {
	out := convertToAVCC([][]byte{{0x67, 1}, {0x68, 2}, {0x65, 0xaa, 0xbb}})

	want := []byte{0, 0, 0, 3, 0x65, 0xaa, 0xbb}
	if !bytes.Equal(out, want) {
		t.Errorf("expected %x, got %x", want, out)
	}
}

func TestBuildMP4_NoFrames(t *testing.T) {
	if _, err := buildMP4(nil, 160, 144, 59.7); !errors.Is(err, ErrNoFrames) {
		t.Errorf("expected ErrNoFrames, got %v", err)
	}
}

func TestFFmpegArgs(t *testing.T) {
	args := strings.Join(ffmpegArgs(160, 144, 59.7, ports.EncoderOptions{Quality: 18, Preset: "veryslow", Tune: "animation"}), " ")

	for _, want := range []string{"-s 160x144", "-r 59.700", "-crf 18", "-preset veryslow", "-tune animation", "-bf 0", "-f h264 pipe:1"} {
		if !strings.Contains(args, want) {
			t.Errorf("expected %q in %q", want, args)
		}
	}
}

func TestFFmpegArgs_DefaultPresetAndTune(t *testing.T) {
	args := strings.Join(ffmpegArgs(160, 144, 59.7, withDefaults(ports.EncoderOptions{})), " ")

	for _, want := range []string{"-preset " + DefaultPreset, "-tune " + DefaultTune} {
		if !strings.Contains(args, want) {
			t.Errorf("expected %q in %q", want, args)
		}
	}

	custom := withDefaults(ports.EncoderOptions{Preset: "fast", Tune: "film"})
	if custom.Preset != "fast" || custom.Tune != "film" {
		t.Errorf("explicit options were overridden: %+v", custom)
	}
}

func TestEncoderNotInitialized(t *testing.T) {
	enc := New()

	if err := enc.EncodeFrame(createTestImage(8, 8, 0)); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
	if _, err := enc.End(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
}

func TestEncoderRejectsInvalidQuality(t *testing.T) {
	enc := New()
	if err := enc.Begin(160, 144, 59.7, ports.EncoderOptions{Quality: 60}); !errors.Is(err, ErrInvalidQuality) {
		t.Errorf("expected ErrInvalidQuality, got %v", err)
	}
}

func TestEncoderBasic(t *testing.T) {
	if !IsFFmpegAvailable() {
		t.Skip("ffmpeg not available")
	}

	enc := New()
	width, height := 160, 144
	opts := ports.EncoderOptions{Quality: 23, Preset: "ultrafast", Tune: DefaultTune}

	if err := enc.Begin(width, height, 59.7, opts); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	numFrames := 30
	for i := 0; i < numFrames; i++ {
		if err := enc.EncodeFrame(createTestImage(width, height, i)); err != nil {
			t.Fatalf("EncodeFrame failed at frame %d: %v", i, err)
		}
	}

	data, err := enc.End()
	if err != nil {
		t.Fatalf("End failed: %v", err)
	}

	parsed, err := mp4.DecodeFile(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeFile failed: %v", err)
	}
	if parsed.Moov == nil {
		t.Fatal("expected moov box")
	}

	samples := 0
	for _, seg := range parsed.Segments {
		for _, frag := range seg.Fragments {
			samples += len(frag.Moof.Traf.Trun.Samples)
		}
	}
	if samples != numFrames {
		t.Errorf("expected %d samples, got %d", numFrames, samples)
	}
}

func TestFindFFmpeg_CustomPathMissing(t *testing.T) {
	SetFFmpegPath(filepath.Join(t.TempDir(), "no-ffmpeg"))
	defer SetFFmpegPath("")

	if _, err := FindFFmpeg(); !errors.Is(err, ErrFFmpegNotFound) {
		t.Errorf("expected ErrFFmpegNotFound, got %v", err)
	}
}
