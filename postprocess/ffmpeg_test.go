package postprocess

import (
	"context"
	"os/exec"
	"strings"
	"testing"
)

func TestScanProgress(t *testing.T) {
	input := strings.Join([]string{
		"frame=100",
		"fps=25.0",
		"out_time_us=5000000",
		"progress=continue",
		"out_time_us=not-a-number",
		"out_time_us=10000000",
		"out_time_us=99000000", // beyond the 20s duration, must clamp
		"progress=end",
	}, "\n")

	var got []float64
	scanProgress(strings.NewReader(input), 20, func(percent float64) {
		got = append(got, percent)
	})

	want := []float64{25, 50, 100, 100}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("update %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestScanProgressZeroUpdates(t *testing.T) {
	calls := 0
	scanProgress(strings.NewReader("frame=1\nspeed=1x\n"), 20, func(float64) { calls++ })
	if calls != 0 {
		t.Fatalf("no progress keys in input, got %d updates", calls)
	}
}

func TestWithProgress(t *testing.T) {
	p := &Processor{}
	if p.WithProgress(func(float64) {}) != p {
		t.Fatal("WithProgress must return the receiver for chaining")
	}
	if p.progressFunc == nil {
		t.Fatal("callback not stored")
	}
	if d := p.durationForProgress(context.Background(), "missing.mp4"); d != 0 {
		t.Fatalf("no ffprobe path, duration must be 0, got %v", d)
	}
}

func TestBuildStripArgs(t *testing.T) {
	args := buildStripArgs("in.mp4", "out.mp4")
	joined := strings.Join(args, " ")

	for _, want := range []string{"-map_metadata -1", "-c copy", "-i in.mp4"} {
		if !strings.Contains(joined, want) {
			t.Errorf("strip args missing %q: %v", want, args)
		}
	}
	if args[len(args)-1] != "out.mp4" {
		t.Errorf("output path must come last, got %v", args)
	}
}

func TestBuildMuxArgs(t *testing.T) {
	args := buildMuxArgs("video.mp4", "audio.m4a", "out.mp4")
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "-i video.mp4 -i audio.m4a") {
		t.Errorf("mux args must list both inputs in order: %v", args)
	}
	if !strings.Contains(joined, "-c copy") {
		t.Errorf("mux must copy streams, not re-encode: %v", args)
	}
	if args[len(args)-1] != "out.mp4" {
		t.Errorf("output path must come last, got %v", args)
	}
}

func TestNewWithoutFFmpeg(t *testing.T) {
	if _, err := exec.LookPath(ffmpegCommand); err == nil {
		t.Skip("ffmpeg installed, cannot test missing-binary path")
	}
	if _, err := New(); err == nil {
		t.Fatal("expected error when ffmpeg is not installed")
	}
}

func TestNewWithFFmpeg(t *testing.T) {
	if _, err := exec.LookPath(ffmpegCommand); err != nil {
		t.Skip("ffmpeg not installed")
	}
	p, err := New()
	if err != nil {
		t.Fatalf("New failed with ffmpeg present: %v", err)
	}
	if p.ffmpegPath == "" {
		t.Fatal("ffmpeg path not resolved")
	}
}
