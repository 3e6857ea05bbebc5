package ffmpeg

import (
	"strings"
	"testing"
	"time"
)

func TestParseProgressLine(t *testing.T) {
	line := "frame=  120 fps= 60 q=28.0 size=    512kB time=00:00:04.00 bitrate=1048.6kbits/s speed=2.00x"
	p := parseProgressLine(line, 8, 240)

	if p.CurrentFrame != 120 {
		t.Errorf("CurrentFrame = %d, want 120", p.CurrentFrame)
	}
	if p.FPS != 60 {
		t.Errorf("FPS = %v, want 60", p.FPS)
	}
	if p.Bitrate != "1048.6kbits/s" {
		t.Errorf("Bitrate = %q", p.Bitrate)
	}
	if p.Speed != 2 {
		t.Errorf("Speed = %v, want 2", p.Speed)
	}
	if p.Percent != 50 {
		t.Errorf("Percent = %v, want 50", p.Percent)
	}
	if p.ETA != 2*time.Second {
		t.Errorf("ETA = %v, want 2s", p.ETA)
	}
}

func TestParseProgressLineFrameFallback(t *testing.T) {
	p := parseProgressLine("frame=   60 fps=0.0 q=-0.0 size=N/A time=N/A bitrate=N/A speed=N/A", 0, 240)
	if p.Percent != 25 {
		t.Errorf("Percent = %v, want 25", p.Percent)
	}
	if p.Speed != 0 || p.ETA != 0 {
		t.Errorf("unexpected speed/eta: %+v", p)
	}
}

func TestParseProgressLineClamps(t *testing.T) {
	p := parseProgressLine("frame=999 time=00:00:20.00 speed=1x", 10, 0)
	if p.Percent != 100 {
		t.Errorf("Percent = %v, want 100", p.Percent)
	}
}

func TestParseProgress(t *testing.T) {
	stderr := "ffmpeg version n7\n" +
		"frame=   10 fps=10 time=00:00:01.00 bitrate=100kbits/s speed=1x\r" +
		"frame=   20 fps=10 time=00:00:02.00 bitrate=100kbits/s speed=1x\r" +
		"done\n"

	var got []Progress
	var sb strings.Builder
	if err := parseProgress(strings.NewReader(stderr), &sb, 4, 0, func(p Progress) {
		got = append(got, p)
	}); err != nil {
		t.Fatalf("parseProgress() error = %v", err)
	}

	if sb.String() != stderr {
		t.Error("stderr was not captured verbatim")
	}
	if len(got) != 2 {
		t.Fatalf("got %d progress updates, want 2", len(got))
	}
	if got[1].CurrentFrame != 20 || got[1].Percent != 50 {
		t.Errorf("last update = %+v", got[1])
	}
}

func TestCommandString(t *testing.T) {
	c := Command{Program: "ffmpeg", Args: []string{"-i", "in.mp4", "out.mp4"}}
	if got := c.String(); got != "ffmpeg -i in.mp4 out.mp4" {
		t.Errorf("String() = %q", got)
	}
	if got := (Command{Program: "ffprobe"}).String(); got != "ffprobe" {
		t.Errorf("String() = %q", got)
	}
}
