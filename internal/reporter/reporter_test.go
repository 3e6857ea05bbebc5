package reporter

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func decodeEvents(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var events []map[string]any
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var ev map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("invalid NDJSON line %q: %v", scanner.Text(), err)
		}
		events = append(events, ev)
	}
	return events
}

func TestJSONReporterEmitsOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONReporterWithWriter(&buf)

	r.Initialization(InitializationSummary{Source: "frames", FrameCount: 48, FrameRate: 24})
	r.Warning("bitrate clamped")
	r.EncodingComplete(EncodingOutcome{OutputPath: "/out/a.mp4", EncodedSize: 4 * 1024 * 1024, TargetSizeMB: 8})

	events := decodeEvents(t, &buf)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	wantTypes := []string{"initialization", "warning", "encoding_complete"}
	for i, want := range wantTypes {
		if events[i]["type"] != want {
			t.Errorf("event %d type = %v, want %s", i, events[i]["type"], want)
		}
	}
	if got := events[0]["frame_count"]; got != float64(48) {
		t.Errorf("frame_count = %v, want 48", got)
	}
	if got := events[2]["target_usage_percent"]; got != float64(50) {
		t.Errorf("target_usage_percent = %v, want 50", got)
	}
}

func TestJSONReporterQualityOutcomeOmitsTarget(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONReporterWithWriter(&buf)
	r.EncodingComplete(EncodingOutcome{OutputPath: "/out/a.mp4", EncodedSize: 1000})

	events := decodeEvents(t, &buf)
	if _, ok := events[0]["target_usage_percent"]; ok {
		t.Error("quality outcome should not report target usage")
	}
}

func TestJSONReporterThrottlesProgress(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONReporterWithWriter(&buf)
	clock := time.Unix(1_700_000_000, 0)
	r.now = func() time.Time { return clock }

	r.EncodingStarted("pass 1", 100)
	for _, pct := range []float32{0.2, 0.5, 0.9, 1.1, 1.5, 2.0} {
		r.EncodingProgress(ProgressSnapshot{Stage: "pass 1", Percent: pct})
	}
	// Same bucket, but the heartbeat interval has elapsed.
	clock = clock.Add(6 * time.Second)
	r.EncodingProgress(ProgressSnapshot{Stage: "pass 1", Percent: 2.1})
	// Past 99% every update is emitted.
	r.EncodingProgress(ProgressSnapshot{Stage: "pass 1", Percent: 99.5})
	r.EncodingProgress(ProgressSnapshot{Stage: "pass 1", Percent: 99.6})

	var progress int
	for _, ev := range decodeEvents(t, &buf) {
		if ev["type"] == "encoding_progress" {
			progress++
			if ev["stage"] != "pass 1" {
				t.Errorf("stage = %v, want pass 1", ev["stage"])
			}
		}
	}
	// Buckets 0, 1, 2, then the heartbeat, then both late updates.
	if progress != 6 {
		t.Errorf("emitted %d progress events, want 6", progress)
	}
}

func TestJSONReporterResetsBucketsPerStage(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONReporterWithWriter(&buf)
	clock := time.Unix(1_700_000_000, 0)
	r.now = func() time.Time { return clock }

	r.EncodingStarted("pass 1", 10)
	r.EncodingProgress(ProgressSnapshot{Stage: "pass 1", Percent: 50})
	r.EncodingStarted("pass 2", 10)
	r.EncodingProgress(ProgressSnapshot{Stage: "pass 2", Percent: 10})

	var stages []string
	for _, ev := range decodeEvents(t, &buf) {
		if ev["type"] == "encoding_progress" {
			stages = append(stages, ev["stage"].(string))
		}
	}
	if strings.Join(stages, ",") != "pass 1,pass 2" {
		t.Errorf("progress stages = %v", stages)
	}
}

type recordingReporter struct {
	NullReporter
	calls []string
}

func (r *recordingReporter) Warning(message string) {
	r.calls = append(r.calls, "warning:"+message)
}

func (r *recordingReporter) EncodingStarted(stage string, _ uint64) {
	r.calls = append(r.calls, "started:"+stage)
}

func TestCompositeReporterFansOut(t *testing.T) {
	a, b := &recordingReporter{}, &recordingReporter{}
	c := NewCompositeReporter(a, nil, b)

	c.EncodingStarted("single", 24)
	c.Warning("no audio")

	for name, rec := range map[string]*recordingReporter{"a": a, "b": b} {
		if strings.Join(rec.calls, "|") != "started:single|warning:no audio" {
			t.Errorf("reporter %s calls = %v", name, rec.calls)
		}
	}
}

func TestOrNull(t *testing.T) {
	if _, ok := OrNull(nil).(NullReporter); !ok {
		t.Error("OrNull(nil) should return NullReporter")
	}
	rec := &recordingReporter{}
	if OrNull(rec) != Reporter(rec) {
		t.Error("OrNull should return a non-nil reporter unchanged")
	}
}

func TestTerminalReporterWritesSections(t *testing.T) {
	var out, errOut bytes.Buffer
	r := NewTerminalReporterWithWriters(&out, &errOut, false)

	r.EncodingConfig(EncodingConfigSummary{Mode: "two-pass", Encoder: "libx264", Quality: "2000 kbps"})
	r.EncodingStarted("pass 1", 48)
	r.EncodingProgress(ProgressSnapshot{Percent: 50})
	r.ValidationComplete(ValidationSummary{Passed: false, Steps: []ValidationStep{
		{Name: "Codec", Passed: true, Details: "h264"},
		{Name: "Size", Passed: false, Details: "9.1 MB > 8 MB"},
	}})
	r.Error(ReporterError{Title: "Encode failed", Message: "ffmpeg exited 1"})

	text := out.String()
	for _, want := range []string{"ENCODING", "two-pass", "pass 1 (48 frames)", "VALIDATION", "Validation failed", "9.1 MB > 8 MB"} {
		if !strings.Contains(text, want) {
			t.Errorf("stdout missing %q:\n%s", want, text)
		}
	}
	if !strings.Contains(errOut.String(), "Encode failed") {
		t.Errorf("stderr missing error title: %s", errOut.String())
	}
}

func TestEncodingOutcomeTargetUsage(t *testing.T) {
	o := EncodingOutcome{EncodedSize: 6 * 1024 * 1024, TargetSizeMB: 8}
	if got := o.TargetUsage(); got != 75 {
		t.Errorf("TargetUsage() = %g, want 75", got)
	}
	if got := (EncodingOutcome{EncodedSize: 10}).TargetUsage(); got != 0 {
		t.Errorf("TargetUsage() without target = %g, want 0", got)
	}
}
