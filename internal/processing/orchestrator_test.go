package processing

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/five82/framepress/internal/audio"
	"github.com/five82/framepress/internal/config"
	"github.com/five82/framepress/internal/encode"
	fperrors "github.com/five82/framepress/internal/errors"
	"github.com/five82/framepress/internal/ffmpeg"
	"github.com/five82/framepress/internal/ffmpeg/ffmpegtest"
	"github.com/five82/framepress/internal/ffprobe"
	"github.com/five82/framepress/internal/frames"
	"github.com/five82/framepress/internal/logging"
	"github.com/five82/framepress/internal/reporter"
	"github.com/five82/framepress/internal/workspace"
)

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type fakeProber struct {
	info     ffprobe.MediaInfo
	duration float64
	err      error
}

func (p *fakeProber) Probe(context.Context, string) (*ffprobe.MediaInfo, error) {
	if p.err != nil {
		return nil, p.err
	}
	info := p.info
	return &info, nil
}

func (p *fakeProber) Duration(context.Context, string) (float64, error) {
	if p.err != nil {
		return 0, p.err
	}
	return p.duration, nil
}

type recordingReporter struct {
	reporter.NullReporter
	mu         sync.Mutex
	warnings   []string
	errors     []reporter.ReporterError
	validation *reporter.ValidationSummary
	outcome    *reporter.EncodingOutcome
}

func (r *recordingReporter) Warning(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, message)
}

func (r *recordingReporter) Error(err reporter.ReporterError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

func (r *recordingReporter) ValidationComplete(s reporter.ValidationSummary) {
	r.validation = &s
}

func (r *recordingReporter) EncodingComplete(o reporter.EncodingOutcome) {
	r.outcome = &o
}

type harness struct {
	cfg    *config.Config
	runner *ffmpegtest.Runner
	prober *fakeProber
	rep    *recordingReporter
	orch   *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.NewConfig(t.TempDir(), filepath.Join(t.TempDir(), "out"))
	cfg.ValidateOutput = false
	h := &harness{
		cfg:    cfg,
		runner: &ffmpegtest.Runner{},
		prober: &fakeProber{},
		rep:    &recordingReporter{},
	}
	h.orch = &Orchestrator{
		Config:   cfg,
		Runner:   h.runner,
		Prober:   h.prober,
		Reporter: h.rep,
		Logger:   logging.Discard(),
		Now:      func() time.Time { return fixedNow },
	}
	return h
}

func (h *harness) workspaceDir() string {
	return filepath.Join(h.cfg.WorkspaceRoot, workspace.DirName)
}

func (h *harness) assertWorkspaceRemoved(t *testing.T) {
	t.Helper()
	if _, err := os.Stat(h.workspaceDir()); !os.IsNotExist(err) {
		t.Errorf("workspace %s still exists (stat err %v)", h.workspaceDir(), err)
	}
}

func testFrames(n, w, h int) frames.Sequence {
	seq := make(frames.Sequence, n)
	for i := range seq {
		pix := make([]float32, w*h*3)
		for j := range pix {
			pix[j] = float32(i%10) / 10
		}
		seq[i] = frames.Frame{Width: w, Height: h, Channels: 3, Pix: pix}
	}
	return seq
}

func encodeCommands(cmds []ffmpeg.Command) []ffmpeg.Command {
	var out []ffmpeg.Command
	for _, c := range cmds {
		if strings.HasSuffix(c.Args[len(c.Args)-1], workspace.CleanVideoName) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func TestQualityModeSinglePass(t *testing.T) {
	h := newHarness(t)
	req := NewRequest(h.cfg)
	req.Frames = testFrames(48, 4, 4)
	req.FrameRate = 24
	req.CRF = 23
	req.Codec = config.CodecX264

	res, err := h.orch.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if res.DurationSecs != 2.0 {
		t.Errorf("DurationSecs = %g, want 2.0", res.DurationSecs)
	}
	if res.HasAudio {
		t.Error("HasAudio = true, want false")
	}
	if res.Resolved.Mode != encode.ModeQuality {
		t.Errorf("Mode = %s, want quality", res.Resolved.Mode)
	}
	if _, err := os.Stat(res.OutputPath); err != nil {
		t.Errorf("output missing: %v", err)
	}
	if filepath.Base(res.OutputPath) != "compressed_20261019-120000.mp4" {
		t.Errorf("output name = %s", filepath.Base(res.OutputPath))
	}
	if len(res.Frames) != 48 {
		t.Errorf("Frames passed through = %d, want 48", len(res.Frames))
	}

	enc := encodeCommands(h.runner.Commands())
	if len(enc) != 1 {
		t.Fatalf("got %d encode invocations, want 1", len(enc))
	}
	args := enc[0].Args
	if !ffmpegtest.HasArgs(args, "-crf", "23") || !ffmpegtest.HasArgs(args, "-an") {
		t.Errorf("single pass args = %v", args)
	}
	h.assertWorkspaceRemoved(t)
}

func TestTargetSizeModeCorrectsGPUCodec(t *testing.T) {
	h := newHarness(t)
	req := NewRequest(h.cfg)
	req.Frames = testFrames(240, 4, 4)
	req.FrameRate = 30
	req.TargetSizeMB = 8
	req.Codec = config.CodecH264NVENC

	res, err := h.orch.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if res.Resolved.Codec != config.CodecX264 || !res.Resolved.Corrected {
		t.Errorf("Resolved = %+v, want corrected to libx264", res.Resolved)
	}
	if res.DurationSecs != 8.0 {
		t.Errorf("DurationSecs = %g, want 8.0", res.DurationSecs)
	}
	if res.Resolved.VideoBitrateKbps != 8192 {
		t.Errorf("VideoBitrateKbps = %d, want 8192", res.Resolved.VideoBitrateKbps)
	}

	enc := encodeCommands(h.runner.Commands())
	if len(enc) != 2 {
		t.Fatalf("got %d encode invocations, want 2", len(enc))
	}
	for i, c := range enc {
		if !ffmpegtest.HasArgs(c.Args, "-pass", fmt.Sprint(i+1)) {
			t.Errorf("invocation %d is not pass %d: %v", i, i+1, c.Args)
		}
		if !ffmpegtest.HasArgs(c.Args, "-c:v", "libx264") || !ffmpegtest.HasArgs(c.Args, "-b:v", "8192k") {
			t.Errorf("invocation %d args = %v", i, c.Args)
		}
	}

	var sawCorrection bool
	for _, w := range h.rep.warnings {
		if strings.Contains(w, "h264_nvenc") {
			sawCorrection = true
		}
	}
	if !sawCorrection {
		t.Errorf("no codec correction warning in %v", h.rep.warnings)
	}
	h.assertWorkspaceRemoved(t)
}

func TestWaveformAudioIsMapped(t *testing.T) {
	h := newHarness(t)
	const samples = 4800
	left := make([]float32, samples)
	right := make([]float32, samples)
	for i := range left {
		left[i] = 0.25
		right[i] = -0.25
	}

	req := NewRequest(h.cfg)
	req.Frames = testFrames(24, 4, 4)
	req.Audio = audio.FromBatchedWaveform([][][]float32{{left, right}}, 48000)

	var wavInfo *audio.WAVInfo
	h.runner.Handler = func(cmd ffmpeg.Command) (ffmpeg.Output, error) {
		for i, a := range cmd.Args {
			if a == "-i" && strings.HasSuffix(cmd.Args[i+1], audio.WAVName) {
				info, err := audio.InspectWAV(cmd.Args[i+1])
				if err != nil {
					return ffmpeg.Output{}, err
				}
				wavInfo = info
			}
		}
		return ffmpegtest.TouchOutput(cmd)
	}

	res, err := h.orch.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !res.HasAudio {
		t.Fatal("HasAudio = false, want true")
	}
	if wavInfo == nil {
		t.Fatal("final command did not read the normalized WAV")
	}
	if wavInfo.Channels != 2 || wavInfo.SampleRate != 48000 || wavInfo.Frames != samples {
		t.Errorf("muxed WAV = %+v", wavInfo)
	}

	enc := encodeCommands(h.runner.Commands())
	final := enc[len(enc)-1].Args
	if !ffmpegtest.HasArgs(final, "-map", "0:v:0", "-map", "1:a:0") {
		t.Errorf("final command lacks stream mapping: %v", final)
	}
	if !ffmpegtest.HasArgs(final, "-c:a", "aac", "-b:a", "128k") {
		t.Errorf("final command lacks AAC audio: %v", final)
	}
	h.assertWorkspaceRemoved(t)
}

func TestShortAudioKeepsFullVideoLength(t *testing.T) {
	h := newHarness(t)
	mono := make([]float32, 48000)

	req := NewRequest(h.cfg)
	req.Frames = testFrames(240, 4, 4)
	req.FrameRate = 30
	req.TargetSizeMB = 8
	req.Audio = audio.FromWaveform([][]float32{mono}, 48000)

	res, err := h.orch.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !res.HasAudio {
		t.Fatal("HasAudio = false, want true")
	}

	enc := encodeCommands(h.runner.Commands())
	if len(enc) != 2 {
		t.Fatalf("ran %d encode commands, want 2", len(enc))
	}
	final := enc[1].Args
	for _, a := range final {
		if a == "-shortest" {
			t.Fatalf("final command would end at the audio: %v", final)
		}
	}
	if !ffmpegtest.HasArgs(final, "-t", "8") {
		t.Errorf("final command should run for the 8s of video: %v", final)
	}
}

func TestMissingAudioFileDegrades(t *testing.T) {
	h := newHarness(t)
	req := NewRequest(h.cfg)
	req.Frames = testFrames(12, 4, 4)
	req.Audio = audio.FromPath("nonexistent.wav")

	res, err := h.orch.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if res.HasAudio {
		t.Error("HasAudio = true, want false")
	}
	if !slices.ContainsFunc(h.rep.warnings, func(w string) bool { return strings.Contains(w, "nonexistent.wav") }) {
		t.Errorf("warnings = %v, want missing audio warning", h.rep.warnings)
	}
	enc := encodeCommands(h.runner.Commands())
	if final := enc[len(enc)-1].Args; !ffmpegtest.HasArgs(final, "-an") {
		t.Errorf("final command should drop audio: %v", final)
	}
}

func TestBitrateClampWarns(t *testing.T) {
	h := newHarness(t)
	req := NewRequest(h.cfg)
	req.Frames = testFrames(10, 4, 4)
	req.FrameRate = 0.01 // 1000 seconds
	req.TargetSizeMB = 1

	res, err := h.orch.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if res.Resolved.VideoBitrateKbps != config.MinVideoBitrateKbps {
		t.Errorf("VideoBitrateKbps = %d, want floor", res.Resolved.VideoBitrateKbps)
	}
	var sawFloor bool
	for _, w := range h.rep.warnings {
		if strings.Contains(w, "floor") {
			sawFloor = true
		}
	}
	if !sawFloor {
		t.Errorf("no clamp warning in %v", h.rep.warnings)
	}
}

func TestEncodeFailureCleansUp(t *testing.T) {
	h := newHarness(t)
	h.runner.Handler = func(cmd ffmpeg.Command) (ffmpeg.Output, error) {
		if ffmpegtest.HasArgs(cmd.Args, "-pass", "2") {
			ffmpegtest.TouchOutput(cmd)
			return ffmpegtest.Fail(cmd, 1, "Conversion failed!")
		}
		return ffmpegtest.TouchOutput(cmd)
	}

	req := NewRequest(h.cfg)
	req.Frames = testFrames(24, 4, 4)
	req.TargetSizeMB = 5

	res, err := h.orch.Process(context.Background(), req)
	if err == nil {
		t.Fatalf("expected failure, got %+v", res)
	}
	if !fperrors.IsKind(err, fperrors.KindEncode) {
		t.Errorf("error kind = %v, want encode", err)
	}
	if cmdErr, ok := fperrors.AsCommandError(err); !ok || !strings.Contains(cmdErr.Stderr, "Conversion failed!") {
		t.Errorf("command error not carried: %v", err)
	}
	h.assertWorkspaceRemoved(t)

	entries, _ := os.ReadDir(h.cfg.OutputDir)
	if len(entries) != 0 {
		t.Errorf("partial output left behind: %v", entries)
	}
	if len(h.rep.errors) != 1 || h.rep.errors[0].Title != "Encoding Error" {
		t.Errorf("reported errors = %+v", h.rep.errors)
	}
}

func TestMaterializationFailureCleansUp(t *testing.T) {
	h := newHarness(t)
	h.runner.Handler = func(cmd ffmpeg.Command) (ffmpeg.Output, error) {
		return ffmpegtest.Fail(cmd, 1, "Could not open file")
	}

	req := NewRequest(h.cfg)
	req.Frames = testFrames(5, 4, 4)

	_, err := h.orch.Process(context.Background(), req)
	if !fperrors.IsKind(err, fperrors.KindMaterialization) {
		t.Fatalf("error = %v, want materialization", err)
	}
	h.assertWorkspaceRemoved(t)
}

func TestCancelledContextCleansUp(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	h.runner.Handler = func(cmd ffmpeg.Command) (ffmpeg.Output, error) {
		cancel()
		return ffmpegtest.TouchOutput(cmd)
	}

	req := NewRequest(h.cfg)
	req.Frames = testFrames(5, 4, 4)

	_, err := h.orch.Process(ctx, req)
	if !fperrors.IsCancelled(err) {
		t.Fatalf("error = %v, want cancelled", err)
	}
	h.assertWorkspaceRemoved(t)
}

func TestRequestShape(t *testing.T) {
	h := newHarness(t)

	res, err := h.orch.Process(context.Background(), NewRequest(h.cfg))
	if err != nil || res == nil || res.OutputPath != "" {
		t.Errorf("empty request = (%+v, %v), want empty result", res, err)
	}
	if n := len(h.runner.Commands()); n != 0 {
		t.Errorf("empty request ran %d commands", n)
	}

	video := filepath.Join(t.TempDir(), "in.mp4")
	if err := os.WriteFile(video, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	req := NewRequest(h.cfg)
	req.Frames = testFrames(1, 2, 2)
	req.VideoPathIn = video
	if _, err := h.orch.Process(context.Background(), req); !fperrors.IsKind(err, fperrors.KindValidation) {
		t.Errorf("both inputs error = %v, want validation", err)
	}

	tests := []struct {
		name string
		mut  func(*Request)
		kind fperrors.ErrorKind
	}{
		{"missing video", func(r *Request) { r.VideoPathIn = "/no/such/file.mp4" }, fperrors.KindValidation},
		{"bad crf", func(r *Request) { r.Frames = testFrames(1, 2, 2); r.CRF = 60 }, fperrors.KindValidation},
		{"negative target", func(r *Request) { r.Frames = testFrames(1, 2, 2); r.TargetSizeMB = -1 }, fperrors.KindValidation},
		{"bad codec", func(r *Request) { r.Frames = testFrames(1, 2, 2); r.Codec = "vp9" }, fperrors.KindConfig},
		{"ragged frames", func(r *Request) { r.Frames = frames.Sequence{{Width: 2, Height: 2, Channels: 3}} }, fperrors.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := NewRequest(h.cfg)
			tt.mut(&req)
			if _, err := h.orch.Process(context.Background(), req); !fperrors.IsKind(err, tt.kind) {
				t.Errorf("error = %v, want kind %v", err, tt.kind)
			}
		})
	}
}

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestVideoInputPassesFramesThrough(t *testing.T) {
	h := newHarness(t)
	h.cfg.ValidateOutput = true
	h.prober.info = ffprobe.MediaInfo{Duration: 0.12, FrameRate: 25, Width: 6, Height: 4, VideoCodec: "h264", HasVideo: true}
	h.prober.duration = 0.12
	h.runner.Handler = func(cmd ffmpeg.Command) (ffmpeg.Output, error) {
		out := cmd.Args[len(cmd.Args)-1]
		if filepath.Base(out) == workspace.FramePattern {
			for i := range 3 {
				writeTestPNG(t, workspace.FramePath(filepath.Dir(out), i), 6, 4)
			}
			return ffmpeg.Output{}, nil
		}
		return ffmpegtest.TouchOutput(cmd)
	}

	video := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(video, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	req := NewRequest(h.cfg)
	req.VideoPathIn = video
	req.FrameRate = 0

	res, err := h.orch.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(res.Frames) != 3 {
		t.Fatalf("Frames = %d, want 3", len(res.Frames))
	}
	if w, hgt := res.Frames.Size(); w != 6 || hgt != 4 {
		t.Errorf("frame size = %dx%d, want 6x4", w, hgt)
	}
	if res.DurationSecs != 0.12 {
		t.Errorf("DurationSecs = %g, want 0.12", res.DurationSecs)
	}

	cmds := h.runner.Commands()
	if len(cmds) != 3 {
		t.Fatalf("got %d commands, want extract, build and encode", len(cmds))
	}
	if !ffmpegtest.HasArgs(cmds[1].Args, "-framerate", "25") {
		t.Errorf("clean source should use the probed frame rate: %v", cmds[1].Args)
	}

	if res.Validation == nil || !res.Validation.IsValid() {
		t.Errorf("validation = %+v, want valid", res.Validation)
	}
	if h.rep.validation == nil || !h.rep.validation.Passed {
		t.Errorf("reported validation = %+v", h.rep.validation)
	}
	if h.rep.outcome == nil || h.rep.outcome.OutputPath != res.OutputPath {
		t.Errorf("reported outcome = %+v", h.rep.outcome)
	}
}

func TestValidationFailureIsReportedNotReturned(t *testing.T) {
	h := newHarness(t)
	h.cfg.ValidateOutput = true
	h.prober.info = ffprobe.MediaInfo{Duration: 1, Width: 4, Height: 4, VideoCodec: "hevc", HasVideo: true}

	req := NewRequest(h.cfg)
	req.Frames = testFrames(24, 4, 4)

	res, err := h.orch.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if res.Validation == nil || res.Validation.IsCodecCorrect {
		t.Errorf("codec mismatch not detected: %+v", res.Validation)
	}
	if h.rep.validation == nil || h.rep.validation.Passed {
		t.Errorf("reported validation = %+v, want failed", h.rep.validation)
	}
}

func TestWorkspaceInUse(t *testing.T) {
	h := newHarness(t)
	held, err := workspace.Open(context.Background(), h.cfg.WorkspaceRoot, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	defer held.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	req := NewRequest(h.cfg)
	req.Frames = testFrames(2, 2, 2)
	if _, err := h.orch.Process(ctx, req); !fperrors.IsKind(err, fperrors.KindWorkspace) {
		t.Errorf("error = %v, want workspace", err)
	}
}
