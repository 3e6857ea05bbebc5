package encode

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/five82/framepress/internal/audio"
	"github.com/five82/framepress/internal/config"
	fperrors "github.com/five82/framepress/internal/errors"
	"github.com/five82/framepress/internal/ffmpeg"
	"github.com/five82/framepress/internal/frames"
	"github.com/five82/framepress/internal/logging"
)

// Stage names one ffmpeg invocation of a pipeline.
type Stage string

const (
	StagePass1  Stage = "pass 1"
	StagePass2  Stage = "pass 2"
	StageSingle Stage = "single pass"
)

// Pipeline runs encode passes over a clean source.
type Pipeline struct {
	Runner     ffmpeg.Runner
	FFmpegPath string
	Preset     config.Preset

	// PassLog is the statistics file prefix shared by both passes.
	PassLog string

	// Timeout bounds each pass; zero means no limit.
	Timeout time.Duration

	Logger *logging.Logger

	// Progress, when set, receives ffmpeg progress for each stage.
	Progress func(Stage, ffmpeg.Progress)
}

// Pass1Done proves pass 1 completed. Only Pass1 creates one, so pass 2
// cannot run before it.
type Pass1Done struct {
	passLog string
	kbps    int
	codec   config.Codec
}

// Run executes the pipeline r.Mode selects and writes out.
func (p *Pipeline) Run(ctx context.Context, src frames.SourceReady, a audio.Normalized, r Resolved, out string) error {
	if r.Mode != ModeTargetSize {
		return p.Single(ctx, src, a, r, out)
	}
	done, err := p.Pass1(ctx, src, r)
	if err != nil {
		return err
	}
	return p.Pass2(ctx, src, done, a, r, out)
}

// Pass1 analyzes the source at the resolved bitrate and writes only the
// rate-control statistics. Audio is never read.
func (p *Pipeline) Pass1(ctx context.Context, src frames.SourceReady, r Resolved) (Pass1Done, error) {
	if r.Mode != ModeTargetSize {
		return Pass1Done{}, fperrors.NewEncodeError(fmt.Sprintf("pass 1 needs target-size mode, got %s", r.Mode), nil)
	}
	if p.PassLog == "" {
		return Pass1Done{}, fperrors.NewEncodeError("pass log path is not set", nil)
	}

	b := ffmpeg.NewArgs().Input(src.Path)
	p.twoPassVideoArgs(b, r, 1)
	args := b.NoAudio().
		Add("-f", "mp4").
		Output(ffmpeg.NullSink())

	if err := p.run(ctx, StagePass1, src, args); err != nil {
		return Pass1Done{}, err
	}
	return Pass1Done{passLog: p.PassLog, kbps: r.VideoBitrateKbps, codec: r.Codec}, nil
}

// Pass2 re-encodes using pass 1's statistics and muxes audio when present.
func (p *Pipeline) Pass2(ctx context.Context, src frames.SourceReady, done Pass1Done, a audio.Normalized, r Resolved, out string) error {
	if done.passLog == "" {
		return fperrors.NewEncodeError("pass 2 requires a completed pass 1", nil)
	}
	if done.passLog != p.PassLog || done.kbps != r.VideoBitrateKbps || done.codec != r.Codec {
		return fperrors.NewEncodeError("pass 2 parameters differ from pass 1", nil)
	}

	b := ffmpeg.NewArgs().Input(src.Path)
	addAudioInput(b, a)
	p.twoPassVideoArgs(b, r, 2)
	addAudioOutput(b, a, src)
	args := b.Add("-movflags", "+faststart").Output(out)

	return p.run(ctx, StagePass2, src, args)
}

// Single encodes the source in one pass at constant quality: -crf on CPU
// encoders, -cq with bitrate control disabled on NVENC.
func (p *Pipeline) Single(ctx context.Context, src frames.SourceReady, a audio.Normalized, r Resolved, out string) error {
	if r.Mode == ModeTargetSize {
		return fperrors.NewEncodeError("target-size mode needs two passes", nil)
	}

	b := ffmpeg.NewArgs().Input(src.Path)
	addAudioInput(b, a)
	b.VideoCodec(string(r.Codec)).Preset(p.Preset.ForCodec(r.Codec))
	quality := strconv.Itoa(r.CRF)
	if r.Codec.IsGPU() {
		b.Add("-cq", quality, "-b:v", "0")
	} else {
		b.Add("-crf", quality)
	}
	b.PixelFormat("yuv420p").Add("-threads", "0")
	addAudioOutput(b, a, src)
	args := b.Add("-movflags", "+faststart").Output(out)

	return p.run(ctx, StageSingle, src, args)
}

// twoPassVideoArgs appends the video options both passes share.
func (p *Pipeline) twoPassVideoArgs(b *ffmpeg.ArgsBuilder, r Resolved, pass int) {
	b.VideoCodec(string(r.Codec)).
		VideoBitrate(r.VideoBitrateKbps).
		Preset(p.Preset.ForCodec(r.Codec)).
		PixelFormat("yuv420p").
		Add("-threads", "0").
		Add("-pass", strconv.Itoa(pass), "-passlogfile", p.PassLog)
	if r.Codec == config.CodecX265 {
		b.Add("-x265-params", ffmpeg.NewX265ParamsBuilder().WithPass(pass).WithStats(p.PassLog+".log").Build())
	}
}

func addAudioInput(b *ffmpeg.ArgsBuilder, a audio.Normalized) {
	if a.HasAudio {
		b.Input(a.Path)
	}
}

// addAudioOutput maps streams explicitly when audio is muxed. The output is
// cut at the video's length: short audio leaves silence, long audio is
// trimmed.
func addAudioOutput(b *ffmpeg.ArgsBuilder, a audio.Normalized, src frames.SourceReady) {
	if !a.HasAudio {
		b.NoAudio()
		return
	}
	b.Add("-map", "0:v:0", "-map", "1:a:0",
		"-c:a", "aac", "-b:a", fmt.Sprintf("%dk", config.AudioBitrateKbps),
		"-t", formatSeconds(SafeDuration(src.FrameCount, src.FrameRate)))
}

func formatSeconds(secs float64) string {
	return strconv.FormatFloat(secs, 'f', -1, 64)
}

// run executes one stage under the per-pass timeout.
func (p *Pipeline) run(ctx context.Context, stage Stage, src frames.SourceReady, args []string) error {
	log := logging.OrGlobal(p.Logger)

	passCtx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		passCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	cmd := ffmpeg.Command{
		Program:     p.program(),
		Args:        args,
		Duration:    SafeDuration(src.FrameCount, src.FrameRate),
		TotalFrames: uint64(src.FrameCount),
	}
	if p.Progress != nil {
		cmd.Progress = func(pr ffmpeg.Progress) { p.Progress(stage, pr) }
	}

	log.Info("Encoding", "stage", string(stage))
	start := time.Now()
	if _, err := p.Runner.Run(passCtx, cmd); err != nil {
		if ctx.Err() == nil && errors.Is(passCtx.Err(), context.DeadlineExceeded) {
			return fperrors.NewEncodeError(fmt.Sprintf("%s timed out after %s", stage, p.Timeout), err)
		}
		if fperrors.IsCancelled(err) {
			return err
		}
		return fperrors.NewEncodeError(fmt.Sprintf("%s failed", stage), err)
	}
	log.Info("Stage complete", "stage", string(stage), "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func (p *Pipeline) program() string {
	if p.FFmpegPath == "" {
		return "ffmpeg"
	}
	return p.FFmpegPath
}
