// Package processing runs one encode from request to validated output file.
package processing

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/five82/framepress/internal/audio"
	"github.com/five82/framepress/internal/config"
	"github.com/five82/framepress/internal/encode"
	fperrors "github.com/five82/framepress/internal/errors"
	"github.com/five82/framepress/internal/ffmpeg"
	"github.com/five82/framepress/internal/ffprobe"
	"github.com/five82/framepress/internal/frames"
	"github.com/five82/framepress/internal/logging"
	"github.com/five82/framepress/internal/reporter"
	"github.com/five82/framepress/internal/util"
	"github.com/five82/framepress/internal/validation"
	"github.com/five82/framepress/internal/workspace"
)

// Request describes one encode. Exactly one of Frames and VideoPathIn is set.
// Empty Codec, Preset or Strategy and a non-positive FrameRate fall back to
// the configuration.
type Request struct {
	Frames       frames.Sequence
	VideoPathIn  string
	FrameRate    float64
	TargetSizeMB float64
	CRF          int
	Codec        config.Codec
	Preset       config.Preset
	Strategy     config.Strategy
	Audio        audio.Source
}

// NewRequest returns a request carrying the encode settings of cfg.
func NewRequest(cfg *config.Config) Request {
	return Request{
		FrameRate:    cfg.FrameRate,
		TargetSizeMB: cfg.TargetSizeMB,
		CRF:          cfg.CRF,
		Codec:        cfg.Codec,
		Preset:       cfg.Preset,
		Strategy:     cfg.Strategy,
		Audio:        audio.None(),
	}
}

// Result describes a finished encode. Frames passes the input frames through,
// or holds the frames decoded from VideoPathIn.
type Result struct {
	OutputPath   string
	Frames       frames.Sequence
	Audio        audio.Source
	HasAudio     bool
	Resolved     encode.Resolved
	DurationSecs float64
	OutputSize   uint64
	Validation   *validation.Result
	Elapsed      time.Duration
}

// MediaProber inspects media files. *ffprobe.Prober implements it.
type MediaProber interface {
	Probe(ctx context.Context, path string) (*ffprobe.MediaInfo, error)
	Duration(ctx context.Context, path string) (float64, error)
}

// Orchestrator wires the encode stages together.
type Orchestrator struct {
	Config   *config.Config
	Runner   ffmpeg.Runner
	Prober   MediaProber
	Reporter reporter.Reporter
	Logger   *logging.Logger

	// Now stamps output file names.
	Now func() time.Time
}

// New creates an orchestrator that runs the configured ffmpeg and ffprobe
// binaries as subprocesses.
func New(cfg *config.Config, rep reporter.Reporter, logger *logging.Logger) *Orchestrator {
	runner := ffmpeg.NewExecRunner(logger)
	return &Orchestrator{
		Config:   cfg,
		Runner:   runner,
		Prober:   ffprobe.NewProber(runner, cfg.FFprobePath, logger),
		Reporter: rep,
		Logger:   logger,
		Now:      time.Now,
	}
}

// Process encodes req with the settings in cfg using real subprocesses.
func Process(ctx context.Context, cfg *config.Config, req Request, rep reporter.Reporter, logger *logging.Logger) (*Result, error) {
	return New(cfg, rep, logger).Process(ctx, req)
}

// input is the validated form of a request.
type input struct {
	strategy config.Strategy
	codec    config.Codec
	preset   config.Preset
	fps      float64
}

// Process runs one encode. The workspace is released on every return path,
// including failures and cancellation.
func (o *Orchestrator) Process(ctx context.Context, req Request) (result *Result, err error) {
	log := logging.OrGlobal(o.Logger)
	rep := reporter.OrNull(o.Reporter)
	cfg := o.Config
	if cfg == nil {
		cfg = config.NewConfig("", "")
	}

	if req.Frames == nil && req.VideoPathIn == "" {
		log.Debug("Nothing to encode")
		return &Result{Audio: req.Audio}, nil
	}

	defer func() {
		if err != nil {
			log.Error("Encode failed", "error", err)
			rep.Error(errorReport(err))
		}
	}()

	in, err := o.checkRequest(cfg, req)
	if err != nil {
		return nil, err
	}

	start := o.now()
	ws, err := workspace.Open(ctx, cfg.WorkspaceRoot, o.Logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := ws.Close(); cerr != nil {
			rep.Warning(cerr.Error())
		}
	}()
	if ws.LowOnSpace() {
		rep.Warning(fmt.Sprintf("only %s free under %s; large frame sequences may not fit", util.FormatBytes(ws.FreeSpace), ws.Root))
	}

	result = &Result{Audio: req.Audio}

	norm := audio.Normalize(req.Audio, ws.Dir)
	if norm.Warning != nil {
		log.Warn("Audio dropped or adjusted", "warning", norm.Warning)
		rep.Warning(norm.Warning.Error())
	}
	result.HasAudio = norm.HasAudio

	mat := frames.NewMaterializer(o.Runner, cfg.FFmpegPath, o.Logger)
	mat.Progress = o.stageProgress(rep, "materialize")

	var (
		frameCount    int
		width, height int
	)
	if req.VideoPathIn != "" {
		rep.StageProgress(reporter.StageProgress{Stage: "analysis", Message: fmt.Sprintf("Probing %s", req.VideoPathIn)})
		info, perr := o.Prober.Probe(ctx, req.VideoPathIn)
		if perr != nil {
			return nil, perr
		}
		if !info.HasVideo {
			return nil, fperrors.NewValidationError(fmt.Sprintf("%s has no video stream", req.VideoPathIn))
		}
		if req.FrameRate <= 0 && info.FrameRate > 0 {
			in.fps = info.FrameRate
		}
		result.DurationSecs, err = o.Prober.Duration(ctx, req.VideoPathIn)
		if err != nil {
			return nil, err
		}

		rep.StageProgress(reporter.StageProgress{Stage: "materialize", Message: "Extracting frames"})
		if frameCount, err = mat.Extract(ctx, req.VideoPathIn, ws.Dir); err != nil {
			return nil, err
		}
		if frameCount == 0 {
			return nil, fperrors.NewMaterializationError(fmt.Sprintf("no frames decoded from %s", req.VideoPathIn), nil)
		}
		if result.Frames, err = mat.Load(ws.Dir); err != nil {
			return nil, err
		}
		width, height = result.Frames.Size()
	} else {
		rep.StageProgress(reporter.StageProgress{Stage: "materialize", Message: fmt.Sprintf("Writing %d frames", len(req.Frames))})
		if width, height, err = mat.Write(req.Frames, ws.Dir); err != nil {
			return nil, err
		}
		frameCount = len(req.Frames)
		result.Frames = req.Frames
		result.DurationSecs = encode.SafeDuration(frameCount, in.fps)
	}

	rep.StageProgress(reporter.StageProgress{Stage: "materialize", Message: "Building clean source"})
	src, err := mat.BuildSource(ctx, ws.Dir, in.fps, frameCount)
	if err != nil {
		return nil, err
	}
	src.Width, src.Height = width, height

	if result.DurationSecs <= 0 {
		return nil, fperrors.NewValidationError(fmt.Sprintf("invalid duration %gs", result.DurationSecs))
	}

	resolved, warnings := encode.Resolve(encode.ModeRequest{
		Strategy:     in.strategy,
		TargetSizeMB: req.TargetSizeMB,
		Codec:        in.codec,
		CRF:          req.CRF,
	})
	for _, w := range warnings {
		log.Warn(w)
		rep.Warning(w)
	}
	if resolved.Mode == encode.ModeTargetSize {
		kbps, clamped := encode.VideoBitrate(req.TargetSizeMB, result.DurationSecs, norm.HasAudio)
		if clamped {
			msg := fmt.Sprintf("target of %g MB is too small for %.1fs, using the %d kbps floor; output will exceed the target",
				req.TargetSizeMB, result.DurationSecs, config.MinVideoBitrateKbps)
			log.Warn(msg)
			rep.Warning(msg)
		}
		resolved.VideoBitrateKbps = kbps
	}
	result.Resolved = resolved

	if err := util.EnsureDirectory(cfg.OutputDir); err != nil {
		return nil, fperrors.NewIOError(fmt.Sprintf("create output directory %s", cfg.OutputDir), err)
	}
	out := util.ResolveOutputPath(cfg.OutputDir, cfg.OutputPrefix, start)

	rep.Initialization(reporter.InitializationSummary{
		Source:           describeSource(req),
		OutputFile:       util.GetFilename(out),
		FrameCount:       frameCount,
		FrameRate:        in.fps,
		Duration:         util.FormatDuration(result.DurationSecs),
		Resolution:       fmt.Sprintf("%dx%d", width, height),
		AudioDescription: describeAudio(req.Audio, norm),
	})
	rep.EncodingConfig(encodingSummary(resolved, in.preset, req.TargetSizeMB, norm.HasAudio))
	log.Info("Encoding",
		"mode", resolved.Mode.String(),
		"codec", resolved.Codec.String(),
		"frames", frameCount,
		"duration", result.DurationSecs,
		"bitrate_kbps", resolved.VideoBitrateKbps,
		"audio", norm.HasAudio,
		"output", out)

	pipeline := &encode.Pipeline{
		Runner:     o.Runner,
		FFmpegPath: cfg.FFmpegPath,
		Preset:     in.preset,
		PassLog:    ws.PassLog(),
		Timeout:    cfg.EncodeTimeout,
		Logger:     o.Logger,
		Progress:   o.encodeProgress(rep),
	}
	if err := pipeline.Run(ctx, src, norm, resolved, out); err != nil {
		if rmErr := os.Remove(out); rmErr == nil {
			log.Debug("Removed partial output", "path", out)
		}
		return nil, err
	}
	result.OutputPath = out
	result.OutputSize, _ = util.GetFileSize(out)

	if cfg.ValidateOutput {
		o.validate(ctx, rep, result, width, height, req.TargetSizeMB)
	}

	result.Elapsed = o.now().Sub(start)
	rep.EncodingComplete(reporter.EncodingOutcome{
		OutputPath:   out,
		EncodedSize:  result.OutputSize,
		TargetSizeMB: targetFor(resolved, req.TargetSizeMB),
		Mode:         resolved.Mode.String(),
		Encoder:      resolved.Codec.String(),
		HasAudio:     norm.HasAudio,
		TotalTime:    result.Elapsed,
	})
	rep.OperationComplete(fmt.Sprintf("Encoded %s", util.GetFilename(out)))
	return result, nil
}

// checkRequest rejects malformed requests before any file is touched.
func (o *Orchestrator) checkRequest(cfg *config.Config, req Request) (input, error) {
	in := input{
		strategy: req.Strategy,
		codec:    req.Codec,
		preset:   req.Preset,
		fps:      req.FrameRate,
	}

	if req.Frames != nil && req.VideoPathIn != "" {
		return in, fperrors.NewValidationError("supply frames or a video path, not both")
	}
	if req.Frames != nil {
		if err := req.Frames.Validate(); err != nil {
			return in, err
		}
	} else if !util.IsReadableFile(req.VideoPathIn) {
		return in, fperrors.NewValidationError(fmt.Sprintf("video file not found: %s", req.VideoPathIn))
	}

	if in.strategy == "" {
		in.strategy = cfg.Strategy
	}
	if in.codec == "" {
		in.codec = cfg.Codec
	}
	if in.preset == "" {
		in.preset = cfg.Preset
	}
	if in.fps <= 0 {
		in.fps = cfg.FrameRate
	}

	if _, err := config.ParseStrategy(string(in.strategy)); err != nil {
		return in, fperrors.NewConfigError("invalid strategy", err)
	}
	if in.codec != "" {
		if _, err := config.ParseCodec(string(in.codec)); err != nil {
			return in, fperrors.NewConfigError("invalid codec", err)
		}
	}
	if in.preset.Index() < 0 {
		return in, fperrors.NewConfigError("invalid preset", fmt.Errorf("%w: %q", config.ErrInvalidPreset, in.preset))
	}
	if in.fps <= 0 || in.fps > config.MaxFrameRate {
		return in, fperrors.NewValidationError(fmt.Sprintf("frame rate must be in (0, %g], got %g", config.MaxFrameRate, in.fps))
	}
	if req.CRF < 0 || req.CRF > config.MaxCRF {
		return in, fperrors.NewValidationError(fmt.Sprintf("crf must be 0-%d, got %d", config.MaxCRF, req.CRF))
	}
	if req.TargetSizeMB < 0 || req.TargetSizeMB > config.MaxTargetSizeMB {
		return in, fperrors.NewValidationError(fmt.Sprintf("target size must be 0 or up to %g MB, got %g", config.MaxTargetSizeMB, req.TargetSizeMB))
	}
	return in, nil
}

// validate probes the output. Failed checks are reported, not returned.
func (o *Orchestrator) validate(ctx context.Context, rep reporter.Reporter, result *Result, width, height int, targetMB float64) {
	log := logging.OrGlobal(o.Logger)
	rep.StageProgress(reporter.StageProgress{Stage: "validation", Message: "Checking output"})

	dims := [2]int64{int64(width), int64(height)}
	duration := result.DurationSecs
	v, err := validation.ValidateWithAnalyzer(ctx, o.Prober, result.OutputPath, validation.Options{
		ExpectedCodec:      result.Resolved.Codec,
		ExpectedDimensions: &dims,
		ExpectedDuration:   &duration,
		ExpectAudio:        result.HasAudio,
		TargetSizeMB:       targetFor(result.Resolved, targetMB),
	})

	var summary reporter.ValidationSummary
	if err != nil {
		log.Warn("Output validation failed to run", "error", err)
		summary.Steps = []reporter.ValidationStep{{Name: "Validation", Passed: false, Details: err.Error()}}
	} else {
		result.Validation = v
		summary.Passed = v.IsValid()
		for _, step := range v.GetValidationSteps() {
			summary.Steps = append(summary.Steps, reporter.ValidationStep{
				Name:    step.Name,
				Passed:  step.Passed,
				Details: step.Details,
			})
		}
		if !summary.Passed {
			log.Warn("Output validation failed", "failures", v.GetFailures())
		}
	}
	rep.ValidationComplete(summary)
}

// stageProgress forwards materialization progress as stage updates.
func (o *Orchestrator) stageProgress(rep reporter.Reporter, stage string) ffmpeg.ProgressCallback {
	return func(p ffmpeg.Progress) {
		rep.StageProgress(reporter.StageProgress{
			Stage:   stage,
			Percent: p.Percent,
			Message: fmt.Sprintf("frame %d/%d", p.CurrentFrame, p.TotalFrames),
		})
	}
}

// encodeProgress starts a new progress display whenever the pipeline moves
// on to its next pass.
func (o *Orchestrator) encodeProgress(rep reporter.Reporter) func(encode.Stage, ffmpeg.Progress) {
	var current encode.Stage
	return func(stage encode.Stage, p ffmpeg.Progress) {
		if stage != current {
			current = stage
			rep.EncodingStarted(string(stage), p.TotalFrames)
		}
		rep.EncodingProgress(reporter.ProgressSnapshot{
			Stage:        string(stage),
			CurrentFrame: p.CurrentFrame,
			TotalFrames:  p.TotalFrames,
			Percent:      p.Percent,
			Speed:        p.Speed,
			FPS:          p.FPS,
			ETA:          p.ETA,
			Bitrate:      p.Bitrate,
		})
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// targetFor returns the size budget the resolved mode honors.
func targetFor(r encode.Resolved, targetMB float64) float64 {
	if r.Mode == encode.ModeTargetSize {
		return targetMB
	}
	return 0
}
