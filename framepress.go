// Package framepress compresses frame sequences, optionally paired with
// audio, into a single MP4 using ffmpeg.
//
// An encode either targets a file size (two-pass average bitrate) or a
// constant quality (single-pass CRF on the CPU, CQ on NVENC):
//
//	enc, err := framepress.New(
//	    framepress.WithTargetSize(8),
//	    framepress.WithOutputDir("out"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := enc.Encode(ctx, framepress.Input{
//	    Frames: frames,
//	    Audio:  framepress.AudioFromPath("voice.wav"),
//	}, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.OutputPath)
package framepress

import (
	"context"
	"fmt"
	"time"

	"github.com/five82/framepress/internal/audio"
	"github.com/five82/framepress/internal/config"
	"github.com/five82/framepress/internal/encode"
	"github.com/five82/framepress/internal/ffmpeg"
	"github.com/five82/framepress/internal/frames"
	"github.com/five82/framepress/internal/logging"
	"github.com/five82/framepress/internal/processing"
	"github.com/five82/framepress/internal/reporter"
)

// Frame is one HWC image with float samples in [0,1].
type Frame = frames.Frame

// Sequence is an ordered list of same-sized frames.
type Sequence = frames.Sequence

// AudioSource is the audio paired with a frame sequence.
type AudioSource = audio.Source

// NoAudio returns an absent audio source.
func NoAudio() AudioSource { return audio.None() }

// AudioFromPath references an audio file on disk.
func AudioFromPath(path string) AudioSource { return audio.FromPath(path) }

// AudioFromWaveform wraps channel-first or sample-first samples.
func AudioFromWaveform(samples [][]float32, sampleRate int) AudioSource {
	return audio.FromWaveform(samples, sampleRate)
}

// AudioFromBatchedWaveform wraps samples with a leading batch axis of size 1.
func AudioFromBatchedWaveform(samples [][][]float32, sampleRate int) AudioSource {
	return audio.FromBatchedWaveform(samples, sampleRate)
}

// Re-exported configuration enums.
type (
	Codec    = config.Codec
	Preset   = config.Preset
	Strategy = config.Strategy
)

const (
	CodecX264      = config.CodecX264
	CodecX265      = config.CodecX265
	CodecH264NVENC = config.CodecH264NVENC
	CodecHEVCNVENC = config.CodecHEVCNVENC

	StrategyAuto    = config.StrategyAuto
	StrategyTwoPass = config.StrategyTwoPass
	StrategyCRF     = config.StrategyCRF
	StrategyGPU     = config.StrategyGPU
)

// ParseCodec parses an ffmpeg encoder name.
func ParseCodec(s string) (Codec, error) { return config.ParseCodec(s) }

// ParsePreset parses a preset name such as "fast" or "veryslow".
func ParsePreset(s string) (Preset, error) { return config.ParsePreset(s) }

// ParseStrategy parses "auto", "two-pass", "crf" or "gpu".
func ParseStrategy(s string) (Strategy, error) { return config.ParseStrategy(s) }

// Input is what one encode consumes. Set Frames or VideoPath, not both.
type Input struct {
	Frames    Sequence
	VideoPath string
	Audio     AudioSource
}

// Result contains the result of a single encode.
type Result struct {
	OutputPath       string
	Frames           Sequence
	HasAudio         bool
	Mode             string
	Codec            Codec
	VideoBitrateKbps int
	DurationSecs     float64
	EncodedSize      uint64
	ValidationPassed bool
	Elapsed          time.Duration
}

// Encoder runs encodes with a fixed configuration.
type Encoder struct {
	config *config.Config
	logger *logging.Logger

	// runner and prober replace the subprocess collaborators in tests.
	runner ffmpeg.Runner
	prober processing.MediaProber

	// fpsSet records an explicit WithFrameRate; otherwise video input keeps
	// the frame rate it was recorded at.
	fpsSet bool
	err    error
}

// Option configures the encoder.
type Option func(*Encoder)

// New creates a new Encoder with the given options.
func New(opts ...Option) (*Encoder, error) {
	e := &Encoder{config: config.NewConfig("", "")}
	for _, opt := range opts {
		opt(e)
	}
	if e.err != nil {
		return nil, e.err
	}
	if err := e.config.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// WithConfigFile loads settings from a TOML or YAML file. Later options
// override values read from the file.
func WithConfigFile(path string) Option {
	return func(e *Encoder) {
		cfg, err := config.Load(path)
		if err != nil {
			e.err = fmt.Errorf("load config %s: %w", path, err)
			return
		}
		e.config = cfg
	}
}

// WithOutputDir sets where finished files are written.
func WithOutputDir(dir string) Option {
	return func(e *Encoder) { e.config.OutputDir = dir }
}

// WithOutputPrefix sets the output file name prefix.
func WithOutputPrefix(prefix string) Option {
	return func(e *Encoder) { e.config.OutputPrefix = prefix }
}

// WithWorkspaceRoot sets the directory the scratch workspace is created in.
func WithWorkspaceRoot(dir string) Option {
	return func(e *Encoder) { e.config.WorkspaceRoot = dir }
}

// WithTargetSize enables two-pass encoding to the given size in MB.
func WithTargetSize(mb float64) Option {
	return func(e *Encoder) { e.config.TargetSizeMB = mb }
}

// WithCRF sets the CRF (CPU) or CQ (GPU) quality value.
func WithCRF(crf int) Option {
	return func(e *Encoder) { e.config.CRF = crf }
}

// WithCodec sets the requested encoder.
func WithCodec(c Codec) Option {
	return func(e *Encoder) { e.config.Codec = c }
}

// WithPreset sets the speed preset.
func WithPreset(p Preset) Option {
	return func(e *Encoder) { e.config.Preset = p }
}

// WithStrategy sets how the encode mode is chosen.
func WithStrategy(s Strategy) Option {
	return func(e *Encoder) { e.config.Strategy = s }
}

// WithFrameRate sets the frame rate frame sequences are encoded at. Video
// input uses its probed frame rate unless this option is given.
func WithFrameRate(fps float64) Option {
	return func(e *Encoder) {
		e.config.FrameRate = fps
		e.fpsSet = true
	}
}

// WithFFmpeg sets the ffmpeg and ffprobe binaries.
func WithFFmpeg(ffmpegPath, ffprobePath string) Option {
	return func(e *Encoder) {
		e.config.FFmpegPath = ffmpegPath
		e.config.FFprobePath = ffprobePath
	}
}

// WithEncodeTimeout bounds each encode pass. Zero disables the limit.
func WithEncodeTimeout(d time.Duration) Option {
	return func(e *Encoder) { e.config.EncodeTimeout = d }
}

// WithoutValidation skips probing the finished output.
func WithoutValidation() Option {
	return func(e *Encoder) { e.config.ValidateOutput = false }
}

// WithLogger sets the logger; the global logger is used otherwise.
func WithLogger(l *logging.Logger) Option {
	return func(e *Encoder) { e.logger = l }
}

// Encode runs one encode. handler, when set, receives progress events.
func (e *Encoder) Encode(ctx context.Context, in Input, handler EventHandler) (*Result, error) {
	var rep reporter.Reporter = reporter.NullReporter{}
	if handler != nil {
		rep = newEventReporter(handler)
	}
	return e.EncodeWithReporter(ctx, in, rep)
}

// EncodeWithReporter runs one encode and sends every stage event to rep.
func (e *Encoder) EncodeWithReporter(ctx context.Context, in Input, rep reporter.Reporter) (*Result, error) {
	cfg := *e.config
	orch := processing.New(&cfg, rep, e.logger)
	if e.runner != nil {
		orch.Runner = e.runner
	}
	if e.prober != nil {
		orch.Prober = e.prober
	}

	req := processing.NewRequest(&cfg)
	req.Frames = in.Frames
	req.VideoPathIn = in.VideoPath
	req.Audio = in.Audio
	if in.VideoPath != "" && !e.fpsSet {
		req.FrameRate = 0
	}

	res, err := orch.Process(ctx, req)
	if err != nil {
		return nil, err
	}
	return newResult(res), nil
}

func newResult(r *processing.Result) *Result {
	out := &Result{
		OutputPath:   r.OutputPath,
		Frames:       r.Frames,
		HasAudio:     r.HasAudio,
		Mode:         r.Resolved.Mode.String(),
		Codec:        r.Resolved.Codec,
		DurationSecs: r.DurationSecs,
		EncodedSize:  r.OutputSize,
		Elapsed:      r.Elapsed,
	}
	if r.Resolved.Mode == encode.ModeTargetSize {
		out.VideoBitrateKbps = r.Resolved.VideoBitrateKbps
	}
	out.ValidationPassed = r.Validation != nil && r.Validation.IsValid()
	return out
}
