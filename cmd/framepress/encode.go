package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/framepress/internal/audio"
	"github.com/five82/framepress/internal/config"
	"github.com/five82/framepress/internal/discovery"
	"github.com/five82/framepress/internal/frames"
	"github.com/five82/framepress/internal/logging"
	"github.com/five82/framepress/internal/processing"
	"github.com/five82/framepress/internal/reporter"
)

// encodeOptions holds the parsed arguments for the encode command.
type encodeOptions struct {
	framesDir string
	videoPath string
	audioPath string

	outputDir     string
	outputPrefix  string
	workspaceRoot string
	logDir        string

	strategy     string
	targetSizeMB float64
	crf          int
	codec        string
	preset       string
	frameRate    float64
	fpsSet       bool
	timeout      time.Duration
	noValidate   bool

	ffmpegPath  string
	ffprobePath string

	jsonOutput bool
	verbose    bool
	noLog      bool
}

func newEncodeCommand(g *globalOptions) *cobra.Command {
	return newEncodeCommandInto(g, &encodeOptions{})
}

// newEncodeCommandInto binds the encode flags to o.
func newEncodeCommandInto(g *globalOptions, o *encodeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode a frame directory or video into a compressed MP4",
		Long: `Encode a directory of PNG/JPEG frames (--frames) or an existing video
(--video) into a single MP4.

With --target-size the encode runs two passes at an average bitrate sized to
the budget. Without it a single constant-quality pass runs at --crf (CPU
encoders) or as CQ on NVENC (--strategy gpu).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (o.framesDir == "") == (o.videoPath == "") {
				return fmt.Errorf("exactly one of --frames or --video is required")
			}
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if err := o.apply(cmd, cfg); err != nil {
				return err
			}
			return o.run(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.framesDir, "frames", "", "Directory of frame images, encoded in name order")
	f.StringVar(&o.videoPath, "video", "", "Input video whose frames are re-encoded")
	f.StringVar(&o.audioPath, "audio", "", "Audio file muxed as AAC")

	f.StringVarP(&o.outputDir, "output", "o", "", "Output directory (default ./compressed_videos)")
	f.StringVar(&o.outputPrefix, "prefix", config.DefaultOutputPrefix, "Output file name prefix")
	f.StringVar(&o.workspaceRoot, "workspace", "", "Directory the scratch workspace is created in (default system temp)")
	f.StringVarP(&o.logDir, "log-dir", "l", "", "Log directory (defaults to OUTPUT/logs)")

	f.StringVar(&o.strategy, "strategy", string(config.StrategyAuto), "Mode selection: auto, two-pass, crf, gpu")
	f.Float64VarP(&o.targetSizeMB, "target-size", "t", 0, "Target output size in MB (enables two-pass)")
	f.IntVar(&o.crf, "crf", config.DefaultCRF, "CRF (CPU) or CQ (GPU) quality, 0-51")
	f.StringVar(&o.codec, "codec", string(config.DefaultCPUCodec), "Encoder: libx264, libx265, h264_nvenc, hevc_nvenc")
	f.StringVar(&o.preset, "preset", string(config.DefaultPreset), "Speed preset, ultrafast to veryslow")
	f.Float64Var(&o.frameRate, "fps", config.DefaultFrameRate, "Frame rate for --frames input")
	f.DurationVar(&o.timeout, "timeout", config.DefaultEncodeTimeout, "Per-pass encode timeout (0 disables)")
	f.BoolVar(&o.noValidate, "no-validate", false, "Skip output validation")

	f.StringVar(&o.ffmpegPath, "ffmpeg", "ffmpeg", "ffmpeg binary")
	f.StringVar(&o.ffprobePath, "ffprobe", "ffprobe", "ffprobe binary")

	f.BoolVar(&o.jsonOutput, "json", false, "Emit NDJSON progress events on stdout")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "Enable debug logging")
	f.BoolVar(&o.noLog, "no-log", false, "Disable log file creation")

	return cmd
}

// apply overrides cfg with every flag set on the command line, then validates.
func (o *encodeOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed

	if changed("output") {
		cfg.OutputDir = config.ExpandPath(o.outputDir)
	}
	if changed("prefix") {
		cfg.OutputPrefix = o.outputPrefix
	}
	if changed("workspace") {
		cfg.WorkspaceRoot = config.ExpandPath(o.workspaceRoot)
	}
	if changed("log-dir") {
		cfg.LogDir = config.ExpandPath(o.logDir)
	}
	if changed("strategy") {
		s, err := config.ParseStrategy(o.strategy)
		if err != nil {
			return err
		}
		cfg.Strategy = s
	}
	if changed("target-size") {
		cfg.TargetSizeMB = o.targetSizeMB
	}
	if changed("crf") {
		cfg.CRF = o.crf
	}
	if changed("codec") {
		c, err := config.ParseCodec(o.codec)
		if err != nil {
			return err
		}
		cfg.Codec = c
	}
	if changed("preset") {
		p, err := config.ParsePreset(o.preset)
		if err != nil {
			return err
		}
		cfg.Preset = p
	}
	if changed("fps") {
		cfg.FrameRate = o.frameRate
		o.fpsSet = true
	}
	if changed("timeout") {
		cfg.EncodeTimeout = o.timeout
	}
	if o.noValidate {
		cfg.ValidateOutput = false
	}
	if changed("ffmpeg") {
		cfg.FFmpegPath = o.ffmpegPath
	}
	if changed("ffprobe") {
		cfg.FFprobePath = o.ffprobePath
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (o *encodeOptions) run(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}

	logDir := cfg.LogDir
	if logDir == "" {
		logDir = filepath.Join(cfg.OutputDir, "logs")
	}
	logger, err := logging.Setup(logDir, o.verbose, o.noLog)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	if logger != nil {
		defer func() { _ = logger.Close() }()
		logging.SetGlobal(logger)
	} else {
		logger = logging.Discard()
	}

	req := processing.NewRequest(cfg)
	if o.audioPath != "" {
		req.Audio = audio.FromPath(config.ExpandPath(o.audioPath))
	}

	if o.videoPath != "" {
		req.VideoPathIn = config.ExpandPath(o.videoPath)
		if !o.fpsSet {
			// Let the probe supply the rate.
			req.FrameRate = 0
		}
	} else {
		dir := config.ExpandPath(o.framesDir)
		found, err := discovery.FindFrameFiles(dir, logger)
		if err != nil {
			return err
		}
		if len(found.Files) == 0 {
			return fmt.Errorf("no frame images found in %s", dir)
		}
		if req.Frames, err = frames.LoadFiles(found.Files); err != nil {
			return err
		}
	}

	logger.Info("Configuration",
		"output_dir", cfg.OutputDir,
		"strategy", cfg.Strategy.String(),
		"target_size_mb", cfg.TargetSizeMB,
		"crf", cfg.CRF,
		"codec", cfg.Codec.String(),
		"preset", cfg.Preset.String(),
		"fps", req.FrameRate)

	var rep reporter.Reporter = reporter.NewTerminalReporter()
	if o.jsonOutput {
		rep = reporter.NewJSONReporter()
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = processing.Process(ctx, cfg, req, rep, logger)
	return err
}
