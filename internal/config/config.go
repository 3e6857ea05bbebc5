// Package config provides configuration types and defaults for framepress.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default constants
const (
	// DefaultFrameRate is the frame rate used when a request does not supply one.
	DefaultFrameRate float64 = 24

	// MaxFrameRate is the highest accepted frame rate.
	MaxFrameRate float64 = 240

	// DefaultCRF is the quality value for CRF and CQ encodes.
	DefaultCRF = 23

	// MaxCRF is the maximum valid CRF (CPU) or CQ (GPU) value.
	MaxCRF = 51

	// MaxTargetSizeMB is the largest accepted target size.
	MaxTargetSizeMB float64 = 2000

	// DefaultOutputPrefix is the filename prefix for encoded outputs.
	DefaultOutputPrefix = "compressed"

	// DefaultOutputSubdir is the directory created under the working directory
	// when no output directory is configured.
	DefaultOutputSubdir = "compressed_videos"

	// DefaultEncodeTimeout bounds each encode pass.
	DefaultEncodeTimeout = 2 * time.Hour

	// AudioBitrateKbps is the fixed AAC bitrate used whenever audio is muxed.
	AudioBitrateKbps = 128

	// MinVideoBitrateKbps is the floor applied to computed two-pass bitrates.
	MinVideoBitrateKbps = 100
)

// Codec is an ffmpeg video encoder name.
type Codec string

const (
	CodecX264      Codec = "libx264"
	CodecX265      Codec = "libx265"
	CodecH264NVENC Codec = "h264_nvenc"
	CodecHEVCNVENC Codec = "hevc_nvenc"
)

// DefaultCPUCodec and DefaultGPUCodec are the substitutes used when a codec
// does not match the family a mode requires.
const (
	DefaultCPUCodec = CodecX264
	DefaultGPUCodec = CodecH264NVENC
)

// Codecs lists every supported codec in display order.
var Codecs = []Codec{CodecX264, CodecX265, CodecH264NVENC, CodecHEVCNVENC}

// ParseCodec parses a codec name.
func ParseCodec(s string) (Codec, error) {
	c := Codec(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Codecs {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: '%s', valid options: %s", ErrInvalidCodec, s, joinValues(Codecs))
}

// IsGPU reports whether the codec runs on an NVENC device.
func (c Codec) IsGPU() bool {
	return c == CodecH264NVENC || c == CodecHEVCNVENC
}

// String returns the ffmpeg encoder name.
func (c Codec) String() string {
	return string(c)
}

// Preset is one of the nine x264-style speed/quality tiers, fastest first.
type Preset string

const (
	PresetUltrafast Preset = "ultrafast"
	PresetSuperfast Preset = "superfast"
	PresetVeryfast  Preset = "veryfast"
	PresetFaster    Preset = "faster"
	PresetFast      Preset = "fast"
	PresetMedium    Preset = "medium"
	PresetSlow      Preset = "slow"
	PresetSlower    Preset = "slower"
	PresetVeryslow  Preset = "veryslow"
)

// DefaultPreset is the preset used when none is configured.
const DefaultPreset = PresetFast

// Presets lists every preset, fastest first.
var Presets = []Preset{
	PresetUltrafast, PresetSuperfast, PresetVeryfast, PresetFaster, PresetFast,
	PresetMedium, PresetSlow, PresetSlower, PresetVeryslow,
}

// nvencPresets maps each tier onto the NVENC p1 (fastest) to p7 (slowest) scale.
var nvencPresets = map[Preset]string{
	PresetUltrafast: "p1",
	PresetSuperfast: "p1",
	PresetVeryfast:  "p2",
	PresetFaster:    "p3",
	PresetFast:      "p4",
	PresetMedium:    "p5",
	PresetSlow:      "p6",
	PresetSlower:    "p7",
	PresetVeryslow:  "p7",
}

// ParsePreset parses a preset string (case-insensitive).
func ParsePreset(s string) (Preset, error) {
	p := Preset(strings.ToLower(strings.TrimSpace(s)))
	if p.Index() < 0 {
		return "", fmt.Errorf("%w: '%s', valid options: %s", ErrInvalidPreset, s, joinValues(Presets))
	}
	return p, nil
}

// Index returns the tier position (0 = fastest) or -1 for unknown presets.
func (p Preset) Index() int {
	for i, known := range Presets {
		if p == known {
			return i
		}
	}
	return -1
}

// ForCodec returns the preset name understood by the given encoder.
func (p Preset) ForCodec(c Codec) string {
	if c.IsGPU() {
		if v, ok := nvencPresets[p]; ok {
			return v
		}
		return nvencPresets[DefaultPreset]
	}
	return string(p)
}

// String returns the string representation of the preset.
func (p Preset) String() string {
	return string(p)
}

// Strategy selects how the encode mode is chosen.
type Strategy string

const (
	// StrategyAuto picks two-pass when a target size is set, CRF otherwise.
	StrategyAuto Strategy = "auto"
	// StrategyTwoPass requires a target size.
	StrategyTwoPass Strategy = "two-pass"
	// StrategyCRF always encodes at constant quality on the CPU.
	StrategyCRF Strategy = "crf"
	// StrategyGPU encodes at constant quality on an NVENC device.
	StrategyGPU Strategy = "gpu"
)

// Strategies lists every strategy.
var Strategies = []Strategy{StrategyAuto, StrategyTwoPass, StrategyCRF, StrategyGPU}

// ParseStrategy parses a strategy string. "2pass" and "fast_crf" are accepted
// as aliases for two-pass and crf.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return StrategyAuto, nil
	case "two-pass", "2pass":
		return StrategyTwoPass, nil
	case "crf", "fast_crf":
		return StrategyCRF, nil
	case "gpu":
		return StrategyGPU, nil
	default:
		return "", fmt.Errorf("%w: '%s', valid options: %s", ErrInvalidStrategy, s, joinValues(Strategies))
	}
}

// String returns the string representation of the strategy.
func (s Strategy) String() string {
	return string(s)
}

// Config holds all configuration for one encode invocation.
type Config struct {
	// Directories
	WorkspaceRoot string
	OutputDir     string
	OutputPrefix  string
	LogDir        string

	// Encoding parameters
	Strategy     Strategy
	TargetSizeMB float64
	FrameRate    float64
	CRF          int
	Codec        Codec
	Preset       Preset

	// External tools
	FFmpegPath  string
	FFprobePath string

	// Processing options
	EncodeTimeout  time.Duration // 0 disables the per-pass timeout
	ValidateOutput bool
}

// NewConfig creates a new Config with default values.
func NewConfig(workspaceRoot, outputDir string) *Config {
	if workspaceRoot == "" {
		workspaceRoot = os.TempDir()
	}
	if outputDir == "" {
		outputDir = DefaultOutputSubdir
	}
	return &Config{
		WorkspaceRoot:  workspaceRoot,
		OutputDir:      outputDir,
		OutputPrefix:   DefaultOutputPrefix,
		Strategy:       StrategyAuto,
		FrameRate:      DefaultFrameRate,
		CRF:            DefaultCRF,
		Codec:          DefaultCPUCodec,
		Preset:         DefaultPreset,
		FFmpegPath:     "ffmpeg",
		FFprobePath:    "ffprobe",
		EncodeTimeout:  DefaultEncodeTimeout,
		ValidateOutput: true,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.WorkspaceRoot == "" {
		return fmt.Errorf("%w: workspace root is empty", ErrInvalidPath)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: output directory is empty", ErrInvalidPath)
	}
	if c.OutputPrefix == "" || strings.ContainsAny(c.OutputPrefix, `/\`) || c.OutputPrefix != filepath.Base(c.OutputPrefix) {
		return fmt.Errorf("%w: output prefix %q must be a plain file name", ErrInvalidPath, c.OutputPrefix)
	}

	if _, err := ParseStrategy(string(c.Strategy)); err != nil {
		return err
	}
	if _, err := ParseCodec(string(c.Codec)); err != nil {
		return err
	}
	if _, err := ParsePreset(string(c.Preset)); err != nil {
		return err
	}

	if c.FrameRate <= 0 || c.FrameRate > MaxFrameRate {
		return fmt.Errorf("%w: must be in (0, %g], got %g", ErrInvalidFrameRate, MaxFrameRate, c.FrameRate)
	}
	if c.CRF < 0 || c.CRF > MaxCRF {
		return fmt.Errorf("%w: must be 0-%d, got %d", ErrInvalidCRF, MaxCRF, c.CRF)
	}
	if c.TargetSizeMB < 0 || c.TargetSizeMB > MaxTargetSizeMB {
		return fmt.Errorf("%w: must be 0 or up to %g MB, got %g", ErrInvalidTargetSize, MaxTargetSizeMB, c.TargetSizeMB)
	}
	if c.Strategy == StrategyTwoPass && c.TargetSizeMB <= 0 {
		return fmt.Errorf("%w: two-pass strategy requires a target size", ErrInvalidTargetSize)
	}
	if c.EncodeTimeout < 0 {
		return fmt.Errorf("%w: encode timeout must not be negative", ErrInvalidTimeout)
	}

	return nil
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
