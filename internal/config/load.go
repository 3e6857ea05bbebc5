package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the on-disk layout. Enum and duration fields stay
// strings so both decoders share one parse/validate path.
type fileConfig struct {
	WorkspaceRoot  string  `toml:"workspace_root" yaml:"workspace_root"`
	OutputDir      string  `toml:"output_dir" yaml:"output_dir"`
	OutputPrefix   string  `toml:"output_prefix" yaml:"output_prefix"`
	LogDir         string  `toml:"log_dir" yaml:"log_dir"`
	Strategy       string  `toml:"strategy" yaml:"strategy"`
	TargetSizeMB   float64 `toml:"target_size_mb" yaml:"target_size_mb"`
	FrameRate      float64 `toml:"frame_rate" yaml:"frame_rate"`
	CRF            int     `toml:"crf" yaml:"crf"`
	Codec          string  `toml:"codec" yaml:"codec"`
	Preset         string  `toml:"preset" yaml:"preset"`
	FFmpegPath     string  `toml:"ffmpeg_path" yaml:"ffmpeg_path"`
	FFprobePath    string  `toml:"ffprobe_path" yaml:"ffprobe_path"`
	EncodeTimeout  string  `toml:"encode_timeout" yaml:"encode_timeout"`
	ValidateOutput bool    `toml:"validate_output" yaml:"validate_output"`
}

func toFileConfig(c *Config) fileConfig {
	return fileConfig{
		WorkspaceRoot:  c.WorkspaceRoot,
		OutputDir:      c.OutputDir,
		OutputPrefix:   c.OutputPrefix,
		LogDir:         c.LogDir,
		Strategy:       string(c.Strategy),
		TargetSizeMB:   c.TargetSizeMB,
		FrameRate:      c.FrameRate,
		CRF:            c.CRF,
		Codec:          string(c.Codec),
		Preset:         string(c.Preset),
		FFmpegPath:     c.FFmpegPath,
		FFprobePath:    c.FFprobePath,
		EncodeTimeout:  c.EncodeTimeout.String(),
		ValidateOutput: c.ValidateOutput,
	}
}

func (f fileConfig) apply(c *Config) error {
	strategy, err := ParseStrategy(f.Strategy)
	if err != nil {
		return err
	}
	codec, err := ParseCodec(f.Codec)
	if err != nil {
		return err
	}
	preset, err := ParsePreset(f.Preset)
	if err != nil {
		return err
	}
	timeout := time.Duration(0)
	if s := strings.TrimSpace(f.EncodeTimeout); s != "" {
		timeout, err = time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTimeout, err)
		}
	}

	c.WorkspaceRoot = ExpandPath(f.WorkspaceRoot)
	c.OutputDir = ExpandPath(f.OutputDir)
	c.OutputPrefix = f.OutputPrefix
	c.LogDir = ExpandPath(f.LogDir)
	c.Strategy = strategy
	c.TargetSizeMB = f.TargetSizeMB
	c.FrameRate = f.FrameRate
	c.CRF = f.CRF
	c.Codec = codec
	c.Preset = preset
	c.FFmpegPath = f.FFmpegPath
	c.FFprobePath = f.FFprobePath
	c.EncodeTimeout = timeout
	c.ValidateOutput = f.ValidateOutput
	return nil
}

// Load reads a TOML (.toml) or YAML (.yaml, .yml) file on top of the
// defaults and validates the result. Keys absent from the file keep their
// default values.
func Load(path string) (*Config, error) {
	file, err := os.Open(ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	return Decode(file, filepath.Ext(path))
}

// Decode parses configuration data in the format named by ext.
func Decode(r io.Reader, ext string) (*Config, error) {
	cfg := NewConfig("", "")
	fc := toFileConfig(cfg)

	switch strings.ToLower(ext) {
	case ".toml":
		dec := toml.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&fc); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&fc); err != nil && err != io.EOF {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	if err := fc.apply(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
