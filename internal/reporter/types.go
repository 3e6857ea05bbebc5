// Package reporter provides progress reporting interfaces and implementations.
package reporter

import (
	"time"

	"github.com/five82/framepress/internal/util"
)

// InitializationSummary describes the input before encoding starts.
type InitializationSummary struct {
	Source           string // frame directory, video path or "in-memory"
	OutputFile       string
	FrameCount       int
	FrameRate        float64
	Duration         string
	Resolution       string
	AudioDescription string
}

// EncodingConfigSummary contains the resolved encoding configuration.
type EncodingConfigSummary struct {
	Mode             string
	Encoder          string
	Preset           string
	Quality          string // CRF/CQ value or target bitrate
	TargetSize       string
	PixelFormat      string
	AudioCodec       string
	AudioDescription string
}

// ProgressSnapshot contains encoding progress information.
type ProgressSnapshot struct {
	Stage        string
	CurrentFrame uint64
	TotalFrames  uint64
	Percent      float32
	Speed        float32
	FPS          float32
	ETA          time.Duration
	Bitrate      string
}

// ValidationSummary contains validation results.
type ValidationSummary struct {
	Passed bool
	Steps  []ValidationStep
}

// ValidationStep represents a single validation check.
type ValidationStep struct {
	Name    string
	Passed  bool
	Details string
}

// EncodingOutcome contains final encoding results.
type EncodingOutcome struct {
	OutputPath   string
	EncodedSize  uint64
	TargetSizeMB float64 // 0 for quality encodes
	Mode         string
	Encoder      string
	HasAudio     bool
	TotalTime    time.Duration
}

// TargetUsage returns the encoded size as a percentage of the target, or 0.
func (o EncodingOutcome) TargetUsage() float64 {
	return util.TargetUsagePercent(o.EncodedSize, o.TargetSizeMB)
}

// ReporterError contains error information.
type ReporterError struct {
	Title      string
	Message    string
	Context    string
	Suggestion string
}

// StageProgress represents a generic stage update.
type StageProgress struct {
	Stage   string
	Percent float32
	Message string
	ETA     *time.Duration
}
