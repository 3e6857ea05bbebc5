package validation

import (
	"context"
	"fmt"
	"math"

	"github.com/five82/framepress/internal/config"
	"github.com/five82/framepress/internal/util"
)

const (
	// durationToleranceSecs is the maximum allowed difference in duration between input and output.
	durationToleranceSecs = 1.0
	// sizeToleranceFraction is how far over its target a two-pass output may land.
	sizeToleranceFraction = 0.10
)

// Options contains optional parameters for validation.
type Options struct {
	ExpectedCodec      config.Codec
	ExpectedDimensions *[2]int64
	ExpectedDuration   *float64
	ExpectAudio        bool
	// TargetSizeMB enables the size check when positive.
	TargetSizeMB float64
}

// CodecFamily returns the bitstream format ffprobe reports for an encoder.
func CodecFamily(c config.Codec) string {
	switch c {
	case config.CodecX264, config.CodecH264NVENC:
		return "h264"
	case config.CodecX265, config.CodecHEVCNVENC:
		return "hevc"
	default:
		return ""
	}
}

// validateDimensions checks that dimensions match expected values.
func validateDimensions(actualW, actualH, expectedW, expectedH int64) (bool, string) {
	if actualW == expectedW && actualH == expectedH {
		return true, fmt.Sprintf("Dimensions match: %dx%d", actualW, actualH)
	}
	return false, fmt.Sprintf("Dimension mismatch: got %dx%d, expected %dx%d",
		actualW, actualH, expectedW, expectedH)
}

// validateDuration checks that duration is within acceptable tolerance.
func validateDuration(actual, expected float64) (bool, string) {
	diff := math.Abs(actual - expected)

	if diff <= durationToleranceSecs {
		return true, fmt.Sprintf("Duration matches input (%.1fs)", actual)
	}
	return false, fmt.Sprintf("Duration mismatch: got %.1fs, expected %.1fs (diff: %.1fs)",
		actual, expected, diff)
}

// validateAudio checks that an audio stream is present exactly when expected.
func validateAudio(hasAudio, expectAudio bool) (bool, string) {
	switch {
	case hasAudio && expectAudio:
		return true, "Audio track present"
	case !hasAudio && !expectAudio:
		return true, "No audio track, as requested"
	case expectAudio:
		return false, "Audio track missing"
	default:
		return false, "Unexpected audio track"
	}
}

// validateSize checks that size does not exceed the target by more than the tolerance.
func validateSize(size uint64, targetMB float64) (bool, string) {
	if targetMB <= 0 {
		return true, "No target size"
	}
	usage := util.TargetUsagePercent(size, targetMB)
	limit := (1 + sizeToleranceFraction) * 100
	if usage <= limit {
		return true, fmt.Sprintf("%s is %.1f%% of %.1f MB target", util.FormatBytes(size), usage, targetMB)
	}
	return false, fmt.Sprintf("%s is %.1f%% of %.1f MB target (max %.0f%%)", util.FormatBytes(size), usage, targetMB, limit)
}

// ValidateWithAnalyzer performs validation using a MediaAnalyzer interface.
// A missing or empty output fails without probing.
func ValidateWithAnalyzer(ctx context.Context, analyzer MediaAnalyzer, outputPath string, opts Options) (*Result, error) {
	result := &Result{
		IsCodecCorrect:      true,
		IsDimensionsCorrect: true,
		IsDurationCorrect:   true,
		IsAudioCorrect:      true,
		IsSizeWithinTarget:  true,
		ExpectedCodec:       CodecFamily(opts.ExpectedCodec),
	}

	size, err := util.GetFileSize(outputPath)
	result.OutputSize = size
	result.IsOutputPresent = err == nil && size > 0
	if !result.IsOutputPresent {
		result.IsCodecCorrect = false
		result.IsDurationCorrect = false
		result.DurationMessage = "Output not probed"
		return result, nil
	}

	info, err := analyzer.Probe(ctx, outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get output video properties: %w", err)
	}

	result.CodecName = info.VideoCodec
	if result.ExpectedCodec != "" {
		result.IsCodecCorrect = info.VideoCodec == result.ExpectedCodec
	}

	if opts.ExpectedDimensions != nil {
		result.ActualDimensions = &[2]int64{info.Width, info.Height}
		result.ExpectedDimensions = opts.ExpectedDimensions
		result.IsDimensionsCorrect, result.DimensionsMessage = validateDimensions(
			info.Width, info.Height,
			opts.ExpectedDimensions[0], opts.ExpectedDimensions[1],
		)
	} else {
		result.DimensionsMessage = "Dimension validation skipped"
	}

	if opts.ExpectedDuration != nil {
		actualDur := info.Duration
		result.ActualDuration = &actualDur
		result.ExpectedDuration = opts.ExpectedDuration
		result.IsDurationCorrect, result.DurationMessage = validateDuration(actualDur, *opts.ExpectedDuration)
	} else {
		result.DurationMessage = "Duration validation skipped"
	}

	result.IsAudioCorrect, result.AudioMessage = validateAudio(info.HasAudio, opts.ExpectAudio)
	result.IsSizeWithinTarget, result.SizeMessage = validateSize(size, opts.TargetSizeMB)

	return result, nil
}
