package validation

import "fmt"

// Result contains the overall validation result.
type Result struct {
	IsOutputPresent     bool
	IsCodecCorrect      bool
	IsDimensionsCorrect bool
	IsDurationCorrect   bool
	IsAudioCorrect      bool
	IsSizeWithinTarget  bool

	// Details
	OutputSize         uint64
	CodecName          string
	ExpectedCodec      string
	ActualDimensions   *[2]int64
	ExpectedDimensions *[2]int64
	DimensionsMessage  string
	ActualDuration     *float64
	ExpectedDuration   *float64
	DurationMessage    string
	AudioMessage       string
	SizeMessage        string
}

// ValidationStep represents a single validation check.
type ValidationStep struct {
	Name    string
	Passed  bool
	Details string
}

// IsValid returns true if all validation checks passed.
func (r *Result) IsValid() bool {
	return r.IsOutputPresent &&
		r.IsCodecCorrect &&
		r.IsDimensionsCorrect &&
		r.IsDurationCorrect &&
		r.IsAudioCorrect &&
		r.IsSizeWithinTarget
}

// GetValidationSteps returns all validation steps with results.
func (r *Result) GetValidationSteps() []ValidationStep {
	return []ValidationStep{
		{
			Name:    "Output file",
			Passed:  r.IsOutputPresent,
			Details: formatOutputDetails(r.OutputSize, r.IsOutputPresent),
		},
		{
			Name:    "Video codec",
			Passed:  r.IsCodecCorrect,
			Details: formatCodecDetails(r.CodecName, r.ExpectedCodec, r.IsCodecCorrect),
		},
		{
			Name:    "Dimensions",
			Passed:  r.IsDimensionsCorrect,
			Details: r.DimensionsMessage,
		},
		{
			Name:    "Video duration",
			Passed:  r.IsDurationCorrect,
			Details: r.DurationMessage,
		},
		{
			Name:    "Audio track",
			Passed:  r.IsAudioCorrect,
			Details: r.AudioMessage,
		},
		{
			Name:    "Target size",
			Passed:  r.IsSizeWithinTarget,
			Details: r.SizeMessage,
		},
	}
}

// GetFailures returns descriptions of failed validation checks.
func (r *Result) GetFailures() []string {
	var failures []string
	for _, step := range r.GetValidationSteps() {
		if !step.Passed {
			failures = append(failures, step.Name+": "+step.Details)
		}
	}
	return failures
}

func formatOutputDetails(size uint64, present bool) string {
	if !present {
		return "Output file missing or empty"
	}
	return fmt.Sprintf("%d bytes written", size)
}

func formatCodecDetails(codecName, expected string, passed bool) string {
	switch {
	case expected == "":
		return "Codec validation skipped"
	case passed:
		return "Codec is " + codecName
	case codecName != "":
		return "Expected " + expected + ", got " + codecName
	default:
		return "Unknown codec"
	}
}
