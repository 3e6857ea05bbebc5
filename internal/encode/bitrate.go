package encode

import (
	"math"

	"github.com/five82/framepress/internal/config"
)

// minDuration is the smallest duration SafeDuration will return as is.
const minDuration = 1e-6

// kbitsPerMB converts binary megabytes to kilobits.
const kbitsPerMB = 8192

// VideoBitrate computes the two-pass video bitrate in kbps that fits
// targetMB over durationSecs, reserving the AAC bitrate when hasAudio.
// Results below the floor are raised to it and clamped is true.
func VideoBitrate(targetMB, durationSecs float64, hasAudio bool) (kbps int, clamped bool) {
	if durationSecs <= 0 || targetMB <= 0 {
		return config.MinVideoBitrateKbps, true
	}

	total := targetMB * kbitsPerMB / durationSecs
	if hasAudio {
		total -= config.AudioBitrateKbps
	}

	kbps = int(math.Round(total))
	if kbps < config.MinVideoBitrateKbps {
		return config.MinVideoBitrateKbps, true
	}
	return kbps, false
}

// SafeDuration returns frameCount/fps, or 1 second when that is too small
// to divide by.
func SafeDuration(frameCount int, fps float64) float64 {
	if fps <= 0 {
		return 1.0
	}
	d := float64(frameCount) / fps
	if d <= minDuration || math.IsNaN(d) || math.IsInf(d, 0) {
		return 1.0
	}
	return d
}
