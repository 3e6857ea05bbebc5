package audio

import (
	"fmt"
	"math"
	"path/filepath"

	fperrors "github.com/five82/framepress/internal/errors"
	"github.com/five82/framepress/internal/util"
)

// WAVName is the file a waveform is written to inside the target directory.
const WAVName = "temp_audio.wav"

// Normalized is the canonical audio reference handed to the encoder.
// HasAudio implies a file exists at Path.
type Normalized struct {
	Path     string
	HasAudio bool
	// Warning is a KindAudioNormalization error describing why audio was
	// dropped or adjusted. It is never fatal.
	Warning error
}

func absent(warning error) Normalized {
	return Normalized{Warning: warning}
}

// Normalize reduces src to an on-disk file. Waveforms are written to
// dir/temp_audio.wav. Any problem degrades to HasAudio=false with a Warning.
func Normalize(src Source, dir string) Normalized {
	switch src.kind {
	case KindFile:
		return normalizeFile(src.paths)
	case KindWaveform:
		return normalizeWaveform(src, dir)
	default:
		return absent(nil)
	}
}

func normalizeFile(paths []string) Normalized {
	var warning error
	if len(paths) > 1 {
		warning = fperrors.NewAudioWarning(fmt.Sprintf("%d audio paths supplied, using %s", len(paths), paths[0]), nil)
	}
	path := paths[0]
	if !util.IsReadableFile(path) {
		return absent(fperrors.NewAudioWarning(fmt.Sprintf("audio file %s not found, encoding without audio", path), nil))
	}
	return Normalized{Path: path, HasAudio: true, Warning: warning}
}

func normalizeWaveform(src Source, dir string) Normalized {
	if src.sampleRate <= 0 {
		return absent(fperrors.NewAudioWarning(fmt.Sprintf("invalid sample rate %d, encoding without audio", src.sampleRate), nil))
	}

	samples := src.samples
	if src.batched != nil {
		if len(src.batched) != 1 {
			return absent(fperrors.NewAudioWarning(fmt.Sprintf("waveform batch size %d is not 1, encoding without audio", len(src.batched)), nil))
		}
		samples = src.batched[0]
	}

	interleaved, channels, err := interleave(samples)
	if err != nil {
		return absent(fperrors.NewAudioWarning("malformed waveform, encoding without audio", err))
	}

	path := filepath.Join(dir, WAVName)
	if err := WriteWAV(path, interleaved, channels, src.sampleRate); err != nil {
		return absent(fperrors.NewAudioWarning("failed to write waveform, encoding without audio", err))
	}
	return Normalized{Path: path, HasAudio: true}
}

// interleave lays samples out frame-major as 16-bit PCM values. A 2-D array
// whose first axis is shorter than its second is read as channels×frames.
func interleave(samples [][]float32) ([]int, int, error) {
	if len(samples) == 0 || len(samples[0]) == 0 {
		return nil, 0, fmt.Errorf("empty waveform")
	}
	rows, cols := len(samples), len(samples[0])
	for i, row := range samples {
		if len(row) != cols {
			return nil, 0, fmt.Errorf("ragged waveform: row %d has %d samples, want %d", i, len(row), cols)
		}
	}

	channelFirst := rows < cols
	frames, channels := rows, cols
	if channelFirst {
		frames, channels = cols, rows
	}

	out := make([]int, 0, frames*channels)
	for f := range frames {
		for c := range channels {
			var v float32
			if channelFirst {
				v = samples[c][f]
			} else {
				v = samples[f][c]
			}
			out = append(out, toPCM16(v))
		}
	}
	return out, channels, nil
}

// toPCM16 scales a [-1, 1] sample to int16 range, saturating at the bounds.
func toPCM16(v float32) int {
	if v != v { // NaN
		return 0
	}
	scaled := math.Round(float64(v) * math.MaxInt16)
	switch {
	case scaled > math.MaxInt16:
		return math.MaxInt16
	case scaled < math.MinInt16:
		return math.MinInt16
	}
	return int(scaled)
}
