// Package audio reduces the accepted audio inputs to one on-disk file
// reference the encoder can mux.
package audio

import "fmt"

// Kind identifies which variant a Source holds.
type Kind int

const (
	// KindAbsent means no audio was supplied.
	KindAbsent Kind = iota
	// KindFile is a reference to an existing audio file.
	KindFile
	// KindWaveform is an in-memory sample array.
	KindWaveform
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindFile:
		return "file"
	case KindWaveform:
		return "waveform"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Source is a closed variant over the accepted audio inputs. Build one with
// None, FromPath, FromPaths, FromWaveform or FromBatchedWaveform.
type Source struct {
	kind       Kind
	paths      []string
	samples    [][]float32
	batched    [][][]float32
	sampleRate int
}

// None returns the absent source.
func None() Source {
	return Source{kind: KindAbsent}
}

// FromPath references an audio file. An empty path is absent.
func FromPath(path string) Source {
	if path == "" {
		return None()
	}
	return Source{kind: KindFile, paths: []string{path}}
}

// FromPaths references an audio file wrapped in a list. An empty list is
// absent; normalization uses the first entry.
func FromPaths(paths []string) Source {
	if len(paths) == 0 {
		return None()
	}
	return Source{kind: KindFile, paths: append([]string(nil), paths...)}
}

// FromWaveform wraps a 2-D sample array in either channels×frames or
// frames×channels layout. Samples are expected in [-1, 1].
func FromWaveform(samples [][]float32, sampleRate int) Source {
	return Source{kind: KindWaveform, samples: samples, sampleRate: sampleRate}
}

// FromBatchedWaveform wraps a 3-D batch×channels×frames array. Only a batch of
// one can be normalized.
func FromBatchedWaveform(samples [][][]float32, sampleRate int) Source {
	return Source{kind: KindWaveform, batched: samples, sampleRate: sampleRate}
}

// Kind reports the variant.
func (s Source) Kind() Kind {
	return s.kind
}

// Path returns the first referenced path for file sources.
func (s Source) Path() string {
	if s.kind != KindFile || len(s.paths) == 0 {
		return ""
	}
	return s.paths[0]
}

// SampleRate returns the waveform sample rate, or 0 for other variants.
func (s Source) SampleRate() int {
	if s.kind != KindWaveform {
		return 0
	}
	return s.sampleRate
}

// String describes the source for logs.
func (s Source) String() string {
	switch s.kind {
	case KindFile:
		return fmt.Sprintf("file(%s)", s.Path())
	case KindWaveform:
		return fmt.Sprintf("waveform(%d Hz)", s.sampleRate)
	default:
		return "absent"
	}
}
