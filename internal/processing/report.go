package processing

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/five82/framepress/internal/audio"
	"github.com/five82/framepress/internal/config"
	"github.com/five82/framepress/internal/encode"
	fperrors "github.com/five82/framepress/internal/errors"
	"github.com/five82/framepress/internal/reporter"
)

func describeSource(req Request) string {
	if req.VideoPathIn != "" {
		return filepath.Base(req.VideoPathIn)
	}
	return fmt.Sprintf("%d in-memory frames", len(req.Frames))
}

func describeAudio(src audio.Source, norm audio.Normalized) string {
	if !norm.HasAudio {
		if src.Kind() == audio.KindAbsent {
			return "none"
		}
		return fmt.Sprintf("none (%s dropped)", src.Kind())
	}
	if src.Kind() == audio.KindWaveform {
		return fmt.Sprintf("waveform, %d Hz", src.SampleRate())
	}
	return filepath.Base(norm.Path)
}

func encodingSummary(r encode.Resolved, preset config.Preset, targetMB float64, hasAudio bool) reporter.EncodingConfigSummary {
	s := reporter.EncodingConfigSummary{
		Mode:             r.Mode.String(),
		Encoder:          r.Codec.String(),
		Preset:           preset.ForCodec(r.Codec),
		PixelFormat:      "yuv420p",
		AudioDescription: "none",
	}
	switch r.Mode {
	case encode.ModeTargetSize:
		s.Quality = fmt.Sprintf("%d kbps, two-pass", r.VideoBitrateKbps)
		s.TargetSize = fmt.Sprintf("%g MB", targetMB)
	case encode.ModeGPU:
		s.Quality = fmt.Sprintf("CQ %d", r.CRF)
	default:
		s.Quality = fmt.Sprintf("CRF %d", r.CRF)
	}
	if r.Corrected {
		s.Encoder = fmt.Sprintf("%s (requested %s)", r.Codec, r.RequestedCodec)
	}
	if hasAudio {
		s.AudioCodec = "AAC"
		s.AudioDescription = fmt.Sprintf("%d kbps", config.AudioBitrateKbps)
	}
	return s
}

// errorReport turns an encode failure into a user-facing report.
func errorReport(err error) reporter.ReporterError {
	rep := reporter.ReporterError{Title: "Encode Error", Message: err.Error()}

	var core *fperrors.CoreError
	if !errors.As(err, &core) {
		return rep
	}
	switch core.Kind {
	case fperrors.KindCancelled:
		rep.Title = "Cancelled"
		rep.Message = "Encode cancelled before completion"
	case fperrors.KindValidation, fperrors.KindConfig:
		rep.Title = "Invalid Request"
	case fperrors.KindWorkspace:
		rep.Title = "Workspace Error"
		rep.Suggestion = "Another encode may be using the same workspace root; wait for it or choose a different root"
	case fperrors.KindProbe:
		rep.Title = "Analysis Error"
		rep.Suggestion = "Check that the input is a readable video and ffprobe is installed"
	case fperrors.KindMaterialization:
		rep.Title = "Frame Error"
		rep.Suggestion = "Check free space in the workspace root"
	case fperrors.KindEncode:
		rep.Title = "Encoding Error"
		rep.Suggestion = "Check the ffmpeg output in the log file for details"
	case fperrors.KindIO:
		rep.Title = "File Error"
	}
	if cmdErr, ok := fperrors.AsCommandError(err); ok {
		rep.Context = cmdErr.CommandLine()
	}
	return rep
}
