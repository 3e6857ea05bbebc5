// Package ffprobe provides functions for extracting media information using ffprobe.
package ffprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	fperrors "github.com/five82/framepress/internal/errors"
	"github.com/five82/framepress/internal/ffmpeg"
	"github.com/five82/framepress/internal/logging"
	"github.com/five82/framepress/internal/mediainfo"
	"github.com/five82/framepress/internal/util"
)

// MediaInfo contains the stream facts an encode is sized from.
type MediaInfo struct {
	Duration   float64
	FrameRate  float64
	Width      int64
	Height     int64
	FrameCount uint64
	VideoCodec string
	HasVideo   bool
	HasAudio   bool
}

// ffprobeOutput represents the JSON output from ffprobe.
type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int64  `json:"width"`
	Height       int64  `json:"height"`
	NbFrames     string `json:"nb_frames"`
	Duration     string `json:"duration"`
	AvgFrameRate string `json:"avg_frame_rate"`
	RFrameRate   string `json:"r_frame_rate"`
	Channels     int    `json:"channels"`
}

// Prober extracts media information by running ffprobe through a Runner.
type Prober struct {
	Runner ffmpeg.Runner
	Path   string
	Logger *logging.Logger
}

// NewProber creates a prober that invokes the ffprobe binary at path.
func NewProber(runner ffmpeg.Runner, path string, logger *logging.Logger) *Prober {
	if path == "" {
		path = "ffprobe"
	}
	return &Prober{Runner: runner, Path: path, Logger: logger}
}

func probeArgs(inputPath string) []string {
	return []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	}
}

// Probe returns stream information for inputPath.
// A missing, zero, non-finite or non-numeric duration is a KindProbe error.
func (p *Prober) Probe(ctx context.Context, inputPath string) (*MediaInfo, error) {
	out, err := p.Runner.Run(ctx, ffmpeg.Command{Program: p.Path, Args: probeArgs(inputPath)})
	if err != nil {
		if fperrors.IsCancelled(err) {
			return nil, err
		}
		return nil, fperrors.NewProbeError(fmt.Sprintf("ffprobe failed on %s", inputPath), err)
	}

	probe, err := parseFFprobeOutput(out.Stdout)
	if err != nil {
		return nil, fperrors.NewProbeError(fmt.Sprintf("unreadable ffprobe output for %s", inputPath), err)
	}

	info, err := extractMediaInfo(probe)
	if err != nil {
		return nil, fperrors.NewProbeError(inputPath, err)
	}
	return info, nil
}

// Duration returns the duration of inputPath in seconds. MP4-family files are
// read natively first; anything the native reader cannot handle goes to ffprobe.
func (p *Prober) Duration(ctx context.Context, inputPath string) (float64, error) {
	if mediainfo.IsMP4Path(inputPath) {
		info, err := mediainfo.ReadMP4(inputPath)
		if err == nil && info.DurationSecs > 0 {
			return info.DurationSecs, nil
		}
		logging.OrGlobal(p.Logger).Debug("Native MP4 probe failed, using ffprobe", "path", inputPath, "error", err)
	}

	info, err := p.Probe(ctx, inputPath)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}

// parseFFprobeOutput decodes ffprobe's JSON document.
func parseFFprobeOutput(data []byte) (*ffprobeOutput, error) {
	var result ffprobeOutput
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	return &result, nil
}

// extractMediaInfo reduces a parsed probe to MediaInfo.
func extractMediaInfo(probe *ffprobeOutput) (*MediaInfo, error) {
	info := &MediaInfo{}

	for i := range probe.Streams {
		stream := &probe.Streams[i]
		switch stream.CodecType {
		case "audio":
			info.HasAudio = true
		case "video":
			if info.HasVideo {
				continue
			}
			info.HasVideo = true
			info.VideoCodec = stream.CodecName
			info.Width = stream.Width
			info.Height = stream.Height
			if frames, err := strconv.ParseUint(stream.NbFrames, 10, 64); err == nil {
				info.FrameCount = frames
			}
			if rate, ok := util.ParseRational(stream.AvgFrameRate); ok {
				info.FrameRate = rate
			} else if rate, ok := util.ParseRational(stream.RFrameRate); ok {
				info.FrameRate = rate
			}
			if info.Duration == 0 {
				if d, err := strconv.ParseFloat(stream.Duration, 64); err == nil && isFinite(d) {
					info.Duration = d
				}
			}
		}
	}

	// The container duration wins over the stream's when present.
	if probe.Format.Duration != "" {
		d, err := strconv.ParseFloat(probe.Format.Duration, 64)
		if err != nil {
			return nil, fmt.Errorf("non-numeric duration %q", probe.Format.Duration)
		}
		info.Duration = d
	}

	if !isFinite(info.Duration) {
		return nil, fmt.Errorf("non-finite duration %v", info.Duration)
	}
	if info.Duration <= 0 {
		return nil, fmt.Errorf("duration is zero or missing")
	}
	return info, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
