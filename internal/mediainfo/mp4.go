// Package mediainfo reads stream timing directly from MP4 containers.
package mediainfo

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Eyevinn/mp4ff/mp4"
)

// Info holds the container-level facts needed to size an encode.
type Info struct {
	DurationSecs float64
	FrameRate    float64
	Width        int
	Height       int
	SampleCount  uint64
	HasVideo     bool
	HasAudio     bool
}

// IsMP4Path reports whether path has an ISO-BMFF extension this package reads.
func IsMP4Path(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".m4v", ".mov":
		return true
	}
	return false
}

// ReadMP4 parses the movie header of an MP4 file.
func ReadMP4(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return ReadMP4FromReader(f)
}

// ReadMP4FromReader parses the movie header from r.
func ReadMP4FromReader(r io.ReadSeeker) (*Info, error) {
	// Sample data is never read, so mdat stays on disk.
	file, err := mp4.DecodeFile(r, mp4.WithDecodeMode(mp4.DecModeLazyMdat))
	if err != nil {
		return nil, fmt.Errorf("decode mp4: %w", err)
	}

	moov := file.Moov
	if moov == nil && file.Init != nil {
		moov = file.Init.Moov
	}
	if moov == nil {
		return nil, fmt.Errorf("no moov box found")
	}
	return infoFromMoov(moov)
}

func infoFromMoov(moov *mp4.MoovBox) (*Info, error) {
	info := &Info{}

	if moov.Mvhd != nil && moov.Mvhd.Timescale > 0 {
		info.DurationSecs = float64(moov.Mvhd.Duration) / float64(moov.Mvhd.Timescale)
	}

	for _, trak := range moov.Traks {
		if trak.Mdia == nil || trak.Mdia.Hdlr == nil {
			continue
		}
		switch trak.Mdia.Hdlr.HandlerType {
		case "soun":
			info.HasAudio = true
		case "vide":
			if info.HasVideo {
				continue
			}
			info.HasVideo = true
			readVideoTrack(trak, info)
		}
	}

	if !info.HasVideo {
		return nil, fmt.Errorf("no video track found")
	}
	return info, nil
}

func readVideoTrack(trak *mp4.TrakBox, info *Info) {
	if trak.Tkhd != nil {
		info.Width = int(uint32(trak.Tkhd.Width) >> 16)
		info.Height = int(uint32(trak.Tkhd.Height) >> 16)
	}

	var timescale uint32
	if trak.Mdia.Mdhd != nil {
		timescale = trak.Mdia.Mdhd.Timescale
		// The track duration is more precise than the movie header's.
		if timescale > 0 && trak.Mdia.Mdhd.Duration > 0 {
			info.DurationSecs = float64(trak.Mdia.Mdhd.Duration) / float64(timescale)
		}
	}

	if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stts == nil {
		return
	}
	stts := trak.Mdia.Minf.Stbl.Stts
	info.FrameRate, info.SampleCount = frameRateFromStts(stts.SampleCount, stts.SampleTimeDelta, timescale)
}

// frameRateFromStts derives the average frame rate from decode time-to-sample
// runs. Returns 0 when the table is empty or the timescale is unknown.
func frameRateFromStts(counts, deltas []uint32, timescale uint32) (float64, uint64) {
	var samples, ticks uint64
	for i := range counts {
		if i >= len(deltas) {
			break
		}
		samples += uint64(counts[i])
		ticks += uint64(counts[i]) * uint64(deltas[i])
	}
	if samples == 0 || ticks == 0 || timescale == 0 {
		return 0, samples
	}
	return float64(samples) * float64(timescale) / float64(ticks), samples
}
