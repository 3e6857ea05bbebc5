package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/five82/framepress/internal/ffmpeg"
	"github.com/five82/framepress/internal/ffprobe"
	"github.com/five82/framepress/internal/logging"
	"github.com/five82/framepress/internal/mediainfo"
	"github.com/five82/framepress/internal/util"
)

func newProbeCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "probe FILE...",
		Short: "Show duration, frame rate and streams of media files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			logger := logging.Discard()
			prober := ffprobe.NewProber(ffmpeg.NewExecRunner(logger), cfg.FFprobePath, logger)

			rows := make([][]string, 0, len(args))
			for _, path := range args {
				info, err := prober.Probe(cmd.Context(), path)
				if err != nil {
					return err
				}
				duration := info.Duration
				if mediainfo.IsMP4Path(path) {
					if d, err := prober.Duration(cmd.Context(), path); err == nil {
						duration = d
					}
				}
				rows = append(rows, probeRow(path, info, duration))
			}

			headers := []string{"File", "Duration", "Resolution", "FPS", "Frames", "Codec", "Audio"}
			aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			return nil
		},
	}
}

func probeRow(path string, info *ffprobe.MediaInfo, duration float64) []string {
	frames := "-"
	if info.FrameCount > 0 {
		frames = strconv.FormatUint(info.FrameCount, 10)
	}
	audio := "no"
	if info.HasAudio {
		audio = "yes"
	}
	return []string{
		filepath.Base(path),
		fmt.Sprintf("%s (%.2fs)", util.FormatDuration(duration), duration),
		fmt.Sprintf("%dx%d", info.Width, info.Height),
		ffmpeg.FormatFloat(float64(int(info.FrameRate*1000+0.5)) / 1000),
		frames,
		info.VideoCodec,
		audio,
	}
}
