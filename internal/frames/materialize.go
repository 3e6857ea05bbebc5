package frames

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	fperrors "github.com/five82/framepress/internal/errors"
	"github.com/five82/framepress/internal/ffmpeg"
	"github.com/five82/framepress/internal/logging"
	"github.com/five82/framepress/internal/workspace"
)

// SourceReady proves the clean intermediate video exists. Encode passes
// take it as input so they cannot run before materialization.
type SourceReady struct {
	Path       string
	FrameCount int
	FrameRate  float64
	Width      int
	Height     int
}

// Materializer writes frames to disk and muxes them into the clean source.
type Materializer struct {
	Runner     ffmpeg.Runner
	FFmpegPath string
	Logger     *logging.Logger

	// Progress receives ffmpeg progress while the clean source is built.
	Progress ffmpeg.ProgressCallback
}

// NewMaterializer creates a materializer that runs ffmpegPath through runner.
func NewMaterializer(runner ffmpeg.Runner, ffmpegPath string, logger *logging.Logger) *Materializer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Materializer{Runner: runner, FFmpegPath: ffmpegPath, Logger: logger}
}

var pngEncoder = png.Encoder{CompressionLevel: png.BestSpeed}

// Write stores each frame as dir/frame_%05d.png, numbered from 0. Odd sizes
// are padded to even. It returns the written (padded) dimensions.
func (m *Materializer) Write(seq Sequence, dir string) (width, height int, err error) {
	if err := seq.Validate(); err != nil {
		return 0, 0, err
	}

	for i, f := range seq {
		img := PadEven(f.Image())
		if err := writePNG(workspace.FramePath(dir, i), img); err != nil {
			return 0, 0, fperrors.NewMaterializationError(fmt.Sprintf("write frame %d", i), err)
		}
		width, height = img.Bounds().Dx(), img.Bounds().Dy()
	}

	logging.OrGlobal(m.Logger).Debug("Frames written", "count", len(seq), "width", width, "height", height)
	return width, height, nil
}

func writePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return pngEncoder.Encode(f, img)
}

// BuildSource muxes the frames in dir into dir/clean_video.mp4: constant
// frame rate, yuv420p, libx264, no audio.
func (m *Materializer) BuildSource(ctx context.Context, dir string, fps float64, frameCount int) (SourceReady, error) {
	if frameCount <= 0 {
		return SourceReady{}, fperrors.NewMaterializationError("no frames to mux", nil)
	}
	if fps <= 0 {
		return SourceReady{}, fperrors.NewMaterializationError(fmt.Sprintf("invalid frame rate %g", fps), nil)
	}

	out := filepath.Join(dir, workspace.CleanVideoName)
	args := ffmpeg.NewArgs().
		FrameRate(fps).
		Add("-start_number", "0").
		Input(filepath.Join(dir, workspace.FramePattern)).
		VideoCodec("libx264").
		PixelFormat("yuv420p").
		NoAudio().
		Output(out)

	cmd := ffmpeg.Command{
		Program:     m.FFmpegPath,
		Args:        args,
		TotalFrames: uint64(frameCount),
		Progress:    m.Progress,
	}
	if _, err := m.Runner.Run(ctx, cmd); err != nil {
		if fperrors.IsCancelled(err) {
			return SourceReady{}, err
		}
		return SourceReady{}, fperrors.NewMaterializationError("build clean source", err)
	}

	logging.OrGlobal(m.Logger).Debug("Clean source ready", "path", out, "frames", frameCount, "fps", fps)
	return SourceReady{Path: out, FrameCount: frameCount, FrameRate: fps}, nil
}

// Extract decodes every frame of videoPath into dir as PNG files and returns
// how many were written. Odd sizes are padded to even.
func (m *Materializer) Extract(ctx context.Context, videoPath, dir string) (int, error) {
	args := ffmpeg.NewArgs().
		Input(videoPath).
		Add("-vsync", "vfr").
		Filter(ffmpeg.NewVideoFilterChain().AddEvenPad()).
		Add("-start_number", "0").
		Output(filepath.Join(dir, workspace.FramePattern))

	if _, err := m.Runner.Run(ctx, ffmpeg.Command{Program: m.FFmpegPath, Args: args}); err != nil {
		if fperrors.IsCancelled(err) {
			return 0, err
		}
		return 0, fperrors.NewMaterializationError(fmt.Sprintf("extract frames from %s", videoPath), err)
	}

	files, err := listFrames(dir)
	if err != nil {
		return 0, fperrors.NewMaterializationError("list extracted frames", err)
	}
	logging.OrGlobal(m.Logger).Debug("Frames extracted", "source", videoPath, "count", len(files))
	return len(files), nil
}

// Load reads the frame files in dir back into a Sequence in name order.
func (m *Materializer) Load(dir string) (Sequence, error) {
	files, err := listFrames(dir)
	if err != nil {
		return nil, fperrors.NewMaterializationError("list frames", err)
	}
	return LoadFiles(files)
}

// LoadFiles decodes PNG or JPEG images into a Sequence in the given order.
func LoadFiles(paths []string) (Sequence, error) {
	seq := make(Sequence, 0, len(paths))
	for _, path := range paths {
		f, err := readImage(path)
		if err != nil {
			return nil, fperrors.NewMaterializationError(fmt.Sprintf("read frame %s", filepath.Base(path)), err)
		}
		seq = append(seq, f)
	}
	return seq, nil
}

func readImage(path string) (Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return Frame{}, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return Frame{}, err
	}
	return FromImage(img), nil
}

// listFrames returns the frame_*.png files in dir sorted by name.
func listFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.Type().IsRegular() && strings.HasPrefix(name, "frame_") && strings.HasSuffix(name, ".png") {
			files = append(files, filepath.Join(dir, name))
		}
	}
	sort.Strings(files)
	return files, nil
}
