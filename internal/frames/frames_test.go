package frames

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	fperrors "github.com/five82/framepress/internal/errors"
	"github.com/five82/framepress/internal/ffmpeg"
	"github.com/five82/framepress/internal/ffmpeg/ffmpegtest"
)

func solidFrame(w, h, channels int, v float32) Frame {
	pix := make([]float32, w*h*channels)
	for i := range pix {
		pix[i] = v
	}
	return Frame{Width: w, Height: h, Channels: channels, Pix: pix}
}

func TestSequenceValidate(t *testing.T) {
	tests := []struct {
		name    string
		seq     Sequence
		wantErr bool
	}{
		{"valid rgb", Sequence{solidFrame(4, 2, 3, 0.5), solidFrame(4, 2, 3, 0.1)}, false},
		{"valid gray", Sequence{solidFrame(3, 3, 1, 0)}, false},
		{"empty", Sequence{}, true},
		{"two channels", Sequence{solidFrame(2, 2, 2, 0)}, true},
		{"short pixels", Sequence{{Width: 2, Height: 2, Channels: 3, Pix: make([]float32, 5)}}, true},
		{"size mismatch", Sequence{solidFrame(4, 2, 3, 0), solidFrame(2, 4, 3, 0)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.seq.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !fperrors.IsKind(err, fperrors.KindValidation) {
				t.Errorf("error kind = %v, want validation", err)
			}
		})
	}
}

func TestFrameImageRoundTrip(t *testing.T) {
	f := Frame{Width: 2, Height: 1, Channels: 3, Pix: []float32{1, 0, 0, 0, 0, 1}}
	img := f.Image()
	if got := img.NRGBAAt(0, 0); got != (color.NRGBA{R: 255, A: 255}) {
		t.Errorf("pixel(0,0) = %v", got)
	}
	if got := img.NRGBAAt(1, 0); got != (color.NRGBA{B: 255, A: 255}) {
		t.Errorf("pixel(1,0) = %v", got)
	}

	back := FromImage(img)
	if back.Width != 2 || back.Height != 1 || back.Channels != 3 {
		t.Fatalf("FromImage size = %dx%dx%d", back.Width, back.Height, back.Channels)
	}
	for i, v := range f.Pix {
		if back.Pix[i] != v {
			t.Errorf("Pix[%d] = %v, want %v", i, back.Pix[i], v)
		}
	}
}

func TestTo8Saturates(t *testing.T) {
	if to8(-0.5) != 0 || to8(1.5) != 255 || to8(0.5) != 128 {
		t.Errorf("to8 = %d %d %d", to8(-0.5), to8(1.5), to8(0.5))
	}
}

func TestPadEven(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	for y := range 3 {
		for x := range 3 {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 50), G: uint8(y * 50), A: 255})
		}
	}

	padded := PadEven(img)
	if b := padded.Bounds(); b.Dx() != 4 || b.Dy() != 4 {
		t.Fatalf("padded size = %dx%d, want 4x4", b.Dx(), b.Dy())
	}
	if got, want := padded.NRGBAAt(3, 1), img.NRGBAAt(2, 1); got != want {
		t.Errorf("extra column = %v, want %v", got, want)
	}
	if got, want := padded.NRGBAAt(1, 3), img.NRGBAAt(1, 2); got != want {
		t.Errorf("extra row = %v, want %v", got, want)
	}

	even := image.NewNRGBA(image.Rect(0, 0, 2, 4))
	if PadEven(even) != even {
		t.Error("even image should be returned unchanged")
	}
}

func TestWriteAndLoad(t *testing.T) {
	dir := t.TempDir()
	m := NewMaterializer(&ffmpegtest.Runner{}, "", nil)

	seq := Sequence{solidFrame(5, 3, 3, 0.2), solidFrame(5, 3, 3, 0.8)}
	w, h, err := m.Write(seq, dir)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if w != 6 || h != 4 {
		t.Errorf("written size = %dx%d, want 6x4", w, h)
	}
	for _, name := range []string{"frame_00000.png", "frame_00001.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "frame_00002.png")); !os.IsNotExist(err) {
		t.Error("two frames should not produce frame_00002.png")
	}

	loaded, err := m.Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d frames, want 2", len(loaded))
	}
	if loaded[1].Width != 6 || loaded[1].Height != 4 {
		t.Errorf("loaded size = %dx%d", loaded[1].Width, loaded[1].Height)
	}
}

func TestWriteRejectsInvalid(t *testing.T) {
	m := NewMaterializer(&ffmpegtest.Runner{}, "", nil)
	if _, _, err := m.Write(nil, t.TempDir()); !fperrors.IsKind(err, fperrors.KindValidation) {
		t.Errorf("Write(nil) error = %v, want validation", err)
	}
	if _, _, err := m.Write(Sequence{solidFrame(2, 2, 3, 0)}, filepath.Join(t.TempDir(), "missing")); !fperrors.IsKind(err, fperrors.KindMaterialization) {
		t.Errorf("Write() into missing dir error = %v, want materialization", err)
	}
}

func TestBuildSource(t *testing.T) {
	dir := t.TempDir()
	runner := &ffmpegtest.Runner{}
	m := NewMaterializer(runner, "/usr/bin/ffmpeg", nil)

	src, err := m.BuildSource(context.Background(), dir, 24, 48)
	if err != nil {
		t.Fatalf("BuildSource() error = %v", err)
	}
	if src.Path != filepath.Join(dir, "clean_video.mp4") || src.FrameCount != 48 || src.FrameRate != 24 {
		t.Errorf("SourceReady = %+v", src)
	}

	cmds := runner.Commands()
	if len(cmds) != 1 {
		t.Fatalf("ran %d commands, want 1", len(cmds))
	}
	args := cmds[0].Args
	for _, want := range [][]string{
		{"-framerate", "24", "-start_number", "0", "-i", filepath.Join(dir, "frame_%05d.png")},
		{"-c:v", "libx264"},
		{"-pix_fmt", "yuv420p"},
		{"-an", src.Path},
	} {
		if !ffmpegtest.HasArgs(args, want...) {
			t.Errorf("args %v missing %v", args, want)
		}
	}
	if cmds[0].Program != "/usr/bin/ffmpeg" {
		t.Errorf("Program = %s", cmds[0].Program)
	}
}

func TestBuildSourceFailure(t *testing.T) {
	runner := &ffmpegtest.Runner{Handler: func(cmd ffmpeg.Command) (ffmpeg.Output, error) {
		return ffmpegtest.Fail(cmd, 1, "Could not find frame_00000.png")
	}}
	m := NewMaterializer(runner, "", nil)

	_, err := m.BuildSource(context.Background(), t.TempDir(), 24, 10)
	if !fperrors.IsKind(err, fperrors.KindMaterialization) {
		t.Fatalf("error = %v, want materialization", err)
	}
	cmdErr, ok := fperrors.AsCommandError(err)
	if !ok || cmdErr.Stderr != "Could not find frame_00000.png" {
		t.Errorf("stderr not preserved: %v", err)
	}

	if _, err := m.BuildSource(context.Background(), t.TempDir(), 0, 10); err == nil {
		t.Error("expected error for zero frame rate")
	}
}

func TestExtract(t *testing.T) {
	dir := t.TempDir()
	runner := &ffmpegtest.Runner{Handler: func(cmd ffmpeg.Command) (ffmpeg.Output, error) {
		seq := Sequence{solidFrame(2, 2, 3, 0), solidFrame(2, 2, 3, 1), solidFrame(2, 2, 3, 0.5)}
		if _, _, err := NewMaterializer(nil, "", nil).Write(seq, dir); err != nil {
			return ffmpegtest.Fail(cmd, 1, err.Error())
		}
		return ffmpeg.Output{}, nil
	}}
	m := NewMaterializer(runner, "", nil)

	n, err := m.Extract(context.Background(), "/videos/in.mkv", dir)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Extract() = %d frames, want 3", n)
	}
	args := runner.Commands()[0].Args
	if !ffmpegtest.HasArgs(args, "-i", "/videos/in.mkv", "-vsync", "vfr", "-vf", ffmpeg.EvenPadFilter) {
		t.Errorf("args = %v", args)
	}
	if !ffmpegtest.HasArgs(args, "-start_number", "0", filepath.Join(dir, "frame_%05d.png")) {
		t.Errorf("extracted frames should be numbered from 0: %v", args)
	}
}
