// Package frames moves raster frames between memory, image files and the
// clean intermediate video every encode starts from.
package frames

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	fperrors "github.com/five82/framepress/internal/errors"
)

// Frame is one image in height×width×channels order with values in [0, 1].
type Frame struct {
	Width    int
	Height   int
	Channels int
	Pix      []float32
}

// Sequence is an ordered list of frames sharing one size.
type Sequence []Frame

// Validate checks that every frame is well formed and all share dimensions.
func (s Sequence) Validate() error {
	if len(s) == 0 {
		return fperrors.NewValidationError("frame sequence is empty")
	}
	first := s[0]
	for i, f := range s {
		switch f.Channels {
		case 1, 3, 4:
		default:
			return fperrors.NewValidationError(fmt.Sprintf("frame %d has %d channels, want 1, 3 or 4", i, f.Channels))
		}
		if f.Width <= 0 || f.Height <= 0 {
			return fperrors.NewValidationError(fmt.Sprintf("frame %d has invalid size %dx%d", i, f.Width, f.Height))
		}
		if len(f.Pix) != f.Width*f.Height*f.Channels {
			return fperrors.NewValidationError(fmt.Sprintf("frame %d has %d values, want %d", i, len(f.Pix), f.Width*f.Height*f.Channels))
		}
		if f.Width != first.Width || f.Height != first.Height {
			return fperrors.NewValidationError(fmt.Sprintf("frame %d is %dx%d, first frame is %dx%d", i, f.Width, f.Height, first.Width, first.Height))
		}
	}
	return nil
}

// Size returns the shared frame dimensions, or zeros for an empty sequence.
func (s Sequence) Size() (width, height int) {
	if len(s) == 0 {
		return 0, 0
	}
	return s[0].Width, s[0].Height
}

func to8(v float32) uint8 {
	if v != v || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(math.Round(float64(v) * 255))
}

// Image converts the frame to an 8-bit NRGBA image.
func (f Frame) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := range f.Height {
		for x := range f.Width {
			base := (y*f.Width + x) * f.Channels
			var c color.NRGBA
			switch f.Channels {
			case 1:
				g := to8(f.Pix[base])
				c = color.NRGBA{R: g, G: g, B: g, A: 255}
			case 3:
				c = color.NRGBA{R: to8(f.Pix[base]), G: to8(f.Pix[base+1]), B: to8(f.Pix[base+2]), A: 255}
			default:
				c = color.NRGBA{R: to8(f.Pix[base]), G: to8(f.Pix[base+1]), B: to8(f.Pix[base+2]), A: to8(f.Pix[base+3])}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// FromImage converts any decoded image into a 3-channel frame.
func FromImage(src image.Image) Frame {
	b := src.Bounds()
	img := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(img, img.Bounds(), src, b.Min, draw.Src)

	f := Frame{Width: b.Dx(), Height: b.Dy(), Channels: 3, Pix: make([]float32, b.Dx()*b.Dy()*3)}
	for y := range f.Height {
		for x := range f.Width {
			c := img.NRGBAAt(x, y)
			base := (y*f.Width + x) * 3
			f.Pix[base] = float32(c.R) / 255
			f.Pix[base+1] = float32(c.G) / 255
			f.Pix[base+2] = float32(c.B) / 255
		}
	}
	return f
}

// PadEven grows img to even dimensions by repeating its last column and row,
// since yuv420p cannot represent odd sizes. Even images are returned as is.
func PadEven(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w%2 == 0 && h%2 == 0 {
		return img
	}
	pw, ph := w+w%2, h+h%2
	dst := image.NewNRGBA(image.Rect(0, 0, pw, ph))
	draw.Draw(dst, image.Rect(0, 0, w, h), img, b.Min, draw.Src)
	if pw > w {
		draw.Draw(dst, image.Rect(w, 0, pw, h), img, image.Pt(b.Min.X+w-1, b.Min.Y), draw.Src)
	}
	if ph > h {
		draw.Draw(dst, image.Rect(0, h, pw, ph), dst, image.Pt(0, h-1), draw.Src)
	}
	return dst
}
