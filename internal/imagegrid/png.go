package imagegrid

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/grailbio/base/errors"
)

// EncodePNG writes m as a PNG. Values are expected in [0, 1] and are clamped.
// 2D and single-channel images are written as grayscale, three channels as
// opaque RGB and four channels as RGBA.
func EncodePNG(w io.Writer, m *Image) error {
	if err := m.Validate(); err != nil {
		return err
	}
	h, wd, c := m.Dims()
	rect := image.Rect(0, 0, wd, h)
	var img image.Image
	switch c {
	case 1:
		gray := image.NewGray(rect)
		for y := 0; y < h; y++ {
			for x := 0; x < wd; x++ {
				gray.SetGray(x, y, color.Gray{Y: toByte(m.At(y, x, 0))})
			}
		}
		img = gray
	case 3, 4:
		rgba := image.NewNRGBA(rect)
		for y := 0; y < h; y++ {
			for x := 0; x < wd; x++ {
				px := color.NRGBA{
					R: toByte(m.At(y, x, 0)),
					G: toByte(m.At(y, x, 1)),
					B: toByte(m.At(y, x, 2)),
					A: 255,
				}
				if c == 4 {
					px.A = toByte(m.At(y, x, 3))
				}
				rgba.SetNRGBA(x, y, px)
			}
		}
		img = rgba
	default:
		return errors.E(errors.Invalid, fmt.Sprintf("png: unsupported channel count %d", c))
	}
	return png.Encode(w, img)
}

// DecodePNG reads a PNG into an [H, W, C] image with values in [0, 1].
// Grayscale files decode to one channel, files with any transparent pixel to
// four and everything else to three.
func DecodePNG(r io.Reader) (*Image, error) {
	src, err := png.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode png: %w", err)
	}
	b := src.Bounds()
	h, w := b.Dy(), b.Dx()

	switch src.(type) {
	case *image.Gray, *image.Gray16:
		m := New(h, w, 1)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				g := color.Gray16Model.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
				m.Set(y, x, 0, float32(g.Y)/0xffff)
			}
		}
		return m, nil
	}

	c := 3
	for y := 0; y < h && c == 3; y++ {
		for x := 0; x < w; x++ {
			if _, _, _, a := src.At(b.Min.X+x, b.Min.Y+y).RGBA(); a != 0xffff {
				c = 4
				break
			}
		}
	}
	m := New(h, w, c)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := color.NRGBA64Model.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
			m.Set(y, x, 0, float32(px.R)/0xffff)
			m.Set(y, x, 1, float32(px.G)/0xffff)
			m.Set(y, x, 2, float32(px.B)/0xffff)
			if c == 4 {
				m.Set(y, x, 3, float32(px.A)/0xffff)
			}
		}
	}
	return m, nil
}

func toByte(v float32) uint8 {
	v = v*255 + 0.5
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
