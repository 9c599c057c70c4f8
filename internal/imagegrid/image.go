package imagegrid

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Image is a dense float32 tensor laid out row-major. Samples produced by the
// generator have shape [H, W, C]; single-channel grids have shape [H, W].
type Image struct {
	Shape []int     `json:"shape"`
	Pix   []float32 `json:"data"`
}

// New allocates a zeroed image with the given shape.
func New(shape ...int) *Image {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &Image{Shape: append([]int(nil), shape...), Pix: make([]float32, n)}
}

// Dims returns height, width and channel count. A 2D image reports one channel.
func (m *Image) Dims() (h, w, c int) {
	switch len(m.Shape) {
	case 2:
		return m.Shape[0], m.Shape[1], 1
	case 3:
		return m.Shape[0], m.Shape[1], m.Shape[2]
	}
	return 0, 0, 0
}

// At returns the value at row y, column x and channel ch.
func (m *Image) At(y, x, ch int) float32 {
	_, w, c := m.Dims()
	return m.Pix[(y*w+x)*c+ch]
}

// Set stores v at row y, column x and channel ch.
func (m *Image) Set(y, x, ch int, v float32) {
	_, w, c := m.Dims()
	m.Pix[(y*w+x)*c+ch] = v
}

// Validate checks that the image is a 2D or 3D tensor whose data matches its shape.
func (m *Image) Validate() error {
	if m == nil {
		return errors.E(errors.Invalid, "nil image")
	}
	if len(m.Shape) != 2 && len(m.Shape) != 3 {
		return errors.E(errors.Invalid, fmt.Sprintf("image shape %v: want [H W] or [H W C]", m.Shape))
	}
	n := 1
	for _, d := range m.Shape {
		if d <= 0 {
			return errors.E(errors.Invalid, fmt.Sprintf("image shape %v: non-positive dimension", m.Shape))
		}
		n *= d
	}
	if len(m.Pix) != n {
		return errors.E(errors.Invalid, fmt.Sprintf("image shape %v: have %d values, want %d", m.Shape, len(m.Pix), n))
	}
	return nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Transform maps pixel values from [0, 1] into the model range [-1, 1].
func Transform(m *Image) *Image {
	out := &Image{Shape: append([]int(nil), m.Shape...), Pix: make([]float32, len(m.Pix))}
	for i, v := range m.Pix {
		out.Pix[i] = v*2 - 1
	}
	return out
}

// InverseTransform maps model output from [-1, 1] back to [0, 1]. Values
// outside the range are passed through the same formula unchecked.
func InverseTransform(m *Image) *Image {
	out := &Image{Shape: append([]int(nil), m.Shape...), Pix: make([]float32, len(m.Pix))}
	for i, v := range m.Pix {
		out.Pix[i] = (v + 1) / 2
	}
	return out
}
