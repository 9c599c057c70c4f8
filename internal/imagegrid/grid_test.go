package imagegrid

import (
	"bytes"
	"math"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

// filled returns an [h, w, c] image whose every value is v.
func filled(h, w, c int, v float32) *Image {
	m := New(h, w, c)
	for i := range m.Pix {
		m.Pix[i] = v
	}
	return m
}

func batch(n, h, w, c int) []*Image {
	images := make([]*Image, n)
	for i := range images {
		images[i] = filled(h, w, c, float32(i))
	}
	return images
}

func TestGridSize(t *testing.T) {
	for _, tc := range []struct {
		n, want int
	}{
		{0, 0}, {1, 1}, {3, 1}, {4, 2}, {8, 2}, {9, 3}, {10, 3}, {16, 4}, {63, 7}, {64, 8},
	} {
		expect.EQ(t, GridSize(tc.n), tc.want)
	}
}

func TestMergeShape(t *testing.T) {
	for n := 1; n <= 20; n++ {
		grid, err := Merge(batch(n, 2, 3, 3))
		assert.NoError(t, err)
		g := GridSize(n)
		expect.EQ(t, grid.Shape, []int{g * 2, g * 3, 3})
		for y := 0; y < 2; y++ {
			for x := 0; x < 3; x++ {
				for ch := 0; ch < 3; ch++ {
					expect.EQ(t, grid.At(y, x, ch), float32(0))
				}
			}
		}
	}
}

func TestMergeLayout(t *testing.T) {
	images := batch(10, 2, 2, 3)
	grid, err := Merge(images)
	assert.NoError(t, err)
	expect.EQ(t, grid.Shape, []int{6, 6, 3})
	// Image idx lands at row idx/3, col idx%3; image 9 is dropped.
	for idx := 0; idx < 9; idx++ {
		row, col := idx/3, idx%3
		for y := 0; y < 2; y++ {
			for x := 0; x < 2; x++ {
				expect.EQ(t, grid.At(row*2+y, col*2+x, 1), float32(idx))
			}
		}
	}
	for _, v := range grid.Pix {
		if v == 9 {
			t.Fatal("image 9 should not be placed")
		}
	}
}

func TestMergeSixteen(t *testing.T) {
	grid, err := Merge(batch(16, 4, 4, 4))
	assert.NoError(t, err)
	expect.EQ(t, grid.Shape, []int{16, 16, 4})
	expect.EQ(t, grid.At(15, 15, 3), float32(15))
}

func TestMergeSingleChannel(t *testing.T) {
	grid, err := Merge(batch(4, 3, 5, 1))
	assert.NoError(t, err)
	expect.EQ(t, grid.Shape, []int{6, 10})
	expect.EQ(t, grid.At(0, 0, 0), float32(0))
	expect.EQ(t, grid.At(0, 5, 0), float32(1))
	expect.EQ(t, grid.At(3, 0, 0), float32(2))
	expect.EQ(t, grid.At(5, 9, 0), float32(3))
}

func TestMergeErrors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		images []*Image
	}{
		{"empty", nil},
		{"two channels", batch(4, 2, 2, 2)},
		{"five channels", batch(1, 2, 2, 5)},
		{"flat", []*Image{New(2, 2)}},
		{"short data", []*Image{{Shape: []int{2, 2, 3}, Pix: make([]float32, 5)}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Merge(tc.images)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(errors.Invalid, err) {
				t.Errorf("got %v, want invalid error", err)
			}
		})
	}

	images := []*Image{filled(2, 2, 3, 0), filled(2, 2, 3, 0), filled(2, 2, 3, 0), filled(3, 2, 3, 0)}
	if _, err := Merge(images); !errors.Is(errors.Invalid, err) {
		t.Errorf("got %v, want invalid error for mismatched shapes", err)
	}
}

func TestMergeChecksDroppedImages(t *testing.T) {
	for _, tc := range []struct {
		name  string
		extra *Image
	}{
		{"two channels", filled(2, 2, 2, 0)},
		{"other size", filled(3, 2, 3, 0)},
		{"short data", &Image{Shape: []int{2, 2, 3}, Pix: make([]float32, 5)}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			// Five images tile as 2x2, so the fifth is not placed.
			images := append(batch(4, 2, 2, 3), tc.extra)
			grid, err := Merge(images)
			if !errors.Is(errors.Invalid, err) {
				t.Fatalf("got grid %v, err %v; want invalid error", grid, err)
			}
		})
	}
}

func TestTransformRoundTrip(t *testing.T) {
	m := New(1, 21, 1)
	for i := range m.Pix {
		m.Pix[i] = -1 + float32(i)/10
	}
	back := Transform(InverseTransform(m))
	for i := range m.Pix {
		if d := math.Abs(float64(back.Pix[i] - m.Pix[i])); d > 1e-6 {
			t.Errorf("index %d: got %v, want %v", i, back.Pix[i], m.Pix[i])
		}
	}
	inv := InverseTransform(m)
	expect.EQ(t, inv.Pix[0], float32(0))
	expect.EQ(t, inv.Pix[20], float32(1))
	// The input is not modified.
	expect.EQ(t, m.Pix[0], float32(-1))
}

func TestInverseTransformOutOfRange(t *testing.T) {
	m := &Image{Shape: []int{1, 2, 1}, Pix: []float32{-3, 3}}
	inv := InverseTransform(m)
	expect.EQ(t, inv.Pix, []float32{-1, 2})
}

func TestPNGRoundTrip(t *testing.T) {
	for _, c := range []int{1, 3, 4} {
		m := New(3, 4, c)
		for i := range m.Pix {
			m.Pix[i] = float32(i%5) / 4
		}
		if c == 4 {
			for y := 0; y < 3; y++ {
				for x := 0; x < 4; x++ {
					m.Set(y, x, 3, 0.5)
				}
			}
		}
		var buf bytes.Buffer
		assert.NoError(t, EncodePNG(&buf, m))
		got, err := DecodePNG(&buf)
		assert.NoError(t, err)
		expect.EQ(t, got.Shape, m.Shape)
		for i := range m.Pix {
			if d := math.Abs(float64(got.Pix[i] - m.Pix[i])); d > 1.0/255 {
				t.Errorf("channels %d index %d: got %v, want %v", c, i, got.Pix[i], m.Pix[i])
			}
		}
	}
}

func TestEncodePNGGrid2D(t *testing.T) {
	grid, err := Merge(batch(4, 2, 2, 1))
	assert.NoError(t, err)
	var buf bytes.Buffer
	assert.NoError(t, EncodePNG(&buf, grid))
	got, err := DecodePNG(&buf)
	assert.NoError(t, err)
	expect.EQ(t, got.Shape, []int{4, 4, 1})
}
