// Package imagegrid tiles generated samples into a square preview image and
// converts between float tensors and PNG.
package imagegrid

import (
	"fmt"
	"math"

	"github.com/grailbio/base/errors"
)

// GridSize returns the side length of the largest square grid that n images fill.
func GridSize(n int) int {
	if n <= 0 {
		return 0
	}
	g := int(math.Sqrt(float64(n)))
	// Guard against float rounding on perfect squares.
	for (g+1)*(g+1) <= n {
		g++
	}
	for g*g > n {
		g--
	}
	return g
}

// Merge lays out the first GridSize(len(images))^2 images row-major in a
// square grid. All images, including the dropped ones, must share one [H, W, C] shape with C in {1, 3, 4}.
// Single-channel input yields a [rows*H, cols*W] grid; otherwise the channel
// dimension is kept. Merge does not normalize values.
func Merge(images []*Image) (*Image, error) {
	if len(images) == 0 {
		return nil, errors.E(errors.Invalid, "merge: no images")
	}
	first := images[0]
	if err := first.Validate(); err != nil {
		return nil, err
	}
	if len(first.Shape) != 3 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("merge: image shape %v: want [H W C]", first.Shape))
	}
	h, w, c := first.Dims()
	if c != 1 && c != 3 && c != 4 {
		return nil, errors.E(errors.Invalid,
			fmt.Sprintf("merge: unsupported channel count %d: images must be HxWx1, HxWx3 or HxWx4", c))
	}
	// Images past the last full row are dropped but still checked.
	for i, img := range images {
		if err := img.Validate(); err != nil {
			return nil, err
		}
		if !sameShape(img.Shape, first.Shape) {
			return nil, errors.E(errors.Invalid,
				fmt.Sprintf("merge: image %d has shape %v, want %v", i, img.Shape, first.Shape))
		}
	}
	size := GridSize(len(images))
	images = images[:size*size]

	var grid *Image
	if c == 1 {
		grid = New(h*size, w*size)
	} else {
		grid = New(h*size, w*size, c)
	}
	rowLen := w * c
	gridRowLen := w * size * c
	for idx, img := range images {
		row, col := idx/size, idx%size
		for y := 0; y < h; y++ {
			dst := (row*h+y)*gridRowLen + col*rowLen
			copy(grid.Pix[dst:dst+rowLen], img.Pix[y*rowLen:(y+1)*rowLen])
		}
	}
	return grid, nil
}
