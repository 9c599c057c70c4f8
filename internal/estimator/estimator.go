// Package estimator defines the contract of the remote training runtime and
// drains the sample streams it produces.
package estimator

import (
	"context"
	"io"

	"github.com/imishinist/biggan-cli/internal/imagegrid"
	"github.com/imishinist/biggan-cli/internal/models"
)

// Estimator is the distributed training runtime. Each call blocks until the
// underlying computation has finished.
type Estimator interface {
	// Train runs the given number of training steps.
	Train(ctx context.Context, steps int64) error
	// Evaluate runs the given number of evaluation steps and returns the
	// resulting metrics.
	Evaluate(ctx context.Context, steps int64) (models.Evaluation, error)
	// Predict starts sample generation and returns the stream of generated
	// images.
	Predict(ctx context.Context) (PredictionReader, error)
}

// PredictionReader is a finite stream of generated images. Next returns
// io.EOF once the stream is exhausted; the stream may end at any point.
type PredictionReader interface {
	Next(ctx context.Context) (*imagegrid.Image, error)
}

// Collect reads up to max images from r. It stops early when r reports
// io.EOF, which is not an error. Other errors are returned as is.
func Collect(ctx context.Context, r PredictionReader, max int) ([]*imagegrid.Image, error) {
	var images []*imagegrid.Image
	for len(images) < max {
		img, err := r.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

// SliceReader serves predictions from memory.
type SliceReader struct {
	images []*imagegrid.Image
}

// NewSliceReader returns a reader over images.
func NewSliceReader(images []*imagegrid.Image) *SliceReader {
	return &SliceReader{images: images}
}

func (r *SliceReader) Next(ctx context.Context) (*imagegrid.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(r.images) == 0 {
		return nil, io.EOF
	}
	img := r.images[0]
	r.images = r.images[1:]
	return img, nil
}
