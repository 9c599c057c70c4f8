// Package runner drives the per-epoch train, evaluate and sample cycle of a
// GAN training session.
//
// Every phase blocks until the estimator finishes it. Nothing is retried: the
// first error from any phase ends the run, leaving the lines already written
// to the eval log as a partial record.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"

	"github.com/imishinist/biggan-cli/internal/estimator"
	"github.com/imishinist/biggan-cli/internal/evallog"
	"github.com/imishinist/biggan-cli/internal/imagegrid"
	"github.com/imishinist/biggan-cli/internal/scorer"
	"github.com/imishinist/biggan-cli/internal/tracker"
)

// LatestSampleName is overwritten with the newest sample grid every epoch.
const LatestSampleName = "latest_sample.png"

// InceptionScoreMetric is the tracker key for the per-epoch inception score.
const InceptionScoreMetric = "inception_score"

// Options controls the shape of a run.
type Options struct {
	Epochs     int
	TrainSteps int64
	EvalSteps  int64
	SampleNum  int
	// ResultDir receives eval.txt and the sample images.
	ResultDir string
}

// Runner owns the global step counter of a training session.
type Runner struct {
	opts      Options
	estimator estimator.Estimator
	scorer    scorer.Scorer
	tracker   tracker.Tracker
	evalLog   *evallog.Writer
	step      int64
}

// New returns a runner. A nil scorer disables inception scoring and a nil
// tracker is replaced by tracker.Nop.
func New(opts Options, est estimator.Estimator, sc scorer.Scorer, tr tracker.Tracker) *Runner {
	if tr == nil {
		tr = tracker.Nop
	}
	return &Runner{
		opts:      opts,
		estimator: est,
		scorer:    sc,
		tracker:   tr,
		evalLog:   evallog.New(opts.ResultDir),
	}
}

// Step returns the number of training steps run so far.
func (r *Runner) Step() int64 {
	return r.step
}

// Run executes all configured epochs in order.
func (r *Runner) Run(ctx context.Context) error {
	if !isRemote(r.opts.ResultDir) {
		if err := os.MkdirAll(r.opts.ResultDir, 0755); err != nil {
			return fmt.Errorf("failed to create result directory %s: %w", r.opts.ResultDir, err)
		}
	}
	for epoch := 0; epoch < r.opts.Epochs; epoch++ {
		if err := r.RunEpoch(ctx, epoch); err != nil {
			return fmt.Errorf("epoch %d: %w", epoch, err)
		}
	}
	return nil
}

// RunEpoch trains, evaluates and samples once.
func (r *Runner) RunEpoch(ctx context.Context, epoch int) error {
	log.Printf("Training epoch %d", epoch)
	if err := r.estimator.Train(ctx, r.opts.TrainSteps); err != nil {
		return err
	}
	r.step += r.opts.TrainSteps

	log.Printf("Evaluate %d", epoch)
	evaluation, err := r.estimator.Evaluate(ctx, r.opts.EvalSteps)
	if err != nil {
		return err
	}

	r.tracker.SetStep(r.step)
	if err := r.tracker.LogMetrics(ctx, evaluation); err != nil {
		return err
	}

	log.Printf("%v", evaluation)
	if err := r.evalLog.WriteEvaluation(ctx, r.step, evaluation); err != nil {
		return err
	}

	log.Printf("Generate predictions %d", epoch)
	predictions, err := r.estimator.Predict(ctx)
	if err != nil {
		return err
	}

	log.Printf("Save predictions")
	_, err = r.SaveSamples(ctx, epoch, r.step, predictions)
	return err
}

// SampleReport describes what SaveSamples produced.
type SampleReport struct {
	// Collected is the number of images read from the prediction stream.
	Collected int
	// Skipped is set when the stream was empty and nothing was saved.
	Skipped bool
	// GridSize is the side length of the saved grid, in images.
	GridSize int
	// Paths lists the image files written.
	Paths []string
	// Score is the inception score, or nil when no scorer is configured.
	Score *float64
}

// SampleFileName returns the per-epoch grid image name, e.g. epoch03_sample.png.
func SampleFileName(epoch int) string {
	return fmt.Sprintf("epoch%02d_sample.png", epoch)
}

// SaveSamples drains up to SampleNum images from predictions, writes them as
// a square grid to the epoch and latest sample files, and scores them. An
// empty stream is reported with a warning and skipped.
func (r *Runner) SaveSamples(ctx context.Context, epoch int, step int64, predictions estimator.PredictionReader) (*SampleReport, error) {
	images, err := estimator.Collect(ctx, predictions, r.opts.SampleNum)
	if err != nil {
		return nil, err
	}
	report := &SampleReport{Collected: len(images)}
	if len(images) == 0 {
		log.Error.Printf("WARNING: no predictions returned in epoch %d", epoch)
		report.Skipped = true
		return report, nil
	}
	log.Printf("Saving grid of %d predictions", len(images))

	report.GridSize = imagegrid.GridSize(len(images))
	// Merge checks every sample, not only the tiled ones.
	tiles := make([]*imagegrid.Image, len(images))
	for i, img := range images {
		tiles[i] = imagegrid.InverseTransform(img)
	}
	grid, err := imagegrid.Merge(tiles)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imagegrid.EncodePNG(&buf, grid); err != nil {
		return nil, err
	}
	for _, name := range []string{SampleFileName(epoch), LatestSampleName} {
		path := file.Join(r.opts.ResultDir, name)
		if err := writeFile(ctx, path, buf.Bytes()); err != nil {
			return nil, err
		}
		report.Paths = append(report.Paths, path)
	}

	if isRemote(r.opts.ResultDir) {
		log.Printf("not uploading %s to the tracker: not a local file", report.Paths[0])
	} else if err := r.tracker.LogImage(ctx, report.Paths[0]); err != nil {
		return nil, err
	}

	if r.scorer == nil {
		return report, nil
	}
	score, err := r.scorer.Score(ctx, images)
	if err != nil {
		return nil, err
	}
	report.Score = &score
	log.Printf("inception score at step %d: %v", step, score)
	if err := r.evalLog.WriteInceptionScore(ctx, step, score); err != nil {
		return nil, err
	}
	r.tracker.SetStep(step)
	if err := r.tracker.LogMetrics(ctx, map[string]float64{InceptionScoreMetric: score}); err != nil {
		return nil, err
	}
	return report, nil
}

func writeFile(ctx context.Context, path string, data []byte) error {
	f, err := file.Create(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := f.Writer(ctx).Write(data); err != nil {
		f.Close(ctx)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(ctx); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

func isRemote(path string) bool {
	return strings.Contains(path, "://")
}
