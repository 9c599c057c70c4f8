package mlflow

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/imishinist/biggan-cli/internal/models"
)

// SampleArtifactDir is the artifact directory that sample images are uploaded to.
const SampleArtifactDir = "samples"

// runClient is the subset of Client used to report into an existing run.
type runClient interface {
	LogMetrics(ctx context.Context, runID string, metrics []models.Metric) error
	UploadArtifact(ctx context.Context, runID, artifactURI, filePath, artifactPath string) error
	UpdateRun(ctx context.Context, runID string, status models.RunStatus) error
}

// RunTracker reports training progress into a single MLflow run.
type RunTracker struct {
	client runClient
	run    *models.RunInfo
	step   int64
}

// runStarter is the subset of Client used to open a run.
type runStarter interface {
	runClient
	CreateRun(ctx context.Context, config models.RunConfig) (*models.RunInfo, error)
	LogHyperparameters(ctx context.Context, runID string, params models.Hyperparameters) error
}

// StartRun creates a run, records the hyperparameters on it and returns a
// tracker bound to it. A run whose parameters cannot be logged is ended as
// FAILED.
func StartRun(ctx context.Context, client *Client, config models.RunConfig, params models.Hyperparameters) (*RunTracker, error) {
	return startRun(ctx, client, config, params)
}

func startRun(ctx context.Context, client runStarter, config models.RunConfig, params models.Hyperparameters) (*RunTracker, error) {
	run, err := client.CreateRun(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := client.LogHyperparameters(ctx, run.RunID, params); err != nil {
		if uerr := client.UpdateRun(ctx, run.RunID, models.RunStatusFailed); uerr != nil {
			return nil, fmt.Errorf("%w (and failed to end run %s: %v)", err, run.RunID, uerr)
		}
		return nil, fmt.Errorf("run %s: %w", run.RunID, err)
	}
	return &RunTracker{client: client, run: run}, nil
}

// Run returns the run the tracker reports into.
func (t *RunTracker) Run() *models.RunInfo {
	return t.run
}

func (t *RunTracker) SetStep(step int64) {
	t.step = step
}

func (t *RunTracker) LogMetrics(ctx context.Context, metrics map[string]float64) error {
	return t.client.LogMetrics(ctx, t.run.RunID, models.Evaluation(metrics).Metrics(t.step))
}

func (t *RunTracker) LogImage(ctx context.Context, path string) error {
	artifactPath := SampleArtifactDir + "/" + filepath.Base(path)
	return t.client.UploadArtifact(ctx, t.run.RunID, t.run.ArtifactURI, path, artifactPath)
}

// Finish ends the run as FINISHED, or as FAILED when runErr is non-nil.
func (t *RunTracker) Finish(ctx context.Context, runErr error) error {
	status := models.RunStatusFinished
	if runErr != nil {
		status = models.RunStatusFailed
	}
	return t.client.UpdateRun(ctx, t.run.RunID, status)
}
