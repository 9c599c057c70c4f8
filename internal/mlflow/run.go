package mlflow

import (
	"context"
	"fmt"
	"time"

	"github.com/databricks/databricks-sdk-go/service/ml"

	"github.com/imishinist/biggan-cli/internal/models"
)

func (c *Client) CreateRun(ctx context.Context, config models.RunConfig) (*models.RunInfo, error) {
	if config.ExperimentID == "" {
		return nil, fmt.Errorf("experiment ID must be provided")
	}

	runName := config.RunName
	if runName == "" {
		runName = "run-" + time.Now().Format("2006-01-02-15-04-05")
	}

	tags := runTags(config, runName)

	startTime := time.Now()
	resp, err := c.client.Experiments.CreateRun(ctx, ml.CreateRun{
		ExperimentId: config.ExperimentID,
		RunName:      runName,
		StartTime:    startTime.UnixMilli(),
		Tags:         tags,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	info := &models.RunInfo{
		RunID:        resp.Run.Info.RunId,
		ExperimentID: config.ExperimentID,
		RunName:      runName,
		ArtifactURI:  resp.Run.Info.ArtifactUri,
		StartTime:    startTime,
	}
	if info.RunID == "" {
		return nil, fmt.Errorf("failed to create run: no run ID returned")
	}
	return info, nil
}

// runTags returns the user tags plus the MLflow system tags for name and note.
func runTags(config models.RunConfig, runName string) []ml.RunTag {
	tags := make([]ml.RunTag, 0, len(config.Tags)+2)
	for key, value := range config.Tags {
		tags = append(tags, ml.RunTag{Key: key, Value: value})
	}
	tags = append(tags, ml.RunTag{Key: "mlflow.runName", Value: runName})
	if config.Description != "" {
		tags = append(tags, ml.RunTag{Key: "mlflow.note.content", Value: config.Description})
	}
	return tags
}

func (c *Client) UpdateRun(ctx context.Context, runID string, status models.RunStatus) error {
	var mlStatus ml.UpdateRunStatus
	switch status {
	case models.RunStatusRunning:
		mlStatus = ml.UpdateRunStatusRunning
	case models.RunStatusFinished:
		mlStatus = ml.UpdateRunStatusFinished
	case models.RunStatusFailed:
		mlStatus = ml.UpdateRunStatusFailed
	case models.RunStatusKilled:
		mlStatus = ml.UpdateRunStatusKilled
	default:
		return fmt.Errorf("unknown run status: %s", status)
	}

	updateRun := ml.UpdateRun{
		RunId:  runID,
		Status: mlStatus,
	}
	if status != models.RunStatusRunning {
		updateRun.EndTime = time.Now().UnixMilli()
	}

	if _, err := c.client.Experiments.UpdateRun(ctx, updateRun); err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}
