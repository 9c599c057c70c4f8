package mlflow

import (
	"context"
	"fmt"
	"time"

	"github.com/databricks/databricks-sdk-go/service/ml"

	"github.com/imishinist/biggan-cli/internal/models"
)

func (c *Client) LogMetric(ctx context.Context, runID string, metric models.Metric) error {
	err := c.client.Experiments.LogMetric(ctx, ml.LogMetric{
		RunId:     runID,
		Key:       metric.Key,
		Value:     metric.Value,
		Step:      metric.Step,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to log metric %s: %w", metric.Key, err)
	}

	return nil
}

func (c *Client) LogMetrics(ctx context.Context, runID string, metrics []models.Metric) error {
	// Logged one by one; the batch endpoint is not available on every server.
	for _, metric := range metrics {
		if err := c.LogMetric(ctx, runID, metric); err != nil {
			return err
		}
	}
	return nil
}
