package estimator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/imishinist/biggan-cli/internal/imagegrid"
	"github.com/imishinist/biggan-cli/internal/models"
)

// RunConfig describes the accelerator session the runtime should set up
// before the first training call.
type RunConfig struct {
	ModelDir     string                 `json:"model_dir"`
	UseTPU       bool                   `json:"use_tpu"`
	TPUName      string                 `json:"tpu_name,omitempty"`
	TPUZone      string                 `json:"tpu_zone,omitempty"`
	StepsPerLoop int                    `json:"steps_per_loop"`
	NumShards    int                    `json:"num_shards"`
	BatchSize    int                    `json:"batch_size"`
	Params       models.Hyperparameters `json:"params,omitempty"`
}

type stepsRequest struct {
	Steps int64 `json:"steps"`
}

type evaluateResponse struct {
	Metrics models.Evaluation `json:"metrics"`
}

type predictResponse struct {
	Predictions []json.RawMessage `json:"predictions"`
}

type prediction struct {
	FakeImage *imagegrid.Image `json:"fake_image"`
}

// Client talks to an estimator runtime over its JSON HTTP API. Requests are
// never retried.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the runtime at baseURL. A zero timeout means
// calls may block indefinitely, which suits long training phases.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Configure sets up the training session.
func (c *Client) Configure(ctx context.Context, cfg RunConfig) error {
	if err := c.post(ctx, "/v1/configure", cfg, nil); err != nil {
		return fmt.Errorf("failed to configure estimator: %w", err)
	}
	return nil
}

func (c *Client) Train(ctx context.Context, steps int64) error {
	if err := c.post(ctx, "/v1/train", stepsRequest{Steps: steps}, nil); err != nil {
		return fmt.Errorf("failed to train %d steps: %w", steps, err)
	}
	return nil
}

func (c *Client) Evaluate(ctx context.Context, steps int64) (models.Evaluation, error) {
	var resp evaluateResponse
	if err := c.post(ctx, "/v1/evaluate", stepsRequest{Steps: steps}, &resp); err != nil {
		return nil, fmt.Errorf("failed to evaluate %d steps: %w", steps, err)
	}
	if resp.Metrics == nil {
		resp.Metrics = models.Evaluation{}
	}
	return resp.Metrics, nil
}

func (c *Client) Predict(ctx context.Context) (PredictionReader, error) {
	var resp predictResponse
	if err := c.post(ctx, "/v1/predict", struct{}{}, &resp); err != nil {
		return nil, fmt.Errorf("failed to predict: %w", err)
	}
	return &rawReader{records: resp.Predictions}, nil
}

// post sends body as JSON and decodes the reply into out when out is non-nil.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s request failed with status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// rawReader decodes prediction records one at a time as they are consumed.
type rawReader struct {
	records []json.RawMessage
	n       int
}

func (r *rawReader) Next(ctx context.Context) (*imagegrid.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.n >= len(r.records) {
		return nil, io.EOF
	}
	var p prediction
	if err := json.Unmarshal(r.records[r.n], &p); err != nil {
		return nil, fmt.Errorf("failed to decode prediction %d: %w", r.n, err)
	}
	if p.FakeImage == nil {
		return nil, fmt.Errorf("prediction %d has no fake_image", r.n)
	}
	if err := p.FakeImage.Validate(); err != nil {
		return nil, fmt.Errorf("prediction %d: %w", r.n, err)
	}
	r.n++
	return p.FakeImage, nil
}
