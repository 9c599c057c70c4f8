// Package scorer computes image quality scores through an external oracle.
package scorer

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
)

// Scorer returns a single scalar score for a batch of images.
type Scorer interface {
	Score(ctx context.Context, images []*imagegrid.Image) (float64, error)
}

type scoreRequest struct {
	Images []*imagegrid.Image `json:"images"`
}

type scoreResponse struct {
	Score *float64 `json:"score"`
}

// Client asks an inception score service for scores.
type Client struct {
	url  string
	http *http.Client
}

// NewClient returns a client for the scoring service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		url:  strings.TrimSuffix(baseURL, "/") + "/v1/inception_score",
		http: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Score(ctx context.Context, images []*imagegrid.Image) (float64, error) {
	data, err := json.Marshal(scoreRequest{Images: images})
	if err != nil {
		return 0, fmt.Errorf("failed to encode images: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("inception score request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Score == nil {
		return 0, fmt.Errorf("inception score missing from response")
	}
	return *out.Score, nil
}

// Func adapts a function to the Scorer interface.
type Func func(ctx context.Context, images []*imagegrid.Image) (float64, error)

func (f Func) Score(ctx context.Context, images []*imagegrid.Image) (float64, error) {
	return f(ctx, images)
}
