package estimator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"

	"github.com/imishinist/biggan-cli/internal/imagegrid"
	"github.com/imishinist/biggan-cli/internal/models"
)

func images(n int) []*imagegrid.Image {
	out := make([]*imagegrid.Image, n)
	for i := range out {
		out[i] = imagegrid.New(1, 1, 3)
		out[i].Pix[0] = float32(i)
	}
	return out
}

// failingReader yields n images and then err.
type failingReader struct {
	n   int
	err error
}

func (r *failingReader) Next(ctx context.Context) (*imagegrid.Image, error) {
	if r.n == 0 {
		return nil, r.err
	}
	r.n--
	return imagegrid.New(1, 1, 3), nil
}

func TestCollectCap(t *testing.T) {
	got, err := Collect(context.Background(), NewSliceReader(images(20)), 16)
	assert.NoError(t, err)
	expect.EQ(t, len(got), 16)
	for i, img := range got {
		expect.EQ(t, img.Pix[0], float32(i))
	}
}

func TestCollectEarlyEnd(t *testing.T) {
	got, err := Collect(context.Background(), NewSliceReader(images(10)), 16)
	assert.NoError(t, err)
	expect.EQ(t, len(got), 10)

	got, err = Collect(context.Background(), NewSliceReader(nil), 16)
	assert.NoError(t, err)
	expect.EQ(t, len(got), 0)

	got, err = Collect(context.Background(), &failingReader{n: 3, err: io.EOF}, 16)
	assert.NoError(t, err)
	expect.EQ(t, len(got), 3)
}

func TestCollectError(t *testing.T) {
	boom := errors.New("device lost")
	_, err := Collect(context.Background(), &failingReader{n: 2, err: boom}, 16)
	if err != boom {
		t.Errorf("got %v, want %v", err, boom)
	}
}

func TestCollectZeroCap(t *testing.T) {
	got, err := Collect(context.Background(), &failingReader{err: errors.New("not read")}, 0)
	assert.NoError(t, err)
	expect.EQ(t, len(got), 0)
}

func newServer(t *testing.T, calls *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("got method %s, want POST", r.Method)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		*calls = append(*calls, r.URL.Path)
		switch r.URL.Path {
		case "/v1/configure":
			if body["model_dir"] != "gs://bucket/model" {
				t.Errorf("got model_dir %v", body["model_dir"])
			}
		case "/v1/train":
			if body["steps"] != float64(7) {
				t.Errorf("got steps %v, want 7", body["steps"])
			}
		case "/v1/evaluate":
			io.WriteString(w, `{"metrics": {"g_loss": 1.5, "d_loss": 0.5}}`)
		case "/v1/predict":
			io.WriteString(w, `{"predictions": [
				{"fake_image": {"shape": [1, 2, 1], "data": [0.5, -0.5]}},
				{"fake_image": {"shape": [1, 2, 1], "data": [1, -1]}},
				{"fake_image": {"shape": [1, 2, 1], "data": [1]}}
			]}`)
		default:
			http.Error(w, "no such endpoint", http.StatusNotFound)
		}
	}))
}

func TestClient(t *testing.T) {
	var calls []string
	srv := newServer(t, &calls)
	defer srv.Close()
	ctx := context.Background()

	c := NewClient(srv.URL+"/", 0)
	assert.NoError(t, c.Configure(ctx, RunConfig{ModelDir: "gs://bucket/model", BatchSize: 64}))
	assert.NoError(t, c.Train(ctx, 7))
	eval, err := c.Evaluate(ctx, 3)
	assert.NoError(t, err)
	expect.EQ(t, eval, models.Evaluation{"g_loss": 1.5, "d_loss": 0.5})

	r, err := c.Predict(ctx)
	assert.NoError(t, err)
	img, err := r.Next(ctx)
	assert.NoError(t, err)
	expect.EQ(t, img.Shape, []int{1, 2, 1})
	expect.EQ(t, img.Pix, []float32{0.5, -0.5})
	_, err = r.Next(ctx)
	assert.NoError(t, err)
	// The third record does not match its shape.
	if _, err := r.Next(ctx); err == nil {
		t.Error("expected error for malformed prediction")
	}
	expect.EQ(t, calls, []string{"/v1/configure", "/v1/train", "/v1/evaluate", "/v1/predict"})
}

func TestClientPredictExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"predictions": [{"fake_image": {"shape": [1, 1, 3], "data": [0, 0, 0]}}]}`)
	}))
	defer srv.Close()
	ctx := context.Background()

	r, err := NewClient(srv.URL, 0).Predict(ctx)
	assert.NoError(t, err)
	got, err := Collect(ctx, r, 16)
	assert.NoError(t, err)
	expect.EQ(t, len(got), 1)
}

func TestClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "tpu unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, 0).Train(context.Background(), 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "tpu unavailable") {
		t.Errorf("unexpected error: %v", err)
	}
}
