package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"

	"github.com/imishinist/biggan-cli/internal/imagegrid"
)

func TestGridCommand(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	var args []string
	for i := 0; i < 5; i++ {
		path := filepath.Join(dir, "sample"+string(rune('a'+i))+".png")
		f, err := os.Create(path)
		assert.NoError(t, err)
		assert.NoError(t, imagegrid.EncodePNG(f, imagegrid.New(3, 2, 3)))
		assert.NoError(t, f.Close())
		args = append(args, path)
	}
	tensor := filepath.Join(dir, "tensor.json")
	assert.NoError(t, os.WriteFile(tensor, []byte(`{"shape": [3, 2, 3], "data": [1,1,1,1,1,1,1,1,1,1,1,1,1,1,1,1,1,1]}`), 0644))
	args = append([]string{tensor}, args...)

	out := filepath.Join(dir, "grid.png")
	rootCmd.SetArgs(append([]string{"grid", "--out", out}, args...))
	assert.NoError(t, rootCmd.Execute())

	f, err := os.Open(out)
	assert.NoError(t, err)
	defer f.Close()
	grid, err := imagegrid.DecodePNG(f)
	assert.NoError(t, err)
	expect.EQ(t, grid.Shape, []int{6, 4, 3})
	// The JSON tensor is in model range and comes first.
	expect.EQ(t, grid.At(0, 0, 0), float32(1))
	expect.EQ(t, grid.At(0, 2, 0), float32(0))
}

func TestLoadImage(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()

	path := filepath.Join(dir, "sample.png")
	f, err := os.Create(path)
	assert.NoError(t, err)
	assert.NoError(t, imagegrid.EncodePNG(f, filledImage(2, 3, 3, 1)))
	assert.NoError(t, f.Close())
	img, err := loadImage(ctx, path)
	assert.NoError(t, err)
	expect.EQ(t, img.Shape, []int{2, 3, 3})
	expect.EQ(t, img.At(1, 2, 2), float32(1))

	tensor := filepath.Join(dir, "sample.json")
	assert.NoError(t, os.WriteFile(tensor, []byte(`{"shape": [1, 2, 1], "data": [-1, 0]}`), 0644))
	img, err = loadImage(ctx, tensor)
	assert.NoError(t, err)
	expect.EQ(t, img.Pix, []float32{0, 0.5})
}

func filledImage(h, w, c int, v float32) *imagegrid.Image {
	m := imagegrid.New(h, w, c)
	for i := range m.Pix {
		m.Pix[i] = v
	}
	return m
}

func TestLoadImageErrors(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()

	if _, err := loadImage(ctx, filepath.Join(dir, "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}
	txt := filepath.Join(dir, "sample.txt")
	assert.NoError(t, os.WriteFile(txt, nil, 0644))
	if _, err := loadImage(ctx, txt); err == nil {
		t.Error("expected error for unsupported format")
	}
	bad := filepath.Join(dir, "bad.json")
	assert.NoError(t, os.WriteFile(bad, []byte(`{"shape": [2, 2, 3], "data": [1]}`), 0644))
	if _, err := loadImage(ctx, bad); err == nil {
		t.Error("expected error for malformed tensor")
	}
}
