package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/spf13/cobra"

	"github.com/imishinist/biggan-cli/internal/imagegrid"
)

var gridCmd = &cobra.Command{
	Use:   "grid [flags] image...",
	Short: "Tile images into a square grid",
	Long: `Tile PNG images, or JSON sample tensors as returned by the estimator, into a
square grid PNG. Only the first floor(sqrt(n))^2 images are used.
JSON tensors are in model range [-1, 1] and are mapped to [0, 1] before tiling.`,
	Example: `  # Re-tile saved samples
  biggan-cli grid --out grid.png samples/*.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: grid,
}

func init() {
	rootCmd.AddCommand(gridCmd)

	gridCmd.Flags().String("out", "", "Output PNG path, local or s3:// (required)")
	gridCmd.MarkFlagRequired("out")
}

func grid(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("out")

	ctx := context.Background()
	images := make([]*imagegrid.Image, 0, len(args))
	for _, path := range args {
		img, err := loadImage(ctx, path)
		if err != nil {
			return err
		}
		images = append(images, img)
	}

	merged, err := imagegrid.Merge(images)
	if err != nil {
		return fmt.Errorf("failed to tile images: %w", err)
	}
	var buf bytes.Buffer
	if err := imagegrid.EncodePNG(&buf, merged); err != nil {
		return err
	}

	f, err := file.Create(ctx, out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	if _, err := f.Writer(ctx).Write(buf.Bytes()); err != nil {
		f.Close(ctx)
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	if err := f.Close(ctx); err != nil {
		return fmt.Errorf("failed to close %s: %w", out, err)
	}

	size := imagegrid.GridSize(len(images))
	fmt.Printf("Successfully wrote %dx%d grid: %s\n", size, size, out)
	if dropped := len(images) - size*size; dropped > 0 {
		fmt.Printf("  Dropped images: %d\n", dropped)
	}
	return nil
}

// loadImage reads a PNG in [0, 1] or a JSON tensor in model range, from a
// local path or s3://.
func loadImage(ctx context.Context, path string) (*imagegrid.Image, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer f.Close(ctx)
	r := f.Reader(ctx)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png":
		img, err := imagegrid.DecodePNG(r)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return img, nil
	case ".json":
		var img imagegrid.Image
		if err := json.NewDecoder(r).Decode(&img); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if err := img.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return imagegrid.InverseTransform(&img), nil
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .png, .json)", ext)
	}
}
