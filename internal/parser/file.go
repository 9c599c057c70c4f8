package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/imishinist/biggan-cli/internal/models"
)

// ParseParamsFile reads hyperparameters from a .json, .yaml or .yml file.
func ParseParamsFile(path string) (models.Hyperparameters, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	var params models.Hyperparameters
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		params, err = ParseJSONParams(file)
	case ".yaml", ".yml":
		params, err = ParseYAMLParams(file)
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .json, .yaml, .yml)", ext)
	}
	if err != nil {
		return nil, err
	}
	if params == nil {
		params = models.Hyperparameters{}
	}
	return params, nil
}
