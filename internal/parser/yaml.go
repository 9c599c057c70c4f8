package parser

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/imishinist/biggan-cli/internal/models"
)

func ParseYAMLParams(reader io.Reader) (models.Hyperparameters, error) {
	var data models.HyperparametersFile
	decoder := yaml.NewDecoder(reader)

	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse YAML parameters: %w", err)
	}

	return data.Parameters, nil
}
