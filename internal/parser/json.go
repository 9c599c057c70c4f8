package parser

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/imishinist/biggan-cli/internal/models"
)

func ParseJSONParams(reader io.Reader) (models.Hyperparameters, error) {
	var data models.HyperparametersFile
	decoder := json.NewDecoder(reader)

	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON parameters: %w", err)
	}

	return data.Parameters, nil
}
