package models

import (
	"fmt"
	"sort"
)

// Hyperparameters are the model settings forwarded untouched to the estimator
// and recorded as tracking params.
type Hyperparameters map[string]any

// HyperparametersFile is the on-disk layout of a params file.
type HyperparametersFile struct {
	Parameters Hyperparameters `json:"parameters" yaml:"parameters"`
}

// Parameter is a stringified hyperparameter as stored by the tracker.
type Parameter struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Params returns the hyperparameters as sorted string key/value pairs.
func (h Hyperparameters) Params() []Parameter {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	params := make([]Parameter, 0, len(keys))
	for _, k := range keys {
		params = append(params, Parameter{Key: k, Value: fmt.Sprint(h[k])})
	}
	return params
}
