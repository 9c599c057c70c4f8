package models

import (
	"sort"
	"strconv"
	"strings"
)

// Evaluation maps metric names to the values produced by one evaluation pass.
type Evaluation map[string]float64

// Keys returns the metric names in sorted order.
func (e Evaluation) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders the record as {'name': value, ...} with sorted keys.
func (e Evaluation) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range e.Keys() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('\'')
		b.WriteString(k)
		b.WriteString("': ")
		b.WriteString(strconv.FormatFloat(e[k], 'g', -1, 64))
	}
	b.WriteByte('}')
	return b.String()
}

// Metric is a single named value recorded at a training step.
type Metric struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
	Step  int64   `json:"step"`
}

// Metrics flattens the record into step-stamped metrics in key order.
func (e Evaluation) Metrics(step int64) []Metric {
	metrics := make([]Metric, 0, len(e))
	for _, k := range e.Keys() {
		metrics = append(metrics, Metric{Key: k, Value: e[k], Step: step})
	}
	return metrics
}
