package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/spf13/viper"
)

// Databricks domain suffixes for URL detection
var databricksDomains = []string{
	".cloud.databricks.com",
	".azuredatabricks.net",
	".gcp.databricks.com",
}

type Config struct {
	// Training loop
	Epochs        int
	BatchSize     int
	TrainExamples int
	EvalExamples  int
	SampleNum     int
	ResultDir     string
	ModelName     string
	ParamsFile    string

	// Estimator runtime
	EstimatorURL     string
	EstimatorTimeout time.Duration
	ModelDir         string
	UseTPU           bool
	TPUName          string
	TPUZone          string
	StepsPerLoop     int
	NumShards        int

	// Scoring oracle; scoring is skipped when ScorerURL is empty
	ScorerURL     string
	ScorerTimeout time.Duration

	// Experiment tracking
	UseTracking     bool
	TrackingURI     string
	ExperimentID    string
	Tags            []string
	DatabricksHost  string
	DatabricksToken string
}

func New() *Config {
	return &Config{
		Epochs:        viper.GetInt("epochs"),
		BatchSize:     viper.GetInt("batch_size"),
		TrainExamples: viper.GetInt("train_examples"),
		EvalExamples:  viper.GetInt("eval_examples"),
		SampleNum:     viper.GetInt("sample_num"),
		ResultDir:     viper.GetString("result_dir"),
		ModelName:     viper.GetString("model_name"),
		ParamsFile:    viper.GetString("params_file"),

		EstimatorURL:     viper.GetString("estimator_url"),
		EstimatorTimeout: viper.GetDuration("estimator_timeout"),
		ModelDir:         viper.GetString("model_dir"),
		UseTPU:           viper.GetBool("use_tpu"),
		TPUName:          viper.GetString("tpu_name"),
		TPUZone:          viper.GetString("tpu_zone"),
		StepsPerLoop:     viper.GetInt("steps_per_loop"),
		NumShards:        viper.GetInt("num_shards"),

		ScorerURL:     viper.GetString("scorer_url"),
		ScorerTimeout: viper.GetDuration("scorer_timeout"),

		UseTracking:     viper.GetBool("use_tracking"),
		TrackingURI:     viper.GetString("tracking_uri"),
		ExperimentID:    viper.GetString("experiment_id"),
		Tags:            viper.GetStringSlice("tags"),
		DatabricksHost:  viper.GetString("databricks_host"),
		DatabricksToken: viper.GetString("databricks_token"),
	}
}

func (c *Config) Validate() error {
	switch {
	case c.Epochs <= 0:
		return invalid("epochs must be positive: %d", c.Epochs)
	case c.BatchSize <= 0:
		return invalid("batch size must be positive: %d", c.BatchSize)
	case c.TrainExamples < 0:
		return invalid("train examples must not be negative: %d", c.TrainExamples)
	case c.EvalExamples < 0:
		return invalid("eval examples must not be negative: %d", c.EvalExamples)
	case c.SampleNum <= 0:
		return invalid("sample num must be positive: %d", c.SampleNum)
	case c.ResultDir == "":
		return invalid("result dir is required")
	case c.ModelName == "":
		return invalid("model name is required")
	case c.EstimatorURL == "":
		return invalid("estimator URL is required")
	case c.StepsPerLoop <= 0:
		return invalid("steps per loop must be positive: %d", c.StepsPerLoop)
	case c.NumShards <= 0:
		return invalid("num shards must be positive: %d", c.NumShards)
	case c.UseTPU && c.TPUName == "":
		return invalid("TPU name is required when use_tpu is set")
	}

	if c.UseTracking {
		if err := c.ValidateTracking(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateTracking checks the settings needed to reach the tracking server.
func (c *Config) ValidateTracking() error {
	if c.TrackingURI == "" {
		return invalid("tracking URI is required")
	}
	if c.ExperimentID == "" {
		return invalid("experiment ID must be specified via --experiment-id flag or BIGGAN_EXPERIMENT_ID environment variable")
	}
	if _, err := c.TagMap(); err != nil {
		return err
	}
	return nil
}

// ResultPath is the per-model directory that holds eval.txt and sample images.
func (c *Config) ResultPath() string {
	return file.Join(c.ResultDir, c.ModelName)
}

// TrainSteps is the number of training steps in one epoch.
func (c *Config) TrainSteps() int64 {
	return StepsFor(c.TrainExamples, c.BatchSize)
}

// EvalSteps is the number of evaluation steps in one epoch.
func (c *Config) EvalSteps() int64 {
	return StepsFor(c.EvalExamples, c.BatchSize)
}

// StepsFor returns ceil(examples / batchSize).
func StepsFor(examples, batchSize int) int64 {
	if batchSize <= 0 || examples <= 0 {
		return 0
	}
	return int64((examples + batchSize - 1) / batchSize)
}

// TagMap parses Tags. Entries are either key=value or a bare label, which is
// stored with an empty value.
func (c *Config) TagMap() (map[string]string, error) {
	tagMap := make(map[string]string)
	for _, tag := range c.Tags {
		key, value, _ := strings.Cut(tag, "=")
		if key == "" {
			return nil, invalid("invalid tag format: %q (expected key=value or label)", tag)
		}
		tagMap[key] = value
	}
	return tagMap, nil
}

// IsDatabricks checks if the tracking URI points to Databricks
func (c *Config) IsDatabricks() bool {
	if c.TrackingURI == "databricks" {
		return true
	}

	if strings.HasPrefix(c.TrackingURI, "databricks://") {
		return true
	}

	if strings.HasPrefix(c.TrackingURI, "https://") {
		return isDatabricksHost(extractHostFromURL(c.TrackingURI))
	}

	return false
}

// GetDatabricksProfile extracts the profile name from databricks://{profile} URI
func (c *Config) GetDatabricksProfile() string {
	if !strings.HasPrefix(c.TrackingURI, "databricks://") {
		return ""
	}

	profile := strings.TrimPrefix(c.TrackingURI, "databricks://")
	if idx := strings.Index(profile, "/"); idx != -1 {
		profile = profile[:idx]
	}
	return profile
}

func extractHostFromURL(url string) string {
	host := strings.TrimPrefix(url, "https://")
	if idx := strings.Index(host, "/"); idx != -1 {
		host = host[:idx]
	}
	return host
}

func isDatabricksHost(host string) bool {
	for _, domain := range databricksDomains {
		if strings.HasSuffix(host, domain) {
			return true
		}
	}
	return false
}

func invalid(format string, args ...any) error {
	return errors.E(errors.Invalid, fmt.Sprintf(format, args...))
}
