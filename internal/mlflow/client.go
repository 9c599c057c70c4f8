package mlflow

import (
	"fmt"

	"github.com/databricks/databricks-sdk-go"

	"github.com/imishinist/biggan-cli/internal/config"
)

type Client struct {
	client *databricks.WorkspaceClient
	config *config.Config
}

func NewClient(cfg *config.Config) (*Client, error) {
	if err := cfg.ValidateTracking(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	databricksConfig, err := workspaceConfig(cfg)
	if err != nil {
		return nil, err
	}

	client, err := databricks.NewWorkspaceClient(databricksConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create MLflow client: %w", err)
	}

	return &Client{
		client: client,
		config: cfg,
	}, nil
}

// workspaceConfig maps the tracking settings onto a Databricks SDK config.
// Plain MLflow servers speak the same REST API, so they are reached through
// the SDK as well.
func workspaceConfig(cfg *config.Config) (*databricks.Config, error) {
	if !cfg.IsDatabricks() {
		return &databricks.Config{
			Host: cfg.TrackingURI,
			// A regular MLflow server ignores the token, but the SDK requires one.
			Token: "dummy-token-for-regular-mlflow",
		}, nil
	}

	databricksConfig := &databricks.Config{}
	if cfg.TrackingURI == "databricks" {
		databricksConfig.Host = cfg.DatabricksHost
	} else if profile := cfg.GetDatabricksProfile(); profile != "" {
		databricksConfig.Profile = profile
	} else {
		databricksConfig.Host = cfg.TrackingURI
	}

	if cfg.DatabricksToken != "" {
		databricksConfig.Token = cfg.DatabricksToken
	}

	if databricksConfig.Host == "" && databricksConfig.Profile == "" {
		return nil, fmt.Errorf("Databricks host or profile is required when using Databricks MLflow. Set DATABRICKS_HOST environment variable, use a full Databricks URL as tracking URI, or specify a profile with databricks://{profile}")
	}
	return databricksConfig, nil
}
