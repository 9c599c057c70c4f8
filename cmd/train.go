package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/grailbio/base/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/imishinist/biggan-cli/internal/config"
	"github.com/imishinist/biggan-cli/internal/estimator"
	"github.com/imishinist/biggan-cli/internal/mlflow"
	"github.com/imishinist/biggan-cli/internal/models"
	"github.com/imishinist/biggan-cli/internal/parser"
	"github.com/imishinist/biggan-cli/internal/runner"
	"github.com/imishinist/biggan-cli/internal/scorer"
	"github.com/imishinist/biggan-cli/internal/tracker"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run the train/evaluate/sample loop",
	Long: `Train a BigGAN model for a number of epochs on a remote estimator.
Each epoch trains, evaluates, appends the evaluation to <result-dir>/<model-name>/eval.txt
and saves a grid of generated samples next to it.`,
	Example: `  # Train locally against an estimator service
  biggan-cli train --estimator-url http://localhost:8500 --epochs 10 --train-examples 50000

  # Train on a TPU and track the run in MLflow
  biggan-cli train --config biggan.yaml --use-tpu --tpu-name my-tpu \
    --use-tracking --experiment-id 3 --tag dataset=cifar10`,
	RunE: train,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	// Training loop
	trainCmd.Flags().Int("epochs", 10, "Number of train/evaluate/sample cycles")
	trainCmd.Flags().Int("batch-size", 64, "Examples per step")
	trainCmd.Flags().Int("train-examples", 50000, "Training examples per epoch")
	trainCmd.Flags().Int("eval-examples", 10000, "Evaluation examples per epoch")
	trainCmd.Flags().Int("sample-num", 64, "Number of samples to generate per epoch")
	trainCmd.Flags().String("result-dir", "results", "Directory for eval logs and sample images (local or s3://)")
	trainCmd.Flags().String("model-name", "biggan", "Model name; results go to <result-dir>/<model-name>")
	trainCmd.Flags().String("params-file", "", "Model hyperparameters file (JSON/YAML)")

	// Estimator runtime
	trainCmd.Flags().String("estimator-url", "", "Estimator service URL (required)")
	trainCmd.Flags().Duration("estimator-timeout", 0, "Timeout per estimator call (0 for none)")
	trainCmd.Flags().String("model-dir", "", "Checkpoint directory used by the estimator")
	trainCmd.Flags().Bool("use-tpu", false, "Run on a TPU")
	trainCmd.Flags().String("tpu-name", "", "TPU name")
	trainCmd.Flags().String("tpu-zone", "", "TPU zone")
	trainCmd.Flags().Int("steps-per-loop", 100, "Steps per accelerator loop")
	trainCmd.Flags().Int("num-shards", 8, "Number of accelerator shards")

	// Scoring
	trainCmd.Flags().String("scorer-url", "", "Inception score service URL (scoring is skipped when empty)")
	trainCmd.Flags().Duration("scorer-timeout", 10*time.Minute, "Timeout per scoring call")

	// Tracking
	trainCmd.Flags().Bool("use-tracking", false, "Report metrics and samples to MLflow")
	trainCmd.Flags().String("tracking-uri", "", "MLflow tracking URI (overrides MLFLOW_TRACKING_URI)")
	trainCmd.Flags().String("experiment-id", "", "Experiment ID (overrides MLFLOW_EXPERIMENT_ID)")
	trainCmd.Flags().StringArray("tag", []string{}, "Run tags in key=value format or bare labels")

	bindFlags(trainCmd.Flags())
	// The flag is singular, the config key plural.
	viper.BindPFlag("tags", trainCmd.Flags().Lookup("tag"))
}

func train(cmd *cobra.Command, args []string) error {
	cfg := config.New()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	params := models.Hyperparameters{}
	if cfg.ParamsFile != "" {
		var err error
		if params, err = parser.ParseParamsFile(cfg.ParamsFile); err != nil {
			return err
		}
	}

	ctx := context.Background()

	est := estimator.NewClient(cfg.EstimatorURL, cfg.EstimatorTimeout)
	err := est.Configure(ctx, estimator.RunConfig{
		ModelDir:     cfg.ModelDir,
		UseTPU:       cfg.UseTPU,
		TPUName:      cfg.TPUName,
		TPUZone:      cfg.TPUZone,
		StepsPerLoop: cfg.StepsPerLoop,
		NumShards:    cfg.NumShards,
		BatchSize:    cfg.BatchSize,
		Params:       params,
	})
	if err != nil {
		return err
	}

	var sc scorer.Scorer
	if cfg.ScorerURL != "" {
		sc = scorer.NewClient(cfg.ScorerURL, cfg.ScorerTimeout)
	}

	tr := tracker.Nop
	var run *mlflow.RunTracker
	if cfg.UseTracking {
		run, err = startRun(ctx, cfg, params)
		if err != nil {
			return err
		}
		tr = run
		fmt.Printf("Started MLflow run: %s\n", run.Run().RunID)
	}

	r := runner.New(runner.Options{
		Epochs:     cfg.Epochs,
		TrainSteps: cfg.TrainSteps(),
		EvalSteps:  cfg.EvalSteps(),
		SampleNum:  cfg.SampleNum,
		ResultDir:  cfg.ResultPath(),
	}, est, sc, tr)

	runErr := r.Run(ctx)
	if run != nil {
		if err := run.Finish(ctx, runErr); err != nil {
			log.Error.Printf("failed to end run %s: %v", run.Run().RunID, err)
		}
	}
	if runErr != nil {
		return runErr
	}

	fmt.Printf("Training finished\n")
	fmt.Printf("Epochs: %d\n", cfg.Epochs)
	fmt.Printf("Global step: %d\n", r.Step())
	fmt.Printf("Results: %s\n", cfg.ResultPath())
	return nil
}

func startRun(ctx context.Context, cfg *config.Config, params models.Hyperparameters) (*mlflow.RunTracker, error) {
	client, err := mlflow.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create MLflow client: %w", err)
	}
	tags, err := cfg.TagMap()
	if err != nil {
		return nil, err
	}
	run, err := mlflow.StartRun(ctx, client, models.RunConfig{
		ExperimentID: cfg.ExperimentID,
		RunName:      cfg.ModelName,
		Tags:         tags,
	}, params)
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	return run, nil
}
