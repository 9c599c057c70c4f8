package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "biggan-cli",
	Short: "BigGAN training driver",
	Long: `A command line tool that drives BigGAN training on a remote estimator.
Runs the train/evaluate/sample loop, writes eval.txt and sample grids,
and reports metrics to an MLflow tracking server.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(
			s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})

	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (YAML, JSON or TOML)")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		checkError(viper.ReadInConfig())
	}

	// Environment variables
	viper.SetEnvPrefix("BIGGAN")
	viper.AutomaticEnv()

	// Also bind Databricks and MLflow environment variables
	viper.BindEnv("databricks_host", "DATABRICKS_HOST")
	viper.BindEnv("databricks_token", "DATABRICKS_TOKEN")
	viper.BindEnv("tracking_uri", "BIGGAN_TRACKING_URI", "MLFLOW_TRACKING_URI")
	viper.BindEnv("experiment_id", "BIGGAN_EXPERIMENT_ID", "MLFLOW_EXPERIMENT_ID")

	// Set defaults
	viper.SetDefault("tracking_uri", "http://localhost:5000")
}

// bindFlags exposes every flag in fs to viper under its snake_case name.
func bindFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		viper.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
}

func checkError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
