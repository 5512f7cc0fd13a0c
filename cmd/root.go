// Package cmd is the shorts command line.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"shorts-pipeline/config"
	"shorts-pipeline/logging"
	"shorts-pipeline/manifest"
	"shorts-pipeline/pipeline"
)

var (
	cfgPath string
	verbose bool
	quiet   bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "shorts",
	Short: "Generate, subtitle and publish narrated vertical shorts",
	Long: `shorts turns a topic into a narrated vertical video: it writes a script,
synthesizes the voice-over, matches stock footage to each segment, burns
word-level captions and publishes the result.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", cfgPath, err)
		}
		cfg = loaded
		return setupLogging()
	},
}

func setupLogging() error {
	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	if quiet {
		level = "error"
	}
	return logging.Setup(logging.Options{Level: level, Format: cfg.Logging.Format})
}

// Execute runs the root command. ctx is cancelled on SIGINT/SIGTERM.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "path to the YAML config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
}

// newPipeline wires production dependencies and opens the manifest. The
// returned close func releases the manifest.
func newPipeline(ctx context.Context, withUpload bool) (*pipeline.Pipeline, func(), error) {
	secrets, err := config.LoadSecrets(cfg.Paths.Env)
	if err != nil {
		return nil, nil, fmt.Errorf("load secrets: %w", err)
	}
	deps, err := pipeline.DefaultDeps(ctx, cfg, secrets, withUpload)
	if err != nil {
		return nil, nil, err
	}
	store, err := manifest.Open(pipeline.ManifestPath(cfg))
	if err != nil {
		return nil, nil, err
	}
	return pipeline.New(cfg, store, deps), func() { _ = store.Close() }, nil
}
