package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"shorts-pipeline/pipeline"
)

var (
	runTopic    string
	runNoUpload bool
	runKeepWork bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p, closeFn, err := newPipeline(ctx, !runNoUpload)
		if err != nil {
			return err
		}
		defer closeFn()

		state, err := p.Run(ctx, pipeline.Options{Topic: runTopic, NoUpload: runNoUpload, KeepWork: runKeepWork})
		if err != nil {
			return err
		}
		slog.Info("done", "run_id", state.RunID, "video", state.VideoFile)
		for _, res := range state.Published {
			slog.Info("published", "platform", res.Platform, "url", res.URL)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runTopic, "topic", "t", "", "use this topic instead of generating one")
	runCmd.Flags().BoolVar(&runNoUpload, "no-upload", false, "skip publishing")
	runCmd.Flags().BoolVar(&runKeepWork, "keep-work", false, "keep the per-run work directory")
	rootCmd.AddCommand(runCmd)
}
