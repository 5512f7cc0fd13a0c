package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"shorts-pipeline/manifest"
	"shorts-pipeline/pipeline"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent pipeline runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := manifest.Open(pipeline.ManifestPath(cfg))
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), runsTable(runs))
		return nil
	},
}

func runsTable(runs []manifest.Run) string {
	headers := []string{"ID", "Topic", "Status", "Started", "Elapsed", "Video / Error"}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		elapsed := "-"
		if !r.FinishedAt.IsZero() {
			elapsed = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		detail := r.FinalVideo
		if r.Error != "" {
			detail = r.Error
		}
		rows = append(rows, []string{
			r.ID,
			r.Topic,
			r.Status,
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			elapsed,
			truncate(detail, 60),
		})
	}
	return renderTable(headers, rows, []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs to show")
	rootCmd.AddCommand(runsCmd)
}
