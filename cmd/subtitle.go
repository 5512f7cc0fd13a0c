package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var subtitleOut string

var subtitleCmd = &cobra.Command{
	Use:   "subtitle <video>",
	Short: "Burn captions and stickers into an existing video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		video, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolve path: %w", err)
		}
		if _, err := os.Stat(video); err != nil {
			return fmt.Errorf("input: %w", err)
		}
		out := subtitleOut
		if out == "" {
			out = strings.TrimSuffix(video, filepath.Ext(video)) + "_subtitled.mp4"
		}

		ctx := cmd.Context()
		p, closeFn, err := newPipeline(ctx, false)
		if err != nil {
			return err
		}
		defer closeFn()

		res, err := p.Subtitle(ctx, video, out)
		if err != nil {
			return err
		}
		slog.Info("subtitled", "video", res.VideoPath, "chunks", len(res.Chunks), "stickers", len(res.Stickers), "srt", res.SRTPath)
		return nil
	},
}

func init() {
	subtitleCmd.Flags().StringVarP(&subtitleOut, "output", "o", "", "output video (default: <input>_subtitled.mp4)")
	rootCmd.AddCommand(subtitleCmd)
}
