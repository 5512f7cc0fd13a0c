package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	assembleText  string
	assembleAudio string
	assembleTopic string
	assembleOut   string
)

var assembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Build a timeline from narration text and audio",
	Long: `assemble plans segments from the narration text, fetches one stock clip per
segment, normalizes the clips and binds them to the narration audio. No
script, subtitle or publishing stage runs.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(assembleText)
		if err != nil {
			return fmt.Errorf("read text: %w", err)
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			return errors.New("narration text is empty")
		}

		ctx := cmd.Context()
		p, closeFn, err := newPipeline(ctx, false)
		if err != nil {
			return err
		}
		defer closeFn()

		tl, err := p.Assemble(ctx, text, assembleAudio, assembleTopic, assembleOut)
		if err != nil {
			return err
		}
		slog.Info("timeline ready", "video", tl.Path, "clips", len(tl.Clips), "duration_sec", tl.DurationSec)
		return nil
	},
}

func init() {
	assembleCmd.Flags().StringVar(&assembleText, "text", "", "narration text file")
	assembleCmd.Flags().StringVar(&assembleAudio, "audio", "", "narration audio file")
	assembleCmd.Flags().StringVar(&assembleTopic, "topic", "", "topic used to seed stock searches")
	assembleCmd.Flags().StringVarP(&assembleOut, "output", "o", "timeline.mp4", "output video")
	_ = assembleCmd.MarkFlagRequired("text")
	_ = assembleCmd.MarkFlagRequired("audio")
	rootCmd.AddCommand(assembleCmd)
}
