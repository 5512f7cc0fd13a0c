package post

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"shorts-pipeline/config"
)

// Chain applies music then outro, each when enabled in config.
type Chain struct {
	proc  *Processor
	music config.MusicConfig
	outro config.OutroConfig
}

// NewChain creates a Chain over proc.
func NewChain(cfg *config.Config, proc *Processor) *Chain {
	return &Chain{proc: proc, music: cfg.Music, outro: cfg.Outro}
}

type step struct {
	name string
	run  func(ctx context.Context, in, out string) error
}

func (c *Chain) steps() []step {
	var steps []step
	if c.music.Enabled {
		steps = append(steps, step{"music", func(ctx context.Context, in, out string) error {
			return c.proc.AddMusic(ctx, in, c.music.Path, c.music.Volume, out)
		}})
	}
	if c.outro.Enabled {
		steps = append(steps, step{"outro", func(ctx context.Context, in, out string) error {
			return c.proc.AppendOutro(ctx, in, c.outro.Image, c.outro.HoldSec, out)
		}})
	}
	return steps
}

// Run post-processes video. Intermediate files go to workDir and the last
// enabled step writes out. With nothing enabled, video is returned as is.
func (c *Chain) Run(ctx context.Context, video, workDir, out string) (string, error) {
	steps := c.steps()
	if len(steps) == 0 {
		c.proc.log.Info("post-processing disabled")
		return video, nil
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", err
	}

	current := video
	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		target := filepath.Join(workDir, fmt.Sprintf("post_%d_%s.mp4", i, s.name))
		if i == len(steps)-1 {
			target = out
		}
		c.proc.log.Info("post step", "step", s.name, "input", filepath.Base(current))
		if err := s.run(ctx, current, target); err != nil {
			return "", fmt.Errorf("%s: %w", s.name, err)
		}
		current = target
	}
	return current, nil
}
