// Package upload publishes finished shorts to YouTube and Instagram Reels.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"shorts-pipeline/config"
	"shorts-pipeline/types"
)

var (
	// ErrPollTimeout is returned when remote processing does not finish in time.
	ErrPollTimeout = errors.New("timed out waiting for remote processing")
	// ErrProcessingFailed is returned when the platform rejects the media.
	ErrProcessingFailed = errors.New("remote processing failed")
)

// Uploader sends a video to a platform and returns its remote ID.
type Uploader interface {
	Upload(ctx context.Context, video string, meta types.VideoMetadata) (string, error)
}

// StatusChecker reports the remote processing state of an uploaded item.
type StatusChecker interface {
	Status(ctx context.Context, id string) (types.ProcessingState, error)
}

// Poller waits for remote processing with capped exponential backoff.
type Poller struct {
	Initial  time.Duration
	Max      time.Duration
	Attempts int
	log      *slog.Logger
}

// NewPoller creates a Poller from config.
func NewPoller(cfg config.UploadConfig) *Poller {
	return &Poller{
		Initial:  time.Duration(cfg.PollInitialSec * float64(time.Second)),
		Max:      time.Duration(cfg.PollMaxSec * float64(time.Second)),
		Attempts: cfg.PollAttempts,
		log:      slog.Default().With("component", "upload"),
	}
}

// Wait polls c until id is FINISHED. A check error counts as a pending
// attempt. ERROR yields ErrProcessingFailed; running out of attempts yields
// ErrPollTimeout.
func (p *Poller) Wait(ctx context.Context, c StatusChecker, id string) error {
	delay := p.Initial
	state := types.StatePending
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		next, err := c.Status(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.Warn("status check failed", "id", id, "attempt", attempt, "err", err)
			next = types.StatePending
		}
		if next != state {
			p.log.Info("processing state", "id", id, "from", string(state), "to", string(next))
			state = next
		}

		switch state {
		case types.StateFinished:
			return nil
		case types.StateError:
			return fmt.Errorf("%w: %s", ErrProcessingFailed, id)
		}
		if attempt == p.Attempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if p.Max > 0 && delay > p.Max {
			delay = p.Max
		}
	}
	return fmt.Errorf("%w: %s after %d checks", ErrPollTimeout, id, p.Attempts)
}
