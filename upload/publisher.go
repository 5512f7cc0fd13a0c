package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"shorts-pipeline/config"
	"shorts-pipeline/types"
)

// VideoPlatform uploads and reports processing, as YouTube does.
type VideoPlatform interface {
	Uploader
	StatusChecker
}

// ReelsPlatform publishes from a public URL, as Instagram does.
type ReelsPlatform interface {
	StatusChecker
	CreateContainer(ctx context.Context, videoURL, caption string) (string, error)
	Publish(ctx context.Context, containerID string) (string, error)
}

// Publisher sends a finished video to every configured destination.
type Publisher struct {
	YouTube   VideoPlatform
	Drive     Sharer
	Instagram ReelsPlatform
	Poller    *Poller
	log       *slog.Logger
}

// NewPublisher wires destinations from config. Destinations whose
// credentials are missing are skipped with a warning.
func NewPublisher(ctx context.Context, cfg *config.Config, secrets config.Secrets) (*Publisher, error) {
	p := &Publisher{Poller: NewPoller(cfg.Upload), log: slog.Default().With("component", "upload")}
	needGoogle := cfg.Upload.YouTube || cfg.Upload.Instagram
	if needGoogle && !secrets.HasYouTube() {
		p.log.Warn("google credentials missing, skipping youtube and drive")
		needGoogle = false
	}
	if needGoogle {
		client, err := OAuthClient(ctx, secrets)
		if err != nil {
			return nil, err
		}
		if cfg.Upload.YouTube {
			yt, err := NewYouTube(ctx, client, cfg.Upload)
			if err != nil {
				return nil, err
			}
			p.YouTube = yt
		}
		if cfg.Upload.Instagram {
			d, err := NewDrive(ctx, client, cfg.Upload.DriveFolderID)
			if err != nil {
				return nil, err
			}
			p.Drive = d
		}
	}
	if cfg.Upload.Instagram {
		switch {
		case !secrets.HasInstagram():
			p.log.Warn("instagram credentials missing, skipping reels")
		case p.Drive == nil:
			p.log.Warn("instagram needs drive hosting, skipping reels")
		default:
			p.Instagram = NewInstagram(cfg.Upload, secrets)
		}
	}
	return p, nil
}

// Enabled reports whether any destination is wired.
func (p *Publisher) Enabled() bool {
	return p.YouTube != nil || (p.Instagram != nil && p.Drive != nil)
}

// Publish uploads video everywhere it can. A failing destination does not
// stop the others; all failures are joined into the returned error.
func (p *Publisher) Publish(ctx context.Context, video string, meta types.VideoMetadata) ([]types.PublishResult, error) {
	var results []types.PublishResult
	var errs []error

	if p.YouTube != nil {
		res, err := p.publishYouTube(ctx, video, meta)
		if err != nil {
			errs = append(errs, fmt.Errorf("youtube: %w", err))
		} else {
			results = append(results, res)
		}
	}
	if ctx.Err() != nil {
		return results, ctx.Err()
	}
	if p.Instagram != nil && p.Drive != nil {
		res, err := p.publishInstagram(ctx, video, meta)
		if err != nil {
			errs = append(errs, fmt.Errorf("instagram: %w", err))
		} else {
			results = append(results, res)
		}
	}
	return results, errors.Join(errs...)
}

func (p *Publisher) publishYouTube(ctx context.Context, video string, meta types.VideoMetadata) (types.PublishResult, error) {
	id, err := p.YouTube.Upload(ctx, video, meta)
	if err != nil {
		return types.PublishResult{}, err
	}
	res := types.PublishResult{Platform: "youtube", RemoteID: id, URL: VideoURL(id)}
	if err := p.Poller.Wait(ctx, p.YouTube, id); err != nil {
		if errors.Is(err, ErrPollTimeout) {
			p.log.Warn("youtube still processing, continuing", "video_id", id)
			return res, nil
		}
		return types.PublishResult{}, err
	}
	return res, nil
}

func (p *Publisher) publishInstagram(ctx context.Context, video string, meta types.VideoMetadata) (types.PublishResult, error) {
	_, link, err := p.Drive.Share(ctx, video)
	if err != nil {
		return types.PublishResult{}, err
	}
	container, err := p.Instagram.CreateContainer(ctx, link, Caption(meta))
	if err != nil {
		return types.PublishResult{}, err
	}
	if err := p.Poller.Wait(ctx, p.Instagram, container); err != nil {
		return types.PublishResult{}, err
	}
	id, err := p.Instagram.Publish(ctx, container)
	if err != nil {
		return types.PublishResult{}, err
	}
	return types.PublishResult{Platform: "instagram", RemoteID: id}, nil
}
