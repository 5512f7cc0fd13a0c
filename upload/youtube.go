package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"shorts-pipeline/config"
	"shorts-pipeline/types"
)

// OAuthClient creates an HTTP client that refreshes the stored Google
// refresh token on first use.
func OAuthClient(ctx context.Context, secrets config.Secrets) (*http.Client, error) {
	if !secrets.HasYouTube() {
		return nil, errors.New("YOUTUBE_CLIENT_ID, YOUTUBE_CLIENT_SECRET, or YOUTUBE_REFRESH_TOKEN not set")
	}
	conf := &oauth2.Config{
		ClientID:     secrets.YouTubeClientID,
		ClientSecret: secrets.YouTubeClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope, youtube.YoutubeReadonlyScope, drive.DriveFileScope},
	}
	token := &oauth2.Token{
		RefreshToken: secrets.YouTubeRefreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh
	}
	return conf.Client(ctx, token), nil
}

// YouTube uploads through the Data API v3.
type YouTube struct {
	svc *youtube.Service
	cfg config.UploadConfig
	log *slog.Logger
}

// NewYouTube creates the service. Extra options are for tests.
func NewYouTube(ctx context.Context, client *http.Client, cfg config.UploadConfig, opts ...option.ClientOption) (*YouTube, error) {
	svc, err := youtube.NewService(ctx, append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	return &YouTube{svc: svc, cfg: cfg, log: slog.Default().With("component", "upload", "platform", "youtube")}, nil
}

func (y *YouTube) Upload(ctx context.Context, video string, meta types.VideoMetadata) (string, error) {
	f, err := os.Open(video)
	if err != nil {
		return "", fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()

	if fi, err := f.Stat(); err == nil {
		y.log.Info("uploading", "title", meta.Title, "size_mb", float64(fi.Size())/1024/1024)
	}

	visibility := meta.Visibility
	if visibility == "" {
		visibility = y.cfg.Visibility
	}
	body := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:                meta.Title,
			Description:          meta.Description,
			Tags:                 meta.Tags,
			CategoryId:           meta.CategoryID,
			DefaultLanguage:      y.cfg.DefaultLanguage,
			DefaultAudioLanguage: y.cfg.DefaultLanguage,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           visibility,
			SelfDeclaredMadeForKids: y.cfg.MadeForKids,
		},
	}

	uploaded, err := y.svc.Videos.Insert([]string{"snippet", "status"}, body).Media(f).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("youtube upload: %w", err)
	}
	y.log.Info("uploaded", "video_id", uploaded.Id)
	return uploaded.Id, nil
}

func (y *YouTube) Status(ctx context.Context, id string) (types.ProcessingState, error) {
	resp, err := y.svc.Videos.List([]string{"status", "processingDetails"}).Id(id).Context(ctx).Do()
	if err != nil {
		return types.StatePending, fmt.Errorf("youtube status: %w", err)
	}
	if len(resp.Items) == 0 {
		return types.StatePending, nil
	}
	item := resp.Items[0]
	processing, upload := "", ""
	if item.ProcessingDetails != nil {
		processing = item.ProcessingDetails.ProcessingStatus
	}
	if item.Status != nil {
		upload = item.Status.UploadStatus
	}
	return YouTubeState(processing, upload), nil
}

// YouTubeState maps processingDetails.processingStatus and
// status.uploadStatus onto a processing state.
func YouTubeState(processing, upload string) types.ProcessingState {
	switch {
	case processing == "failed" || processing == "terminated",
		upload == "failed" || upload == "rejected" || upload == "deleted":
		return types.StateError
	case processing == "succeeded" || upload == "processed":
		return types.StateFinished
	}
	return types.StatePending
}

// VideoURL returns the public Shorts URL for a video ID.
func VideoURL(id string) string {
	return "https://www.youtube.com/shorts/" + id
}
