package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"shorts-pipeline/config"
	"shorts-pipeline/types"
)

// Instagram publishes Reels through the Graph API: create a container from a
// public video URL, wait for it to finish processing, then publish it.
type Instagram struct {
	baseURL string
	userID  string
	token   string
	http    *http.Client
	log     *slog.Logger
}

// NewInstagram creates a Graph API client.
func NewInstagram(cfg config.UploadConfig, secrets config.Secrets) *Instagram {
	return &Instagram{
		baseURL: strings.TrimRight(cfg.GraphBaseURL, "/"),
		userID:  secrets.InstagramUserID,
		token:   secrets.InstagramToken,
		http:    &http.Client{Timeout: 60 * time.Second},
		log:     slog.Default().With("component", "upload", "platform", "instagram"),
	}
}

// CreateContainer registers a REELS container for videoURL.
func (ig *Instagram) CreateContainer(ctx context.Context, videoURL, caption string) (string, error) {
	form := url.Values{
		"media_type":    {"REELS"},
		"video_url":     {videoURL},
		"caption":       {caption},
		"share_to_feed": {"true"},
	}
	res, err := ig.post(ctx, ig.userID+"/media", form)
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	id := res.Get("id").String()
	if id == "" {
		return "", errors.New("create container: no id in response")
	}
	ig.log.Info("container created", "container_id", id)
	return id, nil
}

// Status reports a container's status_code.
func (ig *Instagram) Status(ctx context.Context, containerID string) (types.ProcessingState, error) {
	q := url.Values{"fields": {"status_code,status"}, "access_token": {ig.token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ig.baseURL+"/"+containerID+"?"+q.Encode(), nil)
	if err != nil {
		return types.StatePending, err
	}
	res, err := ig.do(req)
	if err != nil {
		return types.StatePending, fmt.Errorf("container status: %w", err)
	}
	switch code := res.Get("status_code").String(); code {
	case "FINISHED", "PUBLISHED":
		return types.StateFinished, nil
	case "ERROR", "EXPIRED":
		ig.log.Warn("container failed", "container_id", containerID, "status", res.Get("status").String())
		return types.StateError, nil
	default:
		return types.StatePending, nil
	}
}

// Publish publishes a finished container and returns the media ID.
func (ig *Instagram) Publish(ctx context.Context, containerID string) (string, error) {
	res, err := ig.post(ctx, ig.userID+"/media_publish", url.Values{"creation_id": {containerID}})
	if err != nil {
		return "", fmt.Errorf("media publish: %w", err)
	}
	id := res.Get("id").String()
	if id == "" {
		return "", errors.New("media publish: no id in response")
	}
	ig.log.Info("reel published", "media_id", id)
	return id, nil
}

func (ig *Instagram) post(ctx context.Context, path string, form url.Values) (gjson.Result, error) {
	form.Set("access_token", ig.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ig.baseURL+"/"+path, strings.NewReader(form.Encode()))
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return ig.do(req)
}

func (ig *Instagram) do(req *http.Request) (gjson.Result, error) {
	resp, err := ig.http.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, err
	}
	res := gjson.ParseBytes(body)
	if msg := res.Get("error.message"); msg.Exists() {
		return gjson.Result{}, fmt.Errorf("graph api: %s", msg.String())
	}
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("graph api: HTTP %d", resp.StatusCode)
	}
	return res, nil
}

// Caption builds the Reel caption from metadata.
func Caption(meta types.VideoMetadata) string {
	var sb strings.Builder
	sb.WriteString(meta.Title)
	if meta.Description != "" {
		sb.WriteString("\n\n" + meta.Description)
	}
	var tags []string
	for _, t := range meta.Tags {
		if tag := strings.ReplaceAll(strings.TrimSpace(t), " ", ""); tag != "" {
			tags = append(tags, "#"+tag)
		}
	}
	if len(tags) > 0 {
		sb.WriteString("\n\n" + strings.Join(tags, " "))
	}
	return sb.String()
}
