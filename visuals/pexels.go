package visuals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"shorts-pipeline/config"
	"shorts-pipeline/types"
)

// StockSearcher finds candidate clips. An empty result means the query is
// exhausted; it is not an error.
type StockSearcher interface {
	Search(ctx context.Context, query, orientation string, page int) ([]types.StockVideo, error)
}

// PexelsClient searches the Pexels video API.
type PexelsClient struct {
	baseURL    string
	apiKey     string
	perPage    int
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewPexelsClient creates a searcher with a bounded request timeout and a
// shared rate limit.
func NewPexelsClient(cfg config.VisualsConfig, apiKey string) *PexelsClient {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	return &PexelsClient{
		baseURL:    strings.TrimRight(cfg.PexelsBaseURL, "/"),
		apiKey:     apiKey,
		perPage:    cfg.PerPage,
		httpClient: &http.Client{Timeout: time.Duration(cfg.SearchTimeoutSec) * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rpm/60.0), 1),
	}
}

type pexelsResponse struct {
	Videos []struct {
		ID         int64   `json:"id"`
		Duration   float64 `json:"duration"`
		Width      int     `json:"width"`
		Height     int     `json:"height"`
		VideoFiles []struct {
			FileType string `json:"file_type"`
			Width    int    `json:"width"`
			Height   int    `json:"height"`
			Link     string `json:"link"`
		} `json:"video_files"`
	} `json:"videos"`
}

func (p *PexelsClient) Search(ctx context.Context, query, orientation string, page int) ([]types.StockVideo, error) {
	if p.apiKey == "" {
		return nil, errors.New("pexels: PEXELS_API_KEY not set")
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("pexels rate limiter: %w", err)
	}
	if page < 1 {
		page = 1
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("per_page", strconv.Itoa(p.perPage))
	q.Set("page", strconv.Itoa(page))
	if orientation != "" {
		q.Set("orientation", orientation)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/videos/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pexels search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pexels search: HTTP %d", resp.StatusCode)
	}

	var body pexelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("pexels decode: %w", err)
	}

	videos := make([]types.StockVideo, 0, len(body.Videos))
	for _, v := range body.Videos {
		if len(v.VideoFiles) == 0 {
			continue
		}
		file := v.VideoFiles[0]
		for _, f := range v.VideoFiles {
			if f.FileType == mp4Type {
				file = f
				break
			}
		}
		videos = append(videos, types.StockVideo{
			ID:          strconv.FormatInt(v.ID, 10),
			Duration:    v.Duration,
			Width:       file.Width,
			Height:      file.Height,
			FileType:    file.FileType,
			DownloadURL: file.Link,
		})
	}
	return videos, nil
}
