package visuals

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Fetcher downloads a remote file to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

// Downloader fetches clips over HTTP with a per-attempt timeout and bounded retries.
type Downloader struct {
	httpClient *http.Client
	attempts   int
	backoff    time.Duration
}

// NewDownloader creates a Downloader. timeout bounds each attempt.
func NewDownloader(timeout time.Duration) *Downloader {
	return &Downloader{
		httpClient: &http.Client{Timeout: timeout},
		attempts:   2,
		backoff:    time.Second,
	}
}

func (d *Downloader) Fetch(ctx context.Context, url, dest string) error {
	var err error
	for attempt := 0; attempt < d.attempts; attempt++ {
		if err = d.fetchOnce(ctx, url, dest); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < d.attempts-1 {
			wait := d.backoff << uint(attempt)
			slog.Debug("download failed, retrying", "component", "visuals", "attempt", attempt+1, "backoff", wait, "err", err)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return fmt.Errorf("download after %d attempts: %w", d.attempts, err)
}

// fetchOnce writes to a temporary sibling and renames on success so a partial
// download never appears under dest.
func (d *Downloader) fetchOnce(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ShortsPipeline/1.0)")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".dl-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
