// Package visuals resolves narration segments to downloaded stock clips.
package visuals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"shorts-pipeline/config"
	"shorts-pipeline/types"
)

// ErrNoVisual is the soft failure returned when no query produced a clip.
var ErrNoVisual = errors.New("no visual found")

const mp4Type = "video/mp4"

// Resolver maps a segment to a local clip file.
type Resolver struct {
	keywords    KeywordSuggester
	search      StockSearcher
	fetch       Fetcher
	dir         string
	k           int
	orientation string
	maxPages    int
	parallel    int
	log         *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewResolver creates a Resolver that downloads into dir.
func NewResolver(cfg config.VisualsConfig, kw KeywordSuggester, search StockSearcher, fetch Fetcher, dir string) *Resolver {
	return &Resolver{
		keywords:    kw,
		search:      search,
		fetch:       fetch,
		dir:         dir,
		k:           max(cfg.KeywordsPerSegment, 1),
		orientation: cfg.Orientation,
		maxPages:    max(cfg.MaxPages, 1),
		parallel:    max(cfg.MaxConcurrent, 1),
		log:         slog.Default().With("component", "visuals"),
		rng:         rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
	}
}

// WithRand replaces the shuffle source.
func (r *Resolver) WithRand(rng *rand.Rand) *Resolver {
	r.mu.Lock()
	r.rng = rng
	r.mu.Unlock()
	return r
}

// Resolve returns the path of the first clip downloaded for the segment.
// It returns ErrNoVisual when every query and candidate failed, and the
// context error when cancelled.
func (r *Resolver) Resolve(ctx context.Context, seg types.Segment, topic string) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create visuals dir: %w", err)
	}

	keywords := r.suggest(ctx, seg.Text, topic)
	for _, query := range Queries(topic, keywords) {
		for page := 1; page <= r.maxPages; page++ {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			results, err := r.search.Search(ctx, query, r.orientation, page)
			if err != nil {
				r.log.Debug("search failed", "segment", seg.Index, "query", query, "err", err)
				break
			}
			if len(results) == 0 {
				break
			}
			r.shuffle(results)
			if path, ok := r.downloadFirst(ctx, seg.Index, query, results); ok {
				r.log.Info("visual resolved", "segment", seg.Index, "query", query, "file", filepath.Base(path))
				return path, nil
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", ErrNoVisual
}

// ResolveAll resolves every segment concurrently. The result is aligned with
// segments; an empty string marks a segment without a visual. Only
// cancellation fails the batch.
func (r *Resolver) ResolveAll(ctx context.Context, segments []types.Segment, topic string) ([]string, error) {
	paths := make([]string, len(segments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallel)
	for i, seg := range segments {
		g.Go(func() error {
			path, err := r.Resolve(gctx, seg, topic)
			switch {
			case err == nil:
				paths[i] = path
			case gctx.Err() != nil:
				return gctx.Err()
			default:
				r.log.Warn("no visual for segment, placeholder will be used", "segment", seg.Index, "err", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func (r *Resolver) suggest(ctx context.Context, text, topic string) []string {
	if r.keywords != nil {
		kws, err := r.keywords.Suggest(ctx, text, topic, r.k)
		if err == nil && len(kws) > 0 {
			return kws
		}
		if err != nil {
			r.log.Debug("keyword suggestion failed, using heuristic", "err", err)
		}
	}
	return FallbackKeywords(text, topic, r.k)
}

func (r *Resolver) shuffle(v []types.StockVideo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rng.Shuffle(len(v), func(i, j int) { v[i], v[j] = v[j], v[i] })
}

func (r *Resolver) downloadFirst(ctx context.Context, index int, query string, results []types.StockVideo) (string, bool) {
	for _, v := range results {
		if v.FileType != mp4Type || v.DownloadURL == "" {
			continue
		}
		dest := filepath.Join(r.dir, fmt.Sprintf("seg%03d_%s_%s.mp4", index, SafeName(query), v.ID))
		if err := r.fetch.Fetch(ctx, v.DownloadURL, dest); err != nil {
			r.log.Debug("download failed", "segment", index, "id", v.ID, "err", err)
			if ctx.Err() != nil {
				return "", false
			}
			continue
		}
		return dest, true
	}
	return "", false
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9]+`)

// SafeName turns a query into a filename fragment.
func SafeName(s string) string {
	s = unsafeChars.ReplaceAllString(strings.ToLower(s), "_")
	s = strings.Trim(s, "_")
	if len(s) > 40 {
		s = s[:40]
	}
	if s == "" {
		s = "clip"
	}
	return s
}
