package nara

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/erazemk/jaego/internal/model"
)

// Query is one keyword lookup against a source.
type Query struct {
	Keyword  string
	Since    time.Time
	Headless bool
}

// Searcher finds bids on one source.
type Searcher interface {
	Source() string
	Search(ctx context.Context, q Query) ([]model.BidItem, error)
}

type searchResult struct {
	bids   []model.BidItem
	errors []string
}

// searchAll runs every keyword against every enabled searcher with bounded
// concurrency and returns the bids deduplicated by source and external id.
func searchAll(ctx context.Context, cfg Config, searchers []Searcher, since time.Time, backoff time.Duration) searchResult {
	var (
		mu     sync.Mutex
		seen   = map[string]bool{}
		result = searchResult{bids: []model.BidItem{}}
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.MaxConcurrentSearches)

	for _, s := range searchers {
		if len(cfg.Sources) > 0 && !slices.Contains(cfg.Sources, s.Source()) {
			continue
		}
		for _, kw := range cfg.Keywords {
			kw = strings.TrimSpace(kw)
			if kw == "" {
				continue
			}
			q := Query{Keyword: kw, Since: since, Headless: cfg.Headless}
			g.Go(func() error {
				bids, err := searchWithRetry(ctx, s, q, cfg, backoff)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					slog.Error("bid search failed", "source", s.Source(), "keyword", q.Keyword, "error", err)
					result.errors = append(result.errors, fmt.Sprintf("%s %q: %v", s.Source(), q.Keyword, err))
					return nil
				}
				for _, b := range bids {
					key := b.Source + "\x00" + b.ExternalID
					if seen[key] {
						continue
					}
					seen[key] = true
					if b.Keyword == "" {
						b.Keyword = q.Keyword
					}
					result.bids = append(result.bids, b)
				}
				return nil
			})
		}
	}
	g.Wait()

	return result
}

// minRetryBackoff is the first retry wait when no search delay is configured.
const minRetryBackoff = time.Second

// retryBackoff is the wait before the first retry of a failed search call.
func retryBackoff(cfg Config) time.Duration {
	return max(time.Duration(cfg.SearchDelaySeconds)*time.Second, minRetryBackoff)
}

// searchWithRetry makes up to 1+MaxRetries attempts, doubling the wait after
// each failure.
func searchWithRetry(ctx context.Context, s Searcher, q Query, cfg Config, backoff time.Duration) ([]model.BidItem, error) {
	wait := backoff
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}

		callCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.TimeoutSeconds)*time.Second)
		bids, err := s.Search(callCtx, q)
		cancel()
		if err == nil {
			return bids, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", cfg.MaxRetries+1, lastErr)
}
