// Package collector fetches candidate URLs and normalizes them to clean
// text. Fetches are isolated per URL: one failure never aborts the batch.
package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/logging"
)

// ErrFetchFailed tags per-URL fetch failures. Recoverable: the URL is logged
// and skipped.
var ErrFetchFailed = errors.New("fetch failed")

// Document is one fetched and cleaned page.
type Document struct {
	URL   string
	Title string
	Text  string
}

// FetchError records a single skipped URL.
type FetchError struct {
	URL string
	Err error
}

func (e FetchError) Error() string { return fmt.Sprintf("%s: %v", e.URL, e.Err) }

func (e FetchError) Unwrap() error { return ErrFetchFailed }

// Fetcher retrieves the raw HTML for one URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Collector fetches a batch of URLs with bounded concurrency and cleans the
// results.
type Collector struct {
	fetcher       Fetcher
	maxConcurrent int
}

// New builds a collector around the given fetcher.
func New(fetcher Fetcher, maxConcurrent int) *Collector {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Collector{fetcher: fetcher, maxConcurrent: maxConcurrent}
}

// Collect fetches every URL, cleans each page, and returns the documents in
// the same order as the input. Aggregation waits for all outstanding fetches
// before returning, so downstream chunking never starts on a partial set.
// Per-URL failures are collected, not propagated; only cancellation or
// expiry of the batch context aborts the batch.
func (c *Collector) Collect(ctx context.Context, urls []string) ([]Document, []FetchError, error) {
	docs := make([]*Document, len(urls))
	var mu sync.Mutex
	var failures []FetchError

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrent)

	for i, url := range urls {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			timer := logging.StartTimer(logging.CategoryCollector, "fetch "+url)
			raw, err := c.fetcher.Fetch(gctx, url)
			timer.Stop()
			if err != nil {
				// A dead batch context aborts everything, whether cancelled
				// or past its deadline. A per-URL timeout with the batch
				// context still live stays isolated like any other failure.
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if errors.Is(err, context.Canceled) {
					return err
				}
				logging.CollectorWarn("skipping %s: %v", url, err)
				mu.Lock()
				failures = append(failures, FetchError{URL: url, Err: err})
				mu.Unlock()
				return nil
			}

			title, text := Clean(raw)
			if text == "" {
				logging.CollectorWarn("skipping %s: no visible text after cleaning", url)
				mu.Lock()
				failures = append(failures, FetchError{URL: url, Err: errors.New("no visible text after cleaning")})
				mu.Unlock()
				return nil
			}

			docs[i] = &Document{URL: url, Title: title, Text: text}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, failures, err
	}

	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if d != nil {
			out = append(out, *d)
		}
	}
	logging.Collector("collected %d/%d urls (%d failed)", len(out), len(urls), len(failures))
	return out, failures, nil
}
