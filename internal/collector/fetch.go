package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/browser"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/config"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/logging"
)

// StaticFetcher retrieves pages with a plain HTTP GET. Good enough for
// server-rendered pages; JavaScript-heavy pages need the RenderedFetcher.
type StaticFetcher struct {
	client       *http.Client
	userAgent    string
	maxRetries   int
	maxBodyBytes int64
}

// NewStaticFetcher builds a fetcher from collector config.
func NewStaticFetcher(cfg config.CollectorConfig, timeout time.Duration) *StaticFetcher {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return &StaticFetcher{
		client:       &http.Client{Timeout: timeout},
		userAgent:    cfg.UserAgent,
		maxRetries:   cfg.MaxRetries,
		maxBodyBytes: maxBody,
	}
}

// Fetch implements Fetcher with exponential-backoff retries on transient
// failures.
func (f *StaticFetcher) Fetch(ctx context.Context, url string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			logging.CollectorDebug("retry %d for %s after %v", attempt, url, backoff)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, err := f.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

func (f *StaticFetcher) fetchOnce(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// RenderedFetcher retrieves pages through the owned browser so client-side
// rendered content is present in the DOM before cleaning.
type RenderedFetcher struct {
	manager *browser.Manager
}

// NewRenderedFetcher wraps a browser manager.
func NewRenderedFetcher(manager *browser.Manager) *RenderedFetcher {
	return &RenderedFetcher{manager: manager}
}

// Fetch implements Fetcher via a real browser session.
func (f *RenderedFetcher) Fetch(ctx context.Context, url string) (string, error) {
	return f.manager.RenderedHTML(ctx, url)
}
