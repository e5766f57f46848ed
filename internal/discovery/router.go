package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/logging"
)

// ErrNoSourcesFound means discovery yielded nothing and no resolver could
// run. It is recoverable at the pipeline level: the run fails with a clear
// tag instead of crashing.
var ErrNoSourcesFound = errors.New("no sources found")

// Router resolves candidate URLs for a request according to the selected
// discovery method.
type Router struct {
	store    CacheStore
	resolver SearchResolver

	maxResults     int
	blockedDomains []string
}

// NewRouter builds a router. resolver may be nil, in which case search-backed
// methods report ErrNoSourcesFound.
func NewRouter(store CacheStore, resolver SearchResolver, maxResults int, blockedDomains []string) *Router {
	if maxResults <= 0 {
		maxResults = 8
	}
	return &Router{
		store:          store,
		resolver:       resolver,
		maxResults:     maxResults,
		blockedDomains: blockedDomains,
	}
}

// Resolve returns the candidate URL list for the run.
//
// Auto reads the cache and nothing else: a miss is ErrNoSourcesFound, never a
// silent scrape. Google/DuckDuckGo invoke the resolver and persist the result
// (the one legitimate cache write in the normal flow). NotebookLM returns an
// empty list since discovery happens inside the driver later.
func (r *Router) Resolve(ctx context.Context, req Request, method Method, explicitURLs []string) ([]string, error) {
	// Every method except Direct keys off the topic, for the cache
	// fingerprint or the search query. Reject a blank one up front.
	if method != MethodDirect && strings.TrimSpace(req.Topic) == "" {
		return nil, fmt.Errorf("%s discovery requires a non-empty topic", method)
	}

	switch method {
	case MethodDirect:
		urls := dedupeURLs(explicitURLs)
		if len(urls) == 0 {
			return nil, fmt.Errorf("direct discovery requires at least one URL: %w", ErrNoSourcesFound)
		}
		logging.Discovery("direct: %d explicit urls", len(urls))
		return urls, nil

	case MethodAuto:
		fp := Fingerprint(req)
		entry, ok, err := r.store.Get(fp)
		if err != nil {
			return nil, fmt.Errorf("cache lookup: %w", err)
		}
		if !ok {
			logging.Discovery("auto: cache miss for %q (fp=%s)", req.Topic, fp)
			return nil, fmt.Errorf("no cached sources for topic %q (run an explicit discover first): %w", req.Topic, ErrNoSourcesFound)
		}
		logging.Discovery("auto: cache hit for %q, %d urls discovered at %s", req.Topic, len(entry.URLs), entry.DiscoveredAt.Format(time.RFC3339))
		return entry.URLs, nil

	case MethodGoogle, MethodDuckDuckGo:
		return r.resolveViaSearch(ctx, req, method)

	case MethodNotebookLM:
		// The NotebookLM driver searches the web through its own UI.
		return nil, nil

	default:
		return nil, fmt.Errorf("unhandled discovery method %v", method)
	}
}

// RefreshCache re-runs search discovery for the request and overwrites the
// cache entry. This is the explicit operator-triggered refresh; Auto runs
// never call it.
func (r *Router) RefreshCache(ctx context.Context, req Request, method Method) ([]string, error) {
	if method != MethodGoogle && method != MethodDuckDuckGo {
		return nil, fmt.Errorf("refresh requires a search method, got %v", method)
	}
	return r.resolveViaSearch(ctx, req, method)
}

func (r *Router) resolveViaSearch(ctx context.Context, req Request, method Method) ([]string, error) {
	if r.resolver == nil {
		return nil, fmt.Errorf("%s: no resolver wired in: %w", method, ErrNoSourcesFound)
	}

	results, err := r.resolver.Resolve(ctx, req, r.maxResults*2)
	if err != nil {
		if errors.Is(err, ErrResolverDisabled) {
			return nil, fmt.Errorf("%s resolver disabled: %w", method, ErrNoSourcesFound)
		}
		return nil, fmt.Errorf("%s search: %w", method, err)
	}

	urls := dedupeURLs(results)
	urls = r.filterBlocked(urls)
	if len(urls) > r.maxResults {
		urls = urls[:r.maxResults]
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%s search returned no usable urls: %w", method, ErrNoSourcesFound)
	}

	fp := Fingerprint(req)
	if err := r.store.Put(fp, CacheEntry{URLs: urls, DiscoveredAt: time.Now()}); err != nil {
		return nil, fmt.Errorf("persist discovery result: %w", err)
	}
	logging.Discovery("%s: resolved %d urls for %q", method, len(urls), req.Topic)
	return urls, nil
}

// filterBlocked drops URLs whose hostname contains a blocked domain,
// case-insensitively. URLs that fail to parse are matched on the raw string.
func (r *Router) filterBlocked(urls []string) []string {
	if len(r.blockedDomains) == 0 {
		return urls
	}
	out := urls[:0]
	for _, raw := range urls {
		host := raw
		if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
			host = u.Hostname()
		}
		host = strings.ToLower(host)

		blocked := false
		for _, b := range r.blockedDomains {
			if b = strings.ToLower(strings.TrimSpace(b)); b != "" && strings.Contains(host, b) {
				blocked = true
				break
			}
		}
		if blocked {
			logging.DiscoveryDebug("dropping blocked url %s", raw)
			continue
		}
		out = append(out, raw)
	}
	return out
}

// dedupeURLs trims whitespace and removes duplicates, preserving first-seen
// order.
func dedupeURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	var out []string
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
