package discovery

import (
	"context"
	"errors"
)

// ErrResolverDisabled is returned by the stub resolver. The automated search
// scraper is disabled in this version; the interface stays pluggable so a
// network-backed resolver can be wired in without touching the router.
var ErrResolverDisabled = errors.New("search resolver is disabled")

// SearchResolver turns a request into candidate URLs via a search engine.
type SearchResolver interface {
	// Resolve returns up to max candidate URLs for the request.
	Resolve(ctx context.Context, req Request, max int) ([]string, error)
	// Name identifies the engine ("google", "duckduckgo").
	Name() string
}

// StubResolver is the default resolver: it performs no network access and
// always reports itself disabled.
type StubResolver struct {
	Engine string
}

// Resolve implements SearchResolver.
func (s StubResolver) Resolve(ctx context.Context, req Request, max int) ([]string, error) {
	return nil, ErrResolverDisabled
}

// Name implements SearchResolver.
func (s StubResolver) Name() string {
	if s.Engine == "" {
		return "stub"
	}
	return s.Engine
}
