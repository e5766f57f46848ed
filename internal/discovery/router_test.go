package discovery

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeResolver records calls so tests can prove no-network invariants.
type fakeResolver struct {
	urls  []string
	err   error
	calls int
}

func (f *fakeResolver) Resolve(ctx context.Context, req Request, max int) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.urls, nil
}

func (f *fakeResolver) Name() string { return "fake" }

func newTestStore(t *testing.T) *FileCacheStore {
	t.Helper()
	store, err := NewFileCacheStore(filepath.Join(t.TempDir(), "cache.json"), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestResolve_DirectDeduplicatesPreservingOrder(t *testing.T) {
	r := NewRouter(newTestStore(t), nil, 8, nil)

	urls, err := r.Resolve(context.Background(), Request{Topic: "x"}, MethodDirect,
		[]string{" https://a.example/1 ", "https://a.example/2", "https://a.example/1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/1", "https://a.example/2"}, urls)
}

func TestResolve_DirectRequiresURLs(t *testing.T) {
	r := NewRouter(newTestStore(t), nil, 8, nil)

	_, err := r.Resolve(context.Background(), Request{Topic: "x"}, MethodDirect, nil)
	assert.ErrorIs(t, err, ErrNoSourcesFound)
}

func TestResolve_BlankTopicRejectedForNonDirectMethods(t *testing.T) {
	resolver := &fakeResolver{urls: []string{"https://s.example/1"}}
	r := NewRouter(newTestStore(t), resolver, 8, nil)

	for _, method := range []Method{MethodAuto, MethodGoogle, MethodDuckDuckGo, MethodNotebookLM} {
		_, err := r.Resolve(context.Background(), Request{Topic: "   ", Grade: "8"}, method, nil)
		assert.Error(t, err, method.String())
	}
	assert.Zero(t, resolver.calls, "a blank topic must fail before any search")
}

func TestResolve_AutoCacheMissNeverCallsResolver(t *testing.T) {
	resolver := &fakeResolver{urls: []string{"https://should-not-be-used.example"}}
	r := NewRouter(newTestStore(t), resolver, 8, nil)

	_, err := r.Resolve(context.Background(), Request{Topic: "Photosynthesis", Grade: "7"}, MethodAuto, nil)
	assert.ErrorIs(t, err, ErrNoSourcesFound)
	assert.Zero(t, resolver.calls, "auto mode must not fall back to the search resolver")
}

func TestResolve_AutoCacheHitReturnsCachedURLsInOrder(t *testing.T) {
	store := newTestStore(t)
	req := Request{Topic: "Force and Pressure", Grade: "8"}
	cached := []string{"https://a.example/1", "https://a.example/2"}
	require.NoError(t, store.Put(Fingerprint(req), CacheEntry{URLs: cached, DiscoveredAt: time.Now()}))

	r := NewRouter(store, nil, 8, nil)
	urls, err := r.Resolve(context.Background(), req, MethodAuto, nil)
	require.NoError(t, err)
	assert.Equal(t, cached, urls)
}

func TestResolve_NotebookLMReturnsEmptyList(t *testing.T) {
	r := NewRouter(newTestStore(t), nil, 8, nil)

	urls, err := r.Resolve(context.Background(), Request{Topic: "x"}, MethodNotebookLM, nil)
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestResolve_SearchFiltersBlockedAndWritesCache(t *testing.T) {
	store := newTestStore(t)
	resolver := &fakeResolver{urls: []string{
		"https://en.wikipedia.org/wiki/Pressure",
		"https://www.Pinterest.com/pin/123",
		"https://physics.example/force",
	}}
	r := NewRouter(store, resolver, 8, []string{"pinterest.com"})

	req := Request{Topic: "Force and Pressure", Grade: "8"}
	urls, err := r.Resolve(context.Background(), req, MethodGoogle, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://en.wikipedia.org/wiki/Pressure",
		"https://physics.example/force",
	}, urls)

	// The search path persists its result under the request fingerprint.
	entry, ok, err := store.Get(Fingerprint(req))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, urls, entry.URLs)
}

func TestResolve_SearchCapsResults(t *testing.T) {
	resolver := &fakeResolver{urls: []string{
		"https://s.example/1", "https://s.example/2", "https://s.example/3", "https://s.example/4",
	}}
	r := NewRouter(newTestStore(t), resolver, 2, nil)

	urls, err := r.Resolve(context.Background(), Request{Topic: "x"}, MethodDuckDuckGo, nil)
	require.NoError(t, err)
	assert.Len(t, urls, 2)
}

func TestResolve_DisabledResolverSurfacesNoSources(t *testing.T) {
	r := NewRouter(newTestStore(t), StubResolver{Engine: "google"}, 8, nil)

	_, err := r.Resolve(context.Background(), Request{Topic: "x"}, MethodGoogle, nil)
	assert.ErrorIs(t, err, ErrNoSourcesFound)
}

func TestFingerprint(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		a := Fingerprint(Request{Topic: "Force and Pressure", Grade: "8", Subject: "Physics"})
		b := Fingerprint(Request{Topic: "Force and Pressure", Grade: "8", Subject: "Physics"})
		assert.Equal(t, a, b)
	})

	t.Run("normalizes case and whitespace", func(t *testing.T) {
		a := Fingerprint(Request{Topic: "  Force and Pressure ", Grade: "8"})
		b := Fingerprint(Request{Topic: "force and pressure", Grade: "8"})
		assert.Equal(t, a, b)
	})

	t.Run("subtopics do not affect the key", func(t *testing.T) {
		a := Fingerprint(Request{Topic: "Force", Grade: "8", Subtopics: "friction"})
		b := Fingerprint(Request{Topic: "Force", Grade: "8"})
		assert.Equal(t, a, b)
	})

	t.Run("distinct requests diverge", func(t *testing.T) {
		a := Fingerprint(Request{Topic: "Force", Grade: "8"})
		b := Fingerprint(Request{Topic: "Force", Grade: "9"})
		assert.NotEqual(t, a, b)
	})
}

func TestParseMethod(t *testing.T) {
	for input, want := range map[string]Method{
		"notebooklm": MethodNotebookLM,
		"auto":       MethodAuto,
		"":           MethodAuto,
		"direct":     MethodDirect,
		"urls":       MethodDirect,
		"google":     MethodGoogle,
		"DuckDuckGo": MethodDuckDuckGo,
		"ddg":        MethodDuckDuckGo,
	} {
		got, err := ParseMethod(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseMethod("bing")
	assert.Error(t, err)
}
