package discovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/logging"
)

// CacheStore is the narrow seam between the router and cache persistence.
// Implementations must be safe for concurrent use.
type CacheStore interface {
	// Get returns the entry for a fingerprint, or ok=false on a miss.
	Get(fingerprint string) (CacheEntry, bool, error)
	// Put creates or overwrites the entry for a fingerprint.
	Put(fingerprint string, entry CacheEntry) error
	// Delete removes one fingerprint, or everything when fingerprint is "".
	Delete(fingerprint string) error
	// Close releases any held resources.
	Close() error
}

// fileDocument is the on-disk JSON shape: fingerprint -> {urls, discoveredAt}.
// discoveredAt is stored as Unix seconds for compatibility with manual edits.
type fileDocument map[string]fileEntry

type fileEntry struct {
	URLs         []string `json:"urls"`
	DiscoveredAt int64    `json:"discoveredAt"`
}

// FileCacheStore persists the discovery cache as a single JSON document.
// With watching enabled it keeps an in-memory index that reloads whenever an
// operator edits or replaces the file out of band.
type FileCacheStore struct {
	path string

	mu      sync.RWMutex
	index   fileDocument // nil when not watching (read-through mode)
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileCacheStore opens (or lazily creates) a JSON cache at path.
func NewFileCacheStore(path string, watch bool) (*FileCacheStore, error) {
	s := &FileCacheStore{path: path}
	if !watch {
		return s, nil
	}

	doc, err := s.loadDocument()
	if err != nil {
		return nil, err
	}
	s.index = doc

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("cache watcher: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	s.watcher = watcher
	s.done = make(chan struct{})
	go s.watchLoop()
	return s, nil
}

func (s *FileCacheStore) watchLoop() {
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			doc, err := s.loadDocument()
			if err != nil {
				logging.CacheError("reload after external change failed: %v", err)
				continue
			}
			s.mu.Lock()
			s.index = doc
			s.mu.Unlock()
			logging.Cache("reloaded discovery cache after external change (%d entries)", len(doc))
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logging.CacheError("cache watcher: %v", err)
		}
	}
}

func (s *FileCacheStore) loadDocument() (fileDocument, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fileDocument{}, nil
		}
		return nil, fmt.Errorf("read cache: %w", err)
	}
	doc := fileDocument{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse cache %s: %w", s.path, err)
	}
	return doc, nil
}

// Get implements CacheStore.
func (s *FileCacheStore) Get(fingerprint string) (CacheEntry, bool, error) {
	var doc fileDocument
	s.mu.RLock()
	doc = s.index
	s.mu.RUnlock()

	if doc == nil {
		var err error
		doc, err = s.loadDocument()
		if err != nil {
			return CacheEntry{}, false, err
		}
	}

	fe, ok := doc[fingerprint]
	if !ok || len(fe.URLs) == 0 {
		return CacheEntry{}, false, nil
	}
	return CacheEntry{
		URLs:         append([]string(nil), fe.URLs...),
		DiscoveredAt: time.Unix(fe.DiscoveredAt, 0),
	}, true, nil
}

// Put implements CacheStore. The write is atomic: a temp file is written and
// renamed over the old document so concurrent readers never see a torn file.
func (s *FileCacheStore) Put(fingerprint string, entry CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadDocument()
	if err != nil {
		return err
	}
	doc[fingerprint] = fileEntry{
		URLs:         append([]string(nil), entry.URLs...),
		DiscoveredAt: entry.DiscoveredAt.Unix(),
	}
	if err := s.writeDocument(doc); err != nil {
		return err
	}
	if s.index != nil {
		s.index = doc
	}
	logging.Cache("cached %d urls under %s", len(entry.URLs), fingerprint)
	return nil
}

// Delete implements CacheStore.
func (s *FileCacheStore) Delete(fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fingerprint == "" {
		if err := s.writeDocument(fileDocument{}); err != nil {
			return err
		}
		if s.index != nil {
			s.index = fileDocument{}
		}
		return nil
	}

	doc, err := s.loadDocument()
	if err != nil {
		return err
	}
	delete(doc, fingerprint)
	if err := s.writeDocument(doc); err != nil {
		return err
	}
	if s.index != nil {
		s.index = doc
	}
	return nil
}

func (s *FileCacheStore) writeDocument(doc fileDocument) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Close stops the watcher if one is running.
func (s *FileCacheStore) Close() error {
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	if s.watcher != nil {
		err := s.watcher.Close()
		s.watcher = nil
		return err
	}
	return nil
}
