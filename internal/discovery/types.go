// Package discovery resolves candidate source URLs for a study topic.
// The discovery cache is the source of truth for Auto runs; re-scraping
// sources on a normal pipeline run is forbidden. Refresh is a conscious
// operator action.
package discovery

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Request describes one topic to discover sources for.
// Immutable once constructed; created per pipeline run from user input.
type Request struct {
	Topic     string `json:"topic"`
	Grade     string `json:"grade"`
	Subject   string `json:"subject"`
	Subtopics string `json:"subtopics,omitempty"`
}

// Method selects which branch of the discovery router executes.
type Method int

const (
	MethodNotebookLM Method = iota // delegate discovery to the NotebookLM driver
	MethodAuto                     // cache read only
	MethodDirect                   // explicit user-supplied URLs
	MethodGoogle                   // search resolver + cache write
	MethodDuckDuckGo               // search resolver + cache write
)

// String returns the method's config name.
func (m Method) String() string {
	switch m {
	case MethodNotebookLM:
		return "notebooklm"
	case MethodAuto:
		return "auto"
	case MethodDirect:
		return "direct"
	case MethodGoogle:
		return "google"
	case MethodDuckDuckGo:
		return "duckduckgo"
	default:
		return "unknown"
	}
}

// ParseMethod converts a config string into a Method.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "notebooklm":
		return MethodNotebookLM, nil
	case "auto", "":
		return MethodAuto, nil
	case "direct", "urls":
		return MethodDirect, nil
	case "google":
		return MethodGoogle, nil
	case "duckduckgo", "ddg":
		return MethodDuckDuckGo, nil
	default:
		return MethodAuto, fmt.Errorf("unknown discovery method %q", s)
	}
}

// CacheEntry is one persisted discovery result set.
type CacheEntry struct {
	URLs         []string  `json:"urls"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// Fingerprint derives the deterministic cache key for a request.
// Only topic, grade, and subject participate; subtopics refine prompts, not
// source discovery.
func Fingerprint(req Request) string {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	seed := norm(req.Topic) + "|" + norm(req.Grade) + "|" + norm(req.Subject)
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:16])
}
