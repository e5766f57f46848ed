// Package pipeline orchestrates one crawl end to end: source resolution,
// collection, chunking, and AI routing. It owns the run lifecycle and is the
// only layer that decides which AI backend handles what.
package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/chunker"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/discovery"
	"github.com/lakshman81-ai/NotebooklmCrawler-sub000/internal/notebooklm"
)

// State is the lifecycle phase of a run.
type State int

const (
	StateIdle State = iota
	StateSourceResolution
	StateNotebookLMDiscovery
	StateContentAIProcessing
	StateSynthesizing
	StateAwaitingManualAction
	StateDone
	StateFailed
)

// String returns the user-facing progress label for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSourceResolution:
		return "resolving sources"
	case StateNotebookLMDiscovery:
		return "notebooklm discovery"
	case StateContentAIProcessing:
		return "processing content"
	case StateSynthesizing:
		return "synthesizing report"
	case StateAwaitingManualAction:
		return "awaiting manual action"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the run has finished. AwaitingManualAction is
// terminal for the automated pipeline: the browser is released and the user
// continues by hand.
func (s State) Terminal() bool {
	switch s {
	case StateAwaitingManualAction, StateDone, StateFailed:
		return true
	default:
		return false
	}
}

// Tag classifies a failed run for callers that branch on the cause.
type Tag string

const (
	TagNone                  Tag = ""
	TagNoSourcesFound        Tag = "no_sources_found"
	TagFetchFailed           Tag = "fetch_failed"
	TagNoAIBackendConfigured Tag = "no_ai_backend_configured"
	TagMissingCredential     Tag = "missing_credential"
	TagDriverTimeout         Tag = "driver_timeout"
	TagCancelled             Tag = "cancelled"
	TagAwaitingManualAction  Tag = "awaiting_manual_action"
	TagInternal              Tag = "internal"
)

// Run is the record of one crawl. Fields are written by the runner and read
// through the registry; Snapshot returns a consistent copy.
type Run struct {
	mu sync.Mutex

	ID      string
	Request discovery.Request
	Method  discovery.Method

	State   State
	Tag     Tag
	Message string
	Logs    []string

	URLs     []string
	Chunks   []chunker.Chunk
	Evidence string
	Report   string
	Guided   *notebooklm.GuidedPayload

	StartedAt  time.Time
	FinishedAt time.Time
}

func newRun(req discovery.Request, method discovery.Method) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Request:   req,
		Method:    method,
		State:     StateIdle,
		StartedAt: time.Now(),
	}
}

func (r *Run) setState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.State = s
	if s.Terminal() {
		r.FinishedAt = time.Now()
	}
	r.Logs = append(r.Logs, fmt.Sprintf("[%s] %s", time.Now().Format(time.TimeOnly), s))
}

func (r *Run) logf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Logs = append(r.Logs, fmt.Sprintf("[%s] ", time.Now().Format(time.TimeOnly))+fmt.Sprintf(format, args...))
}

// Snapshot returns a copy safe to read while the run is in flight.
func (r *Run) Snapshot() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	logs := make([]string, len(r.Logs))
	copy(logs, r.Logs)
	return RunStatus{
		ID:       r.ID,
		State:    r.State,
		Progress: r.State.String(),
		Tag:      r.Tag,
		Message:  r.Message,
		Logs:     logs,
	}
}

// RunStatus is the read-only view served by the registry.
type RunStatus struct {
	ID       string
	State    State
	Progress string
	Tag      Tag
	Message  string
	Logs     []string
}
