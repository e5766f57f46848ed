package pipeline

import (
	"fmt"
	"sort"
	"sync"
)

// Registry tracks runs by ID so status can be queried while a run is in
// flight or after it finished. In-memory only; a process restart forgets
// history.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*Run)}
}

func (reg *Registry) add(run *Run) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.runs[run.ID] = run
}

// Status returns the current snapshot of a run.
func (reg *Registry) Status(runID string) (RunStatus, error) {
	reg.mu.RLock()
	run, ok := reg.runs[runID]
	reg.mu.RUnlock()
	if !ok {
		return RunStatus{}, fmt.Errorf("unknown run %q", runID)
	}
	return run.Snapshot(), nil
}

// List returns snapshots of every known run, newest first.
func (reg *Registry) List() []RunStatus {
	reg.mu.RLock()
	runs := make([]*Run, 0, len(reg.runs))
	for _, r := range reg.runs {
		runs = append(runs, r)
	}
	reg.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	out := make([]RunStatus, 0, len(runs))
	for _, r := range runs {
		out = append(out, r.Snapshot())
	}
	return out
}
