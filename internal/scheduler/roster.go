package scheduler

import (
	"sort"
	"sync"

	"github.com/loykin/jobsched/internal/execution"
)

// executionRoster is the thread-safe container §4.4 requires: concurrent
// add, remove, and enumeration without external synchronization. The
// dispatch tick is its sole writer; readers (eligibility, GetExecutions)
// never take the registry lock to reach it.
type executionRoster struct {
	mu    sync.RWMutex
	execs []*execution.Execution
}

func (r *executionRoster) add(ex *execution.Execution) {
	r.mu.Lock()
	r.execs = append(r.execs, ex)
	r.mu.Unlock()
}

func (r *executionRoster) runningFor(definitionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.execs {
		if e.DefinitionID() == definitionID && e.Running() {
			return true
		}
	}
	return false
}

// forDefinition returns a snapshot of executions for definitionID, newest
// StartTime first.
func (r *executionRoster) forDefinition(definitionID string) []*execution.Execution {
	r.mu.RLock()
	out := make([]*execution.Execution, 0)
	for _, e := range r.execs {
		if e.DefinitionID() == definitionID {
			out = append(out, e)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartTime().After(out[j].StartTime()) })
	return out
}

// removeForDefinition drops every execution belonging to definitionID,
// called once a definition is retired (§4.4 Retirement).
func (r *executionRoster) removeForDefinition(definitionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.execs[:0:0]
	for _, e := range r.execs {
		if e.DefinitionID() != definitionID {
			kept = append(kept, e)
		}
	}
	r.execs = kept
}

// forceStartSet is the thread-safe "flagged for one immediate dispatch"
// container. drain is the explicit read+clear step the dispatch tick uses
// instead of conflating eligibility-read with membership-removal (see the
// force-start Open Question in DESIGN.md).
type forceStartSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newForceStartSet() *forceStartSet {
	return &forceStartSet{ids: make(map[string]struct{})}
}

func (f *forceStartSet) add(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids[id] = struct{}{}
}

func (f *forceStartSet) drain() map[string]struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	drained := f.ids
	f.ids = make(map[string]struct{})
	return drained
}
