// Package notifier implements the optional sink surface (§4.5): six hooks
// the scheduler invokes synchronously from the emitting context. Sinks
// must be non-blocking or tolerate the dispatch tick being delayed, and a
// sink failure must never become visible to the rest of the scheduler.
package notifier

import (
	"log/slog"

	"github.com/loykin/jobsched/internal/execution"
)

// DefinitionInfo is the read-only view of a JobDefinition handed to
// registry-change hooks.
type DefinitionInfo struct {
	ID   string
	Name string
}

// Notifier receives lifecycle events. All six hooks are synchronous;
// implementations that do meaningful I/O should do it asynchronously
// internally (e.g. buffer and flush) rather than block the caller.
type Notifier interface {
	DefinitionAdded(def DefinitionInfo)
	DefinitionRemoved(def DefinitionInfo)
	SchedulerStarted()
	SchedulerStopped()
	JobStarted(ex *execution.Execution)
	JobCompleted(ex *execution.Execution)
}

// Multi fans a single event out to every registered Notifier, isolating
// each one: a panicking sink is recovered and logged, never propagated,
// per §7's "sink failure must be isolated" rule.
type Multi struct {
	sinks []Notifier
}

// NewMulti builds a Multi over the given sinks, skipping nils.
func NewMulti(sinks ...Notifier) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *Multi) DefinitionAdded(def DefinitionInfo) {
	m.each(func(s Notifier) { s.DefinitionAdded(def) })
}

func (m *Multi) DefinitionRemoved(def DefinitionInfo) {
	m.each(func(s Notifier) { s.DefinitionRemoved(def) })
}

func (m *Multi) SchedulerStarted() {
	m.each(func(s Notifier) { s.SchedulerStarted() })
}

func (m *Multi) SchedulerStopped() {
	m.each(func(s Notifier) { s.SchedulerStopped() })
}

func (m *Multi) JobStarted(ex *execution.Execution) {
	m.each(func(s Notifier) { s.JobStarted(ex) })
}

func (m *Multi) JobCompleted(ex *execution.Execution) {
	m.each(func(s Notifier) { s.JobCompleted(ex) })
}

func (m *Multi) each(call func(Notifier)) {
	for _, s := range m.sinks {
		s := s
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("notifier sink panicked", "sink", sinkName(s), "recovered", r)
				}
			}()
			call(s)
		}()
	}
}

func sinkName(n Notifier) string {
	if stringer, ok := n.(interface{ String() string }); ok {
		return stringer.String()
	}
	return "unnamed"
}
