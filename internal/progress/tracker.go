// Package progress tracks per-task state during a pipeline run.
//
// The generator records one event per task transition; the CLI reads sorted
// snapshots to summarize the run. Completion order is meaningless — snapshots
// are keyed and sorted by (prompt id, effective model id).
package progress

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Task states.
const (
	StatePending = "pending"
	StateRunning = "running"
	StateDone    = "done"
	StateFailed  = "failed"
)

// TaskEvent is the latest known state of one generation task.
type TaskEvent struct {
	PromptID       string    `json:"prompt_id"`
	EffectiveModel string    `json:"effective_model"`
	State          string    `json:"state"`
	TS             time.Time `json:"ts"`
	Message        string    `json:"message,omitempty"`
}

// Key identifies the task across state transitions.
func (e TaskEvent) Key() string {
	return e.PromptID + "\x00" + e.EffectiveModel
}

// Validate checks the event's required fields.
func (e TaskEvent) Validate() error {
	if strings.TrimSpace(e.PromptID) == "" {
		return fmt.Errorf("prompt id is required")
	}
	if strings.TrimSpace(e.EffectiveModel) == "" {
		return fmt.Errorf("effective model is required")
	}
	switch e.State {
	case StatePending, StateRunning, StateDone, StateFailed:
	default:
		return fmt.Errorf("invalid state %q", e.State)
	}
	return nil
}

// Tracker holds the latest event per task. Safe for concurrent use.
type Tracker struct {
	mu   sync.RWMutex
	data map[string]TaskEvent
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{data: make(map[string]TaskEvent)}
}

// Record upserts the event for its task key.
func (t *Tracker) Record(e TaskEvent) {
	t.mu.Lock()
	t.data[e.Key()] = e
	t.mu.Unlock()
}

// Snapshot returns every task's latest event, sorted by prompt id then
// effective model id.
func (t *Tracker) Snapshot() []TaskEvent {
	t.mu.RLock()
	result := make([]TaskEvent, 0, len(t.data))
	for _, e := range t.data {
		result = append(result, e)
	}
	t.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].PromptID == result[j].PromptID {
			return result[i].EffectiveModel < result[j].EffectiveModel
		}
		return result[i].PromptID < result[j].PromptID
	})
	return result
}

// Failed returns the events of tasks that ended in failure, sorted.
func (t *Tracker) Failed() []TaskEvent {
	all := t.Snapshot()
	failed := all[:0]
	for _, e := range all {
		if e.State == StateFailed {
			failed = append(failed, e)
		}
	}
	return failed
}

// Counts returns the number of tasks per state.
func (t *Tracker) Counts() map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	counts := make(map[string]int)
	for _, e := range t.data {
		counts[e.State]++
	}
	return counts
}
