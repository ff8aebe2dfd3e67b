// Package refresh runs the catalog update pipeline: backup, scrape, LLM
// analysis, validation and atomic swap, with a process-wide progress record
// and an audit trail.
package refresh

import (
	"sync"
	"time"

	"github.com/shimayu0701/copilot-navi/internal/models"
)

// StateTracker owns the single refresh record. Only one attempt may run at
// a time; TryStart is the gate. Progress never decreases within an attempt
// even when pipeline phases report out of order.
type StateTracker struct {
	mu    sync.Mutex
	state models.RefreshState
}

func NewStateTracker() *StateTracker {
	return &StateTracker{
		state: models.RefreshState{Status: models.RefreshIdle},
	}
}

// Snapshot returns a copy of the current record.
func (t *StateTracker) Snapshot() models.RefreshState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// TryStart claims the running slot. It returns false without touching the
// record when an attempt is already in flight; otherwise the record is
// re-initialized for a fresh attempt.
func (t *StateTracker) TryStart() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Status == models.RefreshRunning {
		return false
	}

	now := time.Now().UTC()
	t.state = models.RefreshState{
		Status:    models.RefreshRunning,
		Progress:  0,
		Message:   "Starting the update...",
		StartedAt: &now,
	}
	return true
}

// Advance raises progress to pct with the given message. A pct below the
// current value updates the message only.
func (t *StateTracker) Advance(pct int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if pct > t.state.Progress {
		t.state.Progress = pct
	}
	t.state.Message = message
}

// Complete marks the attempt finished and records the audit row it produced.
func (t *StateTracker) Complete(lastResultID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.Status = models.RefreshCompleted
	t.state.LastResultID = lastResultID
}

// Fail marks the attempt failed with a reason.
func (t *StateTracker) Fail(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.Status = models.RefreshFailed
	t.state.Message = message
}
