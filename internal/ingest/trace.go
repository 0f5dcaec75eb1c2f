package ingest

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// TraceEntry is one serialized step.
type TraceEntry struct {
	RunID      string    `json:"run_id"`
	Plan       string    `json:"plan"`
	Table      string    `json:"table"`
	Source     string    `json:"source"`
	Status     string    `json:"status"`
	Read       int       `json:"read"`
	Inserted   int       `json:"inserted"`
	Skipped    int       `json:"skipped"`
	Filtered   int       `json:"filtered"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	EndedAt    time.Time `json:"ended_at"`
}

// TraceRecorder writes steps as JSON lines and retains them for inspection.
type TraceRecorder struct {
	mu      sync.Mutex
	entries []TraceEntry
	enc     *json.Encoder
	now     func() time.Time
}

// NewTraceRecorder constructs a recorder writing to w. A nil writer only
// retains entries.
func NewTraceRecorder(w io.Writer) *TraceRecorder {
	var enc *json.Encoder
	if w != nil {
		enc = json.NewEncoder(w)
	}
	return &TraceRecorder{enc: enc, now: time.Now}
}

// Entries returns a copy of all recorded steps.
func (t *TraceRecorder) Entries() []TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Observe implements Recorder.
func (t *TraceRecorder) Observe(_ context.Context, obs Observation) {
	entry := TraceEntry{
		RunID:      obs.RunID,
		Plan:       obs.Plan,
		Table:      obs.Table,
		Source:     obs.Source,
		Status:     statusSuccess,
		Read:       obs.Read,
		Inserted:   obs.Inserted,
		Skipped:    obs.Skipped,
		Filtered:   obs.Filtered,
		DurationMS: float64(obs.Duration) / float64(time.Millisecond),
		EndedAt:    t.now().UTC(),
	}
	if obs.Err != nil {
		entry.Status = statusError
		entry.Error = obs.Err.Error()
	}

	t.mu.Lock()
	t.entries = append(t.entries, entry)
	if t.enc != nil {
		_ = t.enc.Encode(entry)
	}
	t.mu.Unlock()
}
