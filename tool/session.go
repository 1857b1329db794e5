// Package tool builds the name-keyed registry of callable business actions
// exposed to the model and dispatches the tool calls the model requests
// during one agent turn.
package tool

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// CallRecord is one invocation of a tool during an agent turn. Records are
// appended in invocation order and never mutated after append; they persist
// only for the duration of the turn and are returned to the caller for
// auditing.
type CallRecord struct {
	// ActionID references the action behind the tool.
	ActionID int64

	// Tool is the registry name the model invoked.
	Tool string

	// Args are the model-supplied arguments.
	Args map[string]any

	// Result is the textual result fed back to the model.
	Result string

	// Err is the absorbed execution error, nil on success.
	Err error

	// Duration is how long the call took.
	Duration time.Duration
}

// Session is the request-scoped accumulator for one agent turn: a batch id,
// the cumulative tool execution time, and the ordered call history. It is
// created at the start of the turn and torn down with it; each request owns
// its own instance, so the mutex only guards against misuse, not against
// cross-request sharing.
type Session struct {
	// BatchID identifies this agent turn in logs and audit trails.
	BatchID string

	mu       sync.Mutex
	toolTime time.Duration
	records  []CallRecord
}

// NewSession starts a new agent-turn session.
func NewSession() *Session {
	return &Session{BatchID: uuid.NewString()}
}

// Record appends one call record and accumulates its duration.
func (s *Session) Record(rec CallRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolTime += rec.Duration
	s.records = append(s.records, rec)
}

// Records returns a copy of the call history in invocation order.
func (s *Session) Records() []CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CallRecord, len(s.records))
	copy(out, s.records)
	return out
}

// ToolTime returns the cumulative tool execution time across all calls in
// this turn.
func (s *Session) ToolTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toolTime
}
