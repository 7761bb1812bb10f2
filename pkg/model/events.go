package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is anything published on the run event bus.
type Event interface {
	EventType() string
}

// RunStarted is emitted once before the first term.
type RunStarted struct {
	RunID       string    `json:"run_id"`
	Terms       []string  `json:"terms"`
	Instruments int       `json:"instruments"`
	Timestamp   time.Time `json:"timestamp"`
}

// TermStarted is emitted when a term enters RunningTerm.
type TermStarted struct {
	RunID      string    `json:"run_id"`
	Term       string    `json:"term"`
	OutputPath string    `json:"output_path"`
	Timestamp  time.Time `json:"timestamp"`
}

// TermCompleted is emitted after the term's report reached the sink.
type TermCompleted struct {
	RunID       string        `json:"run_id"`
	Term        string        `json:"term"`
	OutputPath  string        `json:"output_path"`
	Instruments int           `json:"instruments"`
	Quoted      int           `json:"quoted"`
	Duration    time.Duration `json:"duration_ns"`
	Timestamp   time.Time     `json:"timestamp"`
}

// TermFailed is emitted when a term ends in TermFailed.
type TermFailed struct {
	RunID      string    `json:"run_id"`
	Term       string    `json:"term"`
	OutputPath string    `json:"output_path"`
	Error      string    `json:"error"`
	Timestamp  time.Time `json:"timestamp"`
}

// RunCompleted is emitted once every term was attempted.
type RunCompleted struct {
	RunID     string    `json:"run_id"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Canceled  bool      `json:"canceled"`
	Timestamp time.Time `json:"timestamp"`
}

func (RunStarted) EventType() string    { return "run.started" }
func (TermStarted) EventType() string   { return "term.started" }
func (TermCompleted) EventType() string { return "term.completed" }
func (TermFailed) EventType() string    { return "term.failed" }
func (RunCompleted) EventType() string  { return "run.completed" }

// Envelope wraps an event for external transports.
type Envelope struct {
	ID        uuid.UUID       `json:"id"`
	RunID     string          `json:"run_id"`
	Topic     string          `json:"topic"`
	EventType string          `json:"event_type"`
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Topic maps an event type onto its versioned subject, e.g. "evt.askprice.term.completed.v1".
func Topic(e Event) string {
	return "evt.askprice." + e.EventType() + ".v1"
}

// NewEnvelope marshals e into a fresh envelope.
func NewEnvelope(runID string, e Event) (*Envelope, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		ID:        uuid.New(),
		RunID:     runID,
		Topic:     Topic(e),
		EventType: e.EventType(),
		Version:   "1.0.0",
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}, nil
}

// RunIDOf returns the run identifier carried by e, or "" for foreign events.
func RunIDOf(e Event) string {
	switch v := e.(type) {
	case RunStarted:
		return v.RunID
	case TermStarted:
		return v.RunID
	case TermCompleted:
		return v.RunID
	case TermFailed:
		return v.RunID
	case RunCompleted:
		return v.RunID
	}
	return ""
}
