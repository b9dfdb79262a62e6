// Package telemetry provides a JSONL event stream for recording the stages
// of an analysis run. Every run start, completed stage, warning, and run
// outcome is recorded as a structured JSON event tagged with the run's id,
// so successive runs appended to one file stay distinguishable.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event kinds identify the type of telemetry event.
const (
	KindRunStart  = "run_start"
	KindStageDone = "stage_done"
	KindWarning   = "warning"
	KindRunDone   = "run_done"
	KindRunFailed = "run_failed"
)

// Event represents a single telemetry record. Each event carries a timestamp,
// a kind tag, the run id, and optionally the pipeline stage it refers to
// along with arbitrary structured data.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Kind      string    `json:"kind"`
	RunID     string    `json:"run,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// Emitter writes telemetry events to a JSONL file. It is safe for concurrent
// use by multiple goroutines. A nil *Emitter is a valid no-op emitter.
type Emitter struct {
	file  *os.File
	enc   *json.Encoder
	runID string
	mu    sync.Mutex
}

// NewEmitter creates a new Emitter that writes JSONL events to the file at
// path under a freshly generated run id. The file is created if it does
// not exist, or appended to if it does.
func NewEmitter(path string) (*Emitter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	return &Emitter{
		file:  f,
		enc:   json.NewEncoder(f),
		runID: uuid.NewString(),
	}, nil
}

// RunID returns the id stamped on every event. It is empty for a nil Emitter.
func (e *Emitter) RunID() string {
	if e == nil {
		return ""
	}
	return e.runID
}

// Emit writes a single event to the JSONL file, filling in the run id and
// a zero timestamp. It is safe for concurrent use.
// Calling Emit on a nil Emitter is a no-op.
func (e *Emitter) Emit(evt Event) error {
	if e == nil {
		return nil
	}
	if evt.RunID == "" {
		evt.RunID = e.runID
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enc.Encode(evt); err != nil {
		return fmt.Errorf("telemetry: encode event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file. Calling Close on a nil
// Emitter is a no-op.
func (e *Emitter) Close() error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.file.Close(); err != nil {
		return fmt.Errorf("telemetry: close: %w", err)
	}
	return nil
}
