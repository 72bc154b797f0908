// Package audit persists assessment history. Recording is best-effort:
// the gateway logs a warning on failure but never blocks or fails a
// request because the audit trail is behind.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Entry is one audit record. Payload carries the full assessment and is
// stored as JSON; the remaining fields are indexed for later querying.
type Entry struct {
	AnalysisID string    `json:"analysis_id"`
	Kind       string    `json:"kind"` // text | wallet | spoof | compare
	Subject    string    `json:"subject"`
	Score      float64   `json:"score"`
	Level      string    `json:"level"`
	At         time.Time `json:"at"`
	Payload    any       `json:"payload"`
}

// Recorder is the assessment history sink
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	Close() error
}

// JSONLRecorder appends one JSON object per line to a local file
type JSONLRecorder struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJSONLRecorder opens (or creates) the audit file in append mode
func NewJSONLRecorder(path string) (*JSONLRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log %s: %w", path, err)
	}
	return &JSONLRecorder{file: f, enc: json.NewEncoder(f)}, nil
}

func (r *JSONLRecorder) Record(_ context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.Encode(e); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (r *JSONLRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}

// Multi fans one entry out to several sinks, returning the first error
// after attempting all of them.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, e Entry) error {
	var firstErr error
	for _, r := range m {
		if err := r.Record(ctx, e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m Multi) Close() error {
	var firstErr error
	for _, r := range m {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
