package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestJSONLRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assessments.jsonl")

	r, err := NewJSONLRecorder(path)
	if err != nil {
		t.Fatalf("open recorder: %v", err)
	}

	entries := []Entry{
		{
			AnalysisID: "a1",
			Kind:       "text",
			Subject:    "suspicious message",
			Score:      85,
			Level:      "CRITICAL",
			Payload:    map[string]any{"red_flags": 3},
		},
		{
			AnalysisID: "a2",
			Kind:       "wallet",
			Subject:    "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0",
			Score:      20,
			Level:      "LOW",
		},
	}
	for _, e := range entries {
		if err := r.Record(t.Context(), e); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("reopen audit log: %v", err)
	}
	defer f.Close()

	var got []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		got = append(got, e)
	}

	if len(got) != len(entries) {
		t.Fatalf("read %d entries, want %d", len(got), len(entries))
	}
	for i, e := range got {
		if e.AnalysisID != entries[i].AnalysisID {
			t.Errorf("entry %d id = %s, want %s", i, e.AnalysisID, entries[i].AnalysisID)
		}
		if e.At.IsZero() {
			t.Errorf("entry %d missing timestamp", i)
		}
	}
}

func TestJSONLRecorderAppendsAcrossReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assessments.jsonl")

	for i := 0; i < 2; i++ {
		r, err := NewJSONLRecorder(path)
		if err != nil {
			t.Fatalf("open recorder: %v", err)
		}
		if err := r.Record(t.Context(), Entry{AnalysisID: "a", Kind: "text", At: time.Now()}); err != nil {
			t.Fatalf("record: %v", err)
		}
		r.Close()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	if lines != 2 {
		t.Errorf("audit log holds %d lines, want 2", lines)
	}
}

// failSink always errors, for Multi behavior
type failSink struct{ closed bool }

func (f *failSink) Record(_ context.Context, _ Entry) error { return os.ErrPermission }
func (f *failSink) Close() error                            { f.closed = true; return nil }

func TestMultiAttemptsEverySink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assessments.jsonl")
	jl, err := NewJSONLRecorder(path)
	if err != nil {
		t.Fatalf("open recorder: %v", err)
	}

	fs := &failSink{}
	m := Multi{fs, jl}

	// The failing sink reports its error, the healthy one still records
	if err := m.Record(t.Context(), Entry{AnalysisID: "a1", Kind: "text"}); err == nil {
		t.Error("expected error from failing sink")
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !fs.closed {
		t.Error("Multi.Close skipped a sink")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	if len(data) == 0 {
		t.Error("healthy sink did not record despite sibling failure")
	}
}
