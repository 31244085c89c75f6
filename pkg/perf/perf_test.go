package perf

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRecorderWritesJSONLLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "performance.jsonl")

	rec, err := NewRecorder(path)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	if err := rec.Record(WakeToTranscriptionStart, 42*time.Millisecond, map[string]interface{}{"turn": 1}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	rec.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty performance log")
	}
}

func TestBreakdownSinceComputesElapsed(t *testing.T) {
	b := NewBreakdown()
	b.Mark("start")
	time.Sleep(2 * time.Millisecond)
	d := b.Since(LLMFirstTokenElapsed, "start")
	if d <= 0 {
		t.Fatalf("expected positive elapsed duration, got %v", d)
	}
	values := b.Values()
	if _, ok := values[LLMFirstTokenElapsed]; !ok {
		t.Fatalf("expected recorded value for %s", LLMFirstTokenElapsed)
	}
}

func TestBreakdownSinceUnknownMarkReturnsZero(t *testing.T) {
	b := NewBreakdown()
	if d := b.Since("x", "missing"); d != 0 {
		t.Fatalf("expected 0 for unknown mark, got %v", d)
	}
}
