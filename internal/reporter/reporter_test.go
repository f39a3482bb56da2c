package reporter

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/bc-dunia/llmdrill/internal/protocol"
)

func TestRunWritesOneLinePerRecord(t *testing.T) {
	var buf bytes.Buffer
	r := NewWithWriter(&buf)

	done := make(chan error, 1)
	go func() { done <- r.Run() }()

	r.Records() <- protocol.Record{"a": "1"}
	r.Records() <- protocol.Record{"b": "2"}
	close(r.ch)

	if err := <-done; err != nil {
		t.Fatal(err)
	}

	scanner := bufio.NewScanner(&buf)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	var rec protocol.Record
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["a"] != "1" {
		t.Errorf("rec = %v", rec)
	}
	if r.Stats().Written != 2 {
		t.Errorf("Written = %d, want 2", r.Stats().Written)
	}
}

func TestRunOnEmptyChannelIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	r := NewWithWriter(&buf)
	close(r.ch)
	if err := r.Run(); err != nil {
		t.Fatal(err)
	}
	if r.Stats().Written != 0 {
		t.Errorf("Written = %d, want 0", r.Stats().Written)
	}
}
