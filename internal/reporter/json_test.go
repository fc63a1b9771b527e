package reporter

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var events []map[string]any
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var ev map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("non-JSON line %q: %v", scanner.Text(), err)
		}
		events = append(events, ev)
	}
	return events
}

func TestJSONReporterEventShape(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONReporterWithWriter(&buf)

	r.Hardware(HardwareSummary{Hostname: "encoder-box"})
	r.Warning("low disk space")
	r.EncodingComplete(EncodingOutcome{
		OutputFile:   "movie.mkv",
		OriginalSize: 1000,
		EncodedSize:  400,
		TotalTime:    90 * time.Second,
	})

	events := decodeLines(t, &buf)
	if len(events) != 3 {
		t.Fatalf("emitted %d events, want 3", len(events))
	}

	for _, ev := range events {
		if _, ok := ev["type"]; !ok {
			t.Errorf("event missing type: %v", ev)
		}
		if _, ok := ev["timestamp"]; !ok {
			t.Errorf("event missing timestamp: %v", ev)
		}
	}

	if events[0]["type"] != "hardware" || events[0]["hostname"] != "encoder-box" {
		t.Errorf("hardware event = %v", events[0])
	}
	if events[1]["message"] != "low disk space" {
		t.Errorf("warning event = %v", events[1])
	}
	if events[2]["size_reduction_percent"].(float64) != 60.0 {
		t.Errorf("encoding_complete reduction = %v", events[2]["size_reduction_percent"])
	}
}

func TestJSONReporterProgressThrottling(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONReporterWithWriter(&buf)
	r.EncodingStarted(1000)

	// Many updates inside the same percent bucket collapse to one event.
	for range 10 {
		r.EncodingProgress(ProgressSnapshot{Percent: 1.2})
	}
	// A new bucket emits again.
	r.EncodingProgress(ProgressSnapshot{Percent: 2.5})

	events := decodeLines(t, &buf)
	progressCount := 0
	for _, ev := range events {
		if ev["type"] == "encoding_progress" {
			progressCount++
		}
	}
	if progressCount != 2 {
		t.Errorf("emitted %d progress events, want 2 (one per percent bucket)", progressCount)
	}
}

func TestJSONReporterAlwaysEmitsNearCompletion(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONReporterWithWriter(&buf)
	r.EncodingStarted(100)

	r.EncodingProgress(ProgressSnapshot{Percent: 99.1})
	r.EncodingProgress(ProgressSnapshot{Percent: 99.6})

	events := decodeLines(t, &buf)
	progressCount := 0
	for _, ev := range events {
		if ev["type"] == "encoding_progress" {
			progressCount++
		}
	}
	if progressCount != 2 {
		t.Errorf("emitted %d progress events at 99%%+, want every one", progressCount)
	}
}
