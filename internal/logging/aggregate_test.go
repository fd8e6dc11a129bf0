package logging

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAggregateLogs(t *testing.T) {
	t.Run("parses entries written by the logger", func(t *testing.T) {
		dir := t.TempDir()

		logger, err := NewLogger(dir, LevelDebug)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		runLog := logger.WithRun("run-1")
		runLog.WithIteration(1).WithAgent("architect").Info("agent completed", "files_written", 2)
		runLog.WithIteration(1).WithAgent("qa").Debug("agent completed")
		runLog.Error("run failed", "code", 500)
		_ = logger.Close()

		entries, err := AggregateLogs(dir)
		if err != nil {
			t.Fatalf("AggregateLogs failed: %v", err)
		}
		if len(entries) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(entries))
		}

		first := entries[0]
		if first.Message != "agent completed" || first.Level != "INFO" {
			t.Errorf("unexpected first entry: %+v", first)
		}
		if first.RunID != "run-1" || first.Agent != "architect" || first.Iteration != 1 {
			t.Errorf("context fields not parsed: %+v", first)
		}
		if first.Attrs["files_written"] != float64(2) {
			t.Errorf("files_written attr = %v", first.Attrs["files_written"])
		}
		if _, ok := first.Attrs["run_id"]; ok {
			t.Error("run_id should not be duplicated into attrs")
		}
	})

	t.Run("returns error for missing log file", func(t *testing.T) {
		_, err := AggregateLogs(t.TempDir())
		if err == nil || !strings.Contains(err.Error(), "no log file found") {
			t.Errorf("expected 'no log file found' error, got: %v", err)
		}
	})

	t.Run("skips malformed lines and sorts", func(t *testing.T) {
		dir := t.TempDir()
		content := `{"time":"2024-01-01T12:00:02Z","level":"INFO","msg":"third"}
not json
{"time":"2024-01-01T12:00:00Z","level":"INFO","msg":"first"}
`
		if err := os.WriteFile(filepath.Join(dir, LogFileName), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		backup := `{"time":"2024-01-01T12:00:01Z","level":"INFO","msg":"second"}` + "\n"
		if err := os.WriteFile(filepath.Join(dir, LogFileName+".1"), []byte(backup), 0644); err != nil {
			t.Fatal(err)
		}

		entries, err := AggregateLogs(dir)
		if err != nil {
			t.Fatalf("AggregateLogs failed: %v", err)
		}
		if len(entries) != 3 {
			t.Fatalf("expected 3 entries, got %d", len(entries))
		}
		got := []string{entries[0].Message, entries[1].Message, entries[2].Message}
		want := []string{"first", "second", "third"}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("entries[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	})
}

func TestFilterLogs(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	entries := []LogEntry{
		{Timestamp: base, Level: "DEBUG", Message: "prompt built", RunID: "r1", Agent: "architect", Iteration: 1},
		{Timestamp: base.Add(time.Second), Level: "INFO", Message: "agent completed", RunID: "r1", Agent: "qa", Iteration: 1},
		{Timestamp: base.Add(2 * time.Second), Level: "WARN", Message: "path rejected", RunID: "r1", Agent: "qa", Iteration: 2},
		{Timestamp: base.Add(3 * time.Second), Level: "ERROR", Message: "invocation failed", RunID: "r2", Agent: "backend", Iteration: 2},
	}

	tests := []struct {
		name   string
		filter LogFilter
		want   int
	}{
		{"empty filter", LogFilter{}, 4},
		{"level warn", LogFilter{Level: "warn"}, 2},
		{"agent case-insensitive", LogFilter{Agent: "QA"}, 2},
		{"iteration", LogFilter{Iteration: 2}, 2},
		{"run", LogFilter{RunID: "r2"}, 1},
		{"time window", LogFilter{StartTime: base.Add(time.Second), EndTime: base.Add(2 * time.Second)}, 2},
		{"message", LogFilter{MessageContains: "rejected"}, 1},
		{"combined", LogFilter{Agent: "qa", Level: "INFO", Iteration: 1}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FilterLogs(entries, tt.filter); len(got) != tt.want {
				t.Errorf("FilterLogs() returned %d entries, want %d", len(got), tt.want)
			}
		})
	}
}

func TestWriteLogEntries(t *testing.T) {
	entries := []LogEntry{{
		Timestamp: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Level:     "INFO",
		Message:   "agent completed",
		RunID:     "r1",
		Agent:     "qa",
		Iteration: 3,
		Attrs:     map[string]any{"files_written": 1},
	}}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteLogEntries(&buf, entries, "text"); err != nil {
			t.Fatalf("WriteLogEntries failed: %v", err)
		}
		want := `[2024-01-01 12:00:00.000] INFO - agent completed (run=r1, iteration=3, agent=qa) {"files_written":1}` + "\n"
		if buf.String() != want {
			t.Errorf("text = %q, want %q", buf.String(), want)
		}
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteLogEntries(&buf, entries, "JSON"); err != nil {
			t.Fatalf("WriteLogEntries failed: %v", err)
		}
		var decoded []LogEntry
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		if len(decoded) != 1 || decoded[0].Agent != "qa" {
			t.Errorf("decoded = %+v", decoded)
		}
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteLogEntries(&buf, entries, "csv"); err != nil {
			t.Fatalf("WriteLogEntries failed: %v", err)
		}
		records, err := csv.NewReader(&buf).ReadAll()
		if err != nil {
			t.Fatalf("output is not CSV: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("expected header plus one record, got %d", len(records))
		}
		if records[1][4] != "qa" || records[1][5] != "3" {
			t.Errorf("record = %v", records[1])
		}
	})

	t.Run("unsupported format", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteLogEntries(&buf, entries, "xml"); err == nil {
			t.Error("expected error for unsupported format")
		}
	})
}

func TestExportLogs(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, LevelInfo)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	logger.WithRun("r1").Info("run started")
	_ = logger.Close()

	out := filepath.Join(t.TempDir(), "export.json")
	if err := ExportLogs(dir, out, "json"); err != nil {
		t.Fatalf("ExportLogs failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}
	if !strings.Contains(string(data), "run started") {
		t.Errorf("export missing entry: %s", data)
	}
}

func TestParseLogEntry(t *testing.T) {
	entry, err := parseLogEntry(`{"time":"2024-01-01T12:00:00Z","level":"WARN","msg":"m","iteration":4,"agent":"frontend","path":"a.go"}`)
	if err != nil {
		t.Fatalf("parseLogEntry failed: %v", err)
	}
	if entry.Iteration != 4 || entry.Agent != "frontend" || entry.Attrs["path"] != "a.go" {
		t.Errorf("entry = %+v", entry)
	}

	if _, err := parseLogEntry("{not json"); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
