package logging

import (
	"bufio"
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// LogEntry is one parsed line of a run's debug log.
type LogEntry struct {
	Timestamp time.Time      `json:"time"`
	Level     string         `json:"level"`
	Message   string         `json:"msg"`
	RunID     string         `json:"run_id,omitempty"`
	Agent     string         `json:"agent,omitempty"`
	Iteration int            `json:"iteration,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// LogFilter selects log entries. Zero-valued fields do not filter.
// All set criteria must match.
type LogFilter struct {
	// Level keeps entries at or above this level (DEBUG < INFO < WARN < ERROR).
	Level string

	StartTime time.Time
	EndTime   time.Time

	RunID     string
	Agent     string
	Iteration int

	// MessageContains keeps entries whose message contains this substring.
	MessageContains string
}

var levelOrder = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// AggregateLogs reads debug.log and any rotated backups from runDir and
// returns their entries sorted by timestamp. Lines that are not valid JSON
// are skipped so a truncated log still yields the readable part.
func AggregateLogs(runDir string) ([]LogEntry, error) {
	logPath := filepath.Join(runDir, LogFileName)
	if _, err := os.Stat(logPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no log file found in run directory: %w", err)
		}
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	paths := []string{logPath}
	backups, _ := filepath.Glob(logPath + ".*")
	paths = append(paths, backups...)

	var entries []LogEntry
	for _, p := range paths {
		fileEntries, err := readLogFile(p)
		if err != nil {
			return nil, err
		}
		entries = append(entries, fileEntries...)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

func readLogFile(path string) ([]LogEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var r io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			// A backup still being compressed; skip it.
			return nil, nil
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	scanner := bufio.NewScanner(r)
	const maxScanTokenSize = 1024 * 1024
	scanner.Buffer(make([]byte, maxScanTokenSize), maxScanTokenSize)

	var entries []LogEntry
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry, err := parseLogEntry(line)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading log file %s: %w", filepath.Base(path), err)
	}
	return entries, nil
}

var standardFields = map[string]bool{
	"time":      true,
	"level":     true,
	"msg":       true,
	"run_id":    true,
	"agent":     true,
	"iteration": true,
}

func parseLogEntry(line string) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return LogEntry{}, fmt.Errorf("invalid JSON: %w", err)
	}

	entry := LogEntry{Attrs: make(map[string]any)}

	if s, ok := raw["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			entry.Timestamp = t
		}
	}
	entry.Level, _ = raw["level"].(string)
	entry.Message, _ = raw["msg"].(string)
	entry.RunID, _ = raw["run_id"].(string)
	entry.Agent, _ = raw["agent"].(string)
	// encoding/json decodes numbers into float64.
	if n, ok := raw["iteration"].(float64); ok {
		entry.Iteration = int(n)
	}

	for k, v := range raw {
		if !standardFields[k] {
			entry.Attrs[k] = v
		}
	}
	return entry, nil
}

// FilterLogs returns the entries matching filter.
func FilterLogs(entries []LogEntry, filter LogFilter) []LogEntry {
	if filter == (LogFilter{}) {
		return entries
	}

	var filtered []LogEntry
	for _, entry := range entries {
		if matchesFilter(entry, filter) {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

func matchesFilter(entry LogEntry, filter LogFilter) bool {
	if filter.Level != "" {
		want, wantOk := levelOrder[strings.ToUpper(filter.Level)]
		got, gotOk := levelOrder[entry.Level]
		if wantOk && gotOk && got < want {
			return false
		}
	}
	if !filter.StartTime.IsZero() && entry.Timestamp.Before(filter.StartTime) {
		return false
	}
	if !filter.EndTime.IsZero() && entry.Timestamp.After(filter.EndTime) {
		return false
	}
	if filter.RunID != "" && entry.RunID != filter.RunID {
		return false
	}
	if filter.Agent != "" && !strings.EqualFold(entry.Agent, filter.Agent) {
		return false
	}
	if filter.Iteration != 0 && entry.Iteration != filter.Iteration {
		return false
	}
	if filter.MessageContains != "" && !strings.Contains(entry.Message, filter.MessageContains) {
		return false
	}
	return true
}

// ExportLogs aggregates runDir's logs and writes them to outputPath.
// Supported formats: "json", "text", "csv".
func ExportLogs(runDir, outputPath string, format string) error {
	entries, err := AggregateLogs(runDir)
	if err != nil {
		return fmt.Errorf("failed to aggregate logs: %w", err)
	}
	return ExportLogEntries(entries, outputPath, format)
}

// ExportLogEntries writes already aggregated entries to outputPath.
func ExportLogEntries(entries []LogEntry, outputPath string, format string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := WriteLogEntries(file, entries, format); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// WriteLogEntries renders entries to w in the given format.
func WriteLogEntries(w io.Writer, entries []LogEntry, format string) error {
	switch strings.ToLower(format) {
	case "json":
		return writeJSON(w, entries)
	case "text", "":
		return writeText(w, entries)
	case "csv":
		return writeCSV(w, entries)
	default:
		return fmt.Errorf("unsupported export format: %s (supported: json, text, csv)", format)
	}
}

func writeJSON(w io.Writer, entries []LogEntry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

// writeText emits: [TIMESTAMP] LEVEL - MESSAGE (context) {attrs}
func writeText(w io.Writer, entries []LogEntry) error {
	for _, entry := range entries {
		if _, err := io.WriteString(w, FormatEntry(entry)+"\n"); err != nil {
			return fmt.Errorf("failed to write text entry: %w", err)
		}
	}
	return nil
}

// FormatEntry renders a single entry as one human-readable line.
func FormatEntry(entry LogEntry) string {
	parts := []string{
		fmt.Sprintf("[%s]", entry.Timestamp.Format("2006-01-02 15:04:05.000")),
		entry.Level,
		"-",
		entry.Message,
	}

	var ctx []string
	if entry.RunID != "" {
		ctx = append(ctx, "run="+entry.RunID)
	}
	if entry.Iteration != 0 {
		ctx = append(ctx, "iteration="+strconv.Itoa(entry.Iteration))
	}
	if entry.Agent != "" {
		ctx = append(ctx, "agent="+entry.Agent)
	}
	if len(ctx) > 0 {
		parts = append(parts, "("+strings.Join(ctx, ", ")+")")
	}

	if len(entry.Attrs) > 0 {
		if b, err := json.Marshal(entry.Attrs); err == nil {
			parts = append(parts, string(b))
		}
	}
	return strings.Join(parts, " ")
}

func writeCSV(w io.Writer, entries []LogEntry) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"timestamp", "level", "message", "run_id", "agent", "iteration", "attrs"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, entry := range entries {
		attrs := ""
		if len(entry.Attrs) > 0 {
			if b, err := json.Marshal(entry.Attrs); err == nil {
				attrs = string(b)
			}
		}
		iteration := ""
		if entry.Iteration != 0 {
			iteration = strconv.Itoa(entry.Iteration)
		}
		record := []string{
			entry.Timestamp.Format(time.RFC3339Nano),
			entry.Level,
			entry.Message,
			entry.RunID,
			entry.Agent,
			iteration,
			attrs,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
