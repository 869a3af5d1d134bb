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
	"strings"
	"time"
)

// LogEntry is one parsed line of bufferlab.log.
type LogEntry struct {
	Timestamp time.Time      `json:"time"`
	Level     string         `json:"level"`
	Message   string         `json:"msg"`
	Component string         `json:"component,omitempty"`
	Phase     string         `json:"phase,omitempty"`
	Pool      string         `json:"pool,omitempty"`
	Worker    string         `json:"worker,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// LogFilter selects entries. Zero-valued fields match everything and set
// fields are combined with AND.
type LogFilter struct {
	// Level keeps entries at or above this level.
	Level     string
	StartTime time.Time
	EndTime   time.Time
	Component string
	Phase     string
	Pool      string
	Worker    string
	// MessageContains keeps entries whose message contains the substring.
	MessageContains string
}

var levelOrder = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// contextFields are lifted out of Attrs into LogEntry fields.
var contextFields = []string{"time", "level", "msg", "component", "phase", "pool", "worker"}

// AggregateLogs reads bufferlab.log in dir together with its rotated
// backups (plain or gzipped) and returns every entry sorted by time.
// Lines that are not JSON are skipped.
func AggregateLogs(dir string) ([]LogEntry, error) {
	active := filepath.Join(dir, LogFileName)
	if _, err := os.Stat(active); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no log file found in %s: %w", dir, err)
		}
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	backups, err := filepath.Glob(active + ".*")
	if err != nil {
		return nil, err
	}

	var entries []LogEntry
	for _, path := range append(backups, active) {
		fileEntries, err := readLogFile(path)
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
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}
	return ParseLogEntries(r)
}

// ParseLogEntries parses JSON log lines from r, skipping lines that do not
// parse.
func ParseLogEntries(r io.Reader) ([]LogEntry, error) {
	var entries []LogEntry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, err := ParseLogEntry(line)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading log file: %w", err)
	}
	return entries, nil
}

// ParseLogEntry parses a single JSON log line.
func ParseLogEntry(line string) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return LogEntry{}, fmt.Errorf("invalid JSON: %w", err)
	}

	str := func(key string) string {
		s, _ := raw[key].(string)
		return s
	}
	entry := LogEntry{
		Level:     str("level"),
		Message:   str("msg"),
		Component: str("component"),
		Phase:     str("phase"),
		Pool:      str("pool"),
		Worker:    str("worker"),
	}
	if t, err := time.Parse(time.RFC3339Nano, str("time")); err == nil {
		entry.Timestamp = t
	}

	for _, k := range contextFields {
		delete(raw, k)
	}
	if len(raw) > 0 {
		entry.Attrs = raw
	}
	return entry, nil
}

// FilterLogs returns the entries matching filter.
func FilterLogs(entries []LogEntry, filter LogFilter) []LogEntry {
	if filter == (LogFilter{}) {
		return entries
	}
	var filtered []LogEntry
	for _, e := range entries {
		if filter.Matches(e) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// Matches reports whether e passes every set criterion.
func (f LogFilter) Matches(e LogEntry) bool {
	if f.Level != "" {
		want, ok := levelOrder[strings.ToUpper(f.Level)]
		got, known := levelOrder[strings.ToUpper(e.Level)]
		if ok && known && got < want {
			return false
		}
	}
	if !f.StartTime.IsZero() && e.Timestamp.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && e.Timestamp.After(f.EndTime) {
		return false
	}
	switch {
	case f.Component != "" && e.Component != f.Component,
		f.Phase != "" && e.Phase != f.Phase,
		f.Pool != "" && e.Pool != f.Pool,
		f.Worker != "" && e.Worker != f.Worker:
		return false
	}
	return f.MessageContains == "" || strings.Contains(e.Message, f.MessageContains)
}

// ExportFormats lists the formats accepted by ExportLogEntries.
func ExportFormats() []string {
	return []string{"json", "text", "csv"}
}

// ExportLogEntries writes entries to w as "json", "text" or "csv".
func ExportLogEntries(w io.Writer, entries []LogEntry, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "text":
		for _, e := range entries {
			if _, err := fmt.Fprintln(w, FormatText(e)); err != nil {
				return err
			}
		}
		return nil
	case "csv":
		return exportCSV(w, entries)
	default:
		return fmt.Errorf("unsupported export format: %s (supported: %s)", format, strings.Join(ExportFormats(), ", "))
	}
}

// FormatText renders e as
//
//	[15:04:05.000] LEVEL message (component=race, phase=locked) {"attr":1}
func FormatText(e LogEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s", e.Timestamp.Format("15:04:05.000"), e.Level, e.Message)

	var ctx []string
	for _, kv := range [][2]string{
		{"component", e.Component},
		{"phase", e.Phase},
		{"pool", e.Pool},
		{"worker", e.Worker},
	} {
		if kv[1] != "" {
			ctx = append(ctx, kv[0]+"="+kv[1])
		}
	}
	if len(ctx) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(ctx, ", "))
	}
	if len(e.Attrs) > 0 {
		attrs, _ := json.Marshal(e.Attrs)
		b.WriteString(" ")
		b.Write(attrs)
	}
	return b.String()
}

func exportCSV(w io.Writer, entries []LogEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "level", "message", "component", "phase", "pool", "worker", "attrs"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, e := range entries {
		attrs := ""
		if len(e.Attrs) > 0 {
			if b, err := json.Marshal(e.Attrs); err == nil {
				attrs = string(b)
			}
		}
		record := []string{
			e.Timestamp.Format(time.RFC3339Nano),
			e.Level, e.Message, e.Component, e.Phase, e.Pool, e.Worker, attrs,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
