package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/bufferlab/internal/config"
	"github.com/Iron-Ham/bufferlab/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View run logs",
	Long: `View and filter the structured log written when logging.dir is set.

Rotated backups are read too, so a long debug-level race run can be replayed
worker by worker.

Examples:
  # Last 50 entries
  bufferlab logs

  # Every start and stop of one worker in the unlocked phase
  bufferlab logs -n 0 --level debug --phase unlocked --worker incrementer-0

  # Warnings from the last hour, exported as CSV
  bufferlab logs --level warn --since 1h --export warn.csv --export-format csv

  # Follow a run in another terminal
  bufferlab logs -f --component pipeline`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsDir          string
	logsTail         int
	logsFollow       bool
	logsLevel        string
	logsSince        string
	logsGrep         string
	logsComponent    string
	logsPhase        string
	logsPool         string
	logsWorker       string
	logsExport       string
	logsExportFormat string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	flags := logsCmd.Flags()
	flags.StringVar(&logsDir, "dir", "", "log directory (default: logging.dir)")
	flags.IntVarP(&logsTail, "tail", "n", 50, "number of entries to show (0 for all)")
	flags.BoolVarP(&logsFollow, "follow", "f", false, "follow new entries (like tail -f)")
	flags.StringVar(&logsLevel, "level", "", "minimum level (debug/info/warn/error)")
	flags.StringVar(&logsSince, "since", "", "only entries newer than this duration (e.g. 1h, 30m)")
	flags.StringVar(&logsGrep, "grep", "", "only entries whose message or attributes match this regex")
	flags.StringVar(&logsComponent, "component", "", "only entries from this component (race, pipeline, compare)")
	flags.StringVar(&logsPhase, "phase", "", "only entries from this phase or stage")
	flags.StringVar(&logsPool, "pool", "", "only entries from this worker pool")
	flags.StringVar(&logsWorker, "worker", "", "only entries from this worker")
	flags.StringVar(&logsExport, "export", "", "write matching entries to this file instead")
	flags.StringVar(&logsExportFormat, "export-format", "text", "export format: json, text, csv")
}

func runLogs(cmd *cobra.Command, _ []string) error {
	dir := logsDir
	if dir == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		dir = cfg.Logging.Dir
	}
	if dir == "" {
		return fmt.Errorf("no log directory: set logging.dir or pass --dir")
	}

	filter, pattern, err := logsFilter(time.Now())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	styles := newLogStyles(out)

	if logsFollow {
		return followLogs(cmd.Context(), out, filepath.Join(dir, logging.LogFileName), styles, filter, pattern)
	}

	entries, err := logging.AggregateLogs(dir)
	if err != nil {
		return err
	}
	entries = grepEntries(logging.FilterLogs(entries, filter), pattern)

	if logsExport != "" {
		return exportLogs(out, entries)
	}

	if logsTail > 0 && len(entries) > logsTail {
		entries = entries[len(entries)-logsTail:]
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No matching log entries found.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintln(out, styles.format(e))
	}
	return nil
}

func logsFilter(now time.Time) (logging.LogFilter, *regexp.Regexp, error) {
	filter := logging.LogFilter{
		Component: logsComponent,
		Phase:     logsPhase,
		Pool:      logsPool,
		Worker:    logsWorker,
	}
	if logsLevel != "" {
		filter.Level = logging.ParseLevel(logsLevel)
	}
	if logsSince != "" {
		d, err := time.ParseDuration(logsSince)
		if err != nil {
			return filter, nil, fmt.Errorf("invalid --since duration: %w", err)
		}
		filter.StartTime = now.Add(-d)
	}
	var pattern *regexp.Regexp
	if logsGrep != "" {
		var err error
		if pattern, err = regexp.Compile(logsGrep); err != nil {
			return filter, nil, fmt.Errorf("invalid --grep pattern: %w", err)
		}
	}
	return filter, pattern, nil
}

func grepEntries(entries []logging.LogEntry, pattern *regexp.Regexp) []logging.LogEntry {
	if pattern == nil {
		return entries
	}
	var matched []logging.LogEntry
	for _, e := range entries {
		if matchesPattern(e, pattern) {
			matched = append(matched, e)
		}
	}
	return matched
}

func matchesPattern(e logging.LogEntry, pattern *regexp.Regexp) bool {
	if pattern == nil || pattern.MatchString(e.Message) {
		return true
	}
	if len(e.Attrs) == 0 {
		return false
	}
	attrs, _ := json.Marshal(e.Attrs)
	return pattern.Match(attrs)
}

func exportLogs(out io.Writer, entries []logging.LogEntry) error {
	f, err := os.Create(logsExport)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := logging.ExportLogEntries(f, entries, logsExportFormat); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Exported %d entries to %s\n", len(entries), logsExport)
	return nil
}

// followLogs prints entries appended to path until ctx ends. The directory
// is watched rather than the file so that rotation, which renames the file
// and creates a new one, is picked up.
func followLogs(ctx context.Context, out io.Writer, path string, styles logStyles, filter logging.LogFilter, pattern *regexp.Regexp) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to watch log file: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch log directory: %w", err)
	}

	fmt.Fprintf(out, "Following %s... (Ctrl+C to stop)\n\n", path)

	reader := bufio.NewReader(f)
	var pending string
	drain := func() {
		for {
			chunk, err := reader.ReadString('\n')
			pending += chunk
			if err != nil {
				return
			}
			line := strings.TrimSpace(pending)
			pending = ""
			if line == "" {
				continue
			}
			entry, perr := logging.ParseLogEntry(line)
			if perr != nil {
				fmt.Fprintln(out, line)
				continue
			}
			if filter.Matches(entry) && matchesPattern(entry, pattern) {
				fmt.Fprintln(out, styles.format(entry))
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				drain()
				_ = f.Close()
				if f, err = os.Open(path); err != nil {
					return fmt.Errorf("failed to reopen rotated log file: %w", err)
				}
				reader.Reset(f)
				pending = ""
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				drain()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watching log file: %w", err)
		}
	}
}

type logStyles struct {
	time   lipgloss.Style
	ctx    lipgloss.Style
	levels map[string]lipgloss.Style
}

func newLogStyles(w io.Writer) logStyles {
	r := lipgloss.NewRenderer(w)
	return logStyles{
		time: r.NewStyle().Foreground(lipgloss.Color("8")),
		ctx:  r.NewStyle().Foreground(lipgloss.Color("6")),
		levels: map[string]lipgloss.Style{
			logging.LevelDebug: r.NewStyle().Foreground(lipgloss.Color("8")),
			logging.LevelInfo:  r.NewStyle().Foreground(lipgloss.Color("4")),
			logging.LevelWarn:  r.NewStyle().Foreground(lipgloss.Color("3")),
			logging.LevelError: r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		},
	}
}

func (s logStyles) format(e logging.LogEntry) string {
	var b strings.Builder
	b.WriteString(s.time.Render("[" + e.Timestamp.Format("15:04:05.000") + "]"))
	b.WriteString(" ")
	level := strings.ToUpper(e.Level)
	if st, ok := s.levels[level]; ok {
		b.WriteString(st.Render("[" + level + "]"))
	} else {
		b.WriteString("[" + level + "]")
	}
	b.WriteString(" ")
	b.WriteString(e.Message)

	for _, kv := range [][2]string{
		{"component", e.Component},
		{"phase", e.Phase},
		{"pool", e.Pool},
		{"worker", e.Worker},
	} {
		if kv[1] != "" {
			b.WriteString(" " + s.ctx.Render(kv[0]+"="+kv[1]))
		}
	}
	if len(e.Attrs) > 0 {
		attrs, _ := json.Marshal(e.Attrs)
		b.WriteString(" " + string(attrs))
	}
	return b.String()
}
