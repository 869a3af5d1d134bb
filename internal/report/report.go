// Package report renders harness, pipeline and comparison results as styled
// text, JSON or YAML.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/bufferlab/internal/compare"
	"github.com/Iron-Ham/bufferlab/internal/errors"
	"github.com/Iron-Ham/bufferlab/internal/pipeline"
	"github.com/Iron-Ham/bufferlab/internal/race"
)

// Format selects the output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ValidFormats returns every supported format name.
func ValidFormats() []string {
	return []string{string(FormatText), string(FormatJSON), string(FormatYAML)}
}

// ParseFormat returns the Format named by s (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	}
	return "", errors.NewValidationError(fmt.Sprintf("unknown format (valid: %s)", strings.Join(ValidFormats(), ", "))).
		WithField("format").WithValue(s)
}

// Writer renders results onto an io.Writer.
type Writer struct {
	w       io.Writer
	format  Format
	printer *message.Printer
	styles  styles
}

// New returns a Writer for format. Colours are used only when w is a
// terminal that supports them.
func New(w io.Writer, format Format) *Writer {
	return &Writer{
		w:       w,
		format:  format,
		printer: message.NewPrinter(language.English),
		styles:  newStyles(lipgloss.NewRenderer(w)),
	}
}

// Race renders a two-phase harness result.
func (rw *Writer) Race(res *race.Result) error {
	v := raceView{
		Iterations:   res.Config.Iterations,
		Incrementers: res.Config.Incrementers,
		Decrementers: res.Config.Decrementers,
		Unlocked:     newPhaseView(res.Unlocked),
		Locked:       newPhaseView(res.Locked),
		RaceObserved: res.RaceObserved(),
		LockOverhead: res.LockOverhead().Seconds(),
	}
	if rw.format != FormatText {
		return rw.encode(v)
	}

	s := rw.styles
	var b strings.Builder
	b.WriteString(s.title.Render("Shared counter race") + "\n")
	rw.row(&b, "Iterations", rw.printer.Sprintf("%d per worker", v.Iterations))
	rw.row(&b, "Workers", rw.printer.Sprintf("%d incrementer(s), %d decrementer(s)", v.Incrementers, v.Decrementers))
	b.WriteString("\n")
	for _, p := range []phaseView{v.Unlocked, v.Locked} {
		rw.phase(&b, p)
	}

	switch {
	case res.Unlocked.Err != nil:
		b.WriteString(s.warn.Render("Unlocked phase failed; no race verdict.") + "\n")
	case v.RaceObserved:
		b.WriteString(s.bad.Render(rw.printer.Sprintf("Race observed: %d update(s) lost without the lock.", v.Unlocked.LostUpdates)) + "\n")
	default:
		b.WriteString(s.good.Render("No lost updates this run; try more iterations or --trials.") + "\n")
	}
	b.WriteString(s.muted.Render("Lock overhead: "+formatDuration(res.LockOverhead())) + "\n")
	_, err := io.WriteString(rw.w, b.String())
	return err
}

func (rw *Writer) phase(b *strings.Builder, p phaseView) {
	s := rw.styles
	name := "Without lock"
	if p.Locked {
		name = "With lock"
	}
	b.WriteString(s.value.Render(name) + "\n")

	var body strings.Builder
	rw.row(&body, "Final value", rw.printer.Sprintf("%d (expected %d)", p.FinalValue, p.Expected))
	lost := rw.printer.Sprintf("%d", p.LostUpdates)
	if p.LostUpdates > 0 {
		lost = s.bad.Render(lost)
	} else {
		lost = s.good.Render(lost)
	}
	rw.row(&body, "Lost updates", lost)
	rw.row(&body, "Elapsed", formatDuration(time.Duration(p.ElapsedSeconds*float64(time.Second))))
	if p.Error != "" {
		rw.row(&body, "Error", s.bad.Render(p.Error))
	}
	b.WriteString(s.section.Render(strings.TrimRight(body.String(), "\n")) + "\n\n")
}

// Trials renders a repeated unlocked-phase summary.
func (rw *Writer) Trials(sum *race.TrialSummary) error {
	if rw.format != FormatText {
		return rw.encode(sum)
	}
	s := rw.styles
	var b strings.Builder
	b.WriteString(s.title.Render("Unlocked trials") + "\n")
	rw.row(&b, "Trials", rw.printer.Sprintf("%d", sum.Trials))
	diverged := rw.printer.Sprintf("%d of %d", sum.Diverged, sum.Trials)
	if sum.Diverged > 0 {
		diverged = s.bad.Render(diverged)
	}
	rw.row(&b, "Diverged", diverged)
	rw.row(&b, "Max lost", rw.printer.Sprintf("%d", sum.MaxLost))
	vals := make([]string, len(sum.Values))
	for i, v := range sum.Values {
		vals[i] = rw.printer.Sprintf("%d", v)
	}
	rw.row(&b, "Final values", strings.Join(vals, "  "))
	_, err := io.WriteString(rw.w, b.String())
	return err
}

// Pipeline renders a producer/consumer summary.
func (rw *Writer) Pipeline(sum *pipeline.Summary) error {
	if rw.format != FormatText {
		return rw.encode(newPipelineView(sum))
	}
	s := rw.styles
	var b strings.Builder
	b.WriteString(s.title.Render("Producer/consumer pipeline") + "\n")
	rw.row(&b, "Produced", rw.printer.Sprintf("%d", sum.Produced))
	rw.row(&b, "Consumed", rw.printer.Sprintf("%d", sum.Consumed))
	rw.row(&b, "Checksum", rw.printer.Sprintf("%d (expected %d)", sum.Checksum, sum.ExpectedChecksum))
	rw.row(&b, "Buffer", rw.printer.Sprintf("capacity %d, %d put, %d get", sum.Buffer.Capacity, sum.Buffer.Puts, sum.Buffer.Gets))
	rw.row(&b, "Elapsed", formatDuration(sum.Elapsed))

	names := make([]string, 0, len(sum.PerConsumer))
	for name := range sum.PerConsumer {
		names = append(names, name)
	}
	sort.Strings(names)
	var per strings.Builder
	for _, name := range names {
		rw.row(&per, name, rw.printer.Sprintf("%d", sum.PerConsumer[name]))
	}
	b.WriteString(s.section.Render(strings.TrimRight(per.String(), "\n")) + "\n")

	if sum.Balanced() {
		b.WriteString(s.good.Render("Every item was consumed exactly once.") + "\n")
	} else {
		b.WriteString(s.bad.Render("Produced and consumed items do not match.") + "\n")
	}
	_, err := io.WriteString(rw.w, b.String())
	return err
}

// Compare renders a worker scaling report.
func (rw *Writer) Compare(rep *compare.Report) error {
	if rw.format != FormatText {
		return rw.encode(newCompareView(rep))
	}
	s := rw.styles
	var b strings.Builder
	b.WriteString(s.title.Render(rw.printer.Sprintf("Factorial of %d", rep.Number)) + "\n")
	for _, m := range rep.Measurements {
		label := rw.printer.Sprintf("%d worker(s)", m.Workers)
		rw.row(&b, label, fmt.Sprintf("%s  %s", formatDuration(m.Elapsed),
			s.muted.Render(fmt.Sprintf("x%.2f", rep.Scaling(m)))))
	}
	_, err := io.WriteString(rw.w, b.String())
	return err
}

func (rw *Writer) row(b *strings.Builder, label, value string) {
	b.WriteString(rw.styles.label.Render(label) + value + "\n")
}

func (rw *Writer) encode(v any) error {
	switch rw.format {
	case FormatJSON:
		enc := json.NewEncoder(rw.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(rw.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unsupported format %q", rw.format)
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return d.Round(10 * time.Microsecond).String()
	}
	return d.Round(time.Millisecond).String()
}
