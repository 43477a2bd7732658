package runner

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/riyasyash/dbt_rocket/internal/results"
	"github.com/schollz/progressbar/v3"
)

// Reporter writes human-readable status lines for a pipeline run. In quiet
// mode it also drives a spinner on stderr from the tool's log lines.
type Reporter struct {
	out     io.Writer
	verbose bool
	spinner *progressbar.ProgressBar

	cyan   *color.Color
	green  *color.Color
	red    *color.Color
	yellow *color.Color
	blue   *color.Color
}

// NewReporter creates a reporter writing to out.
// If verbose is true, Info lines are printed too.
func NewReporter(out io.Writer, verbose bool) *Reporter {
	return &Reporter{
		out:     out,
		verbose: verbose,
		cyan:    color.New(color.FgCyan, color.Bold),
		green:   color.New(color.FgGreen, color.Bold),
		red:     color.New(color.FgRed, color.Bold),
		yellow:  color.New(color.FgYellow, color.Bold),
		blue:    color.New(color.FgBlue),
	}
}

func (r *Reporter) Starting(projectPath string) {
	r.cyan.Fprintf(r.out, "🔁 Running dbt pipeline in: %s\n", projectPath)
}

func (r *Reporter) Info(format string, args ...interface{}) {
	if r.verbose {
		r.blue.Fprintf(r.out, "   ℹ  "+format+"\n", args...)
	}
}

func (r *Reporter) Warning(format string, args ...interface{}) {
	r.yellow.Fprintf(r.out, "   ⚠  "+format+"\n", args...)
}

func (r *Reporter) Succeeded(elapsed time.Duration) {
	r.green.Fprintf(r.out, "✅ dbt run completed successfully. (%v)\n", elapsed.Round(time.Millisecond))
}

func (r *Reporter) Failed(err error) {
	r.red.Fprintf(r.out, "❌ dbt run failed: %v\n", err)
}

func (r *Reporter) PathFailed(err error) {
	r.red.Fprintf(r.out, "❌ Path error: %v\n", err)
}

// Results prints the run_results.json summary.
func (r *Reporter) Results(s *results.Summary) {
	if s == nil {
		return
	}

	fmt.Fprintf(r.out, "  📊 Nodes: %d\n", s.Total)
	r.green.Fprintf(r.out, "     • Success: %d\n", s.Success)
	if s.Warn > 0 {
		r.yellow.Fprintf(r.out, "     • Warn:    %d\n", s.Warn)
	}
	if s.Skipped > 0 {
		r.yellow.Fprintf(r.out, "     • Skipped: %d\n", s.Skipped)
	}
	if s.Error > 0 {
		r.red.Fprintf(r.out, "     • Error:   %d\n", s.Error)
		for _, id := range s.Failed {
			r.red.Fprintf(r.out, "         - %s\n", id)
		}
	}
	if s.Elapsed > 0 {
		r.blue.Fprintf(r.out, "     • Elapsed: %v\n", s.Elapsed.Round(time.Millisecond))
	}
}

// StartSpinner returns a writer that advances a spinner on stderr for every
// line written to it. StopSpinner must be called when the tool exits.
func (r *Reporter) StartSpinner(description string) io.Writer {
	r.spinner = progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	return &spinnerWriter{bar: r.spinner}
}

func (r *Reporter) StopSpinner() {
	if r.spinner != nil {
		r.spinner.Finish()
		r.spinner = nil
	}
}

// spinnerWriter ticks the bar once per complete line and shows that line as
// the description.
type spinnerWriter struct {
	bar     *progressbar.ProgressBar
	partial strings.Builder
}

func (w *spinnerWriter) Write(p []byte) (int, error) {
	for _, b := range p {
		if b != '\n' {
			w.partial.WriteByte(b)
			continue
		}
		line := strings.TrimSpace(w.partial.String())
		w.partial.Reset()
		if line == "" {
			continue
		}
		w.bar.Describe(truncate(line, 60))
		_ = w.bar.Add(1)
	}
	return len(p), nil
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
