// Package output renders pipeline outcomes in machine-readable form.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/riyasyash/dbt_rocket/internal/results"
	"github.com/riyasyash/dbt_rocket/internal/runner"
)

// JSONWriter writes a run outcome as a single JSON document.
type JSONWriter struct {
	writer io.Writer
}

// NewJSONWriter creates a new JSON writer.
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{writer: w}
}

// OutcomeJSON is the document written for each run.
type OutcomeJSON struct {
	Status       string           `json:"status"`
	ExitCode     int              `json:"exit_code"`
	DurationMS   int64            `json:"duration_ms"`
	ProjectPath  string           `json:"project_path"`
	ProfilesPath string           `json:"profiles_path"`
	Command      []string         `json:"command,omitempty"`
	ErrorKind    string           `json:"error_kind,omitempty"`
	Error        string           `json:"error,omitempty"`
	Results      *results.Summary `json:"results,omitempty"`
	ElapsedMS    int64            `json:"results_elapsed_ms,omitempty"`
}

// Write encodes outcome and the error that accompanied it, if any.
func (w *JSONWriter) Write(outcome *runner.Outcome, runErr error) error {
	doc := OutcomeJSON{
		Status:       "success",
		ExitCode:     outcome.ExitCode,
		DurationMS:   outcome.Duration.Milliseconds(),
		ProjectPath:  outcome.ProjectPath,
		ProfilesPath: outcome.ProfilesPath,
		Results:      outcome.Results,
	}
	if outcome.Binary != "" {
		doc.Command = append([]string{outcome.Binary}, outcome.Args...)
	}
	if outcome.Results != nil {
		doc.ElapsedMS = outcome.Results.Elapsed.Milliseconds()
	}

	if runErr != nil {
		doc.Status = "failure"
		doc.Error = runErr.Error()
		doc.ErrorKind = ErrorKind(runErr)
	}

	encoder := json.NewEncoder(w.writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode outcome: %w", err)
	}
	return nil
}

// WriteFailure encodes a failure that happened before the tool was started,
// such as an unresolved project path or a failed connection check.
func (w *JSONWriter) WriteFailure(projectPath, profilesPath string, err error) error {
	return w.Write(&runner.Outcome{ProjectPath: projectPath, ProfilesPath: profilesPath}, err)
}

// ErrorKind classifies a run error for machine consumers.
func ErrorKind(err error) string {
	var pathErr *runner.PathError
	var toolErr *runner.ExternalToolError
	switch {
	case errors.As(err, &pathErr):
		return "path_error"
	case errors.As(err, &toolErr):
		return "external_tool_error"
	default:
		return "error"
	}
}
