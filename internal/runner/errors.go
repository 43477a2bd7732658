package runner

import (
	"fmt"
	"strings"
)

// PathError reports a project directory or executable that could not be resolved.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// ExternalToolError reports a tool invocation that exited with a nonzero status.
// Diagnostic holds the tail of the tool's output.
type ExternalToolError struct {
	Tool       string
	ExitCode   int
	Diagnostic string
	Err        error
}

func (e *ExternalToolError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Tool, e.ExitCode)
	if last := lastLine(e.Diagnostic); last != "" {
		msg += ": " + last
	}
	return msg
}

func (e *ExternalToolError) Unwrap() error {
	return e.Err
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
