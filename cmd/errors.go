package cmd

import (
	"errors"

	"github.com/riyasyash/dbt_rocket/internal/runner"
)

// ExitError carries the process exit status for a failure that has already
// been reported to the user.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error returned by Execute to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code > 0 {
		return exitErr.Code
	}
	return 1
}

// exitCodeFor uses the tool's own status when it exited nonzero, so callers
// can tell dbt's failure classes apart.
func exitCodeFor(err error) int {
	var toolErr *runner.ExternalToolError
	if errors.As(err, &toolErr) && toolErr.ExitCode > 0 {
		return toolErr.ExitCode
	}
	return 1
}
