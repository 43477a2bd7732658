// Package runner invokes the dbt command-line tool against a project directory
// and reports the outcome. The project directory is handed to the child
// process as its working directory; the calling process never changes its own.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/riyasyash/dbt_rocket/internal/results"
)

// DefaultBinary is the executable looked up on PATH when Options.Binary is empty.
const DefaultBinary = "dbt"

const maxDiagnostic = 8 << 10

// Options configures a Runner.
type Options struct {
	Binary     string   // executable name or path (default: dbt)
	ExtraArgs  []string // appended after "run --profiles-dir <dir>"
	TargetPath string   // dbt artifact directory relative to the project (default: target)
	Quiet      bool     // hide tool stdout behind a spinner
	Stdout     io.Writer
	Stderr     io.Writer
}

// Outcome is the result of a single pipeline invocation.
type Outcome struct {
	Success      bool
	ExitCode     int
	Duration     time.Duration
	ProjectPath  string
	ProfilesPath string
	Binary       string
	Args         []string
	Diagnostic   string
	Results      *results.Summary
}

// Runner executes dbt runs.
type Runner struct {
	opts     Options
	reporter *Reporter
}

// New creates a Runner. A nil reporter writes to stdout.
func New(opts Options, reporter *Reporter) *Runner {
	if opts.Binary == "" {
		opts.Binary = DefaultBinary
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if reporter == nil {
		reporter = NewReporter(os.Stdout, false)
	}
	return &Runner{opts: opts, reporter: reporter}
}

// BuildArgs returns the argument vector passed to the tool. profilesPath is a
// single element and is never quoted or split.
func BuildArgs(profilesPath string, extra []string) []string {
	args := []string{"run", "--profiles-dir", profilesPath}
	return append(args, extra...)
}

// Run invokes "<binary> run --profiles-dir <profilesPath>" inside projectPath
// and blocks until the tool exits. The returned Outcome is never nil. The
// error is a *PathError when the project directory or executable cannot be
// resolved and an *ExternalToolError when the tool exits nonzero.
func (r *Runner) Run(ctx context.Context, projectPath, profilesPath string) (*Outcome, error) {
	start := time.Now()
	outcome := &Outcome{
		ProjectPath:  projectPath,
		ProfilesPath: profilesPath,
		Binary:       r.opts.Binary,
		Args:         BuildArgs(profilesPath, r.opts.ExtraArgs),
	}

	r.reporter.Starting(projectPath)

	if err := checkProjectDir(projectPath); err != nil {
		r.reporter.PathFailed(err)
		return outcome, err
	}

	bin, err := exec.LookPath(r.opts.Binary)
	if err != nil {
		pathErr := &PathError{Op: "lookup", Path: r.opts.Binary, Err: err}
		r.reporter.PathFailed(pathErr)
		return outcome, pathErr
	}
	// A relative path would be resolved again against cmd.Dir.
	if bin, err = filepath.Abs(bin); err != nil {
		pathErr := &PathError{Op: "lookup", Path: r.opts.Binary, Err: err}
		r.reporter.PathFailed(pathErr)
		return outcome, pathErr
	}
	outcome.Binary = bin
	slog.Debug("resolved dbt executable", "path", bin, "args", outcome.Args)
	r.reporter.Info("Profiles directory: %s", profilesPath)

	diag := newTailBuffer(maxDiagnostic)
	stdout := r.opts.Stdout
	if r.opts.Quiet {
		stdout = r.reporter.StartSpinner("dbt run")
	}

	cmd := exec.CommandContext(ctx, bin, outcome.Args...)
	cmd.Dir = projectPath
	cmd.Stdout = io.MultiWriter(stdout, diag)
	cmd.Stderr = io.MultiWriter(r.opts.Stderr, diag)

	launched := time.Now()
	err = cmd.Run()
	if r.opts.Quiet {
		r.reporter.StopSpinner()
	}
	outcome.Duration = time.Since(start)
	outcome.Diagnostic = diag.String()

	summary, resErr := results.Load(projectPath, r.opts.TargetPath, launched)
	if resErr != nil {
		slog.Debug("run results unavailable", "error", resErr)
	}
	outcome.Results = summary

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			outcome.ExitCode = exitErr.ExitCode()
			toolErr := &ExternalToolError{
				Tool:       r.opts.Binary,
				ExitCode:   outcome.ExitCode,
				Diagnostic: outcome.Diagnostic,
				Err:        err,
			}
			r.reporter.Failed(toolErr)
			r.reporter.Results(summary)
			return outcome, toolErr
		}
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, exec.ErrNotFound) {
			pathErr := &PathError{Op: "exec", Path: bin, Err: err}
			r.reporter.PathFailed(pathErr)
			return outcome, pathErr
		}
		err = fmt.Errorf("failed to start %s: %w", r.opts.Binary, err)
		r.reporter.Failed(err)
		return outcome, err
	}

	outcome.Success = true
	r.reporter.Succeeded(outcome.Duration)
	r.reporter.Results(summary)
	return outcome, nil
}

func checkProjectDir(path string) error {
	if path == "" {
		return &PathError{Op: "chdir", Path: path, Err: errors.New("project path is empty")}
	}
	info, err := os.Stat(path)
	if err != nil {
		return &PathError{Op: "chdir", Path: path, Err: err}
	}
	if !info.IsDir() {
		return &PathError{Op: "chdir", Path: path, Err: errors.New("not a directory")}
	}
	return nil
}
