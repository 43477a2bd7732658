// Package results reads the run_results.json artifact that dbt writes into the
// project's target directory after a run and reduces it to a status summary.
package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// DefaultTargetPath is the artifact directory used when dbt_project.yml does not set target-path.
const DefaultTargetPath = "target"

// RunResults mirrors the parts of run_results.json that are summarised.
type RunResults struct {
	Results     []NodeResult `json:"results"`
	ElapsedTime float64      `json:"elapsed_time"`
}

// NodeResult is a single model, test, seed or snapshot outcome.
type NodeResult struct {
	UniqueID      string  `json:"unique_id"`
	Status        string  `json:"status"`
	ExecutionTime float64 `json:"execution_time"`
	Message       string  `json:"message"`
}

// Summary counts node outcomes by status class.
type Summary struct {
	Total   int           `json:"total"`
	Success int           `json:"success"`
	Error   int           `json:"error"`
	Warn    int           `json:"warn"`
	Skipped int           `json:"skipped"`
	Elapsed time.Duration `json:"-"`
	Failed  []string      `json:"failed,omitempty"`
}

// Load reads <projectDir>/<targetPath>/run_results.json. A missing file is not
// an error: it returns nil, nil because dbt may fail before writing artifacts.
// A file last modified before since was left by an earlier run and is
// treated as missing. since is compared at one-second granularity.
func Load(projectDir, targetPath string, since time.Time) (*Summary, error) {
	if targetPath == "" {
		targetPath = DefaultTargetPath
	}
	if !filepath.IsAbs(targetPath) {
		targetPath = filepath.Join(projectDir, targetPath)
	}

	f, err := os.Open(filepath.Join(targetPath, "run_results.json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open run results: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat run results: %w", err)
	}
	if info.ModTime().Before(since.Truncate(time.Second)) {
		return nil, nil
	}

	return Parse(f)
}

// Parse decodes run_results.json from r and summarises it.
func Parse(r io.Reader) (*Summary, error) {
	var rr RunResults
	if err := json.NewDecoder(r).Decode(&rr); err != nil {
		return nil, fmt.Errorf("failed to parse run results: %w", err)
	}
	return rr.Summarize(), nil
}

// Summarize groups node statuses. Test statuses (pass/fail) are folded into
// success/error.
func (rr *RunResults) Summarize() *Summary {
	s := &Summary{
		Total:   len(rr.Results),
		Elapsed: time.Duration(rr.ElapsedTime * float64(time.Second)),
	}

	for _, node := range rr.Results {
		switch node.Status {
		case "success", "pass":
			s.Success++
		case "error", "fail", "runtime error":
			s.Error++
			s.Failed = append(s.Failed, node.UniqueID)
		case "warn":
			s.Warn++
		case "skipped":
			s.Skipped++
		}
	}
	sort.Strings(s.Failed)

	return s
}

// OK reports whether no node errored.
func (s *Summary) OK() bool {
	return s.Error == 0
}
