package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/riyasyash/dbt_rocket/internal/results"
	"github.com/riyasyash/dbt_rocket/internal/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONWriter_Success(t *testing.T) {
	t.Parallel()

	outcome := &runner.Outcome{
		Success:      true,
		Duration:     1500 * time.Millisecond,
		ProjectPath:  "/tmp/proj",
		ProfilesPath: "/tmp/profiles",
		Binary:       "/usr/local/bin/dbt",
		Args:         []string{"run", "--profiles-dir", "/tmp/profiles"},
		Results:      &results.Summary{Total: 3, Success: 3, Elapsed: 1200 * time.Millisecond},
	}

	var buf bytes.Buffer
	require.NoError(t, NewJSONWriter(&buf).Write(outcome, nil))

	var doc OutcomeJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "success", doc.Status)
	assert.Equal(t, int64(1500), doc.DurationMS)
	assert.Equal(t, []string{"/usr/local/bin/dbt", "run", "--profiles-dir", "/tmp/profiles"}, doc.Command)
	assert.Empty(t, doc.Error)
	require.NotNil(t, doc.Results)
	assert.Equal(t, 3, doc.Results.Success)
	assert.Equal(t, int64(1200), doc.ElapsedMS)
}

func TestJSONWriter_Failure(t *testing.T) {
	t.Parallel()

	outcome := &runner.Outcome{ExitCode: 2, Binary: "dbt", Args: []string{"run", "--profiles-dir", "p"}}
	runErr := &runner.ExternalToolError{Tool: "dbt", ExitCode: 2, Diagnostic: "Compilation Error"}

	var buf bytes.Buffer
	require.NoError(t, NewJSONWriter(&buf).Write(outcome, runErr))

	var doc OutcomeJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "failure", doc.Status)
	assert.Equal(t, 2, doc.ExitCode)
	assert.Equal(t, "external_tool_error", doc.ErrorKind)
	assert.Contains(t, doc.Error, "Compilation Error")
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	pathErr := &runner.PathError{Op: "chdir", Path: "/nope", Err: errors.New("no such file or directory")}
	assert.Equal(t, "path_error", ErrorKind(fmt.Errorf("wrapped: %w", pathErr)))
	assert.Equal(t, "external_tool_error", ErrorKind(&runner.ExternalToolError{ExitCode: 1}))
	assert.Equal(t, "error", ErrorKind(errors.New("boom")))
}

func TestJSONWriter_WriteFailure(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, NewJSONWriter(&buf).WriteFailure("/tmp/proj", "/tmp/proj", errors.New("connection check failed")))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "failure", doc["status"])
	assert.Equal(t, "error", doc["error_kind"])
	assert.Equal(t, "connection check failed", doc["error"])
	assert.Equal(t, "/tmp/proj", doc["project_path"])
	assert.NotContains(t, doc, "command")
}
