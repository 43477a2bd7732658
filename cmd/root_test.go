package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/riyasyash/dbt_rocket/internal/runner"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetFlags(fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}

// execute runs the root command with args and returns stdout, stderr and the error.
// HOME points at an empty directory so no user config is picked up.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	resetFlags(rootCmd.Flags())
	resetFlags(rootCmd.PersistentFlags())
	resetFlags(inspectCmd.Flags())

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeStub(t *testing.T, exitCode int) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub tool is a POSIX shell script")
	}
	bin := filepath.Join(t.TempDir(), "dbt")
	script := fmt.Sprintf("#!/bin/sh\necho \"args: $*\"\nexit %d\n", exitCode)
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	return bin
}

func TestRoot_Success(t *testing.T) {
	bin := writeStub(t, 0)
	project := t.TempDir()

	stdout, _, err := execute(t, "--dbt-bin", bin, project, "/tmp/profiles")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Running dbt pipeline in: "+project)
	assert.Contains(t, stdout, "args: run --profiles-dir /tmp/profiles")
	assert.Contains(t, stdout, "dbt run completed successfully.")
}

func TestRoot_ProfilesDefaultsToProject(t *testing.T) {
	bin := writeStub(t, 0)
	project := t.TempDir()

	stdout, _, err := execute(t, "--dbt-bin", bin, "--target", "prod", project)
	require.NoError(t, err)
	assert.Contains(t, stdout, "args: run --profiles-dir "+project+" --target prod")
}

func TestRoot_FailurePropagatesExitCode(t *testing.T) {
	bin := writeStub(t, 2)

	stdout, _, err := execute(t, "--dbt-bin", bin, t.TempDir(), "/tmp/profiles")
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 2, ExitCode(err))
	assert.Contains(t, stdout, "dbt run failed")
}

func TestRoot_MissingProject(t *testing.T) {
	bin := writeStub(t, 0)
	missing := filepath.Join(t.TempDir(), "nope")

	stdout, _, err := execute(t, "--dbt-bin", bin, missing)
	require.Error(t, err)
	assert.Equal(t, 1, ExitCode(err))
	assert.Contains(t, stdout, "Path error")

	var pathErr *runner.PathError
	assert.True(t, errors.As(err, &pathErr))
}

func TestRoot_NoProjectPath(t *testing.T) {
	t.Setenv("DBT_ROCKET_PROJECT_DIR", "")

	_, _, err := execute(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project path not specified")
	assert.Equal(t, 1, ExitCode(err))
}

func TestRoot_ProjectFromEnv(t *testing.T) {
	bin := writeStub(t, 0)
	project := t.TempDir()
	t.Setenv("DBT_ROCKET_PROJECT_DIR", project)
	t.Setenv("DBT_ROCKET_PROFILES_DIR", "/etc/dbt")

	stdout, _, err := execute(t, "--dbt-bin", bin)
	require.NoError(t, err)
	assert.Contains(t, stdout, "args: run --profiles-dir /etc/dbt")
}

func TestRoot_JSON(t *testing.T) {
	bin := writeStub(t, 1)

	stdout, stderr, err := execute(t, "--dbt-bin", bin, "--json", t.TempDir(), "/tmp/profiles")
	require.Error(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	assert.Equal(t, "failure", doc["status"])
	assert.Equal(t, "external_tool_error", doc["error_kind"])
	assert.Contains(t, stderr, "dbt run failed")
}

func TestRoot_JSONSetupFailure(t *testing.T) {
	t.Run("no project path", func(t *testing.T) {
		t.Setenv("DBT_ROCKET_PROJECT_DIR", "")

		stdout, _, err := execute(t, "--json")
		require.Error(t, err)

		var doc map[string]any
		require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
		assert.Equal(t, "failure", doc["status"])
		assert.Equal(t, "error", doc["error_kind"])
		assert.Contains(t, doc["error"], "project path not specified")
	})

	t.Run("connection check without project file", func(t *testing.T) {
		bin := writeStub(t, 0)
		project := t.TempDir()

		stdout, stderr, err := execute(t, "--dbt-bin", bin, "--json", "--check-connection", project)
		require.Error(t, err)
		assert.NotContains(t, stderr, "args: run", "dbt must not be started")

		var doc map[string]any
		require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
		assert.Equal(t, "error", doc["error_kind"])
		assert.Equal(t, project, doc["project_path"])
	})
}

func TestInspect(t *testing.T) {
	project := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(project, "dbt_project.yml"),
		[]byte("name: jaffle_shop\nprofile: jaffle_shop\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(project, "profiles.yml"), []byte(`
jaffle_shop:
  target: dev
  outputs:
    dev:
      type: postgres
      host: localhost
      user: analyst
      password: hunter2
      dbname: analytics
      schema: dbt_dev
      threads: 4
    local:
      type: duckdb
      path: dev.duckdb
`), 0o644))

	stdout, _, err := execute(t, "inspect", project)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Project: jaffle_shop")
	assert.Contains(t, stdout, "Profile: jaffle_shop (default target: dev)")
	assert.Contains(t, stdout, "* dev")
	assert.Contains(t, stdout, "  local")
	assert.Contains(t, stdout, "analyst:xxxxx@localhost:5432/analytics")
	assert.NotContains(t, stdout, "hunter2")
	assert.Less(t, strings.Index(stdout, "* dev"), strings.Index(stdout, "  local"))
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "dbt_rocket v"+Version+"\n", stdout)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
	assert.Equal(t, 3, ExitCode(&ExitError{Code: 3, Err: errors.New("x")}))
	assert.Equal(t, 1, ExitCode(&ExitError{Code: -1, Err: errors.New("killed")}))

	assert.Equal(t, 2, exitCodeFor(&runner.ExternalToolError{ExitCode: 2}))
	assert.Equal(t, 1, exitCodeFor(&runner.PathError{Op: "chdir", Path: "x", Err: errors.New("missing")}))
}

func TestResolvePaths(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DBT_ROCKET_PROJECT_DIR", "")
	t.Setenv("DBT_ROCKET_PROFILES_DIR", "")
	initConfig()

	p, pr, err := resolvePaths([]string{"proj"})
	require.NoError(t, err)
	assert.Equal(t, "proj", p)
	assert.Equal(t, "proj", pr)

	p, pr, err = resolvePaths([]string{"proj", "profiles dir"})
	require.NoError(t, err)
	assert.Equal(t, "proj", p)
	assert.Equal(t, "profiles dir", pr)

	t.Setenv("DBT_ROCKET_PROJECT_DIR", "from-env")
	p, pr, err = resolvePaths(nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", p)
	assert.Equal(t, "from-env", pr)
}
