package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/riyasyash/dbt_rocket/internal/db"
	"github.com/riyasyash/dbt_rocket/internal/output"
	"github.com/riyasyash/dbt_rocket/internal/profiles"
	"github.com/riyasyash/dbt_rocket/internal/runner"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const connectTimeout = 10 * time.Second

var (
	dbtBin          string
	target          string
	selectModels    string
	checkConnection bool
	quiet           bool
	jsonFormat      bool
)

func init() {
	f := rootCmd.Flags()
	f.StringVar(&dbtBin, "dbt-bin", runner.DefaultBinary, "dbt executable name or path (default: DBT_ROCKET_DBT_BIN env var or dbt)")
	f.StringVar(&target, "target", "", "dbt target to run against (default: profile's default target)")
	f.StringVar(&selectModels, "select", "", "dbt node selection, passed through as --select")
	f.BoolVar(&checkConnection, "check-connection", false, "Ping the target warehouse before running")
	f.BoolVar(&quiet, "quiet", false, "Show a spinner instead of dbt's log output")
	f.BoolVar(&jsonFormat, "json", false, "Write the outcome as JSON to stdout (status lines go to stderr)")

	for _, name := range []string{"dbt-bin", "target", "select", "check-connection", "quiet", "json"} {
		_ = viper.BindPFlag(configKey(name), f.Lookup(name))
	}
}

func configKey(flag string) string {
	return strings.ReplaceAll(flag, "-", "_")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	asJSON := viper.GetBool("json")

	projectDir, profilesDir, err := resolvePaths(args)
	if err != nil {
		return setupFailed(cmd, asJSON, projectDir, profilesDir, err)
	}

	statusOut := cmd.OutOrStdout()
	toolOut := cmd.OutOrStdout()
	if asJSON {
		statusOut = cmd.ErrOrStderr()
		toolOut = cmd.ErrOrStderr()
	}
	reporter := runner.NewReporter(statusOut, verbose)

	var targetPath string
	project, err := profiles.LoadProject(projectDir)
	if err != nil {
		slog.Debug("project file unavailable", "dir", projectDir, "error", err)
	} else {
		targetPath = project.TargetPath
	}

	if viper.GetBool("check_connection") {
		if project == nil {
			err := fmt.Errorf("--check-connection needs %s in %s", profiles.ProjectFile, projectDir)
			return setupFailed(cmd, asJSON, projectDir, profilesDir, err)
		}
		if err := preflight(ctx, statusOut, reporter, project, profilesDir, viper.GetString("target")); err != nil {
			return setupFailed(cmd, asJSON, projectDir, profilesDir, err)
		}
	}

	opts := runner.Options{
		Binary:     viper.GetString("dbt_bin"),
		ExtraArgs:  extraArgs(),
		TargetPath: targetPath,
		Quiet:      viper.GetBool("quiet"),
		Stdout:     toolOut,
		Stderr:     cmd.ErrOrStderr(),
	}

	outcome, runErr := runner.New(opts, reporter).Run(ctx, projectDir, profilesDir)

	if asJSON {
		if err := output.NewJSONWriter(cmd.OutOrStdout()).Write(outcome, runErr); err != nil {
			return err
		}
	}

	if runErr != nil {
		return &ExitError{Code: exitCodeFor(runErr), Err: runErr}
	}
	return nil
}

// setupFailed returns err, first writing it as a JSON failure document when
// --json is set so stdout is never empty.
func setupFailed(cmd *cobra.Command, asJSON bool, projectDir, profilesDir string, err error) error {
	if asJSON {
		if werr := output.NewJSONWriter(cmd.OutOrStdout()).WriteFailure(projectDir, profilesDir, err); werr != nil {
			slog.Debug("failed to write JSON outcome", "error", werr)
		}
	}
	return err
}

// resolvePaths applies positional args > config file > DBT_ROCKET_* env.
// The profiles directory falls back to the project directory.
func resolvePaths(args []string) (projectDir, profilesDir string, err error) {
	if len(args) > 0 {
		projectDir = args[0]
	} else {
		projectDir = viper.GetString("project_dir")
	}
	if len(args) > 1 {
		profilesDir = args[1]
	} else {
		profilesDir = viper.GetString("profiles_dir")
	}

	if projectDir == "" {
		return "", "", errors.New("project path not specified. Pass it as the first argument, set project_dir in the config file or set DBT_ROCKET_PROJECT_DIR")
	}
	if profilesDir == "" {
		profilesDir = projectDir
	}
	return projectDir, profilesDir, nil
}

func extraArgs() []string {
	var extra []string
	if t := viper.GetString("target"); t != "" {
		extra = append(extra, "--target", t)
	}
	if s := viper.GetString("select"); s != "" {
		extra = append(extra, "--select", s)
	}
	return extra
}

// preflight resolves the project's profile target and pings it.
func preflight(ctx context.Context, out io.Writer, reporter *runner.Reporter, project *profiles.Project, profilesDir, targetName string) error {
	ps, err := profiles.Load(profilesDir)
	if err != nil {
		return err
	}
	profile, err := ps.Get(project.Profile)
	if err != nil {
		return err
	}
	t, err := profile.Resolve(targetName)
	if err != nil {
		return err
	}

	if !db.Supported(t.Type) {
		reporter.Warning("Skipping connection check: adapter %s is not supported", t.Type)
		return nil
	}

	fmt.Fprintf(out, "🔌 Checking connection to %s\n", db.MaskedDSN(t))

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	conn, err := db.NewConnection(ctx, t)
	if err != nil {
		return fmt.Errorf("connection check failed: %w", err)
	}
	defer conn.Close()

	if version, err := conn.ServerVersion(ctx); err == nil {
		reporter.Info("Server version: %s", version)
	}

	if t.Schema != "" {
		exists, err := conn.SchemaExists(ctx, t.Schema)
		if err != nil {
			return err
		}
		if !exists {
			reporter.Warning("Schema %s does not exist yet; dbt will create it", t.Schema)
		}
	}

	return nil
}
