package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/riyasyash/dbt_rocket/internal/db"
	"github.com/riyasyash/dbt_rocket/internal/profiles"
	"github.com/spf13/cobra"
)

var inspectPing bool

var inspectCmd = &cobra.Command{
	Use:   "inspect [project_path] [profiles_path]",
	Short: "Display the project's dbt profile and targets",
	Long: `Inspect shows the profile a dbt project uses and the targets defined for it
in profiles.yml. With --ping, each PostgreSQL or Redshift target is contacted.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectPing, "ping", false, "Connect to each supported target")
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	projectDir, profilesDir, err := resolvePaths(args)
	if err != nil {
		return err
	}

	project, err := profiles.LoadProject(projectDir)
	if err != nil {
		return err
	}

	ps, err := profiles.Load(profilesDir)
	if err != nil {
		return err
	}

	profile, err := ps.Get(project.Profile)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	fmt.Fprintf(out, "Project: %s\n", project.Name)
	fmt.Fprintf(out, "Profiles file: %s\n", filepath.Join(profilesDir, profiles.ProfilesFile))
	fmt.Fprintf(out, "Profile: %s (default target: %s)\n", profile.Name, profile.Target)
	fmt.Fprintln(out)

	for _, name := range profile.TargetNames() {
		t := profile.Outputs[name]

		marker := " "
		if name == profile.Target {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s\n", marker, name)
		fmt.Fprintf(out, "    type:    %s\n", t.Type)
		if db.Supported(t.Type) {
			fmt.Fprintf(out, "    dsn:     %s\n", db.MaskedDSN(t))
		}
		if t.Schema != "" {
			fmt.Fprintf(out, "    schema:  %s\n", t.Schema)
		}
		if t.Threads > 0 {
			fmt.Fprintf(out, "    threads: %d\n", t.Threads)
		}

		if inspectPing && db.Supported(t.Type) {
			if status, err := pingTarget(ctx, t); err != nil {
				red.Fprintf(out, "    ✗ %v\n", err)
			} else {
				green.Fprintf(out, "    ✓ %s\n", status)
			}
		}

		fmt.Fprintln(out)
	}

	return nil
}

func pingTarget(ctx context.Context, t profiles.Target) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	conn, err := db.NewConnection(ctx, t)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	version, err := conn.ServerVersion(ctx)
	if err != nil {
		return "", err
	}
	status := fmt.Sprintf("reachable (server %s)", version)

	if t.Schema != "" {
		n, err := conn.RelationCount(ctx, t.Schema)
		if err != nil {
			return "", err
		}
		status += fmt.Sprintf(", %d relations in %s", n, t.Schema)
	}
	return status, nil
}
