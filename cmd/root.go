// Package cmd implements the command-line interface for dbt_rocket using Cobra.
// The root command runs the pipeline; inspect and version are subcommands.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is the current version of dbt_rocket, set at build time via ldflags.
var Version = "0.0.1"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "dbt_rocket [project_path] [profiles_path]",
	Short: "Run a dbt project and report the outcome",
	Long: `dbt_rocket runs "dbt run --profiles-dir <profiles_path>" inside a dbt project
directory and reports success or failure. The profiles directory defaults to the
project directory. The process exits nonzero when the run fails.`,
	Args: cobra.MaximumNArgs(2),
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		setupLogging()
	},
	RunE:          runPipeline,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns any error encountered.
// This is called from main.go.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.dbt_rocket.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "dbt_rocket v%s\n", Version)
	},
}

// initConfig loads configuration from the config file and DBT_ROCKET_* environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".dbt_rocket")
	}

	viper.SetEnvPrefix("DBT_ROCKET")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		slog.Debug("using config file", "file", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		slog.Warn("failed to read config file", "file", cfgFile, "error", err)
	}
}

func setupLogging() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}
