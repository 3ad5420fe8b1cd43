package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/salchaD-27/pipeline-check/internal/logging"
)

var (
	reportFormat string
	outputPath   string
	configPath   string
	debug        bool
)

var rootCmd = &cobra.Command{
	Use:   "pipeline-check",
	Short: "Find CI/CD pipeline failure risks in Python projects",
	Long: `pipeline-check statically inspects a Python source tree for problems that
tend to break CI runs, such as syntax errors, undefined methods, unresolved
imports, missing package markers and broken workflow files.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Init(debug)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&reportFormat, "format", "f", "text", "Output format: text|json|markdown|gha|sarif")
	rootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "", "Write the report to this file instead of stdout")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (.yaml, .yml or .hcl)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}
