package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/salchaD-27/pipeline-check/internal/config"
	"github.com/salchaD-27/pipeline-check/internal/finding"
	"github.com/salchaD-27/pipeline-check/internal/report"
	"github.com/salchaD-27/pipeline-check/internal/scan"
)

var failOn string

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Scan a Python project and report pipeline risks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var threshold finding.Priority
		if failOn != "" {
			p, err := finding.ParsePriority(failOn)
			if err != nil {
				return fmt.Errorf("--fail-on: %w", err)
			}
			threshold = p
		}

		r, err := runScan(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := emit(r, cmd.OutOrStdout(), cmd.ErrOrStderr()); err != nil {
			return err
		}

		if threshold != "" && r.Exceeds(threshold) {
			return fmt.Errorf("found issues at or above %s", threshold)
		}
		return nil
	},
}

func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func runScan(ctx context.Context, root string) (*report.Report, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	var opts []scan.Option
	if cfg.Sequential {
		opts = append(opts, scan.WithSequential())
	}
	return scan.Run(ctx, root, scan.DefaultDetectors(cfg), opts...)
}

// emit renders r in the selected format to stdout or to --output.
func emit(r *report.Report, stdout, stderr io.Writer) error {
	out, err := report.Export(r, reportFormat)
	if err != nil {
		return err
	}
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}

	if outputPath == "" {
		_, err := io.WriteString(stdout, out)
		return err
	}
	if err := os.WriteFile(outputPath, []byte(out), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(stderr, "Report written to %s\n", outputPath)
	return nil
}

func init() {
	scanCmd.Flags().StringVar(&failOn, "fail-on", "", "Exit non-zero when a finding at or above this priority exists (P0..P3)")
	rootCmd.AddCommand(scanCmd)
}
