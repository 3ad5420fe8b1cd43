package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/salchaD-27/pipeline-check/internal/scan"
)

var detectorsCmd = &cobra.Command{
	Use:   "detectors",
	Short: "List the detectors run by scan",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		for _, d := range scan.DefaultDetectors(cfg) {
			fmt.Fprintln(cmd.OutOrStdout(), d.Name())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(detectorsCmd)
}
