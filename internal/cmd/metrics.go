package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shelfgate/shelfgate/internal/observability"
	"github.com/shelfgate/shelfgate/internal/output"
)

var metricsShowOutput string

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Inspect and manage the rolling request statistics",
}

var metricsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current metrics snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(metricsShowOutput)
		if err != nil {
			return err
		}

		comps, err := buildComponents(cmd.Context(), appConfig, observability.CLILogger)
		if err != nil {
			return err
		}
		defer comps.store.Close() // nolint:errcheck // best-effort cleanup

		snapshot := comps.metrics.Snapshot(cmd.Context())

		rendered, err := output.NewFormatter(format).FormatMetrics(&snapshot)
		if err != nil {
			return err
		}
		fmt.Println(rendered)
		return nil
	},
}

var metricsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear both rolling metric windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		comps, err := buildComponents(cmd.Context(), appConfig, observability.CLILogger)
		if err != nil {
			return err
		}
		defer comps.store.Close() // nolint:errcheck // best-effort cleanup

		if err := comps.metrics.Reset(cmd.Context()); err != nil {
			return fmt.Errorf("reset metrics: %w", err)
		}

		fmt.Println("Metrics windows cleared")
		return nil
	},
}

func init() {
	metricsShowCmd.Flags().StringVar(&metricsShowOutput, "output-format", string(output.FormatTable), "Output format: table|json")

	metricsCmd.AddCommand(metricsShowCmd)
	metricsCmd.AddCommand(metricsResetCmd)
	rootCmd.AddCommand(metricsCmd)
}
