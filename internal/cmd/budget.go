package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shelfgate/shelfgate/internal/observability"
	"github.com/shelfgate/shelfgate/internal/output"
)

var (
	budgetShowOutput string
	budgetResetYes   bool
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Inspect and manage the shared query budget",
}

var budgetShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current budget state",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(budgetShowOutput)
		if err != nil {
			return err
		}

		comps, err := buildComponents(cmd.Context(), appConfig, observability.CLILogger)
		if err != nil {
			return err
		}
		defer comps.store.Close() // nolint:errcheck // best-effort cleanup

		state, err := comps.bucket.State(cmd.Context())
		if err != nil {
			return fmt.Errorf("read budget state: %w", err)
		}

		report := &output.BudgetReport{
			AvailablePoints: state.Points,
			Capacity:        appConfig.Budget.MaxPoints,
			RefillRate:      appConfig.Budget.RefillRate,
			CheckedAt:       state.LastRefill,
		}

		rendered, err := output.NewFormatter(format).FormatBudget(report)
		if err != nil {
			return err
		}
		fmt.Println(rendered)
		return nil
	},
}

var budgetResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the budget to full capacity",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !budgetResetYes {
			return errors.New("budget reset requires --yes")
		}

		comps, err := buildComponents(cmd.Context(), appConfig, observability.CLILogger)
		if err != nil {
			return err
		}
		defer comps.store.Close() // nolint:errcheck // best-effort cleanup

		if err := comps.bucket.Reset(cmd.Context()); err != nil {
			return fmt.Errorf("reset budget: %w", err)
		}

		observability.CLILogger.Info("Budget reset to full capacity",
			zap.Float64("capacity", appConfig.Budget.MaxPoints))
		fmt.Printf("Budget reset to %.0f points\n", appConfig.Budget.MaxPoints)
		return nil
	},
}

func init() {
	budgetShowCmd.Flags().StringVar(&budgetShowOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	budgetResetCmd.Flags().BoolVar(&budgetResetYes, "yes", false, "Confirm the reset")

	budgetCmd.AddCommand(budgetShowCmd)
	budgetCmd.AddCommand(budgetResetCmd)
	rootCmd.AddCommand(budgetCmd)
}
