package main

import (
	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Refresh the catalogue",
	Long: `Download the catalogue now, regardless of its age, and report
plugins with available upgrades when check-upgrade-on-refresh is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		_, err = a.manager.Update(ctx, currentRequester(), a.replier)
		return err
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent operations",
	Long: `Show recorded installs, upgrades, refreshes and scheduler ticks,
newest first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.manager.History(ctx, currentRequester(), historyLimit)
		if err != nil {
			return err
		}
		return writeHistory(cmd.OutOrStdout(), entries)
	},
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries to show, 0 for all")

	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(historyCmd)
}
