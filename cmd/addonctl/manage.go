package main

import (
	"github.com/spf13/cobra"
)

var disableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Unload a plugin and keep it from loading",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.manager.Disable(ctx, currentRequester(), args[0], a.replier)
	},
}

var reloadCmd = &cobra.Command{
	Use:   "reload <id>",
	Short: "Reload an installed plugin from its file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.manager.Reload(ctx, currentRequester(), args[0], a.replier)
	},
}

func init() {
	rootCmd.AddCommand(disableCmd)
	rootCmd.AddCommand(reloadCmd)
}
