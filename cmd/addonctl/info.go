package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <id>",
	Short: "Show plugin details",
	Long: `Show a catalogue plugin with its recent releases and install status.

Examples:
  addonctl info weather
  addonctl info weather --output yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List installed plugins",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

var outdatedCmd = &cobra.Command{
	Use:   "outdated",
	Short: "List installed plugins with a newer release",
	Long: `List installed plugins whose catalogue entry has a newer release.

The cached catalogue is used; run 'addonctl update' first for fresh data.`,
	Args: cobra.NoArgs,
	RunE: runOutdated,
}

var infoOutput string

func init() {
	infoCmd.Flags().StringVarP(&infoOutput, "output", "o", "text", "output format: text or yaml")
	_ = infoCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(outdatedCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	if infoOutput != "text" && infoOutput != "yaml" {
		return fmt.Errorf("unknown output format %q: use text or yaml", infoOutput)
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	info, err := a.manager.Info(ctx, currentRequester(), args[0])
	if err != nil {
		return err
	}
	if infoOutput == "yaml" {
		return writeInfoYAML(cmd.OutOrStdout(), info)
	}
	return writeInfo(cmd.OutOrStdout(), info)
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	installed, err := a.manager.List(ctx, currentRequester())
	if err != nil {
		return err
	}
	return writeInstalled(cmd.OutOrStdout(), installed)
}

func runOutdated(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	candidates, err := a.manager.Outdated(ctx, currentRequester())
	if err != nil {
		return err
	}
	return writeCandidates(cmd.OutOrStdout(), candidates)
}
