package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/addonctl/internal/domain/catalogue"
	"github.com/felixgeelhaar/addonctl/internal/domain/manager"
)

var browseCmd = &cobra.Command{
	Use:   "browse [index]",
	Short: "List catalogue plugins",
	Long: `List the plugins of one catalogue index.

The built-in indexes are "all", "installed" and "outdated"; every plugin
label is an index as well. Output is paginated on a terminal.

Examples:
  addonctl browse                    # Every plugin, sorted by name
  addonctl browse tool --sort authors
  addonctl browse outdated
  addonctl browse all --page 2
  addonctl browse --indexes          # Show the available indexes`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBrowse,
}

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Search catalogue plugins",
	Long: `Search plugin ids, names, authors, labels and descriptions.

Matching ignores case.

Examples:
  addonctl search weather
  addonctl search "remote control" --page 2`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var (
	browseSort    = catalogue.SortByName
	browsePage    int
	browseIndexes bool
	searchPage    int
)

func init() {
	browseCmd.Flags().Var(sortKeyValue{key: &browseSort}, "sort", "sort by "+joinSortKeys())
	browseCmd.Flags().IntVarP(&browsePage, "page", "p", 1, "page to show")
	browseCmd.Flags().BoolVar(&browseIndexes, "indexes", false, "list the available indexes")
	_ = browseCmd.RegisterFlagCompletionFunc("sort", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return strings.Split(joinSortKeys(), ", "), cobra.ShellCompDirectiveNoFileComp
	})

	searchCmd.Flags().IntVarP(&searchPage, "page", "p", 1, "page to show")

	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(searchCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if browseIndexes {
		for _, index := range a.manager.Indexes() {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), index)
		}
		return nil
	}

	q := manager.BrowseQuery{Sort: browseSort, Page: browsePage}
	if len(args) > 0 {
		q.Index = args[0]
	}
	page, err := a.manager.Browse(ctx, currentRequester(), q)
	if err != nil {
		return err
	}
	return writePage(cmd.OutOrStdout(), page)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	page, err := a.manager.Search(ctx, currentRequester(), strings.Join(args, " "), searchPage)
	if err != nil {
		return err
	}
	return writePage(cmd.OutOrStdout(), page)
}

func joinSortKeys() string {
	keys := catalogue.SortKeys()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return strings.Join(out, ", ")
}
