package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/addonctl/internal/domain/catalogue"
	"github.com/felixgeelhaar/addonctl/internal/domain/config"
	"github.com/felixgeelhaar/addonctl/internal/domain/manager"
)

var (
	// Global flags
	cfgFile string
	verbose bool
	quiet   bool
	logJSON bool
	yesFlag bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "addonctl",
	Short: "Plugin package manager for long-running hosts",
	Long: `addonctl keeps a local mirror of a remote plugin catalogue, resolves
version-constrained dependencies, and installs, upgrades and disables
plugins in the host's plugin directory.

Every mutating command holds the session lock file in the data directory.
A second one started while the first is running, from this or any other
addonctl process, fails immediately.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. SIGINT and SIGTERM cancel its context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: addonctl.yaml, .toml or .ini in the working directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log errors and hide progress lines")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON lines")
	rootCmd.PersistentFlags().BoolVarP(&yesFlag, "yes", "y", false, "skip install confirmation")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	registerFlagCompletions()
}

// formatError returns a user-friendly error message.
func formatError(err error) string {
	var list *config.ErrorList
	if errors.As(err, &list) {
		return list.Format()
	}

	var userErr *config.UserError
	if errors.As(err, &userErr) {
		msg := userErr.Message
		if userErr.Context != "" {
			msg += fmt.Sprintf(" (at %s)", userErr.Context)
		}
		if userErr.Suggestion != "" {
			msg += fmt.Sprintf("\n\nSuggestion: %s", userErr.Suggestion)
		}
		if verbose && userErr.Underlying != nil {
			msg += fmt.Sprintf("\n\nTechnical details: %v", userErr.Underlying)
		}
		return msg
	}

	if catalogue.IsCatalogueLoad(err) || errors.Is(err, manager.ErrEmptyCatalogue) {
		return err.Error() + "\n\nSuggestion: run 'addonctl update' to download the catalogue"
	}
	return err.Error()
}

// printError prints an error message to stderr with proper formatting.
func printError(err error) {
	printErrorTo(os.Stderr, err)
}

// printErrorTo prints an error message to the given writer.
func printErrorTo(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "Error: %s\n", formatError(err))
}

// registerFlagCompletions sets up custom completions for global flags.
func registerFlagCompletions() {
	_ = rootCmd.RegisterFlagCompletionFunc("config", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"yaml", "yml", "toml", "ini", "cfg"}, cobra.ShellCompDirectiveFilterFileExt
	})
}
