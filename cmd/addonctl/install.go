package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/addonctl/internal/domain/install"
	"github.com/felixgeelhaar/addonctl/internal/domain/manager"
)

var installCmd = &cobra.Command{
	Use:   "install <target>",
	Short: "Install a plugin and its dependencies",
	Long: `Install a plugin together with every missing or outdated dependency.

The target is a plugin id optionally followed by a version requirement.
Dependencies are installed first. On a terminal the plan is shown for
confirmation unless --yes is given.

Examples:
  addonctl install weather
  addonctl install "weather>=1.2.0"
  addonctl install weather==1.0.0 --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runInstall,
}

var upgradeCmd = &cobra.Command{
	Use:   "upgrade [id]",
	Short: "Upgrade installed plugins",
	Long: `Upgrade one installed plugin, or every outdated plugin with --all.

An upgrade-all run continues past failures and reports each of them.

Examples:
  addonctl upgrade weather
  addonctl upgrade --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUpgrade,
}

var upgradeAll bool

func init() {
	upgradeCmd.Flags().BoolVar(&upgradeAll, "all", false, "upgrade every outdated plugin")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(upgradeCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	req := currentRequester()
	_, err = confirmed(ctx, req, planPrompt, func() (*install.Report, error) {
		return a.manager.Install(ctx, req, args[0], a.replier, manager.InstallOptions{AssumeYes: yesFlag})
	})
	return err
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	switch {
	case upgradeAll && len(args) > 0:
		return errors.New("use either a plugin id or --all")
	case !upgradeAll && len(args) == 0:
		return errors.New("requires a plugin id or --all")
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	req := currentRequester()
	opts := manager.InstallOptions{AssumeYes: yesFlag}
	if upgradeAll {
		return runUpgradeAll(ctx, a, req, opts)
	}
	_, err = confirmed(ctx, req, planPrompt, func() (*install.Report, error) {
		return a.manager.Upgrade(ctx, req, args[0], a.replier, opts)
	})
	return err
}

func runUpgradeAll(ctx context.Context, a *app, req manager.Requester, opts manager.InstallOptions) error {
	candidates, err := a.manager.Outdated(ctx, req)
	if err != nil {
		return err
	}
	_, err = confirmed(ctx, req, upgradePrompt(candidates), func() (*manager.UpgradeAllReport, error) {
		return a.manager.UpgradeAll(ctx, req, a.replier, opts)
	})
	return err
}
