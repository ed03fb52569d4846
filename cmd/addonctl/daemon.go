package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/addonctl/internal/domain/scheduler"
	"github.com/felixgeelhaar/addonctl/internal/ports"
)

// daemonStopTimeout bounds the wait for an in-flight tick on shutdown.
const daemonStopTimeout = 30 * time.Second

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Refresh the catalogue periodically",
	Long: `Run the update scheduler in the foreground until interrupted.

Every update-interval-seconds the catalogue is refreshed and, with
check-upgrade-on-refresh, installed plugins are checked for upgrades.
On startup the catalogue is refreshed only when it is stale. A tick is
skipped while another command holds the session lock.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sched := scheduler.New(a.store, a.host, a.lock,
		scheduler.WithInterval(a.cfg.UpdateInterval()),
		scheduler.WithCheckUpgrade(a.cfg.CheckUpgradeOnRefresh),
		scheduler.WithJournal(a.journal),
		scheduler.WithLogger(a.logger),
	)
	sched.SetTickHandler(func(r scheduler.TickResult) {
		logTick(ctx, a.logger, r)
	})

	logTick(ctx, a.logger, sched.Warm(ctx))
	if err := sched.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), daemonStopTimeout)
	defer cancel()
	return sched.Stop(stopCtx)
}

func logTick(ctx context.Context, logger ports.Logger, r scheduler.TickResult) {
	fields := []ports.Field{
		ports.F("outcome", string(r.Outcome)),
		ports.F("upgrades", len(r.Candidates)),
	}
	if r.Err != nil {
		logger.Warn(ctx, "tick failed", append(fields, ports.ErrField(r.Err))...)
		return
	}
	logger.Info(ctx, "tick", fields...)
}
