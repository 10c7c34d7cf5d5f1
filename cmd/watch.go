package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/supplyscope/supply-cli/internal/schedule"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the scheduler loop, firing due schedules until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		p, err := initPipeline(st)
		if err != nil {
			return err
		}

		mgr := schedule.NewManager(p, st)
		if err := mgr.LoadFile(cfg.Scheduler.SchedulesFile); err != nil {
			return err
		}

		interval := time.Duration(cfg.Scheduler.TickIntervalSecs) * time.Second
		if interval <= 0 {
			interval = time.Minute
		}

		zap.L().Info("scheduler started",
			zap.Duration("tick_interval", interval),
			zap.Int("schedules", len(mgr.Status())),
		)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				zap.L().Info("scheduler stopping")
				return nil
			case <-ticker.C:
				mgr.Tick(ctx)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
