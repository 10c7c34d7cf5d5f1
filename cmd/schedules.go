package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/supplyscope/supply-cli/internal/schedule"
)

var schedulesCmd = &cobra.Command{
	Use:   "schedules",
	Short: "Inspect and control research schedules",
}

// loadManager builds a manager seeded from the schedules file. Commands that
// persist state also migrate and pass the store through.
func loadManager(cmd *cobra.Command) (*schedule.Manager, func(), error) {
	ctx := cmd.Context()

	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, nil, eris.Wrap(err, "migrate store")
	}

	p, err := initPipeline(st)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	mgr := schedule.NewManager(p, st)
	if err := mgr.LoadFile(cfg.Scheduler.SchedulesFile); err != nil {
		st.Close()
		return nil, nil, err
	}
	return mgr, func() { st.Close() }, nil
}

var schedulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List schedules and their next firing times",
	RunE: func(cmd *cobra.Command, _ []string) error {
		mgr, cleanup, err := loadManager(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		schedules := mgr.Status()
		if len(schedules) == 0 {
			fmt.Fprintln(os.Stderr, "No schedules configured.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tFREQUENCY\tKIND\tPROVIDERS\tENABLED\tNEXT RUN")
		for _, s := range schedules {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
				s.Name, s.Frequency, s.ResearchKind,
				strings.Join(s.Providers, ","), s.Enabled,
				s.NextRun.Format("2006-01-02 15:04"),
			)
		}
		return w.Flush()
	},
}

var schedulesEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, cleanup, err := loadManager(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := mgr.Enable(args[0]); err != nil {
			return err
		}
		fmt.Printf("Schedule %q enabled.\n", args[0])
		return nil
	},
}

var schedulesDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, cleanup, err := loadManager(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := mgr.Disable(args[0]); err != nil {
			return err
		}
		fmt.Printf("Schedule %q disabled.\n", args[0])
		return nil
	},
}

var schedulesTriggerCmd = &cobra.Command{
	Use:   "trigger <name>",
	Short: "Fire a schedule immediately and wait for it to finish",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, cleanup, err := loadManager(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := mgr.Trigger(cmd.Context(), args[0]); err != nil {
			return eris.Wrapf(err, "trigger %s", args[0])
		}
		fmt.Printf("Schedule %q completed.\n", args[0])
		return nil
	},
}

func init() {
	schedulesCmd.AddCommand(schedulesListCmd, schedulesEnableCmd, schedulesDisableCmd, schedulesTriggerCmd)
	rootCmd.AddCommand(schedulesCmd)
}
