package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/supplyscope/supply-cli/internal/model"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the supply catalog",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		provider, _ := cmd.Flags().GetString("provider")
		entries, err := st.ListEntries(ctx, provider)
		if err != nil {
			return eris.Wrap(err, "catalog list")
		}

		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No catalog entries found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PROVIDER\tMODEL\tINPUT $/1M\tOUTPUT $/1M\tCONTEXT\tCONFIDENCE\tUPDATED")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.2f\t%s\n",
				e.Provider, e.ModelName,
				decimalOrDash(e.PricingInput), decimalOrDash(e.PricingOutput),
				intOrDash(e.ContextWindow),
				e.ConfidenceScore,
				e.LastUpdated.Format("2006-01-02 15:04"),
			)
		}
		return w.Flush()
	},
}

var catalogChangesCmd = &cobra.Command{
	Use:   "changes <provider> <model>",
	Short: "Show the audit trail for one catalog entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		entry, err := st.GetEntry(ctx, args[0], args[1])
		if err != nil {
			return eris.Wrap(err, "catalog changes")
		}
		if entry == nil {
			return eris.Errorf("no catalog entry for %s/%s", args[0], args[1])
		}

		limit, _ := cmd.Flags().GetInt("limit")
		changes, err := st.ListChanges(ctx, entry.ID, limit)
		if err != nil {
			return eris.Wrap(err, "catalog changes")
		}

		if len(changes) == 0 {
			fmt.Fprintln(os.Stderr, "No changes recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIMESTAMP\tFIELD\tOLD\tNEW\tACTOR\tSESSION")
		for _, c := range changes {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				c.Timestamp.Format("2006-01-02 15:04"),
				c.Field, c.OldValue, c.NewValue, c.Actor, c.SessionID,
			)
		}
		return w.Flush()
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recent research sessions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		limit, _ := cmd.Flags().GetInt("limit")
		sessions, err := st.ListSessions(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "sessions list")
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(sessions)
		}

		if len(sessions) == 0 {
			fmt.Fprintln(os.Stderr, "No sessions found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tCREATED\tQUERY")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				s.ID, s.Status, s.CreatedAt.Format("2006-01-02 15:04"), truncate(s.QueryText, 60),
			)
		}
		return w.Flush()
	},
}

func decimalOrDash(d *model.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.String()
}

func intOrDash(n *int) string {
	if n == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *n)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	catalogListCmd.Flags().String("provider", "", "filter by provider")
	catalogChangesCmd.Flags().Int("limit", 50, "max changes to show")
	sessionsCmd.Flags().Int("limit", 20, "max sessions to show")
	sessionsCmd.Flags().Bool("json", false, "emit full session records as JSON")

	catalogCmd.AddCommand(catalogListCmd, catalogChangesCmd)
	rootCmd.AddCommand(catalogCmd, sessionsCmd)
}
