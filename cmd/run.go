package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runText string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one research pass for a free-text request",
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

		p, err := initPipeline(st)
		if err != nil {
			return err
		}

		result, err := p.Run(ctx, runText)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("research run complete",
			zap.String("session_id", result.SessionID),
			zap.Int("candidates", len(result.Candidates)),
			zap.Float64("confidence", result.Confidence),
			zap.Bool("persisted", result.Persisted),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	runCmd.Flags().StringVar(&runText, "text", "", "research request text (required)")
	_ = runCmd.MarkFlagRequired("text")
	rootCmd.AddCommand(runCmd)
}
