package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

var exportCmd = &cobra.Command{
	Use:   "export <file.xlsx>",
	Short: "Export the supply catalog to an XLSX workbook",
	Args:  cobra.ExactArgs(1),
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

		provider, _ := cmd.Flags().GetString("provider")
		entries, err := st.ListEntries(ctx, provider)
		if err != nil {
			return eris.Wrap(err, "export: list entries")
		}

		f := xlsx.NewFile()
		sheet, err := f.AddSheet("Catalog")
		if err != nil {
			return eris.Wrap(err, "export: add sheet")
		}

		header := sheet.AddRow()
		for _, h := range []string{"Provider", "Model", "Input $/1M", "Output $/1M", "Context Window", "Source", "Confidence", "Last Updated"} {
			header.AddCell().SetString(h)
		}

		for _, e := range entries {
			row := sheet.AddRow()
			row.AddCell().SetString(e.Provider)
			row.AddCell().SetString(e.ModelName)
			row.AddCell().SetString(decimalOrDash(e.PricingInput))
			row.AddCell().SetString(decimalOrDash(e.PricingOutput))
			row.AddCell().SetString(intOrDash(e.ContextWindow))
			row.AddCell().SetString(e.ResearchSource)
			row.AddCell().SetFloat(e.ConfidenceScore)
			row.AddCell().SetString(e.LastUpdated.Format("2006-01-02 15:04"))
		}

		if err := f.Save(args[0]); err != nil {
			return eris.Wrap(err, "export: save workbook")
		}

		zap.L().Info("catalog exported",
			zap.String("file", args[0]),
			zap.Int("entries", len(entries)),
		)
		fmt.Printf("Exported %d entries to %s\n", len(entries), args[0])
		return nil
	},
}

func init() {
	exportCmd.Flags().String("provider", "", "filter by provider")
	rootCmd.AddCommand(exportCmd)
}
