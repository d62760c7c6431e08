package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/ingest"
	"github.com/sells-group/leadsync/internal/lead"
	"github.com/sells-group/leadsync/internal/model"
)

var (
	importCSVPath  string
	importXLSXPath string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import leads from a CSV or XLSX file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		var (
			rows []lead.RawRow
			err  error
		)
		switch {
		case importCSVPath != "":
			rows, err = ingest.ReadCSV(importCSVPath)
		case importXLSXPath != "":
			rows, err = ingest.ReadXLSX(importXLSXPath)
		default:
			return eris.New("one of --csv or --xlsx is required")
		}
		if err != nil {
			return eris.Wrap(err, "read input")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		resolver := lead.NewResolver(st)

		var created, merged, rejected int
		for _, row := range rows {
			l, err := lead.Normalize(row, model.SourceManual)
			if err != nil {
				rejected++
				zap.L().Warn("rejected row", zap.Error(err))
				continue
			}
			_, isNew, err := resolver.Upsert(ctx, l)
			if err != nil {
				return eris.Wrap(err, "import: upsert lead")
			}
			if isNew {
				created++
			} else {
				merged++
			}
		}

		zap.L().Info("import complete",
			zap.Int("rows", len(rows)),
			zap.Int("created", created),
			zap.Int("merged", merged),
			zap.Int("rejected", rejected),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "path to CSV file")
	importCmd.Flags().StringVar(&importXLSXPath, "xlsx", "", "path to XLSX file")
	importCmd.MarkFlagsMutuallyExclusive("csv", "xlsx")
	rootCmd.AddCommand(importCmd)
}
