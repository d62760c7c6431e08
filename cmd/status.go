package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadsync/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show lead counts by sync status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		counts, err := st.CountBySyncStatus(ctx)
		if err != nil {
			return eris.Wrap(err, "count by status")
		}

		for _, status := range []model.SyncStatus{
			model.SyncStatusPending,
			model.SyncStatusSynced,
			model.SyncStatusFailed,
			model.SyncStatusDeleted,
		} {
			fmt.Printf("%-8s %d\n", status, counts[status])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
