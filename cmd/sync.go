package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/reconcile"
)

var syncLimit int

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile pending leads against the remote CRM",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		client, err := newCRMClient()
		if err != nil {
			return err
		}

		limit := syncLimit
		if limit == 0 {
			limit = cfg.Sync.Limit
		}

		leads, err := st.ListPendingSync(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "list pending leads")
		}
		if len(leads) == 0 {
			zap.L().Info("nothing to sync")
			return nil
		}

		summary, err := reconcile.New(client, st).BatchUpsert(ctx, leads)
		if err != nil {
			return eris.Wrap(err, "batch upsert")
		}

		fmt.Printf("synced %d leads: %d created, %d updated, %d failed\n",
			summary.Total(), len(summary.Created), len(summary.Updated), len(summary.Failed))
		for _, f := range summary.Failed {
			fmt.Printf("  failed %s (%s): %s\n", f.LeadID, f.Email, f.Error)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().IntVar(&syncLimit, "limit", 0, "max leads to sync (default from config; 0 = all)")
	rootCmd.AddCommand(syncCmd)
}
