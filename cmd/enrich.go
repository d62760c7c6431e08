package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/enrich"
	"github.com/sells-group/leadsync/pkg/anymail"
)

var enrichLimit int

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Fill missing lead emails via AnyMail",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if cfg.AnyMail.Key == "" {
			return eris.New("anymail key is required (LEADSYNC_ANYMAIL_KEY)")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		var opts []anymail.Option
		if cfg.AnyMail.BaseURL != "" {
			opts = append(opts, anymail.WithBaseURL(cfg.AnyMail.BaseURL))
		}
		provider := enrich.NewAnyMailProvider(anymail.NewClient(cfg.AnyMail.Key, opts...))

		filler := enrich.NewFiller(st, provider,
			cfg.Enrich.ConfidenceFloor, cfg.Enrich.BatchSize, cfg.Enrich.Concurrency)

		stats, err := filler.Run(ctx, enrichLimit)
		if err != nil {
			return eris.Wrap(err, "enrichment pass")
		}

		zap.L().Info("enrichment complete",
			zap.Int("scanned", stats.Scanned),
			zap.Int("filled", stats.Filled),
			zap.Int("no_result", stats.NoResult),
			zap.Int("low_confidence", stats.LowConf),
		)
		return nil
	},
}

func init() {
	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 0, "max leads to enrich (0 = all)")
	rootCmd.AddCommand(enrichCmd)
}
