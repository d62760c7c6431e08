package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadsync/internal/ratelimit"
	"github.com/sells-group/leadsync/internal/store"
	"github.com/sells-group/leadsync/pkg/crm"
)

// openStore opens the configured store backend and runs migrations.
func openStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "sqlite", "":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// newCRMClient builds the CRM client with the daily-budget gate attached.
func newCRMClient() (crm.Client, error) {
	if cfg.CRM.Key == "" {
		return nil, eris.New("crm key is required (LEADSYNC_CRM_KEY)")
	}
	if cfg.CRM.BaseURL == "" {
		return nil, eris.New("crm base URL is required (LEADSYNC_CRM_BASE_URL)")
	}

	gate := ratelimit.New(cfg.CRM.DailyBudget, 0,
		ratelimit.WithSmoothing(cfg.CRM.SmoothRPS),
	)
	return crm.NewClient(cfg.CRM.Key, cfg.CRM.BaseURL, crm.WithGate(gate)), nil
}
