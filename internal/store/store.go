// Package store provides lead and contact-mapping persistence backed by
// SQLite or Postgres.
package store

import (
	"context"

	"github.com/sells-group/leadsync/internal/model"
)

// Store defines the persistence interface for leads and their CRM contact
// mappings. Lookup methods return (nil, nil) when no row matches; any other
// failure is fatal to the caller because deduplication cannot proceed
// without consistent lookups.
type Store interface {
	// Leads
	GetLeadByFingerprint(ctx context.Context, fingerprint string) (*model.Lead, error)
	GetLeadByEmail(ctx context.Context, email string) (*model.Lead, error)
	InsertLead(ctx context.Context, lead *model.Lead) error
	UpdateLead(ctx context.Context, lead *model.Lead) error
	ListPendingSync(ctx context.Context, limit int) ([]model.Lead, error)
	ListMissingEmail(ctx context.Context, limit int) ([]model.Lead, error)

	// Contact mappings
	GetMapping(ctx context.Context, leadID string) (*model.ContactMapping, error)
	UpsertMapping(ctx context.Context, m *model.ContactMapping) error
	CountBySyncStatus(ctx context.Context) (map[model.SyncStatus]int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
