package lead

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/model"
	"github.com/sells-group/leadsync/internal/store"
)

// Resolver deduplicates incoming leads against local storage. Fingerprint
// and email matches are independent duplicate triggers; both lookups run
// before any insert. Storage failures propagate as fatal errors because a
// best-effort dedup risks duplicate remote contacts downstream.
type Resolver struct {
	store store.Store
}

// NewResolver creates a lead resolver.
func NewResolver(st store.Store) *Resolver {
	return &Resolver{store: st}
}

// Upsert inserts a new lead or updates the existing record in place when
// the fingerprint or email already exists. Returns the stored lead and
// whether it was newly created.
func (r *Resolver) Upsert(ctx context.Context, incoming model.Lead) (*model.Lead, bool, error) {
	existing, err := r.store.GetLeadByFingerprint(ctx, incoming.Fingerprint)
	if err != nil {
		return nil, false, eris.Wrap(err, "lead: lookup by fingerprint")
	}
	if existing == nil {
		existing, err = r.store.GetLeadByEmail(ctx, incoming.Email)
		if err != nil {
			return nil, false, eris.Wrap(err, "lead: lookup by email")
		}
	}

	if existing == nil {
		if err := r.store.InsertLead(ctx, &incoming); err != nil {
			return nil, false, eris.Wrap(err, "lead: insert")
		}
		zap.L().Debug("lead created",
			zap.String("lead_id", incoming.ID),
			zap.String("email", incoming.Email),
			zap.String("source", string(incoming.Source)),
		)
		return &incoming, true, nil
	}

	merged := merge(*existing, incoming)
	if err := r.store.UpdateLead(ctx, &merged); err != nil {
		return nil, false, eris.Wrapf(err, "lead: update %s", existing.ID)
	}
	zap.L().Debug("lead merged",
		zap.String("lead_id", merged.ID),
		zap.String("email", merged.Email),
	)
	return &merged, false, nil
}

// merge folds a duplicate row into the stored record: incoming non-empty
// fields fill gaps, identity fields are recomputed, the original id and
// creation time survive.
func merge(existing, incoming model.Lead) model.Lead {
	out := existing

	out.Email = prefer(incoming.Email, existing.Email)
	out.FirstName = prefer(incoming.FirstName, existing.FirstName)
	out.LastName = prefer(incoming.LastName, existing.LastName)
	out.Organization = prefer(incoming.Organization, existing.Organization)
	out.Title = prefer(incoming.Title, existing.Title)
	out.Phone = prefer(incoming.Phone, existing.Phone)
	out.Website = prefer(incoming.Website, existing.Website)
	out.City = prefer(incoming.City, existing.City)
	out.State = prefer(incoming.State, existing.State)
	out.Country = prefer(incoming.Country, existing.Country)
	out.LeadType = prefer(incoming.LeadType, existing.LeadType)

	out.Fingerprint = FingerprintFor(out)
	out.LeadScore = Score(out)
	return out
}

func prefer(incoming, existing string) string {
	if incoming != "" {
		return incoming
	}
	return existing
}
