// Package reconcile synchronizes local leads against the remote CRM contact
// store with a bounded number of outbound calls.
package reconcile

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/model"
	"github.com/sells-group/leadsync/internal/store"
	"github.com/sells-group/leadsync/pkg/crm"
)

// noEmailReason marks leads that cannot be reconciled in an email-keyed CRM.
const noEmailReason = "no email"

// Reconciler runs batch upserts of leads against the CRM. It is meant for a
// single reconciliation pass at a time; the email→remote-id cache is only
// appended to during a run, so no locking is needed under that assumption.
type Reconciler struct {
	crm   crm.Client
	store store.Store

	// cache maps email to remote contact id for the life of the process.
	cache map[string]string
}

// New creates a reconciler.
func New(client crm.Client, st store.Store) *Reconciler {
	return &Reconciler{
		crm:   client,
		store: st,
		cache: make(map[string]string),
	}
}

// BatchUpsert reconciles the given leads against the CRM. Every input lead
// lands in exactly one of the summary's created/updated/failed slices.
// Chunks are processed strictly in input order; within a chunk the search
// call always precedes any write, so no lead is ever created twice.
// Storage failures abort the pass; per-item CRM failures do not.
func (r *Reconciler) BatchUpsert(ctx context.Context, leads []model.Lead) (model.SyncSummary, error) {
	var summary model.SyncSummary

	// Leads without an email cannot be matched or created.
	valid := make([]model.Lead, 0, len(leads))
	for _, l := range leads {
		if l.Email == "" {
			summary.Failed = append(summary.Failed, model.SyncOutcome{
				LeadID: l.ID,
				Error:  noEmailReason,
			})
			continue
		}
		valid = append(valid, l)
	}

	for start := 0; start < len(valid); start += crm.MaxBatchSize {
		chunk := valid[start:min(start+crm.MaxBatchSize, len(valid))]
		if err := r.reconcileChunk(ctx, chunk, &summary); err != nil {
			return summary, err
		}
	}

	zap.L().Info("batch upsert complete",
		zap.Int("input", len(leads)),
		zap.Int("created", len(summary.Created)),
		zap.Int("updated", len(summary.Updated)),
		zap.Int("failed", len(summary.Failed)),
	)
	return summary, nil
}

// reconcileChunk runs search → partition → batched writes for one chunk of
// at most crm.MaxBatchSize leads.
func (r *Reconciler) reconcileChunk(ctx context.Context, chunk []model.Lead, summary *model.SyncSummary) error {
	// One search call discovers which chunk emails already have contacts.
	// Emails already cached from earlier chunks are excluded.
	var unknown []string
	seen := make(map[string]bool, len(chunk))
	for _, l := range chunk {
		if _, cached := r.cache[l.Email]; !cached && !seen[l.Email] {
			unknown = append(unknown, l.Email)
			seen[l.Email] = true
		}
	}
	if len(unknown) > 0 {
		found, err := r.crm.SearchByEmails(ctx, unknown)
		if err != nil {
			// Search failed for the whole chunk; without it we cannot
			// guarantee no duplicate creates, so the chunk fails wholesale.
			for _, l := range chunk {
				summary.Failed = append(summary.Failed, model.SyncOutcome{
					LeadID: l.ID,
					Email:  l.Email,
					Error:  "search: " + err.Error(),
				})
			}
			return nil
		}
		for email, id := range found {
			r.cache[email] = id
		}
	}

	// Partition into create and update sets. A persisted mapping takes
	// precedence over the search result; a second lead with an email already
	// headed for create is deferred until the create assigns the id.
	var toCreate, toUpdate, deferred []model.Lead
	creating := make(map[string]bool)
	for _, l := range chunk {
		if _, ok := r.cache[l.Email]; ok {
			toUpdate = append(toUpdate, l)
			continue
		}
		m, err := r.store.GetMapping(ctx, l.ID)
		if err != nil {
			return eris.Wrapf(err, "reconcile: load mapping for %s", l.ID)
		}
		if m != nil && m.Status != model.SyncStatusDeleted {
			r.cache[l.Email] = m.RemoteContactID
			toUpdate = append(toUpdate, l)
			continue
		}
		if creating[l.Email] {
			deferred = append(deferred, l)
			continue
		}
		creating[l.Email] = true
		toCreate = append(toCreate, l)
	}

	if err := r.createBatch(ctx, toCreate, summary); err != nil {
		return err
	}

	// Duplicated emails resolve to updates now that creates assigned ids.
	for _, l := range deferred {
		if _, ok := r.cache[l.Email]; ok {
			toUpdate = append(toUpdate, l)
		} else {
			summary.Failed = append(summary.Failed, model.SyncOutcome{
				LeadID: l.ID,
				Email:  l.Email,
				Error:  "duplicate email in batch and original create failed",
			})
		}
	}

	return r.updateBatch(ctx, toUpdate, summary)
}

// createBatch issues one batched create, falling back to per-item calls on
// a transport failure so a single malformed record does not sink the chunk.
func (r *Reconciler) createBatch(ctx context.Context, leads []model.Lead, summary *model.SyncSummary) error {
	if len(leads) == 0 {
		return nil
	}

	contacts := make([]crm.Contact, len(leads))
	for i, l := range leads {
		contacts[i] = contactFor(l)
	}

	results, err := r.crm.BatchCreate(ctx, contacts)
	if err != nil {
		zap.L().Warn("batch create failed, falling back to per-item calls",
			zap.Int("items", len(leads)),
			zap.Error(err),
		)
		for _, l := range leads {
			if err := r.createOne(ctx, l, summary); err != nil {
				return err
			}
		}
		return nil
	}

	for i, res := range results {
		l := leads[i]
		if !res.Success {
			if err := r.recordFailure(ctx, l, res.Error, summary); err != nil {
				return err
			}
			continue
		}
		if err := r.recordCreated(ctx, l, res.ID, summary); err != nil {
			return err
		}
	}
	return nil
}

// updateBatch issues one batched update with the same per-item fallback.
// Items whose remote contact was deleted degrade to creates.
func (r *Reconciler) updateBatch(ctx context.Context, leads []model.Lead, summary *model.SyncSummary) error {
	if len(leads) == 0 {
		return nil
	}

	updates := make([]crm.Update, len(leads))
	for i, l := range leads {
		updates[i] = crm.Update{ID: r.cache[l.Email], Contact: contactFor(l)}
	}

	results, err := r.crm.BatchUpdate(ctx, updates)
	if err != nil {
		zap.L().Warn("batch update failed, falling back to per-item calls",
			zap.Int("items", len(leads)),
			zap.Error(err),
		)
		for _, l := range leads {
			if err := r.updateOne(ctx, l, summary); err != nil {
				return err
			}
		}
		return nil
	}

	for i, res := range results {
		l := leads[i]
		switch {
		case res.Success:
			if err := r.recordUpdated(ctx, l, updates[i].ID, summary); err != nil {
				return err
			}
		case isNotFound(res.Error):
			if err := r.degradeToCreate(ctx, l, summary); err != nil {
				return err
			}
		default:
			if err := r.recordFailure(ctx, l, res.Error, summary); err != nil {
				return err
			}
		}
	}
	return nil
}

// createOne is the per-item fallback create path.
func (r *Reconciler) createOne(ctx context.Context, l model.Lead, summary *model.SyncSummary) error {
	id, err := r.crm.CreateOne(ctx, contactFor(l))
	if err != nil {
		return r.recordFailure(ctx, l, err.Error(), summary)
	}
	return r.recordCreated(ctx, l, id, summary)
}

// updateOne is the per-item fallback update path.
func (r *Reconciler) updateOne(ctx context.Context, l model.Lead, summary *model.SyncSummary) error {
	id := r.cache[l.Email]
	err := r.crm.UpdateOne(ctx, id, contactFor(l))
	if err == nil {
		return r.recordUpdated(ctx, l, id, summary)
	}
	if errors.Is(err, crm.ErrNotFound) {
		return r.degradeToCreate(ctx, l, summary)
	}
	return r.recordFailure(ctx, l, err.Error(), summary)
}

// degradeToCreate handles a stale mapping: the remote contact is gone, so
// the old mapping is marked deleted and the lead is recreated.
func (r *Reconciler) degradeToCreate(ctx context.Context, l model.Lead, summary *model.SyncSummary) error {
	staleID := r.cache[l.Email]
	zap.L().Warn("remote contact gone, recreating",
		zap.String("lead_id", l.ID),
		zap.String("stale_contact_id", staleID),
	)
	delete(r.cache, l.Email)

	if err := r.store.UpsertMapping(ctx, &model.ContactMapping{
		LeadID:          l.ID,
		RemoteContactID: staleID,
		Status:          model.SyncStatusDeleted,
	}); err != nil {
		return eris.Wrapf(err, "reconcile: mark mapping deleted for %s", l.ID)
	}

	return r.createOne(ctx, l, summary)
}

func (r *Reconciler) recordCreated(ctx context.Context, l model.Lead, remoteID string, summary *model.SyncSummary) error {
	r.cache[l.Email] = remoteID
	if err := r.saveMapping(ctx, l.ID, remoteID, model.SyncStatusSynced); err != nil {
		return err
	}
	summary.Created = append(summary.Created, model.SyncOutcome{
		LeadID:          l.ID,
		Email:           l.Email,
		RemoteContactID: remoteID,
	})
	return nil
}

func (r *Reconciler) recordUpdated(ctx context.Context, l model.Lead, remoteID string, summary *model.SyncSummary) error {
	r.cache[l.Email] = remoteID
	if err := r.saveMapping(ctx, l.ID, remoteID, model.SyncStatusSynced); err != nil {
		return err
	}
	summary.Updated = append(summary.Updated, model.SyncOutcome{
		LeadID:          l.ID,
		Email:           l.Email,
		RemoteContactID: remoteID,
	})
	return nil
}

func (r *Reconciler) recordFailure(ctx context.Context, l model.Lead, reason string, summary *model.SyncSummary) error {
	// A failed lead keeps its mapping if it had one; only the status flips.
	if m, err := r.store.GetMapping(ctx, l.ID); err != nil {
		return eris.Wrapf(err, "reconcile: load mapping for %s", l.ID)
	} else if m != nil {
		m.Status = model.SyncStatusFailed
		if err := r.store.UpsertMapping(ctx, m); err != nil {
			return eris.Wrapf(err, "reconcile: mark mapping failed for %s", l.ID)
		}
	}
	summary.Failed = append(summary.Failed, model.SyncOutcome{
		LeadID: l.ID,
		Email:  l.Email,
		Error:  reason,
	})
	return nil
}

func (r *Reconciler) saveMapping(ctx context.Context, leadID, remoteID string, status model.SyncStatus) error {
	now := time.Now().UTC()
	err := r.store.UpsertMapping(ctx, &model.ContactMapping{
		LeadID:          leadID,
		RemoteContactID: remoteID,
		Status:          status,
		LastSyncAt:      &now,
	})
	return eris.Wrapf(err, "reconcile: save mapping for %s", leadID)
}

// contactFor maps a lead onto the CRM contact property set.
func contactFor(l model.Lead) crm.Contact {
	props := map[string]string{
		"first_name":  l.FirstName,
		"last_name":   l.LastName,
		"company":     l.Organization,
		"job_title":   l.Title,
		"phone":       l.Phone,
		"website":     l.Website,
		"city":        l.City,
		"state":       l.State,
		"country":     l.Country,
		"lead_type":   l.LeadType,
		"lead_source": string(l.Source),
	}
	for k, v := range props {
		if v == "" {
			delete(props, k)
		}
	}
	if l.LeadScore > 0 {
		props["lead_score"] = strconv.Itoa(l.LeadScore)
	}
	return crm.Contact{Email: l.Email, Properties: props}
}

func isNotFound(errMsg string) bool {
	return strings.Contains(strings.ToLower(errMsg), "not found")
}
