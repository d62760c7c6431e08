// Package enrich fills missing lead emails via an external email-finding
// provider.
package enrich

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadsync/internal/lead"
	"github.com/sells-group/leadsync/internal/model"
	"github.com/sells-group/leadsync/internal/store"
)

// Query identifies the person a provider should find an email for.
type Query struct {
	Domain    string
	FirstName string
	LastName  string
	Company   string
}

// Provider is an email-finding service. Find returns one hit per query in
// input order; queries the provider cannot answer come back nil.
type Provider interface {
	Name() string
	Find(ctx context.Context, queries []Query) ([]*model.EnrichmentHit, error)
}

// Filler runs the enrichment pass: leads without an email are looked up in
// batches and populated when the provider's confidence clears the floor.
type Filler struct {
	store           store.Store
	provider        Provider
	confidenceFloor int
	batchSize       int
	concurrency     int
}

// NewFiller creates an enrichment filler. Confidence below floor leaves the
// lead email-less so it is not synced with a low-quality guess.
func NewFiller(st store.Store, p Provider, confidenceFloor, batchSize, concurrency int) *Filler {
	if batchSize <= 0 {
		batchSize = 50
	}
	if concurrency <= 0 {
		concurrency = 2
	}
	return &Filler{
		store:           st,
		provider:        p,
		confidenceFloor: confidenceFloor,
		batchSize:       batchSize,
		concurrency:     concurrency,
	}
}

// Stats summarizes one enrichment pass.
type Stats struct {
	Scanned  int
	Filled   int
	NoResult int
	LowConf  int
}

// Run enriches up to limit email-less leads. Provider misses and
// low-confidence answers are skipped, not errors; storage failures abort.
func (f *Filler) Run(ctx context.Context, limit int) (Stats, error) {
	leads, err := f.store.ListMissingEmail(ctx, limit)
	if err != nil {
		return Stats{}, eris.Wrap(err, "enrich: list leads")
	}

	stats := Stats{Scanned: len(leads)}
	if len(leads) == 0 {
		return stats, nil
	}

	var filled, noResult, lowConf atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for start := 0; start < len(leads); start += f.batchSize {
		chunk := leads[start:min(start+f.batchSize, len(leads))]
		g.Go(func() error {
			queries := make([]Query, len(chunk))
			for i, l := range chunk {
				queries[i] = Query{
					Domain:    l.Website,
					FirstName: l.FirstName,
					LastName:  l.LastName,
					Company:   l.Organization,
				}
			}

			hits, err := f.provider.Find(gctx, queries)
			if err != nil {
				return eris.Wrapf(err, "enrich: %s lookup", f.provider.Name())
			}

			for i, hit := range hits {
				switch {
				case hit == nil:
					noResult.Add(1)
				case hit.Confidence < f.confidenceFloor:
					lowConf.Add(1)
					zap.L().Debug("enrichment below confidence floor",
						zap.String("lead_id", chunk[i].ID),
						zap.Int("confidence", hit.Confidence),
						zap.Int("floor", f.confidenceFloor),
					)
				default:
					if err := f.apply(gctx, chunk[i], hit); err != nil {
						return err
					}
					filled.Add(1)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}

	stats.Filled = int(filled.Load())
	stats.NoResult = int(noResult.Load())
	stats.LowConf = int(lowConf.Load())
	return stats, nil
}

// apply writes the found email onto the lead and recomputes its identity.
func (f *Filler) apply(ctx context.Context, l model.Lead, hit *model.EnrichmentHit) error {
	l.Email = hit.Email
	l.Source = model.SourceAnyMail
	l.Fingerprint = lead.FingerprintFor(l)
	l.LeadScore = lead.Score(l)

	if err := f.store.UpdateLead(ctx, &l); err != nil {
		return eris.Wrapf(err, "enrich: update lead %s", l.ID)
	}
	zap.L().Info("lead email enriched",
		zap.String("lead_id", l.ID),
		zap.String("email", l.Email),
		zap.Int("confidence", hit.Confidence),
	)
	return nil
}
