package enrich

import (
	"context"

	"github.com/sells-group/leadsync/internal/model"
	"github.com/sells-group/leadsync/pkg/anymail"
)

// AnyMailProvider adapts the AnyMail client to the Provider interface,
// keeping the provider's response shape out of the core.
type AnyMailProvider struct {
	client anymail.Client
}

// NewAnyMailProvider wraps an AnyMail client.
func NewAnyMailProvider(client anymail.Client) *AnyMailProvider {
	return &AnyMailProvider{client: client}
}

func (p *AnyMailProvider) Name() string {
	return "anymail"
}

func (p *AnyMailProvider) Find(ctx context.Context, queries []Query) ([]*model.EnrichmentHit, error) {
	reqs := make([]anymail.FindRequest, len(queries))
	for i, q := range queries {
		reqs[i] = anymail.FindRequest{
			Domain:      q.Domain,
			FirstName:   q.FirstName,
			LastName:    q.LastName,
			CompanyName: q.Company,
		}
	}

	results, err := p.client.BatchFindEmails(ctx, reqs)
	if err != nil {
		return nil, err
	}

	hits := make([]*model.EnrichmentHit, len(results))
	for i, r := range results {
		if r == nil {
			continue
		}
		hits[i] = &model.EnrichmentHit{
			Email:      r.Email,
			Confidence: r.Confidence,
			Sources:    r.Sources,
		}
	}
	return hits, nil
}
