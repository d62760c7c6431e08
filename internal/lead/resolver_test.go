package lead

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadsync/internal/model"
	"github.com/sells-group/leadsync/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "leads.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func mustNormalize(t *testing.T, row RawRow) model.Lead {
	t.Helper()
	l, err := Normalize(row, model.SourceManual)
	require.NoError(t, err)
	return l
}

func TestResolver_CreatesNewLead(t *testing.T) {
	st := newTestStore(t)
	r := NewResolver(st)

	l := mustNormalize(t, RawRow{Email: "jo@acme.com", FirstName: "Jo", Organization: "Acme"})
	stored, created, err := r.Upsert(context.Background(), l)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, stored.ID)

	found, err := st.GetLeadByEmail(context.Background(), "jo@acme.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, stored.ID, found.ID)
}

func TestResolver_MergesByFingerprint(t *testing.T) {
	st := newTestStore(t)
	r := NewResolver(st)
	ctx := context.Background()

	first := mustNormalize(t, RawRow{Email: "jo@acme.com", FirstName: "Jo", LastName: "Smith", Organization: "Acme"})
	stored, created, err := r.Upsert(ctx, first)
	require.NoError(t, err)
	require.True(t, created)

	// Same identity, different casing, extra detail.
	dup := mustNormalize(t, RawRow{Email: "JO@ACME.COM", FirstName: "jo", LastName: "SMITH", Organization: " acme", Title: "VP Sales"})
	merged, created, err := r.Upsert(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, stored.ID, merged.ID)
	assert.Equal(t, "VP Sales", merged.Title)
}

func TestResolver_MergesByEmailWhenFingerprintDiffers(t *testing.T) {
	st := newTestStore(t)
	r := NewResolver(st)
	ctx := context.Background()

	first := mustNormalize(t, RawRow{Email: "jo@acme.com", FirstName: "Jo", Organization: "Acme"})
	stored, _, err := r.Upsert(ctx, first)
	require.NoError(t, err)

	// Same email, different organization: fingerprints differ but the email
	// match still makes it the same lead.
	renamed := mustNormalize(t, RawRow{Email: "jo@acme.com", FirstName: "Jo", Organization: "Acme Holdings"})
	require.NotEqual(t, first.Fingerprint, renamed.Fingerprint)

	merged, created, err := r.Upsert(ctx, renamed)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, stored.ID, merged.ID)
	assert.Equal(t, "Acme Holdings", merged.Organization)

	// The stored fingerprint now reflects the merged identity.
	byFP, err := st.GetLeadByFingerprint(ctx, merged.Fingerprint)
	require.NoError(t, err)
	require.NotNil(t, byFP)
	assert.Equal(t, stored.ID, byFP.ID)
}

func TestResolver_MergeKeepsExistingFields(t *testing.T) {
	st := newTestStore(t)
	r := NewResolver(st)
	ctx := context.Background()

	first := mustNormalize(t, RawRow{Email: "jo@acme.com", FirstName: "Jo", Organization: "Acme", Phone: "555-0100"})
	_, _, err := r.Upsert(ctx, first)
	require.NoError(t, err)

	sparse := mustNormalize(t, RawRow{Email: "jo@acme.com"})
	merged, created, err := r.Upsert(ctx, sparse)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Jo", merged.FirstName)
	assert.Equal(t, "Acme", merged.Organization)
	assert.Equal(t, "555-0100", merged.Phone)
}
