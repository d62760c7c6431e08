package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadsync/internal/model"
)

var pgLeadCols = []string{
	"id", "email", "first_name", "last_name", "organization", "title", "phone",
	"website", "city", "state", "country", "lead_type", "lead_score",
	"fingerprint", "source", "created_at", "updated_at",
}

func newPgMock(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func leadRow(id, email string) *pgxmock.Rows {
	now := time.Now().UTC()
	return pgxmock.NewRows(pgLeadCols).AddRow(
		id, email, "Jo", "Smith", "Acme", "VP Sales", "", "acme.com",
		"", "", "", "", 80, "fp-1", "manual", now, now,
	)
}

func TestPostgres_GetLeadByFingerprint(t *testing.T) {
	st, mock := newPgMock(t)

	mock.ExpectQuery(`SELECT (.+) FROM leads WHERE fingerprint = \$1`).
		WithArgs("fp-1").
		WillReturnRows(leadRow("lead-1", "jo@acme.com"))

	l, err := st.GetLeadByFingerprint(context.Background(), "fp-1")
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Equal(t, "lead-1", l.ID)
	assert.Equal(t, model.SourceManual, l.Source)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetLeadByEmail_Absent(t *testing.T) {
	st, mock := newPgMock(t)

	mock.ExpectQuery(`SELECT (.+) FROM leads WHERE email = \$1`).
		WithArgs("nobody@acme.com").
		WillReturnError(pgx.ErrNoRows)

	l, err := st.GetLeadByEmail(context.Background(), "nobody@acme.com")
	require.NoError(t, err)
	assert.Nil(t, l)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertLead(t *testing.T) {
	st, mock := newPgMock(t)

	mock.ExpectExec(`INSERT INTO leads`).
		WithArgs(
			pgxmock.AnyArg(), "jo@acme.com", "Jo", "Smith", "Acme", "", "", "",
			"", "", "", "", 0, "fp-1", "manual", pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	l := &model.Lead{
		Email:        "jo@acme.com",
		FirstName:    "Jo",
		LastName:     "Smith",
		Organization: "Acme",
		Fingerprint:  "fp-1",
		Source:       model.SourceManual,
	}
	require.NoError(t, st.InsertLead(context.Background(), l))
	assert.NotEmpty(t, l.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateLead_NotFound(t *testing.T) {
	st, mock := newPgMock(t)

	mock.ExpectExec(`UPDATE leads SET`).
		WithArgs(
			"jo@acme.com", "Jo", "Smith", "Acme", "", "", "",
			"", "", "", "", 0, "fp-1", "manual", pgxmock.AnyArg(), "gone",
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := st.UpdateLead(context.Background(), &model.Lead{
		ID:           "gone",
		Email:        "jo@acme.com",
		FirstName:    "Jo",
		LastName:     "Smith",
		Organization: "Acme",
		Fingerprint:  "fp-1",
		Source:       model.SourceManual,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetMapping(t *testing.T) {
	st, mock := newPgMock(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT lead_id, remote_contact_id, sync_status, last_sync_at`).
		WithArgs("lead-1").
		WillReturnRows(pgxmock.NewRows(
			[]string{"lead_id", "remote_contact_id", "sync_status", "last_sync_at"},
		).AddRow("lead-1", "crm-1", "synced", &now))

	m, err := st.GetMapping(context.Background(), "lead-1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "crm-1", m.RemoteContactID)
	assert.Equal(t, model.SyncStatusSynced, m.Status)
	require.NotNil(t, m.LastSyncAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetMapping_Absent(t *testing.T) {
	st, mock := newPgMock(t)

	mock.ExpectQuery(`SELECT lead_id, remote_contact_id, sync_status, last_sync_at`).
		WithArgs("lead-x").
		WillReturnError(pgx.ErrNoRows)

	m, err := st.GetMapping(context.Background(), "lead-x")
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpsertMapping(t *testing.T) {
	st, mock := newPgMock(t)

	mock.ExpectExec(`INSERT INTO contact_mappings`).
		WithArgs("lead-1", "crm-1", "synced", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	now := time.Now().UTC()
	require.NoError(t, st.UpsertMapping(context.Background(), &model.ContactMapping{
		LeadID:          "lead-1",
		RemoteContactID: "crm-1",
		Status:          model.SyncStatusSynced,
		LastSyncAt:      &now,
	}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CountBySyncStatus(t *testing.T) {
	st, mock := newPgMock(t)

	mock.ExpectQuery(`SELECT COALESCE\(m.sync_status, 'pending'\)`).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow("synced", 7).
			AddRow("pending", 3))

	counts, err := st.CountBySyncStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, counts[model.SyncStatusSynced])
	assert.Equal(t, 3, counts[model.SyncStatusPending])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListPendingSync(t *testing.T) {
	st, mock := newPgMock(t)

	mock.ExpectQuery(`SELECT (.+) FROM leads l\s+LEFT JOIN contact_mappings`).
		WithArgs(50).
		WillReturnRows(leadRow("lead-1", "jo@acme.com"))

	leads, err := st.ListPendingSync(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "lead-1", leads[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
