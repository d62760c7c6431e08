package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadsync/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id           TEXT PRIMARY KEY,
	email        TEXT NOT NULL DEFAULT '',
	first_name   TEXT NOT NULL DEFAULT '',
	last_name    TEXT NOT NULL DEFAULT '',
	organization TEXT NOT NULL DEFAULT '',
	title        TEXT NOT NULL DEFAULT '',
	phone        TEXT NOT NULL DEFAULT '',
	website      TEXT NOT NULL DEFAULT '',
	city         TEXT NOT NULL DEFAULT '',
	state        TEXT NOT NULL DEFAULT '',
	country      TEXT NOT NULL DEFAULT '',
	lead_type    TEXT NOT NULL DEFAULT '',
	lead_score   INTEGER NOT NULL DEFAULT 0,
	fingerprint  TEXT NOT NULL UNIQUE,
	source       TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS contact_mappings (
	lead_id           TEXT PRIMARY KEY REFERENCES leads(id),
	remote_contact_id TEXT NOT NULL,
	sync_status       TEXT NOT NULL DEFAULT 'pending',
	last_sync_at      DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_email ON leads(email) WHERE email != '';
CREATE INDEX IF NOT EXISTS idx_mappings_status ON contact_mappings(sync_status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteLeadColumns = `id, email, first_name, last_name, organization, title, phone, website,
	city, state, country, lead_type, lead_score, fingerprint, source, created_at, updated_at`

func (s *SQLiteStore) GetLeadByFingerprint(ctx context.Context, fingerprint string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteLeadColumns+` FROM leads WHERE fingerprint = ?`, fingerprint)
	return scanLead(row, "fingerprint")
}

func (s *SQLiteStore) GetLeadByEmail(ctx context.Context, email string) (*model.Lead, error) {
	if email == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteLeadColumns+` FROM leads WHERE email = ?`, email)
	return scanLead(row, "email")
}

func (s *SQLiteStore) InsertLead(ctx context.Context, lead *model.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	lead.CreatedAt = now
	lead.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (`+sqliteLeadColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.Email, lead.FirstName, lead.LastName, lead.Organization,
		lead.Title, lead.Phone, lead.Website, lead.City, lead.State, lead.Country,
		lead.LeadType, lead.LeadScore, lead.Fingerprint, string(lead.Source),
		lead.CreatedAt, lead.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert lead")
}

func (s *SQLiteStore) UpdateLead(ctx context.Context, lead *model.Lead) error {
	lead.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET email = ?, first_name = ?, last_name = ?, organization = ?,
		 title = ?, phone = ?, website = ?, city = ?, state = ?, country = ?,
		 lead_type = ?, lead_score = ?, fingerprint = ?, source = ?, updated_at = ?
		 WHERE id = ?`,
		lead.Email, lead.FirstName, lead.LastName, lead.Organization,
		lead.Title, lead.Phone, lead.Website, lead.City, lead.State, lead.Country,
		lead.LeadType, lead.LeadScore, lead.Fingerprint, string(lead.Source),
		lead.UpdatedAt, lead.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead %s", lead.ID)
	}
	return checkRowsAffected(res, "lead", lead.ID)
}

func (s *SQLiteStore) ListPendingSync(ctx context.Context, limit int) ([]model.Lead, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+prefixColumns("l.", sqliteLeadColumns)+`
		 FROM leads l
		 LEFT JOIN contact_mappings m ON m.lead_id = l.id
		 WHERE l.email != ''
		   AND (m.lead_id IS NULL
		        OR m.sync_status != 'synced'
		        OR l.updated_at > m.last_sync_at)
		 ORDER BY l.created_at
		 LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pending sync")
	}
	defer rows.Close()
	return collectLeads(rows)
}

func (s *SQLiteStore) ListMissingEmail(ctx context.Context, limit int) ([]model.Lead, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteLeadColumns+` FROM leads WHERE email = '' ORDER BY created_at LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list missing email")
	}
	defer rows.Close()
	return collectLeads(rows)
}

func (s *SQLiteStore) GetMapping(ctx context.Context, leadID string) (*model.ContactMapping, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT lead_id, remote_contact_id, sync_status, last_sync_at
		 FROM contact_mappings WHERE lead_id = ?`, leadID)

	var m model.ContactMapping
	var lastSync sql.NullTime
	err := row.Scan(&m.LeadID, &m.RemoteContactID, &m.Status, &lastSync)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get mapping %s", leadID)
	}
	if lastSync.Valid {
		m.LastSyncAt = &lastSync.Time
	}
	return &m, nil
}

func (s *SQLiteStore) UpsertMapping(ctx context.Context, m *model.ContactMapping) error {
	var lastSync any
	if m.LastSyncAt != nil {
		lastSync = m.LastSyncAt.UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contact_mappings (lead_id, remote_contact_id, sync_status, last_sync_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (lead_id) DO UPDATE SET
		   remote_contact_id = excluded.remote_contact_id,
		   sync_status = excluded.sync_status,
		   last_sync_at = excluded.last_sync_at`,
		m.LeadID, m.RemoteContactID, string(m.Status), lastSync,
	)
	return eris.Wrapf(err, "sqlite: upsert mapping %s", m.LeadID)
}

func (s *SQLiteStore) CountBySyncStatus(ctx context.Context) (map[model.SyncStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT COALESCE(m.sync_status, 'pending') AS status, COUNT(*)
		 FROM leads l
		 LEFT JOIN contact_mappings m ON m.lead_id = l.id
		 GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by sync status")
	}
	defer rows.Close()

	counts := make(map[model.SyncStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status count")
		}
		counts[model.SyncStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

// prefixColumns qualifies each column in a comma-separated list with the
// given table alias.
func prefixColumns(prefix, columns string) string {
	cols := strings.Split(columns, ",")
	for i, c := range cols {
		cols[i] = prefix + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable, by string) (*model.Lead, error) {
	var l model.Lead
	var source string
	err := row.Scan(
		&l.ID, &l.Email, &l.FirstName, &l.LastName, &l.Organization,
		&l.Title, &l.Phone, &l.Website, &l.City, &l.State, &l.Country,
		&l.LeadType, &l.LeadScore, &l.Fingerprint, &source,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: scan lead by %s", by)
	}
	l.Source = model.LeadSource(source)
	return &l, nil
}

func collectLeads(rows *sql.Rows) ([]model.Lead, error) {
	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows, "list")
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list iterate")
}
