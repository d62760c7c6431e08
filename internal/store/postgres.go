package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadsync/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock
// satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
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
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS contact_mappings (
	lead_id           TEXT PRIMARY KEY REFERENCES leads(id),
	remote_contact_id TEXT NOT NULL,
	sync_status       TEXT NOT NULL DEFAULT 'pending',
	last_sync_at      TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_email ON leads(email) WHERE email != '';
CREATE INDEX IF NOT EXISTS idx_mappings_status ON contact_mappings(sync_status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const pgLeadColumns = `id, email, first_name, last_name, organization, title, phone, website,
	city, state, country, lead_type, lead_score, fingerprint, source, created_at, updated_at`

func (s *PostgresStore) GetLeadByFingerprint(ctx context.Context, fingerprint string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgLeadColumns+` FROM leads WHERE fingerprint = $1`, fingerprint)
	return scanPgLead(row, "fingerprint")
}

func (s *PostgresStore) GetLeadByEmail(ctx context.Context, email string) (*model.Lead, error) {
	if email == "" {
		return nil, nil
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgLeadColumns+` FROM leads WHERE email = $1`, email)
	return scanPgLead(row, "email")
}

func (s *PostgresStore) InsertLead(ctx context.Context, lead *model.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	lead.CreatedAt = now
	lead.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO leads (`+pgLeadColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		lead.ID, lead.Email, lead.FirstName, lead.LastName, lead.Organization,
		lead.Title, lead.Phone, lead.Website, lead.City, lead.State, lead.Country,
		lead.LeadType, lead.LeadScore, lead.Fingerprint, string(lead.Source),
		lead.CreatedAt, lead.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert lead")
}

func (s *PostgresStore) UpdateLead(ctx context.Context, lead *model.Lead) error {
	lead.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET email = $1, first_name = $2, last_name = $3, organization = $4,
		 title = $5, phone = $6, website = $7, city = $8, state = $9, country = $10,
		 lead_type = $11, lead_score = $12, fingerprint = $13, source = $14, updated_at = $15
		 WHERE id = $16`,
		lead.Email, lead.FirstName, lead.LastName, lead.Organization,
		lead.Title, lead.Phone, lead.Website, lead.City, lead.State, lead.Country,
		lead.LeadType, lead.LeadScore, lead.Fingerprint, string(lead.Source),
		lead.UpdatedAt, lead.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead %s", lead.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead not found: %s", lead.ID)
	}
	return nil
}

func (s *PostgresStore) ListPendingSync(ctx context.Context, limit int) ([]model.Lead, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+prefixColumns("l.", pgLeadColumns)+`
		 FROM leads l
		 LEFT JOIN contact_mappings m ON m.lead_id = l.id
		 WHERE l.email != ''
		   AND (m.lead_id IS NULL
		        OR m.sync_status != 'synced'
		        OR l.updated_at > m.last_sync_at)
		 ORDER BY l.created_at
		 LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pending sync")
	}
	defer rows.Close()
	return collectPgLeads(rows)
}

func (s *PostgresStore) ListMissingEmail(ctx context.Context, limit int) ([]model.Lead, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgLeadColumns+` FROM leads WHERE email = '' ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list missing email")
	}
	defer rows.Close()
	return collectPgLeads(rows)
}

func (s *PostgresStore) GetMapping(ctx context.Context, leadID string) (*model.ContactMapping, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT lead_id, remote_contact_id, sync_status, last_sync_at
		 FROM contact_mappings WHERE lead_id = $1`, leadID)

	var m model.ContactMapping
	var lastSync *time.Time
	err := row.Scan(&m.LeadID, &m.RemoteContactID, &m.Status, &lastSync)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get mapping %s", leadID)
	}
	m.LastSyncAt = lastSync
	return &m, nil
}

func (s *PostgresStore) UpsertMapping(ctx context.Context, m *model.ContactMapping) error {
	var lastSync *time.Time
	if m.LastSyncAt != nil {
		t := m.LastSyncAt.UTC()
		lastSync = &t
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO contact_mappings (lead_id, remote_contact_id, sync_status, last_sync_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (lead_id) DO UPDATE SET
		   remote_contact_id = EXCLUDED.remote_contact_id,
		   sync_status = EXCLUDED.sync_status,
		   last_sync_at = EXCLUDED.last_sync_at`,
		m.LeadID, m.RemoteContactID, string(m.Status), lastSync,
	)
	return eris.Wrapf(err, "postgres: upsert mapping %s", m.LeadID)
}

func (s *PostgresStore) CountBySyncStatus(ctx context.Context) (map[model.SyncStatus]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT COALESCE(m.sync_status, 'pending') AS status, COUNT(*)
		 FROM leads l
		 LEFT JOIN contact_mappings m ON m.lead_id = l.id
		 GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by sync status")
	}
	defer rows.Close()

	counts := make(map[model.SyncStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status count")
		}
		counts[model.SyncStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count iterate")
}

func scanPgLead(row pgx.Row, by string) (*model.Lead, error) {
	var l model.Lead
	var source string
	err := row.Scan(
		&l.ID, &l.Email, &l.FirstName, &l.LastName, &l.Organization,
		&l.Title, &l.Phone, &l.Website, &l.City, &l.State, &l.Country,
		&l.LeadType, &l.LeadScore, &l.Fingerprint, &source,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: scan lead by %s", by)
	}
	l.Source = model.LeadSource(source)
	return &l, nil
}

func collectPgLeads(rows pgx.Rows) ([]model.Lead, error) {
	var leads []model.Lead
	for rows.Next() {
		l, err := scanPgLead(rows, "list")
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list iterate")
}
