package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/attribution-cli/internal/db"
	"github.com/sells-group/attribution-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot per-email store operations.
var preparedStatements = map[string]string{
	"find_persons_by_address":    findPersonsByAddressSQL,
	"find_companies_by_address":  findCompaniesByAddressSQL,
	"list_actions":               listActionsSQL,
	"find_action_by_fingerprint": findActionByFingerprintSQL,
	"insert_action":              insertActionSQL,
	"link_email_person":          linkEmailPersonSQL,
	"link_email_company":         linkEmailCompanySQL,
	"link_email_action":          linkEmailActionSQL,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
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

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS emails (
	id           TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	sender       TEXT NOT NULL,
	recipients   JSONB NOT NULL DEFAULT '[]',
	cc           JSONB NOT NULL DEFAULT '[]',
	bcc          JSONB NOT NULL DEFAULT '[]',
	subject      TEXT NOT NULL DEFAULT '',
	body         TEXT NOT NULL DEFAULT '',
	thread_id    TEXT,
	sent_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_emails_workspace_sent ON emails(workspace_id, sent_at);

CREATE TABLE IF NOT EXISTS persons (
	id              TEXT PRIMARY KEY,
	workspace_id    TEXT NOT NULL,
	first_name      TEXT NOT NULL DEFAULT '',
	last_name       TEXT NOT NULL DEFAULT '',
	primary_email   TEXT,
	work_email      TEXT,
	personal_email  TEXT,
	secondary_email TEXT,
	company_id      TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (workspace_id, primary_email)
);

CREATE INDEX IF NOT EXISTS idx_persons_primary_email ON persons(workspace_id, lower(primary_email));
CREATE INDEX IF NOT EXISTS idx_persons_work_email ON persons(workspace_id, lower(work_email));
CREATE INDEX IF NOT EXISTS idx_persons_personal_email ON persons(workspace_id, lower(personal_email));
CREATE INDEX IF NOT EXISTS idx_persons_secondary_email ON persons(workspace_id, lower(secondary_email));

CREATE TABLE IF NOT EXISTS companies (
	id            TEXT PRIMARY KEY,
	workspace_id  TEXT NOT NULL,
	name          TEXT NOT NULL,
	primary_email TEXT,
	domain        TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (workspace_id, domain)
);

CREATE INDEX IF NOT EXISTS idx_companies_domain ON companies(workspace_id, lower(domain));

CREATE TABLE IF NOT EXISTS actions (
	id           TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	type         TEXT NOT NULL,
	subject      TEXT NOT NULL DEFAULT '',
	completed_at TIMESTAMPTZ NOT NULL,
	direction    TEXT NOT NULL,
	stage        TEXT NOT NULL,
	person_id    TEXT,
	company_id   TEXT,
	metadata     JSONB,
	fingerprint  TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (workspace_id, fingerprint)
);

CREATE INDEX IF NOT EXISTS idx_actions_workspace_created ON actions(workspace_id, created_at DESC);

CREATE TABLE IF NOT EXISTS email_person_links (
	email_id     TEXT NOT NULL,
	person_id    TEXT NOT NULL,
	workspace_id TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (email_id, person_id)
);

CREATE TABLE IF NOT EXISTS email_company_links (
	email_id     TEXT NOT NULL,
	company_id   TEXT NOT NULL,
	workspace_id TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (email_id, company_id)
);

CREATE TABLE IF NOT EXISTS email_action_links (
	email_id     TEXT NOT NULL,
	action_id    TEXT NOT NULL,
	workspace_id TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (email_id, action_id)
);

CREATE INDEX IF NOT EXISTS idx_email_person_links_workspace ON email_person_links(workspace_id);
CREATE INDEX IF NOT EXISTS idx_email_company_links_workspace ON email_company_links(workspace_id);
CREATE INDEX IF NOT EXISTS idx_email_action_links_workspace ON email_action_links(workspace_id);
`

const (
	findPersonsByAddressSQL = `SELECT id, workspace_id, first_name, last_name, COALESCE(primary_email, ''), COALESCE(work_email, ''), COALESCE(personal_email, ''), COALESCE(secondary_email, ''), COALESCE(company_id, ''), created_at
	 FROM persons
	 WHERE workspace_id = $1 AND (lower(primary_email) = $2 OR lower(work_email) = $2 OR lower(personal_email) = $2 OR lower(secondary_email) = $2)
	 ORDER BY created_at, id`

	findCompaniesByAddressSQL = `SELECT id, workspace_id, name, COALESCE(primary_email, ''), COALESCE(domain, ''), created_at
	 FROM companies
	 WHERE workspace_id = $1 AND (lower(primary_email) = $2 OR lower(domain) = $3 OR lower(replace(replace(name, ' ', ''), '-', '')) = $4)
	 ORDER BY created_at, id`

	listActionsSQL = `SELECT id, workspace_id, type, subject, completed_at, direction, stage, COALESCE(person_id, ''), COALESCE(company_id, ''), metadata, fingerprint, created_at
	 FROM actions
	 WHERE workspace_id = $1
	 ORDER BY created_at DESC, id DESC LIMIT $2`

	findActionByFingerprintSQL = `SELECT id, workspace_id, type, subject, completed_at, direction, stage, COALESCE(person_id, ''), COALESCE(company_id, ''), metadata, fingerprint, created_at
	 FROM actions
	 WHERE workspace_id = $1 AND fingerprint = $2`

	insertActionSQL = `INSERT INTO actions (id, workspace_id, type, subject, completed_at, direction, stage, person_id, company_id, metadata, fingerprint, created_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, $11, $12)
	 ON CONFLICT (workspace_id, fingerprint) DO NOTHING`

	linkEmailPersonSQL = `INSERT INTO email_person_links (email_id, person_id, workspace_id, created_at) VALUES ($1, $2, $3, $4) ON CONFLICT (email_id, person_id) DO NOTHING`

	linkEmailCompanySQL = `INSERT INTO email_company_links (email_id, company_id, workspace_id, created_at) VALUES ($1, $2, $3, $4) ON CONFLICT (email_id, company_id) DO NOTHING`

	linkEmailActionSQL = `INSERT INTO email_action_links (email_id, action_id, workspace_id, created_at) VALUES ($1, $2, $3, $4) ON CONFLICT (email_id, action_id) DO NOTHING`
)

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ListEmails(ctx context.Context, workspaceID string, limit, offset int) ([]model.EmailMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, workspace_id, sender, recipients, cc, bcc, subject, body, COALESCE(thread_id, ''), sent_at
		 FROM emails
		 WHERE workspace_id = $1
		 ORDER BY sent_at, id LIMIT $2 OFFSET $3`,
		workspaceID, limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list emails")
	}
	defer rows.Close()

	var emails []model.EmailMessage
	for rows.Next() {
		var m model.EmailMessage
		var recipients, cc, bcc []byte
		if err := rows.Scan(&m.ID, &m.WorkspaceID, &m.Sender, &recipients, &cc, &bcc,
			&m.Subject, &m.Body, &m.ThreadID, &m.SentAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan email")
		}
		if err := unmarshalAddressLists(&m, recipients, cc, bcc); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal email addresses")
		}
		emails = append(emails, m)
	}
	return emails, eris.Wrap(rows.Err(), "postgres: list emails iterate")
}

func (s *PostgresStore) FindPersonsByAddress(ctx context.Context, workspaceID, address string) ([]model.Person, error) {
	rows, err := s.pool.Query(ctx, findPersonsByAddressSQL, workspaceID, address)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find persons by address")
	}
	defer rows.Close()

	var persons []model.Person
	for rows.Next() {
		var p model.Person
		if err := rows.Scan(&p.ID, &p.WorkspaceID, &p.FirstName, &p.LastName,
			&p.PrimaryEmail, &p.WorkEmail, &p.PersonalEmail, &p.SecondaryEmail,
			&p.CompanyID, &p.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan person")
		}
		persons = append(persons, p)
	}
	return persons, eris.Wrap(rows.Err(), "postgres: find persons iterate")
}

func (s *PostgresStore) CreatePerson(ctx context.Context, p *model.Person) (bool, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO persons (id, workspace_id, first_name, last_name, primary_email, work_email, personal_email, secondary_email, company_id, created_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), $10)
		 ON CONFLICT (workspace_id, primary_email) DO NOTHING`,
		p.ID, p.WorkspaceID, p.FirstName, p.LastName,
		p.PrimaryEmail, p.WorkEmail, p.PersonalEmail, p.SecondaryEmail,
		p.CompanyID, p.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrap(markDuplicate(err), "postgres: insert person")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	var c model.Company
	err := s.pool.QueryRow(ctx,
		`SELECT id, workspace_id, name, COALESCE(primary_email, ''), COALESCE(domain, ''), created_at FROM companies WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.PrimaryEmail, &c.Domain, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get company %s", id)
	}
	return &c, nil
}

func (s *PostgresStore) FindCompaniesByAddress(ctx context.Context, workspaceID, address, domain, nameToken string) ([]model.Company, error) {
	rows, err := s.pool.Query(ctx, findCompaniesByAddressSQL, workspaceID, address, domain, nameToken)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find companies by address")
	}
	defer rows.Close()

	var companies []model.Company
	for rows.Next() {
		var c model.Company
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.PrimaryEmail, &c.Domain, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan company")
		}
		companies = append(companies, c)
	}
	return companies, eris.Wrap(rows.Err(), "postgres: find companies iterate")
}

func (s *PostgresStore) CreateCompany(ctx context.Context, c *model.Company) (bool, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO companies (id, workspace_id, name, primary_email, domain, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)
		 ON CONFLICT (workspace_id, domain) DO NOTHING`,
		c.ID, c.WorkspaceID, c.Name, c.PrimaryEmail, c.Domain, c.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrap(markDuplicate(err), "postgres: insert company")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ListActions(ctx context.Context, workspaceID string, limit int) ([]model.Action, error) {
	if limit <= 0 {
		limit = 500
	}

	rows, err := s.pool.Query(ctx, listActionsSQL, workspaceID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list actions")
	}
	defer rows.Close()

	var actions []model.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan action")
		}
		actions = append(actions, *a)
	}
	return actions, eris.Wrap(rows.Err(), "postgres: list actions iterate")
}

func (s *PostgresStore) FindActionByFingerprint(ctx context.Context, workspaceID, fingerprint string) (*model.Action, error) {
	row := s.pool.QueryRow(ctx, findActionByFingerprintSQL, workspaceID, fingerprint)
	a, err := scanAction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: find action by fingerprint")
	}
	return a, nil
}

func (s *PostgresStore) CreateAction(ctx context.Context, a *model.Action) (bool, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	var metaJSON []byte
	if a.Metadata != nil {
		var err error
		metaJSON, err = json.Marshal(a.Metadata)
		if err != nil {
			return false, eris.Wrap(err, "postgres: marshal action metadata")
		}
	}

	tag, err := s.pool.Exec(ctx, insertActionSQL,
		a.ID, a.WorkspaceID, a.Type, a.Subject, a.CompletedAt,
		string(a.Direction), a.Stage, a.PersonID, a.CompanyID,
		metaJSON, a.Fingerprint, a.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrap(markDuplicate(err), "postgres: insert action")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) LinkEmailPerson(ctx context.Context, link *model.EmailPersonLink) (bool, error) {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	tag, err := s.pool.Exec(ctx, linkEmailPersonSQL,
		link.EmailID, link.PersonID, link.WorkspaceID, link.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrap(err, "postgres: link email person")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) LinkEmailCompany(ctx context.Context, link *model.EmailCompanyLink) (bool, error) {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	tag, err := s.pool.Exec(ctx, linkEmailCompanySQL,
		link.EmailID, link.CompanyID, link.WorkspaceID, link.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrap(err, "postgres: link email company")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) LinkEmailAction(ctx context.Context, link *model.EmailActionLink) (bool, error) {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	tag, err := s.pool.Exec(ctx, linkEmailActionSQL,
		link.EmailID, link.ActionID, link.WorkspaceID, link.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrap(err, "postgres: link email action")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) CoverageCounts(ctx context.Context, workspaceID string) (*model.CoverageReport, error) {
	report := &model.CoverageReport{
		WorkspaceID: workspaceID,
		CollectedAt: time.Now().UTC(),
	}

	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		   COUNT(*) FILTER (WHERE EXISTS (SELECT 1 FROM email_person_links l WHERE l.email_id = e.id)),
		   COUNT(*) FILTER (WHERE EXISTS (SELECT 1 FROM email_company_links l WHERE l.email_id = e.id)),
		   COUNT(*) FILTER (WHERE EXISTS (SELECT 1 FROM email_action_links l WHERE l.email_id = e.id))
		 FROM emails e WHERE e.workspace_id = $1`,
		workspaceID,
	).Scan(&report.EmailsTotal, &report.WithPersonLink, &report.WithCompanyLink, &report.WithActionLink)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: coverage counts")
	}

	report.PersonCoveragePct = model.Percent(report.WithPersonLink, report.EmailsTotal)
	report.CompanyCoveragePct = model.Percent(report.WithCompanyLink, report.EmailsTotal)
	report.ActionCoveragePct = model.Percent(report.WithActionLink, report.EmailsTotal)
	return report, nil
}

// helpers

// unmarshalAddressLists decodes the three JSON address arrays of an email row.
func unmarshalAddressLists(m *model.EmailMessage, recipients, cc, bcc []byte) error {
	if len(recipients) > 0 {
		if err := json.Unmarshal(recipients, &m.Recipients); err != nil {
			return err
		}
	}
	if len(cc) > 0 {
		if err := json.Unmarshal(cc, &m.CC); err != nil {
			return err
		}
	}
	if len(bcc) > 0 {
		if err := json.Unmarshal(bcc, &m.BCC); err != nil {
			return err
		}
	}
	return nil
}

func scanAction(row scannable) (*model.Action, error) {
	var a model.Action
	var metaJSON []byte

	err := row.Scan(&a.ID, &a.WorkspaceID, &a.Type, &a.Subject, &a.CompletedAt,
		&a.Direction, &a.Stage, &a.PersonID, &a.CompanyID,
		&metaJSON, &a.Fingerprint, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(metaJSON) > 0 {
		a.Metadata = &model.ActionMetadata{}
		if err := json.Unmarshal(metaJSON, a.Metadata); err != nil {
			return nil, err
		}
	}
	return &a, nil
}
