package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/attribution-cli/internal/model"
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
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS emails (
	id           TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	sender       TEXT NOT NULL,
	recipients   TEXT NOT NULL DEFAULT '[]',
	cc           TEXT NOT NULL DEFAULT '[]',
	bcc          TEXT NOT NULL DEFAULT '[]',
	subject      TEXT NOT NULL DEFAULT '',
	body         TEXT NOT NULL DEFAULT '',
	thread_id    TEXT,
	sent_at      DATETIME NOT NULL
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
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
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
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (workspace_id, domain)
);

CREATE INDEX IF NOT EXISTS idx_companies_domain ON companies(workspace_id, lower(domain));

CREATE TABLE IF NOT EXISTS actions (
	id           TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	type         TEXT NOT NULL,
	subject      TEXT NOT NULL DEFAULT '',
	completed_at DATETIME NOT NULL,
	direction    TEXT NOT NULL,
	stage        TEXT NOT NULL,
	person_id    TEXT,
	company_id   TEXT,
	metadata     TEXT,
	fingerprint  TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (workspace_id, fingerprint)
);

CREATE INDEX IF NOT EXISTS idx_actions_workspace_created ON actions(workspace_id, created_at DESC);

CREATE TABLE IF NOT EXISTS email_person_links (
	email_id     TEXT NOT NULL,
	person_id    TEXT NOT NULL,
	workspace_id TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (email_id, person_id)
);

CREATE TABLE IF NOT EXISTS email_company_links (
	email_id     TEXT NOT NULL,
	company_id   TEXT NOT NULL,
	workspace_id TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (email_id, company_id)
);

CREATE TABLE IF NOT EXISTS email_action_links (
	email_id     TEXT NOT NULL,
	action_id    TEXT NOT NULL,
	workspace_id TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (email_id, action_id)
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListEmails(ctx context.Context, workspaceID string, limit, offset int) ([]model.EmailMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workspace_id, sender, recipients, cc, bcc, subject, body, COALESCE(thread_id, ''), sent_at
		 FROM emails
		 WHERE workspace_id = ?
		 ORDER BY sent_at, id LIMIT ? OFFSET ?`,
		workspaceID, limit, offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list emails")
	}
	defer rows.Close()

	var emails []model.EmailMessage
	for rows.Next() {
		var m model.EmailMessage
		var recipients, cc, bcc []byte
		if err := rows.Scan(&m.ID, &m.WorkspaceID, &m.Sender, &recipients, &cc, &bcc,
			&m.Subject, &m.Body, &m.ThreadID, &m.SentAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan email")
		}
		if err := unmarshalAddressLists(&m, recipients, cc, bcc); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal email addresses")
		}
		emails = append(emails, m)
	}
	return emails, eris.Wrap(rows.Err(), "sqlite: list emails iterate")
}

func (s *SQLiteStore) FindPersonsByAddress(ctx context.Context, workspaceID, address string) ([]model.Person, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workspace_id, first_name, last_name, COALESCE(primary_email, ''), COALESCE(work_email, ''), COALESCE(personal_email, ''), COALESCE(secondary_email, ''), COALESCE(company_id, ''), created_at
		 FROM persons
		 WHERE workspace_id = ? AND (lower(primary_email) = ? OR lower(work_email) = ? OR lower(personal_email) = ? OR lower(secondary_email) = ?)
		 ORDER BY created_at, id`,
		workspaceID, address, address, address, address,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find persons by address")
	}
	defer rows.Close()

	var persons []model.Person
	for rows.Next() {
		var p model.Person
		if err := rows.Scan(&p.ID, &p.WorkspaceID, &p.FirstName, &p.LastName,
			&p.PrimaryEmail, &p.WorkEmail, &p.PersonalEmail, &p.SecondaryEmail,
			&p.CompanyID, &p.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan person")
		}
		persons = append(persons, p)
	}
	return persons, eris.Wrap(rows.Err(), "sqlite: find persons iterate")
}

func (s *SQLiteStore) CreatePerson(ctx context.Context, p *model.Person) (bool, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO persons (id, workspace_id, first_name, last_name, primary_email, work_email, personal_email, secondary_email, company_id, created_at)
		 VALUES (?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?)`,
		p.ID, p.WorkspaceID, p.FirstName, p.LastName,
		p.PrimaryEmail, p.WorkEmail, p.PersonalEmail, p.SecondaryEmail,
		p.CompanyID, p.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrap(markDuplicate(err), "sqlite: insert person")
	}
	return insertedRows(res)
}

func (s *SQLiteStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	var c model.Company
	err := s.db.QueryRowContext(ctx,
		`SELECT id, workspace_id, name, COALESCE(primary_email, ''), COALESCE(domain, ''), created_at FROM companies WHERE id = ?`,
		id,
	).Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.PrimaryEmail, &c.Domain, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get company %s", id)
	}
	return &c, nil
}

func (s *SQLiteStore) FindCompaniesByAddress(ctx context.Context, workspaceID, address, domain, nameToken string) ([]model.Company, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workspace_id, name, COALESCE(primary_email, ''), COALESCE(domain, ''), created_at
		 FROM companies
		 WHERE workspace_id = ? AND (lower(primary_email) = ? OR lower(domain) = ? OR lower(replace(replace(name, ' ', ''), '-', '')) = ?)
		 ORDER BY created_at, id`,
		workspaceID, address, domain, nameToken,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find companies by address")
	}
	defer rows.Close()

	var companies []model.Company
	for rows.Next() {
		var c model.Company
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.PrimaryEmail, &c.Domain, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan company")
		}
		companies = append(companies, c)
	}
	return companies, eris.Wrap(rows.Err(), "sqlite: find companies iterate")
}

func (s *SQLiteStore) CreateCompany(ctx context.Context, c *model.Company) (bool, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO companies (id, workspace_id, name, primary_email, domain, created_at)
		 VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?)`,
		c.ID, c.WorkspaceID, c.Name, c.PrimaryEmail, c.Domain, c.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrap(markDuplicate(err), "sqlite: insert company")
	}
	return insertedRows(res)
}

func (s *SQLiteStore) ListActions(ctx context.Context, workspaceID string, limit int) ([]model.Action, error) {
	if limit <= 0 {
		limit = 500
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workspace_id, type, subject, completed_at, direction, stage, COALESCE(person_id, ''), COALESCE(company_id, ''), metadata, fingerprint, created_at
		 FROM actions
		 WHERE workspace_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		workspaceID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list actions")
	}
	defer rows.Close()

	var actions []model.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan action")
		}
		actions = append(actions, *a)
	}
	return actions, eris.Wrap(rows.Err(), "sqlite: list actions iterate")
}

func (s *SQLiteStore) FindActionByFingerprint(ctx context.Context, workspaceID, fingerprint string) (*model.Action, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, workspace_id, type, subject, completed_at, direction, stage, COALESCE(person_id, ''), COALESCE(company_id, ''), metadata, fingerprint, created_at
		 FROM actions
		 WHERE workspace_id = ? AND fingerprint = ?`,
		workspaceID, fingerprint,
	)
	a, err := scanAction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: find action by fingerprint")
	}
	return a, nil
}

func (s *SQLiteStore) CreateAction(ctx context.Context, a *model.Action) (bool, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	var metaJSON any
	if a.Metadata != nil {
		b, err := json.Marshal(a.Metadata)
		if err != nil {
			return false, eris.Wrap(err, "sqlite: marshal action metadata")
		}
		metaJSON = string(b)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO actions (id, workspace_id, type, subject, completed_at, direction, stage, person_id, company_id, metadata, fingerprint, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?)`,
		a.ID, a.WorkspaceID, a.Type, a.Subject, a.CompletedAt,
		string(a.Direction), a.Stage, a.PersonID, a.CompanyID,
		metaJSON, a.Fingerprint, a.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrap(markDuplicate(err), "sqlite: insert action")
	}
	return insertedRows(res)
}

func (s *SQLiteStore) LinkEmailPerson(ctx context.Context, link *model.EmailPersonLink) (bool, error) {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO email_person_links (email_id, person_id, workspace_id, created_at) VALUES (?, ?, ?, ?)`,
		link.EmailID, link.PersonID, link.WorkspaceID, link.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: link email person")
	}
	return insertedRows(res)
}

func (s *SQLiteStore) LinkEmailCompany(ctx context.Context, link *model.EmailCompanyLink) (bool, error) {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO email_company_links (email_id, company_id, workspace_id, created_at) VALUES (?, ?, ?, ?)`,
		link.EmailID, link.CompanyID, link.WorkspaceID, link.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: link email company")
	}
	return insertedRows(res)
}

func (s *SQLiteStore) LinkEmailAction(ctx context.Context, link *model.EmailActionLink) (bool, error) {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO email_action_links (email_id, action_id, workspace_id, created_at) VALUES (?, ?, ?, ?)`,
		link.EmailID, link.ActionID, link.WorkspaceID, link.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: link email action")
	}
	return insertedRows(res)
}

func (s *SQLiteStore) CoverageCounts(ctx context.Context, workspaceID string) (*model.CoverageReport, error) {
	report := &model.CoverageReport{
		WorkspaceID: workspaceID,
		CollectedAt: time.Now().UTC(),
	}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		   COUNT(*) FILTER (WHERE EXISTS (SELECT 1 FROM email_person_links l WHERE l.email_id = e.id)),
		   COUNT(*) FILTER (WHERE EXISTS (SELECT 1 FROM email_company_links l WHERE l.email_id = e.id)),
		   COUNT(*) FILTER (WHERE EXISTS (SELECT 1 FROM email_action_links l WHERE l.email_id = e.id))
		 FROM emails e WHERE e.workspace_id = ?`,
		workspaceID,
	).Scan(&report.EmailsTotal, &report.WithPersonLink, &report.WithCompanyLink, &report.WithActionLink)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: coverage counts")
	}

	report.PersonCoveragePct = model.Percent(report.WithPersonLink, report.EmailsTotal)
	report.CompanyCoveragePct = model.Percent(report.WithCompanyLink, report.EmailsTotal)
	report.ActionCoveragePct = model.Percent(report.WithActionLink, report.EmailsTotal)
	return report, nil
}

// helpers

// insertedRows reports whether a conflict-swallowing insert wrote a row.
func insertedRows(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "rows affected")
	}
	return n > 0, nil
}

type scannable interface {
	Scan(dest ...any) error
}
