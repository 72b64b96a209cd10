package store

import (
	"context"

	"github.com/sells-group/attribution-cli/internal/model"
)

// Store defines the persistence interface for the attribution engine. Reads
// and writes are scoped to a workspace; addresses passed to the Find methods
// are expected lower-cased.
type Store interface {
	// Emails. ListEmails pages through a workspace's corpus in sent order.
	ListEmails(ctx context.Context, workspaceID string, limit, offset int) ([]model.EmailMessage, error)

	// Persons. FindPersonsByAddress matches the address against all four
	// address fields at once. CreatePerson reports false when the
	// (workspace, primary email) pair already exists.
	FindPersonsByAddress(ctx context.Context, workspaceID, address string) ([]model.Person, error)
	CreatePerson(ctx context.Context, p *model.Person) (bool, error)

	// Companies. FindCompaniesByAddress matches the raw address against the
	// company address, the domain against the company domain, and nameToken
	// (the domain's leading label) against the normalized company name.
	// CreateCompany reports false when the (workspace, domain) pair exists.
	GetCompany(ctx context.Context, id string) (*model.Company, error)
	FindCompaniesByAddress(ctx context.Context, workspaceID, address, domain, nameToken string) ([]model.Company, error)
	CreateCompany(ctx context.Context, c *model.Company) (bool, error)

	// Actions. ListActions returns the most recent actions first. CreateAction
	// reports false when the (workspace, fingerprint) pair already exists;
	// the caller re-reads via FindActionByFingerprint.
	ListActions(ctx context.Context, workspaceID string, limit int) ([]model.Action, error)
	FindActionByFingerprint(ctx context.Context, workspaceID, fingerprint string) (*model.Action, error)
	CreateAction(ctx context.Context, a *model.Action) (bool, error)

	// Links. Inserts are idempotent: false means the pair already existed,
	// which is success-without-effect, never an error.
	LinkEmailPerson(ctx context.Context, link *model.EmailPersonLink) (bool, error)
	LinkEmailCompany(ctx context.Context, link *model.EmailCompanyLink) (bool, error)
	LinkEmailAction(ctx context.Context, link *model.EmailActionLink) (bool, error)

	// Coverage aggregates link coverage over a workspace's email corpus.
	CoverageCounts(ctx context.Context, workspaceID string) (*model.CoverageReport, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
