package engine

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/attribution-cli/internal/model"
	"github.com/sells-group/attribution-cli/internal/rules"
	"github.com/sells-group/attribution-cli/internal/store"
)

// PlaceholderSurname fills in for a last name when the address local part
// has a single token.
const PlaceholderSurname = "Unknown"

// CreatedEntities is what the creator produced for one email. Person or
// Company may point at a pre-existing row when a concurrent run won the
// insert race; the Created flags count only genuinely new rows.
type CreatedEntities struct {
	Person         *model.Person
	Company        *model.Company
	PersonCreated  bool
	CompanyCreated bool
}

// CreateMissingEntities derives and persists a provisional Person and
// Company for the first business-relevant participant address. Callers run
// it only when matching produced nothing. Creation is best-effort: failures
// are logged and degrade to "no new entity", never abort the email.
func CreateMissingEntities(ctx context.Context, st store.Store, workspaceID string, participants []string, rs *rules.Ruleset) *CreatedEntities {
	out := &CreatedEntities{}

	addr := firstBusinessAddress(participants, rs)
	if addr == "" {
		return out
	}
	log := zap.L().With(zap.String("workspace", workspaceID), zap.String("address", addr))

	// Company first so the person can carry the affiliation.
	domain := Domain(addr)
	if domain != "" && !rs.IsSellerDomain(domain) {
		company := &model.Company{
			WorkspaceID: workspaceID,
			Name:        CompanyNameFromDomain(domain),
			Domain:      domain,
		}
		created, err := st.CreateCompany(ctx, company)
		if errors.Is(err, store.ErrDuplicate) {
			// Same outcome as a swallowed conflict: the row exists.
			created, err = false, nil
		}
		switch {
		case err != nil:
			log.Warn("engine: company create failed", zap.Error(err))
		case created:
			out.Company = company
			out.CompanyCreated = true
			log.Info("engine: company created", zap.String("company", company.ID), zap.String("name", company.Name))
		default:
			// Lost an insert race; reuse the row that beat us.
			existing, findErr := st.FindCompaniesByAddress(ctx, workspaceID, addr, domain, CompanyNameToken(leadingLabel(domain)))
			if findErr != nil {
				log.Warn("engine: company re-read failed", zap.Error(findErr))
			} else if len(existing) > 0 {
				out.Company = &existing[0]
			}
		}
	}

	person := &model.Person{
		WorkspaceID:  workspaceID,
		PrimaryEmail: addr,
	}
	person.FirstName, person.LastName = NamesFromLocalPart(LocalPart(addr))
	if out.Company != nil {
		person.CompanyID = out.Company.ID
	}

	created, err := st.CreatePerson(ctx, person)
	if errors.Is(err, store.ErrDuplicate) {
		created, err = false, nil
	}
	switch {
	case err != nil:
		log.Warn("engine: person create failed", zap.Error(err))
	case created:
		out.Person = person
		out.PersonCreated = true
		log.Info("engine: person created",
			zap.String("person", person.ID),
			zap.String("name", person.FirstName+" "+person.LastName),
		)
	default:
		existing, findErr := st.FindPersonsByAddress(ctx, workspaceID, addr)
		if findErr != nil {
			log.Warn("engine: person re-read failed", zap.Error(findErr))
		} else if len(existing) > 0 {
			out.Person = &existing[0]
		}
	}

	return out
}

// firstBusinessAddress returns the first participant that plausibly
// identifies an external human: not a system sender and not at one of the
// seller's own domains.
func firstBusinessAddress(participants []string, rs *rules.Ruleset) string {
	for _, addr := range participants {
		local := LocalPart(addr)
		if local == "" || rs.IsSystemSender(local) {
			continue
		}
		if rs.IsSellerDomain(Domain(addr)) {
			continue
		}
		return addr
	}
	return ""
}

// NamesFromLocalPart derives provisional first/last names from an address
// local part: split on dot, underscore and hyphen, title-case the first two
// tokens. "jane.doe" -> ("Jane", "Doe"); a lone token gets the placeholder
// surname.
func NamesFromLocalPart(local string) (first, last string) {
	tokens := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})

	titler := cases.Title(language.English)
	switch len(tokens) {
	case 0:
		return "Contact", PlaceholderSurname
	case 1:
		return titler.String(tokens[0]), PlaceholderSurname
	default:
		return titler.String(tokens[0]), titler.String(tokens[1])
	}
}

// CompanyNameFromDomain builds a display name from the domain's leading
// label, de-hyphenated and title-cased: "new-co.com" -> "New Co".
func CompanyNameFromDomain(domain string) string {
	label := strings.ReplaceAll(leadingLabel(domain), "-", " ")
	return cases.Title(language.English).String(label)
}
