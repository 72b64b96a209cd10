package engine

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/attribution-cli/internal/model"
	"github.com/sells-group/attribution-cli/internal/store"
)

// MatchResult holds the Person and Company candidates one email's
// participants resolved to. Order is significant: persons appear in
// first-matching-address order, companies with person-affiliated ones first.
type MatchResult struct {
	Persons   []model.Person
	Companies []model.Company
}

// FirstPerson returns the top person candidate, or nil when none matched.
func (m *MatchResult) FirstPerson() *model.Person {
	if len(m.Persons) == 0 {
		return nil
	}
	return &m.Persons[0]
}

// FirstCompany returns the top company candidate, or nil when none matched.
func (m *MatchResult) FirstCompany() *model.Company {
	if len(m.Companies) == 0 {
		return nil
	}
	return &m.Companies[0]
}

// Empty reports whether matching produced neither persons nor companies.
func (m *MatchResult) Empty() bool {
	return len(m.Persons) == 0 && len(m.Companies) == 0
}

// MatchEntities resolves participant addresses to known Person and Company
// records. An address matching any of a person's four address fields counts;
// matched persons pull in their affiliated company, and addresses are also
// matched directly against company address, domain and name fields. Purely
// a read: it never creates records.
func MatchEntities(ctx context.Context, st store.Store, workspaceID string, participants []string) (*MatchResult, error) {
	res := &MatchResult{}

	seenPersons := make(map[string]bool)
	for _, addr := range participants {
		persons, err := st.FindPersonsByAddress(ctx, workspaceID, addr)
		if err != nil {
			return nil, eris.Wrapf(err, "engine: match persons for %s", addr)
		}
		for _, p := range persons {
			if seenPersons[p.ID] {
				continue
			}
			seenPersons[p.ID] = true
			res.Persons = append(res.Persons, p)
		}
	}

	seenCompanies := make(map[string]bool)
	for _, p := range res.Persons {
		if p.CompanyID == "" || seenCompanies[p.CompanyID] {
			continue
		}
		seenCompanies[p.CompanyID] = true

		company, err := st.GetCompany(ctx, p.CompanyID)
		if err != nil {
			return nil, eris.Wrapf(err, "engine: load company %s", p.CompanyID)
		}
		if company == nil {
			// Dangling affiliation; the person is still usable.
			continue
		}
		res.Companies = append(res.Companies, *company)
	}

	for _, addr := range participants {
		domain := Domain(addr)
		companies, err := st.FindCompaniesByAddress(ctx, workspaceID, addr, domain, CompanyNameToken(leadingLabel(domain)))
		if err != nil {
			return nil, eris.Wrapf(err, "engine: match companies for %s", addr)
		}
		for _, c := range companies {
			if seenCompanies[c.ID] {
				continue
			}
			seenCompanies[c.ID] = true
			res.Companies = append(res.Companies, c)
		}
	}

	return res, nil
}
