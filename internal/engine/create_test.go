package engine

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/attribution-cli/internal/model"
	"github.com/sells-group/attribution-cli/internal/store"
)

func TestCreateMissingEntities_NewPersonAndCompany(t *testing.T) {
	st := new(mockStore)
	rs := sellerRules()

	st.On("CreateCompany", mock.Anything, mock.MatchedBy(func(c *model.Company) bool {
		return c.WorkspaceID == "ws1" && c.Name == "Newco" && c.Domain == "newco.com"
	})).Return(true, nil)
	st.On("CreatePerson", mock.Anything, mock.MatchedBy(func(p *model.Person) bool {
		return p.WorkspaceID == "ws1" &&
			p.FirstName == "Jane" && p.LastName == "Doe" &&
			p.PrimaryEmail == "jane.doe@newco.com"
	})).Return(true, nil)

	out := CreateMissingEntities(context.Background(), st, "ws1", []string{"jane.doe@newco.com"}, rs)

	require.NotNil(t, out.Person)
	require.NotNil(t, out.Company)
	assert.True(t, out.PersonCreated)
	assert.True(t, out.CompanyCreated)
	assert.Equal(t, "Jane", out.Person.FirstName)
	assert.Equal(t, "Newco", out.Company.Name)
	st.AssertExpectations(t)
}

func TestCreateMissingEntities_SystemSenderSkipped(t *testing.T) {
	st := new(mockStore)
	rs := sellerRules()

	for _, addr := range []string{"no-reply@newco.com", "billing@client.com", "notifications@github.com"} {
		out := CreateMissingEntities(context.Background(), st, "ws1", []string{addr}, rs)
		assert.Nil(t, out.Person, "address %s", addr)
		assert.Nil(t, out.Company, "address %s", addr)
	}
	st.AssertExpectations(t)
}

func TestCreateMissingEntities_SellerAddressSkipped(t *testing.T) {
	st := new(mockStore)
	rs := sellerRules()

	out := CreateMissingEntities(context.Background(), st, "ws1", []string{"sales@sells.group"}, rs)
	assert.Nil(t, out.Person)
	assert.Nil(t, out.Company)
	st.AssertExpectations(t)
}

func TestCreateMissingEntities_FirstBusinessAddressWins(t *testing.T) {
	st := new(mockStore)
	rs := sellerRules()

	st.On("CreateCompany", mock.Anything, mock.Anything).Return(true, nil)
	st.On("CreatePerson", mock.Anything, mock.MatchedBy(func(p *model.Person) bool {
		return p.PrimaryEmail == "jane@newco.com" &&
			p.FirstName == "Jane" && p.LastName == PlaceholderSurname
	})).Return(true, nil)

	participants := []string{"no-reply@newco.com", "sales@sells.group", "jane@newco.com"}
	out := CreateMissingEntities(context.Background(), st, "ws1", participants, rs)

	require.NotNil(t, out.Person)
	assert.Equal(t, PlaceholderSurname, out.Person.LastName)
	st.AssertExpectations(t)
}

func TestCreateMissingEntities_CompanyRaceReusesRow(t *testing.T) {
	st := new(mockStore)
	rs := sellerRules()
	existing := model.Company{ID: "c-existing", Name: "Newco", Domain: "newco.com"}

	st.On("CreateCompany", mock.Anything, mock.Anything).Return(false, nil)
	st.On("FindCompaniesByAddress", mock.Anything, "ws1", "jane@newco.com", "newco.com", "newco").Return([]model.Company{existing}, nil)
	st.On("CreatePerson", mock.Anything, mock.MatchedBy(func(p *model.Person) bool {
		return p.CompanyID == "c-existing"
	})).Return(true, nil)

	out := CreateMissingEntities(context.Background(), st, "ws1", []string{"jane@newco.com"}, rs)

	require.NotNil(t, out.Company)
	assert.Equal(t, "c-existing", out.Company.ID)
	assert.False(t, out.CompanyCreated)
	assert.True(t, out.PersonCreated)
	st.AssertExpectations(t)
}

func TestCreateMissingEntities_PersonRaceReusesRow(t *testing.T) {
	st := new(mockStore)
	rs := sellerRules()
	existing := model.Person{ID: "p-existing", PrimaryEmail: "jane@newco.com"}

	st.On("CreateCompany", mock.Anything, mock.Anything).Return(true, nil)
	st.On("CreatePerson", mock.Anything, mock.Anything).Return(false, nil)
	st.On("FindPersonsByAddress", mock.Anything, "ws1", "jane@newco.com").Return([]model.Person{existing}, nil)

	out := CreateMissingEntities(context.Background(), st, "ws1", []string{"jane@newco.com"}, rs)

	require.NotNil(t, out.Person)
	assert.Equal(t, "p-existing", out.Person.ID)
	assert.False(t, out.PersonCreated)
	st.AssertExpectations(t)
}

func TestCreateMissingEntities_DuplicateErrorReusesRow(t *testing.T) {
	st := new(mockStore)
	rs := sellerRules()
	company := model.Company{ID: "c-existing", Name: "Newco", Domain: "newco.com"}
	person := model.Person{ID: "p-existing", PrimaryEmail: "jane@newco.com"}

	// The store wraps the sentinel with context; matching survives the wrap.
	dup := eris.Wrap(store.ErrDuplicate, "postgres: insert person")
	st.On("CreateCompany", mock.Anything, mock.Anything).Return(false, dup)
	st.On("FindCompaniesByAddress", mock.Anything, "ws1", "jane@newco.com", "newco.com", "newco").Return([]model.Company{company}, nil)
	st.On("CreatePerson", mock.Anything, mock.Anything).Return(false, dup)
	st.On("FindPersonsByAddress", mock.Anything, "ws1", "jane@newco.com").Return([]model.Person{person}, nil)

	out := CreateMissingEntities(context.Background(), st, "ws1", []string{"jane@newco.com"}, rs)

	require.NotNil(t, out.Company)
	require.NotNil(t, out.Person)
	assert.Equal(t, "c-existing", out.Company.ID)
	assert.Equal(t, "p-existing", out.Person.ID)
	assert.False(t, out.CompanyCreated)
	assert.False(t, out.PersonCreated)
	st.AssertExpectations(t)
}

func TestCreateMissingEntities_StoreErrorsDegrade(t *testing.T) {
	st := new(mockStore)
	rs := sellerRules()

	st.On("CreateCompany", mock.Anything, mock.Anything).Return(false, eris.New("disk full"))
	st.On("CreatePerson", mock.Anything, mock.Anything).Return(false, eris.New("disk full"))

	out := CreateMissingEntities(context.Background(), st, "ws1", []string{"jane@newco.com"}, rs)

	require.NotNil(t, out)
	assert.Nil(t, out.Person)
	assert.Nil(t, out.Company)
	assert.False(t, out.PersonCreated)
	assert.False(t, out.CompanyCreated)
	st.AssertExpectations(t)
}

func TestCreateMissingEntities_NoDomainSkipsCompany(t *testing.T) {
	st := new(mockStore)
	rs := sellerRules()

	st.On("CreatePerson", mock.Anything, mock.MatchedBy(func(p *model.Person) bool {
		return p.CompanyID == ""
	})).Return(true, nil)

	out := CreateMissingEntities(context.Background(), st, "ws1", []string{"jane@"}, rs)

	assert.Nil(t, out.Company)
	require.NotNil(t, out.Person)
	st.AssertExpectations(t)
}

func TestNamesFromLocalPart(t *testing.T) {
	tests := []struct {
		local string
		first string
		last  string
	}{
		{"jane.doe", "Jane", "Doe"},
		{"jane_doe", "Jane", "Doe"},
		{"jane-doe", "Jane", "Doe"},
		{"JANE.DOE", "Jane", "Doe"},
		{"jane.m.doe", "Jane", "M"}, // first two tokens only
		{"jane", "Jane", "Unknown"},
		{"", "Contact", "Unknown"},
	}

	for _, tc := range tests {
		first, last := NamesFromLocalPart(tc.local)
		assert.Equal(t, tc.first, first, "NamesFromLocalPart(%q)", tc.local)
		assert.Equal(t, tc.last, last, "NamesFromLocalPart(%q)", tc.local)
	}
}

func TestCompanyNameFromDomain(t *testing.T) {
	tests := []struct {
		domain string
		want   string
	}{
		{"newco.com", "Newco"},
		{"new-co.com", "New Co"},
		{"acme.co.uk", "Acme"},
		{"sub-domain.example.com", "Sub Domain"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, CompanyNameFromDomain(tc.domain), "CompanyNameFromDomain(%q)", tc.domain)
	}
}
