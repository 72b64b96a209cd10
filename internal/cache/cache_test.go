package cache

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/attribution-cli/internal/model"
	"github.com/sells-group/attribution-cli/internal/store"
)

// --- KV Mock ---

type mockKV struct {
	mock.Mock
}

func (m *mockKV) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *mockKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *mockKV) Del(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

func (m *mockKV) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Store Mock ---

// mockStore implements only the methods the cache overrides or that tests
// pass through; anything else panics via the nil embedded Store.
type mockStore struct {
	store.Store
	mock.Mock
}

func (m *mockStore) FindPersonsByAddress(ctx context.Context, workspaceID, address string) ([]model.Person, error) {
	args := m.Called(ctx, workspaceID, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Person), args.Error(1)
}

func (m *mockStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Company), args.Error(1)
}

func (m *mockStore) CreatePerson(ctx context.Context, p *model.Person) (bool, error) {
	args := m.Called(ctx, p)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) CreateCompany(ctx context.Context, c *model.Company) (bool, error) {
	args := m.Called(ctx, c)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) LinkEmailPerson(ctx context.Context, link *model.EmailPersonLink) (bool, error) {
	args := m.Called(ctx, link)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// --- Tests ---

func TestFindPersonsByAddress_MissThenHit(t *testing.T) {
	kv := new(mockKV)
	st := new(mockStore)
	c := New(st, kv, time.Minute)

	jane := model.Person{ID: "p-jane", WorkspaceID: "ws1", PrimaryEmail: "jane@newco.com"}
	cached, err := json.Marshal([]model.Person{jane})
	require.NoError(t, err)
	key := "attribution:persons:ws1:jane@newco.com"

	kv.On("Get", mock.Anything, key).Return("", false, nil).Once()
	st.On("FindPersonsByAddress", mock.Anything, "ws1", "jane@newco.com").Return([]model.Person{jane}, nil).Once()
	kv.On("Set", mock.Anything, key, string(cached), time.Minute).Return(nil).Once()
	kv.On("Get", mock.Anything, key).Return(string(cached), true, nil).Once()

	first, err := c.FindPersonsByAddress(context.Background(), "ws1", "jane@newco.com")
	require.NoError(t, err)
	second, err := c.FindPersonsByAddress(context.Background(), "ws1", "jane@newco.com")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "p-jane", second[0].ID)
	st.AssertNumberOfCalls(t, "FindPersonsByAddress", 1)
	kv.AssertExpectations(t)
}

func TestFindPersonsByAddress_EmptyResultNotCached(t *testing.T) {
	// Negative entries would mask persons created by the sync job, so an
	// empty lookup goes back to the store every time.
	kv := new(mockKV)
	st := new(mockStore)
	c := New(st, kv, time.Minute)
	key := "attribution:persons:ws1:nobody@newco.com"

	kv.On("Get", mock.Anything, key).Return("", false, nil).Twice()
	st.On("FindPersonsByAddress", mock.Anything, "ws1", "nobody@newco.com").Return(nil, nil).Twice()

	persons, err := c.FindPersonsByAddress(context.Background(), "ws1", "nobody@newco.com")
	require.NoError(t, err)
	assert.Empty(t, persons)

	_, err = c.FindPersonsByAddress(context.Background(), "ws1", "nobody@newco.com")
	require.NoError(t, err)

	st.AssertNumberOfCalls(t, "FindPersonsByAddress", 2)
	kv.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFindPersonsByAddress_RedisDownFallsThrough(t *testing.T) {
	kv := new(mockKV)
	st := new(mockStore)
	c := New(st, kv, time.Minute)

	jane := model.Person{ID: "p-jane"}
	kv.On("Get", mock.Anything, mock.Anything).Return("", false, eris.New("connection refused"))
	st.On("FindPersonsByAddress", mock.Anything, "ws1", "jane@newco.com").Return([]model.Person{jane}, nil)
	kv.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(eris.New("connection refused"))

	persons, err := c.FindPersonsByAddress(context.Background(), "ws1", "jane@newco.com")
	require.NoError(t, err)
	require.Len(t, persons, 1)
	assert.Equal(t, "p-jane", persons[0].ID)
}

func TestFindPersonsByAddress_CorruptEntryDropped(t *testing.T) {
	kv := new(mockKV)
	st := new(mockStore)
	c := New(st, kv, time.Minute)
	key := "attribution:persons:ws1:jane@newco.com"

	kv.On("Get", mock.Anything, key).Return("{not json", true, nil)
	kv.On("Del", mock.Anything, []string{key}).Return(nil)
	st.On("FindPersonsByAddress", mock.Anything, "ws1", "jane@newco.com").Return([]model.Person{{ID: "p-jane"}}, nil)
	kv.On("Set", mock.Anything, key, mock.Anything, time.Minute).Return(nil)

	persons, err := c.FindPersonsByAddress(context.Background(), "ws1", "jane@newco.com")
	require.NoError(t, err)
	assert.Len(t, persons, 1)
	kv.AssertExpectations(t)
}

func TestFindPersonsByAddress_StoreErrorNotCached(t *testing.T) {
	kv := new(mockKV)
	st := new(mockStore)
	c := New(st, kv, time.Minute)

	kv.On("Get", mock.Anything, mock.Anything).Return("", false, nil)
	st.On("FindPersonsByAddress", mock.Anything, "ws1", "jane@newco.com").Return(nil, eris.New("db down"))

	_, err := c.FindPersonsByAddress(context.Background(), "ws1", "jane@newco.com")
	require.Error(t, err)
	kv.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetCompany_NotFoundNotCached(t *testing.T) {
	kv := new(mockKV)
	st := new(mockStore)
	c := New(st, kv, time.Minute)
	key := "attribution:company:c-gone"

	kv.On("Get", mock.Anything, key).Return("", false, nil).Twice()
	st.On("GetCompany", mock.Anything, "c-gone").Return(nil, nil).Twice()

	first, err := c.GetCompany(context.Background(), "c-gone")
	require.NoError(t, err)
	assert.Nil(t, first)

	second, err := c.GetCompany(context.Background(), "c-gone")
	require.NoError(t, err)
	assert.Nil(t, second)

	st.AssertNumberOfCalls(t, "GetCompany", 2)
	kv.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetCompany_Hit(t *testing.T) {
	kv := new(mockKV)
	st := new(mockStore)
	c := New(st, kv, time.Minute)

	acme := &model.Company{ID: "c-acme", Name: "Acme"}
	cached, err := json.Marshal(acme)
	require.NoError(t, err)

	kv.On("Get", mock.Anything, "attribution:company:c-acme").Return(string(cached), true, nil)

	got, err := c.GetCompany(context.Background(), "c-acme")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Acme", got.Name)
	st.AssertNotCalled(t, "GetCompany", mock.Anything, mock.Anything)
}

func TestCreatePerson_InvalidatesEveryAddress(t *testing.T) {
	kv := new(mockKV)
	st := new(mockStore)
	c := New(st, kv, time.Minute)

	person := &model.Person{
		WorkspaceID:  "ws1",
		PrimaryEmail: "jane@newco.com",
		WorkEmail:    "Jane.Doe@Newco.com",
	}
	st.On("CreatePerson", mock.Anything, person).Return(true, nil)
	kv.On("Del", mock.Anything, []string{
		"attribution:persons:ws1:jane@newco.com",
		"attribution:persons:ws1:jane.doe@newco.com",
	}).Return(nil)

	created, err := c.CreatePerson(context.Background(), person)
	require.NoError(t, err)
	assert.True(t, created)
	kv.AssertExpectations(t)
}

func TestCreatePerson_ErrorSkipsInvalidation(t *testing.T) {
	kv := new(mockKV)
	st := new(mockStore)
	c := New(st, kv, time.Minute)

	st.On("CreatePerson", mock.Anything, mock.Anything).Return(false, eris.New("db down"))

	_, err := c.CreatePerson(context.Background(), &model.Person{PrimaryEmail: "jane@newco.com"})
	require.Error(t, err)
	kv.AssertNotCalled(t, "Del", mock.Anything, mock.Anything)
}

func TestCreateCompany_InvalidatesID(t *testing.T) {
	kv := new(mockKV)
	st := new(mockStore)
	c := New(st, kv, time.Minute)

	company := &model.Company{ID: "c-newco", WorkspaceID: "ws1"}
	st.On("CreateCompany", mock.Anything, company).Return(true, nil)
	kv.On("Del", mock.Anything, []string{"attribution:company:c-newco"}).Return(nil)

	created, err := c.CreateCompany(context.Background(), company)
	require.NoError(t, err)
	assert.True(t, created)
	kv.AssertExpectations(t)
}

func TestPassThroughMethods(t *testing.T) {
	kv := new(mockKV)
	st := new(mockStore)
	c := New(st, kv, time.Minute)

	st.On("LinkEmailPerson", mock.Anything, mock.Anything).Return(true, nil)

	created, err := c.LinkEmailPerson(context.Background(), &model.EmailPersonLink{EmailID: "e1", PersonID: "p1"})
	require.NoError(t, err)
	assert.True(t, created)
	st.AssertExpectations(t)
}

func TestClose_ClosesRedisAndStore(t *testing.T) {
	kv := new(mockKV)
	st := new(mockStore)
	c := New(st, kv, time.Minute)

	kv.On("Close").Return(eris.New("already closed"))
	st.On("Close").Return(nil)

	assert.NoError(t, c.Close())
	kv.AssertExpectations(t)
	st.AssertExpectations(t)
}

func TestCachedValueMatchesStoreShape(t *testing.T) {
	// The cached form must round-trip every field matching hits on.
	jane := model.Person{
		ID: "p1", WorkspaceID: "ws1",
		FirstName: "Jane", LastName: "Doe",
		PrimaryEmail: "jane@newco.com", WorkEmail: "j@n.com",
		CompanyID: "c1",
		CreatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	data, err := json.Marshal([]model.Person{jane})
	require.NoError(t, err)

	var out []model.Person
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, []model.Person{jane}, out)
	assert.True(t, strings.HasPrefix(personsKey("ws1", "jane@newco.com"), "attribution:persons:"))
}
