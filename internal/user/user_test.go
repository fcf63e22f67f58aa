package user

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/chatpay/internal/catalog"
	"github.com/sudo-init-do/chatpay/internal/config"
	"github.com/sudo-init-do/chatpay/internal/identity"
	"github.com/sudo-init-do/chatpay/internal/records"
	"github.com/sudo-init-do/chatpay/internal/screen"
	"github.com/sudo-init-do/chatpay/internal/wallet"
)

const walletAddr = "EQBvW8Z5huBkMJYdnfAEM5JqTNkuWX3diqYENkWsIL0XggGG"

type memClients struct {
	mu   sync.Mutex
	byID map[string]*records.Client
	err  error
}

func (m *memClients) Create(_ context.Context, in records.NewClient) (*records.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c := &records.Client{ID: in.WalletAddress, Name: in.Name, Email: in.Email, Phone: in.Phone, WalletAddress: in.WalletAddress}
	m.byID[c.ID] = c
	return c, nil
}

func (m *memClients) FindByID(_ context.Context, id string) (*records.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.byID[id]; ok {
		return c, nil
	}
	return nil, records.ErrNotFound
}

func (m *memClients) Update(_ context.Context, id string, u records.ClientUpdate) (*records.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, records.ErrNotFound
	}
	cp := *c
	if u.Name != nil {
		cp.Name = *u.Name
	}
	if u.Email != nil {
		cp.Email = *u.Email
	}
	if u.Phone != nil {
		cp.Phone = *u.Phone
	}
	m.byID[id] = &cp
	return &cp, nil
}

type memProviders struct {
	mu      sync.Mutex
	byID    map[string]*records.Provider
	updates []records.ProviderUpdate
}

func (m *memProviders) Create(_ context.Context, in records.NewProvider) (*records.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &records.Provider{
		ID: in.WalletAddress, Name: in.Name, Email: in.Email, Phone: in.Phone,
		Description: in.Description, Category: in.Category, WalletAddress: in.WalletAddress,
		HourlyRate: in.HourlyRate, City: in.City, State: in.State, Country: in.Country,
		Experience: in.Experience, Availability: in.Availability, IsActive: true,
	}
	m.byID[p.ID] = p
	return p, nil
}

func (m *memProviders) FindByID(_ context.Context, id string) (*records.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.byID[id]; ok {
		return p, nil
	}
	return nil, records.ErrNotFound
}

func (m *memProviders) Update(_ context.Context, id string, u records.ProviderUpdate) (*records.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, records.ErrNotFound
	}
	m.updates = append(m.updates, u)
	cp := *p
	if u.State != nil {
		cp.State = *u.State
	}
	if u.HourlyRate != nil {
		cp.HourlyRate = *u.HourlyRate
	}
	m.byID[id] = &cp
	return &cp, nil
}

type recordingWelcome struct {
	mu    sync.Mutex
	roles []records.Role
}

func (r *recordingWelcome) EnqueueWelcome(_ context.Context, role records.Role, _, _, _ string) error {
	r.mu.Lock()
	r.roles = append(r.roles, role)
	r.mu.Unlock()
	return nil
}

type newWallets struct{}

func (newWallets) Resolve(context.Context, string) (identity.Result, error) {
	return identity.Result{Type: identity.New}, nil
}

type fixture struct {
	e         *echo.Echo
	h         *Handler
	clients   *memClients
	providers *memProviders
	welcome   *recordingWelcome
	session   *screen.Session
}

// newFixture returns a session whose wallet is connected and unregistered.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	log, _ := test.NewNullLogger()
	relay := wallet.NewRelay(log, nil)
	m := screen.NewManager(newWallets{}, relay, log, nil, config.SessionConfig{ResolveTimeout: time.Second})
	s := m.Create()
	require.NoError(t, relay.Link(s.ID()).HandleEvent(wallet.Event{
		Type:    wallet.EventConnected,
		Account: &wallet.Account{Address: walletAddr},
	}))
	require.Eventually(t, func() bool { return s.Screen() == screen.UserTypeSelection }, time.Second, 5*time.Millisecond)

	f := &fixture{
		e:         echo.New(),
		clients:   &memClients{byID: map[string]*records.Client{}},
		providers: &memProviders{byID: map[string]*records.Provider{}},
		welcome:   &recordingWelcome{},
		session:   s,
	}
	f.e.Validator = NewValidator(catalog.Default())
	f.h = NewHandler(f.clients, f.providers, f.welcome, log)
	return f
}

func (f *fixture) call(t *testing.T, handler echo.HandlerFunc, method, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := f.e.NewContext(req, rec)
	c.Set(screen.ContextKey, f.session)
	require.NoError(t, handler(c))
	return rec
}

const clientBody = `{"name":"Ada Lovelace","email":"ada@example.com","phone":"+15551234567"}`

const providerBody = `{
	"name":"Bob Builder","email":"bob@example.com","phone":"+15559876543",
	"category":"Plumbing","description":"Pipes and leaks","hourly_rate":45.5,
	"city":"Austin","state":"tx","country":"US","experience":"3-5",
	"availability":["monday","Friday"]
}`

func TestValidatorReportsFields(t *testing.T) {
	v := NewValidator(catalog.Default())

	err := v.Validate(&ClientForm{Name: "A", Email: "not-an-email", Phone: "123"})
	fields := FieldErrors(err)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "phone")

	err = v.Validate(&ProviderForm{
		Name: "Bob", Email: "bob@example.com", Phone: "+15559876543",
		Category: "Juggling", Description: strings.Repeat("x", 501), HourlyRate: -1,
		City: "Austin", State: "Texas", Country: "US", Experience: "forever",
		Availability: []string{"monday", "funday"},
	})
	fields = FieldErrors(err)
	assert.Equal(t, "is not a known service category", fields["category"])
	assert.Contains(t, fields, "description")
	assert.Contains(t, fields, "hourly_rate")
	assert.Equal(t, "must be exactly 2 characters", fields["state"])
	assert.Equal(t, "is not a known experience level", fields["experience"])
	assert.Equal(t, "is not a known day of the week", fields["availability[1]"])

	err = v.Validate(&ProviderForm{
		Name: "Bob", Email: "bob@example.com", Phone: "+15559876543",
		Category: "Plumbing", Description: "ok", HourlyRate: 10,
		City: "Austin", State: "TX", Country: "US", Experience: "less-1",
		Availability: []string{},
	})
	assert.Contains(t, FieldErrors(err), "availability")

	assert.Nil(t, FieldErrors(assert.AnError))
}

func TestRegisterClient(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.SelectUserType(records.RoleClient))

	rec := f.call(t, f.h.RegisterClient, http.MethodPost, clientBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	stored, err := f.clients.FindByID(context.Background(), walletAddr)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", stored.Name)
	assert.Equal(t, screen.ClientDashboard, f.session.Screen())
	assert.Equal(t, records.RoleClient, f.session.Role())
	assert.Equal(t, []records.Role{records.RoleClient}, f.welcome.roles)
}

func TestRegisterProviderNormalizesState(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.SelectUserType(records.RoleProvider))

	rec := f.call(t, f.h.RegisterProvider, http.MethodPost, providerBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	p, err := f.providers.FindByID(context.Background(), walletAddr)
	require.NoError(t, err)
	assert.Equal(t, "TX", p.State)
	assert.Equal(t, screen.ProviderDashboard, f.session.Screen())
}

func TestRegisterRequiresMatchingSelection(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.SelectUserType(records.RoleClient))

	rec := f.call(t, f.h.RegisterProvider, http.MethodPost, providerBody)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, f.providers.byID)
}

func TestRegisterValidationFailure(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.SelectUserType(records.RoleClient))

	rec := f.call(t, f.h.RegisterClient, http.MethodPost, `{"name":"A","email":"x","phone":"1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation failed", body.Error)
	assert.Len(t, body.Fields, 3)
	assert.Equal(t, screen.ClientRegistration, f.session.Screen())
}

func TestRegisterRoleTaken(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.SelectUserType(records.RoleClient))
	f.clients.err = records.ErrRoleTaken

	rec := f.call(t, f.h.RegisterClient, http.MethodPost, clientBody)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, f.welcome.roles)
}

func TestMeAndUpdateProfile(t *testing.T) {
	f := newFixture(t)
	rec := f.call(t, f.h.Me, http.MethodGet, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, f.session.SelectUserType(records.RoleProvider))
	require.Equal(t, http.StatusCreated, f.call(t, f.h.RegisterProvider, http.MethodPost, providerBody).Code)

	rec = f.call(t, f.h.Me, http.MethodGet, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"provider"`)

	rec = f.call(t, f.h.UpdateProfile, http.MethodPatch, `{"state":"ny","hourly_rate":60}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, f.providers.updates, 1)
	assert.Equal(t, "NY", *f.providers.updates[0].State)
	assert.Nil(t, f.providers.updates[0].Name)
	assert.Equal(t, "NY", f.session.Identity().Provider.State)

	rec = f.call(t, f.h.UpdateProfile, http.MethodPatch, `{"category":"Juggling"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, f.providers.updates, 1)
}

func TestPublicProviderHidesContact(t *testing.T) {
	f := newFixture(t)
	f.providers.byID[walletAddr] = &records.Provider{ID: walletAddr, Name: "Bob", Email: "bob@example.com", Phone: "+1555", Category: "Plumbing"}

	get := func(id string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/providers/"+id, nil)
		rec := httptest.NewRecorder()
		c := f.e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues(id)
		require.NoError(t, f.h.PublicProvider(c))
		return rec
	}

	rec := get(walletAddr)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Bob"`)
	assert.NotContains(t, rec.Body.String(), "bob@example.com")

	assert.Equal(t, http.StatusNotFound, get("EQnobody").Code)
}
