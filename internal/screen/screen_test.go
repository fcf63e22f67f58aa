package screen

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/chatpay/internal/config"
	"github.com/sudo-init-do/chatpay/internal/identity"
	"github.com/sudo-init-do/chatpay/internal/records"
	"github.com/sudo-init-do/chatpay/internal/wallet"
)

var allScreens = []Screen{
	Login, UserTypeSelection, ClientRegistration, ProviderRegistration,
	ClientDashboard, ProviderDashboard, Search, ClientContracts, ProviderContracts,
}

func TestNextTable(t *testing.T) {
	cases := []struct {
		name string
		in   Inputs
		cur  Screen
		want Screen
	}{
		{"disconnected", Inputs{}, ClientDashboard, Login},
		{"loading keeps screen", Inputs{Connected: true, Loading: true}, Search, Search},
		{"failed", Inputs{Connected: true, Failed: true, Identity: identity.Unknown}, Search, Login},
		{"client", Inputs{Connected: true, Identity: identity.Client}, Login, ClientDashboard},
		{"provider", Inputs{Connected: true, Identity: identity.Provider}, Login, ProviderDashboard},
		{"new", Inputs{Connected: true, Identity: identity.New}, Login, UserTypeSelection},
		{"unknown", Inputs{Connected: true, Identity: identity.Unknown}, Search, Login},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Next(tc.cur, tc.in))
		})
	}
}

func TestNextIdempotent(t *testing.T) {
	types := []identity.Type{identity.Client, identity.Provider, identity.New, identity.Unknown}
	for _, cur := range allScreens {
		for _, ty := range types {
			for _, flags := range [][3]bool{{false, false, false}, {true, false, false}, {true, true, false}, {true, false, true}} {
				in := Inputs{Connected: flags[0], Loading: flags[1], Failed: flags[2], Identity: ty}
				once := Next(cur, in)
				assert.Equal(t, once, Next(once, in), "%s %+v", cur, in)
			}
		}
	}
}

func TestDisconnectAlwaysLogin(t *testing.T) {
	for _, cur := range allScreens {
		assert.Equal(t, Login, Next(cur, Inputs{Identity: identity.Client}))
	}
}

type fakeConn struct {
	mu       sync.Mutex
	state    wallet.State
	discErr  error
	discCall int
}

func (f *fakeConn) State() wallet.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}
func (f *fakeConn) Connect(context.Context) error { return nil }
func (f *fakeConn) Disconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discCall++
	f.state = wallet.State{}
	return f.discErr
}
func (f *fakeConn) SendTransaction(context.Context, wallet.TransactionRequest) (wallet.TransactionResult, error) {
	return wallet.TransactionResult{}, nil
}

// scriptedResolver answers per address. Addresses listed in block wait for
// release before answering.
type scriptedResolver struct {
	mu      sync.Mutex
	results map[string]identity.Result
	errs    map[string]error
	block   map[string]chan struct{}
}

func newScripted() *scriptedResolver {
	return &scriptedResolver{
		results: map[string]identity.Result{},
		errs:    map[string]error{},
		block:   map[string]chan struct{}{},
	}
}

func (r *scriptedResolver) Resolve(ctx context.Context, addr string) (identity.Result, error) {
	r.mu.Lock()
	gate := r.block[addr]
	res, ok := r.results[addr]
	err := r.errs[addr]
	r.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return identity.Result{Type: identity.Unknown}, err
	}
	if !ok {
		return identity.Result{Type: identity.New}, nil
	}
	return res, nil
}

type pushes struct {
	mu    sync.Mutex
	views []View
}

func (p *pushes) add(v View) {
	p.mu.Lock()
	p.views = append(p.views, v)
	p.mu.Unlock()
}

func (p *pushes) last() (View, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.views) == 0 {
		return View{}, false
	}
	return p.views[len(p.views)-1], true
}

func newTestSession(t *testing.T, r IdentityResolver) (*Session, *fakeConn, *pushes) {
	t.Helper()
	log, _ := test.NewNullLogger()
	conn := &fakeConn{}
	p := &pushes{}
	s := newSession("sess-1", conn, sessionDeps{
		resolver:       r,
		resolveTimeout: time.Second,
		log:            log,
		notify:         p.add,
	})
	t.Cleanup(s.Close)
	return s, conn, p
}

func connected(addr string) wallet.State {
	return wallet.State{Connected: true, Account: wallet.Account{Address: addr}}
}

func waitScreen(t *testing.T, s *Session, want Screen) {
	t.Helper()
	require.Eventually(t, func() bool { return s.Screen() == want }, time.Second, 5*time.Millisecond,
		"want %s, have %s", want, s.Screen())
}

func TestSessionRoutesByIdentity(t *testing.T) {
	r := newScripted()
	r.results["client-w"] = identity.Result{Type: identity.Client, Client: &records.Client{ID: "client-w"}}
	r.results["prov-w"] = identity.Result{Type: identity.Provider, Provider: &records.Provider{ID: "prov-w", Category: "Plumbing"}}

	s, _, p := newTestSession(t, r)
	assert.Equal(t, Login, s.Screen())

	s.WalletChanged(connected("client-w"))
	waitScreen(t, s, ClientDashboard)
	assert.Equal(t, records.RoleClient, s.Role())

	v, ok := p.last()
	require.True(t, ok)
	assert.Equal(t, ClientDashboard, v.Screen)
	assert.False(t, v.Identity.IsLoading)

	s.WalletChanged(connected("prov-w"))
	waitScreen(t, s, ProviderDashboard)

	s.WalletChanged(connected("fresh-w"))
	waitScreen(t, s, UserTypeSelection)
}

func TestSessionResolutionFailureDegradesToLogin(t *testing.T) {
	r := newScripted()
	r.errs["broken"] = errors.New("stores down")
	s, _, _ := newTestSession(t, r)

	s.WalletChanged(connected("broken"))
	require.Eventually(t, func() bool { return s.View().Identity.Error != "" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, Login, s.Screen())
}

func TestStaleResolutionDiscardedAfterDisconnect(t *testing.T) {
	r := newScripted()
	gate := make(chan struct{})
	r.block["slow"] = gate
	r.results["slow"] = identity.Result{Type: identity.Client, Client: &records.Client{ID: "slow"}}
	s, _, _ := newTestSession(t, r)

	s.WalletChanged(connected("slow"))
	assert.True(t, s.View().Identity.IsLoading)

	s.WalletChanged(wallet.State{})
	close(gate)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, Login, s.Screen())
	assert.Equal(t, identity.Unknown, s.Identity().Type)
	assert.False(t, s.View().Identity.IsLoading)
}

func TestStaleResolutionDiscardedAfterAccountSwitch(t *testing.T) {
	r := newScripted()
	gate := make(chan struct{})
	r.block["first"] = gate
	r.results["first"] = identity.Result{Type: identity.Client, Client: &records.Client{ID: "first"}}
	r.results["second"] = identity.Result{Type: identity.Provider, Provider: &records.Provider{ID: "second"}}
	s, _, _ := newTestSession(t, r)

	s.WalletChanged(connected("first"))
	s.WalletChanged(connected("second"))
	waitScreen(t, s, ProviderDashboard)

	close(gate)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, ProviderDashboard, s.Screen())
}

func TestDisconnectClearsSelectionFromEveryScreen(t *testing.T) {
	for _, start := range allScreens {
		t.Run(string(start), func(t *testing.T) {
			s, _, _ := newTestSession(t, newScripted())
			s.mu.Lock()
			s.wallet = connected("w")
			s.screen = start
			s.selected = records.RoleProvider
			s.mu.Unlock()

			s.WalletChanged(wallet.State{})
			assert.Equal(t, Login, s.Screen())
			assert.Empty(t, s.SelectedUserType())
		})
	}
}

func TestRegistrationFlow(t *testing.T) {
	s, _, _ := newTestSession(t, newScripted())
	s.WalletChanged(connected("newbie"))
	waitScreen(t, s, UserTypeSelection)

	assert.ErrorIs(t, s.SelectUserType("admin"), ErrInvalidUserType)

	require.NoError(t, s.SelectUserType(records.RoleProvider))
	assert.Equal(t, ProviderRegistration, s.Screen())
	assert.Equal(t, records.RoleProvider, s.SelectedUserType())

	s.GoBackToUserTypeSelection()
	assert.Equal(t, UserTypeSelection, s.Screen())
	assert.Empty(t, s.SelectedUserType())

	require.NoError(t, s.SelectUserType(records.RoleClient))
	assert.Equal(t, ClientRegistration, s.Screen())

	require.NoError(t, s.CompleteRegistration(&records.Client{ID: "newbie", Name: "Ana"}))
	assert.Equal(t, ClientDashboard, s.Screen())
	assert.Equal(t, identity.Client, s.Identity().Type)
	assert.Empty(t, s.SelectedUserType())
}

func TestCompleteRegistrationDetectsProvider(t *testing.T) {
	s, _, _ := newTestSession(t, newScripted())
	s.WalletChanged(connected("newbie"))
	waitScreen(t, s, UserTypeSelection)

	require.NoError(t, s.CompleteRegistration(&records.Provider{ID: "newbie", Category: "Electrical"}))
	assert.Equal(t, ProviderDashboard, s.Screen())
	assert.Equal(t, records.RoleProvider, s.Role())

	assert.ErrorIs(t, s.CompleteRegistration("nope"), ErrUnknownRecord)
}

func TestSelectUserTypeNeedsWallet(t *testing.T) {
	s, _, _ := newTestSession(t, newScripted())
	assert.ErrorIs(t, s.SelectUserType(records.RoleClient), ErrNotConnected)
}

func TestNavigationStaysUntilInputsChange(t *testing.T) {
	r := newScripted()
	r.results["c"] = identity.Result{Type: identity.Client, Client: &records.Client{ID: "c"}}
	s, _, _ := newTestSession(t, r)
	s.WalletChanged(connected("c"))
	waitScreen(t, s, ClientDashboard)

	require.NoError(t, s.GoToSearch())
	assert.Equal(t, Search, s.Screen())

	// the same wallet state again must not yank the user back
	s.WalletChanged(connected("c"))
	assert.Equal(t, Search, s.Screen())

	require.NoError(t, s.Navigate(ClientContracts))
	assert.ErrorIs(t, s.Navigate(ProviderContracts), ErrNavigation)

	s.ReturnToDashboard()
	assert.Equal(t, ClientDashboard, s.Screen())
}

func TestLogout(t *testing.T) {
	r := newScripted()
	r.results["c"] = identity.Result{Type: identity.Client, Client: &records.Client{ID: "c"}}
	s, conn, _ := newTestSession(t, r)
	s.WalletChanged(connected("c"))
	waitScreen(t, s, ClientDashboard)

	require.NoError(t, s.Logout(context.Background()))
	assert.Equal(t, Login, s.Screen())
	assert.Equal(t, 1, conn.discCall)
}

func TestLogoutDegradesOnDisconnectError(t *testing.T) {
	r := newScripted()
	r.results["c"] = identity.Result{Type: identity.Client, Client: &records.Client{ID: "c"}}
	s, conn, _ := newTestSession(t, r)
	conn.discErr = errors.New("bridge unreachable")
	s.WalletChanged(connected("c"))
	waitScreen(t, s, ClientDashboard)

	err := s.Logout(context.Background())
	var ce *wallet.ConnectionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, Login, s.Screen())
	assert.Equal(t, identity.Unknown, s.Identity().Type)
}

func TestManagerWiresRelayAndSweeps(t *testing.T) {
	log, _ := test.NewNullLogger()
	relay := wallet.NewRelay(log, nil)
	r := newScripted()
	r.results["c"] = identity.Result{Type: identity.Client, Client: &records.Client{ID: "c"}}

	m := NewManager(r, relay, log, nil, config.SessionConfig{ResolveTimeout: time.Second, IdleTimeout: time.Minute})
	s := m.Create()
	got, ok := m.Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)

	require.NoError(t, relay.Link(s.ID()).HandleEvent(wallet.Event{
		Type:    wallet.EventConnected,
		Account: &wallet.Account{Address: "c"},
	}))
	waitScreen(t, s, ClientDashboard)

	assert.Zero(t, m.Sweep())
	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	assert.Equal(t, 1, m.Sweep())
	_, ok = m.Get(s.ID())
	assert.False(t, ok)
	assert.Zero(t, m.Len())
}
