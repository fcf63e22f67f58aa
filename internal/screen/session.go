package screen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sudo-init-do/chatpay/internal/identity"
	"github.com/sudo-init-do/chatpay/internal/metrics"
	"github.com/sudo-init-do/chatpay/internal/records"
	"github.com/sudo-init-do/chatpay/internal/wallet"
)

var (
	ErrInvalidUserType = errors.New("user type must be client or provider")
	ErrNotConnected    = errors.New("wallet not connected")
	ErrNavigation      = errors.New("screen not reachable from this session")
	ErrUnknownRecord   = errors.New("unrecognised registration record")
)

type IdentityResolver interface {
	Resolve(ctx context.Context, addr string) (identity.Result, error)
}

// IdentityView is the identity part of a View.
type IdentityView struct {
	Type      identity.Type `json:"type"`
	User      any           `json:"user,omitempty"`
	IsLoading bool          `json:"is_loading"`
	Error     string        `json:"error,omitempty"`
}

// View is the session snapshot pushed to the browser.
type View struct {
	SessionID        string       `json:"session_id"`
	Screen           Screen       `json:"screen"`
	Wallet           wallet.State `json:"wallet"`
	Identity         IdentityView `json:"identity"`
	SelectedUserType records.Role `json:"selected_user_type,omitempty"`
}

// Session is one browser's routing state.
type Session struct {
	id             string
	conn           wallet.Connector
	resolver       IdentityResolver
	resolveTimeout time.Duration
	log            logrus.FieldLogger
	metrics        *metrics.Registry
	notify         func(View)
	now            func() time.Time

	mu         sync.Mutex
	screen     Screen
	wallet     wallet.State
	identity   identity.Result
	loading    bool
	resolveErr error
	selected   records.Role
	evaluated  *Inputs
	generation uint64
	cancel     context.CancelFunc
	lastSeen   time.Time
}

type sessionDeps struct {
	resolver       IdentityResolver
	resolveTimeout time.Duration
	log            logrus.FieldLogger
	metrics        *metrics.Registry
	notify         func(View)
	now            func() time.Time
}

func newSession(id string, conn wallet.Connector, d sessionDeps) *Session {
	if d.now == nil {
		d.now = time.Now
	}
	if d.resolveTimeout <= 0 {
		d.resolveTimeout = 10 * time.Second
	}
	return &Session{
		id:             id,
		conn:           conn,
		resolver:       d.resolver,
		resolveTimeout: d.resolveTimeout,
		log:            d.log.WithField("session_id", id),
		metrics:        d.metrics,
		notify:         d.notify,
		now:            d.now,
		screen:         Login,
		identity:       identity.Result{Type: identity.Unknown},
		lastSeen:       d.now(),
	}
}

func (s *Session) ID() string { return s.id }

// Connector is the wallet connection bound to this session.
func (s *Session) Connector() wallet.Connector { return s.conn }

func (s *Session) Screen() Screen {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screen
}

func (s *Session) Identity() identity.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Role is the session's registered role, or "" before registration.
func (s *Session) Role() records.Role {
	switch s.Identity().Type {
	case identity.Client:
		return records.RoleClient
	case identity.Provider:
		return records.RoleProvider
	}
	return ""
}

func (s *Session) WalletAddress() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallet.Address()
}

func (s *Session) SelectedUserType() records.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	v := View{
		SessionID: s.id,
		Screen:    s.screen,
		Wallet:    s.wallet,
		Identity: IdentityView{
			Type:      s.identity.Type,
			User:      s.identity.User(),
			IsLoading: s.loading,
		},
		SelectedUserType: s.selected,
	}
	if s.resolveErr != nil {
		v.Identity.Error = s.resolveErr.Error()
	}
	return v
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = s.now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) inputsLocked() Inputs {
	return Inputs{
		Connected: s.wallet.Connected,
		Identity:  s.identity.Type,
		Loading:   s.loading,
		Failed:    s.resolveErr != nil,
	}
}

// evaluateLocked applies Next only when the inputs moved since the last
// evaluation, leaving user navigation alone otherwise.
func (s *Session) evaluateLocked() bool {
	in := s.inputsLocked()
	if s.evaluated != nil && *s.evaluated == in {
		return false
	}
	s.evaluated = &in
	return s.setScreenLocked(Next(s.screen, in))
}

// markEvaluatedLocked records the current inputs as seen, for transitions
// the session forces itself.
func (s *Session) markEvaluatedLocked() {
	in := s.inputsLocked()
	s.evaluated = &in
}

func (s *Session) setScreenLocked(next Screen) bool {
	if next == s.screen {
		return false
	}
	s.log.WithFields(logrus.Fields{"from": s.screen, "to": next}).Debug("screen changed")
	s.screen = next
	s.metrics.IncScreen(string(next))
	return true
}

func (s *Session) publish(v View) {
	if s.notify != nil {
		s.notify(v)
	}
}

// commit releases the lock and pushes the view when the screen changed.
func (s *Session) commit(changed bool) {
	v := s.viewLocked()
	s.mu.Unlock()
	if changed {
		s.publish(v)
	}
}

func (s *Session) resetLocked() {
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.wallet = wallet.State{}
	s.identity = identity.Result{Type: identity.Unknown}
	s.loading = false
	s.resolveErr = nil
	s.selected = ""
}

// WalletChanged feeds a new wallet state into the session. A disconnect
// always lands on Login; a new address starts a fresh identity resolution
// and orphans any resolution still running.
func (s *Session) WalletChanged(st wallet.State) {
	s.mu.Lock()
	s.lastSeen = s.now()

	if !st.Connected {
		s.resetLocked()
		changed := s.setScreenLocked(Login)
		s.markEvaluatedLocked()
		s.commit(changed)
		return
	}

	sameAccount := s.wallet.Connected && s.wallet.Address() == st.Address()
	s.wallet = st
	if sameAccount {
		s.commit(s.evaluateLocked())
		return
	}

	s.generation++
	gen := s.generation
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.resolveTimeout)
	s.cancel = cancel
	s.identity = identity.Result{Type: identity.Unknown}
	s.loading = true
	s.resolveErr = nil
	s.selected = ""
	changed := s.evaluateLocked()
	addr := st.Address()
	s.commit(changed)

	go s.resolve(ctx, cancel, gen, addr)
}

func (s *Session) resolve(ctx context.Context, cancel context.CancelFunc, gen uint64, addr string) {
	defer cancel()
	res, err := s.resolver.Resolve(ctx, addr)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.log.WithField("wallet", addr).Debug("discarding stale identity resolution")
		return
	}
	s.cancel = nil
	s.loading = false
	s.identity = res
	s.resolveErr = err
	if err != nil {
		s.log.WithError(err).WithField("wallet", addr).Warn("identity resolution failed")
	}
	s.commit(s.evaluateLocked())
}

// SelectUserType records the role a new wallet wants to register as and
// opens the matching form.
func (s *Session) SelectUserType(role records.Role) error {
	if !role.Valid() {
		return ErrInvalidUserType
	}
	s.mu.Lock()
	if !s.wallet.Connected {
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.selected = role
	next := ClientRegistration
	if role == records.RoleProvider {
		next = ProviderRegistration
	}
	s.commit(s.setScreenLocked(next))
	return nil
}

type categorized interface {
	ServiceCategory() string
}

// CompleteRegistration adopts a freshly written record as the session
// identity without probing the stores again. A record with a non-empty
// category is a provider, anything else a client.
func (s *Session) CompleteRegistration(record any) error {
	var res identity.Result
	if p, ok := record.(categorized); ok && p.ServiceCategory() != "" {
		prov, ok := record.(*records.Provider)
		if !ok {
			return fmt.Errorf("%w: %T", ErrUnknownRecord, record)
		}
		res = identity.Result{Type: identity.Provider, Provider: prov}
	} else {
		cl, ok := record.(*records.Client)
		if !ok {
			return fmt.Errorf("%w: %T", ErrUnknownRecord, record)
		}
		res = identity.Result{Type: identity.Client, Client: cl}
	}

	s.mu.Lock()
	s.identity = res
	s.loading = false
	s.resolveErr = nil
	s.selected = ""
	changed := s.setScreenLocked(Dashboard(res.Type))
	s.markEvaluatedLocked()
	s.commit(changed)
	return nil
}

// RefreshRecord replaces the identity record with a newer copy of the same
// account, leaving the screen alone. Records for another wallet or role are
// ignored.
func (s *Session) RefreshRecord(record any) {
	s.mu.Lock()
	switch r := record.(type) {
	case *records.Client:
		if s.identity.Type == identity.Client && r.ID == s.wallet.Address() {
			s.identity.Client = r
		}
	case *records.Provider:
		if s.identity.Type == identity.Provider && r.ID == s.wallet.Address() {
			s.identity.Provider = r
		}
	}
	v := s.viewLocked()
	s.mu.Unlock()
	s.publish(v)
}

func (s *Session) GoBackToUserTypeSelection() {
	s.mu.Lock()
	s.selected = ""
	s.commit(s.setScreenLocked(UserTypeSelection))
}

func (s *Session) GoToSearch() error {
	return s.Navigate(Search)
}

// Navigate moves between screens a registered user can reach directly.
func (s *Session) Navigate(to Screen) error {
	s.mu.Lock()
	if !s.reachableLocked(to) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNavigation, to)
	}
	s.commit(s.setScreenLocked(to))
	return nil
}

func (s *Session) reachableLocked(to Screen) bool {
	if !s.wallet.Connected {
		return false
	}
	switch s.identity.Type {
	case identity.Client:
		return to == ClientDashboard || to == ClientContracts || to == Search
	case identity.Provider:
		return to == ProviderDashboard || to == ProviderContracts || to == Search
	}
	return false
}

// ReturnToDashboard goes back to the home screen of the current identity.
func (s *Session) ReturnToDashboard() {
	s.mu.Lock()
	next := Dashboard(s.identity.Type)
	if !s.wallet.Connected {
		next = Login
	}
	s.commit(s.setScreenLocked(next))
}

// Logout disconnects the wallet and lands on Login. The screen degrades to
// Login even when the disconnect fails.
func (s *Session) Logout(ctx context.Context) error {
	var connErr error
	if err := s.conn.Disconnect(ctx); err != nil {
		var ce *wallet.ConnectionError
		if !errors.As(err, &ce) {
			err = &wallet.ConnectionError{Op: "disconnect", Err: err}
		}
		connErr = err
		s.log.WithError(err).Warn("wallet disconnect failed during logout")
	}

	s.mu.Lock()
	s.resetLocked()
	changed := s.setScreenLocked(Login)
	s.markEvaluatedLocked()
	s.commit(changed)
	return connErr
}

// Close stops any running resolution.
func (s *Session) Close() {
	s.mu.Lock()
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
}
