package screen

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sudo-init-do/chatpay/internal/config"
	"github.com/sudo-init-do/chatpay/internal/metrics"
	"github.com/sudo-init-do/chatpay/internal/wallet"
)

// Manager owns the live sessions and binds each one to its wallet relay link.
type Manager struct {
	resolver       IdentityResolver
	relay          *wallet.Relay
	log            logrus.FieldLogger
	metrics        *metrics.Registry
	resolveTimeout time.Duration
	idleTimeout    time.Duration
	now            func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(resolver IdentityResolver, relay *wallet.Relay, log logrus.FieldLogger, m *metrics.Registry, cfg config.SessionConfig) *Manager {
	return &Manager{
		resolver:       resolver,
		relay:          relay,
		log:            log.WithField("component", "screen"),
		metrics:        m,
		resolveTimeout: cfg.ResolveTimeout,
		idleTimeout:    cfg.IdleTimeout,
		now:            time.Now,
		sessions:       make(map[string]*Session),
	}
}

// Create starts a session on the login screen.
func (m *Manager) Create() *Session {
	id := uuid.NewString()
	link := m.relay.Link(id)

	s := newSession(id, link, sessionDeps{
		resolver:       m.resolver,
		resolveTimeout: m.resolveTimeout,
		log:            m.log,
		metrics:        m.metrics,
		now:            m.now,
		notify: func(v View) {
			if err := link.Notify(wallet.PushScreen, v); err != nil {
				m.log.WithError(err).WithField("session_id", id).Debug("screen push skipped")
			}
		},
	})
	link.OnChange(s.WalletChanged)

	m.mu.Lock()
	m.sessions[id] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetSessions(n)
	m.log.WithField("session_id", id).Info("session created")
	return s
}

// Get returns the session and refreshes its idle timer.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		s.touch()
	}
	return s, ok
}

func (m *Manager) Remove(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return
	}
	s.Close()
	m.relay.Drop(id)
	m.metrics.SetSessions(n)
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than the idle timeout and returns
// how many it removed.
func (m *Manager) Sweep() int {
	if m.idleTimeout <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idleTimeout)

	m.mu.RLock()
	var stale []string
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range stale {
		m.Remove(id)
	}
	if len(stale) > 0 {
		m.log.WithField("count", len(stale)).Info("idle sessions removed")
	}
	return len(stale)
}

// Run sweeps idle sessions until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := m.idleTimeout / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
