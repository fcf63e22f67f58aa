package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the service counters. A nil *Registry is valid and records nothing.
type Registry struct {
	registry            *prometheus.Registry
	identityResolutions *prometheus.CounterVec
	escrowSubmissions   *prometheus.CounterVec
	persistFailures     prometheus.Counter
	screenTransitions   *prometheus.CounterVec
	activeSessions      prometheus.Gauge
	walletLinks         prometheus.Gauge
}

func New() *Registry {
	identity := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatpay_identity_resolutions_total",
		Help: "Identity resolutions by resulting type",
	}, []string{"type"})

	escrow := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatpay_escrow_submissions_total",
		Help: "Escrow submissions by result",
	}, []string{"result"})

	persist := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatpay_contract_persist_failures_total",
		Help: "Contract records that failed to persist after a submitted transaction",
	})

	screens := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatpay_screen_transitions_total",
		Help: "Screen transitions by target screen",
	}, []string{"screen"})

	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatpay_active_sessions",
		Help: "Number of live browser sessions",
	})

	links := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatpay_wallet_links",
		Help: "Number of attached wallet relay sockets",
	})

	r := prometheus.NewRegistry()
	r.MustRegister(identity, escrow, persist, screens, sessions, links,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Registry{
		registry:            r,
		identityResolutions: identity,
		escrowSubmissions:   escrow,
		persistFailures:     persist,
		screenTransitions:   screens,
		activeSessions:      sessions,
		walletLinks:         links,
	}
}

func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Registry) IncIdentity(kind string) {
	if m == nil {
		return
	}
	m.identityResolutions.WithLabelValues(kind).Inc()
}

func (m *Registry) IncEscrow(result string) {
	if m == nil {
		return
	}
	m.escrowSubmissions.WithLabelValues(result).Inc()
}

func (m *Registry) IncPersistFailure() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

func (m *Registry) IncScreen(screen string) {
	if m == nil {
		return
	}
	m.screenTransitions.WithLabelValues(screen).Inc()
}

func (m *Registry) SetSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func (m *Registry) AddWalletLinks(delta int) {
	if m == nil {
		return
	}
	m.walletLinks.Add(float64(delta))
}
