package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.IncIdentity("client")
	m.IncEscrow("submitted")
	m.IncPersistFailure()
	m.IncScreen("login")
	m.SetSessions(3)
	m.AddWalletLinks(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	out := string(body)
	assert.Contains(t, out, `chatpay_identity_resolutions_total{type="client"} 1`)
	assert.Contains(t, out, `chatpay_escrow_submissions_total{result="submitted"} 1`)
	assert.Contains(t, out, "chatpay_contract_persist_failures_total 1")
	assert.Contains(t, out, "chatpay_active_sessions 3")
}

func TestNilRegistryIsNoop(t *testing.T) {
	var m *Registry
	assert.NotPanics(t, func() {
		m.IncIdentity("new")
		m.IncEscrow("failed")
		m.IncPersistFailure()
		m.IncScreen("search")
		m.SetSessions(1)
		m.AddWalletLinks(-1)
	})
}
