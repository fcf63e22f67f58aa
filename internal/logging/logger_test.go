package logging

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/chatpay/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, logrus.WarnLevel, parseLevel("warning"))
	assert.Equal(t, logrus.ErrorLevel, parseLevel(" error "))
	assert.Equal(t, logrus.InfoLevel, parseLevel("nonsense"))
}

func TestNewFormatter(t *testing.T) {
	text := New(config.LogConfig{Level: "debug", Format: "text"})
	_, ok := text.Formatter.(*logrus.TextFormatter)
	assert.True(t, ok)
	assert.Equal(t, logrus.DebugLevel, text.GetLevel())

	js := New(config.LogConfig{Format: "json"})
	_, ok = js.Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)
}

func TestRequestLogger(t *testing.T) {
	log, hook := test.NewNullLogger()

	e := echo.New()
	e.Use(RequestLogger(log))
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, "request", entry.Message)
	assert.Equal(t, "/ping", entry.Data["uri"])
	assert.Equal(t, http.StatusOK, entry.Data["status"])
}
