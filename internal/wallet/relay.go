package wallet

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/sudo-init-do/chatpay/internal/metrics"
)

const maxEventSize = 64 << 10

// Relay owns one Link per browser session.
type Relay struct {
	log     logrus.FieldLogger
	metrics *metrics.Registry

	mu    sync.RWMutex
	links map[string]*Link

	upgrader websocket.Upgrader
}

func NewRelay(log logrus.FieldLogger, m *metrics.Registry) *Relay {
	return &Relay{
		log:     log.WithField("component", "wallet_relay"),
		metrics: m,
		links:   make(map[string]*Link),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Link returns the session's link, creating it on first use.
func (r *Relay) Link(sessionID string) *Link {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.links[sessionID]; ok {
		return l
	}
	l := newLink(sessionID, r.log)
	r.links[sessionID] = l
	return l
}

// Drop forgets the session's link and closes its socket.
func (r *Relay) Drop(sessionID string) {
	r.mu.Lock()
	l, ok := r.links[sessionID]
	delete(r.links, sessionID)
	r.mu.Unlock()
	if !ok {
		return
	}
	l.mu.Lock()
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// Serve upgrades the request to the session's relay socket and pumps
// browser events into the link until the socket closes.
func (r *Relay) Serve(c echo.Context) error {
	sessionID, ok := c.Get("session_id").(string)
	if !ok || sessionID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ws, err := r.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	ws.SetReadLimit(maxEventSize)

	link := r.Link(sessionID)
	link.attach(ws)
	r.metrics.AddWalletLinks(1)
	log := r.log.WithField("session_id", sessionID)
	log.Debug("wallet relay attached")

	for {
		var ev Event
		if err := ws.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("wallet relay read failed")
			}
			break
		}
		if err := link.HandleEvent(ev); err != nil {
			log.WithError(err).WithField("event", ev.Type).Warn("rejected wallet event")
			_ = link.Notify(PushError, echo.Map{"error": err.Error()})
		}
	}

	link.detach(ws)
	_ = ws.Close()
	r.metrics.AddWalletLinks(-1)
	log.Debug("wallet relay detached")
	return nil
}

// Events accepts a browser event over plain HTTP, for clients that cannot
// keep a socket open.
func (r *Relay) Events(c echo.Context) error {
	sessionID, ok := c.Get("session_id").(string)
	if !ok || sessionID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var ev Event
	if err := c.Bind(&ev); err != nil || ev.Type == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event"})
	}
	if err := r.Link(sessionID).HandleEvent(ev); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "accepted"})
}
