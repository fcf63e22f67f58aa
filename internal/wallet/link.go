package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Browser to server event types.
const (
	EventConnected         = "connected"
	EventDisconnected      = "disconnected"
	EventTransactionSigned = "transaction_signed"
	EventTransactionFailed = "transaction_failed"
)

// Server to browser push types.
const (
	PushConnectRequest    = "connect_request"
	PushDisconnectRequest = "disconnect_request"
	PushSendTransaction   = "send_transaction"
	PushScreen            = "screen"
	PushError             = "error"
)

const writeWait = 10 * time.Second

// Event is a message from the browser-side wallet glue.
type Event struct {
	Type     string   `json:"type"`
	ID       string   `json:"id,omitempty"`
	Account  *Account `json:"account,omitempty"`
	Device   *Device  `json:"device,omitempty"`
	BOC      string   `json:"boc,omitempty"`
	Error    string   `json:"error,omitempty"`
	Rejected bool     `json:"rejected,omitempty"`
}

type push struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Data any    `json:"data,omitempty"`
}

// Link is one session's wallet connection. It implements Connector.
type Link struct {
	sessionID string
	log       logrus.FieldLogger

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	pending  map[string]chan Event
	onChange func(State)

	writeMu sync.Mutex
}

func newLink(sessionID string, log logrus.FieldLogger) *Link {
	return &Link{
		sessionID: sessionID,
		log:       log.WithField("session_id", sessionID),
		pending:   make(map[string]chan Event),
	}
}

func (l *Link) SessionID() string { return l.sessionID }

func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// OnChange registers the callback fired after every wallet state change.
func (l *Link) OnChange(fn func(State)) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

// Attached reports whether a browser socket is currently bound.
func (l *Link) Attached() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn != nil
}

func (l *Link) attach(conn *websocket.Conn) {
	l.mu.Lock()
	old := l.conn
	l.conn = conn
	l.mu.Unlock()
	if old != nil && old != conn {
		_ = old.Close()
	}
}

func (l *Link) detach(conn *websocket.Conn) {
	l.mu.Lock()
	if l.conn == conn {
		l.conn = nil
	}
	l.mu.Unlock()
}

func (l *Link) send(msg push) error {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	if conn == nil {
		return ErrNoLink
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

// Notify pushes an arbitrary update (such as the current screen) to the browser.
func (l *Link) Notify(kind string, data any) error {
	return l.send(push{Type: kind, Data: data})
}

// Connect asks the browser to open its wallet selection.
func (l *Link) Connect(context.Context) error {
	if err := l.send(push{Type: PushConnectRequest}); err != nil {
		return &ConnectionError{Op: "connect", Err: err}
	}
	return nil
}

// Disconnect drops the connection locally and asks the browser to do the
// same. A missing browser socket is not an error.
func (l *Link) Disconnect(context.Context) error {
	l.setState(State{})
	if err := l.send(push{Type: PushDisconnectRequest}); err != nil && !errors.Is(err, ErrNoLink) {
		return &ConnectionError{Op: "disconnect", Err: err}
	}
	return nil
}

// SendTransaction relays req to the browser and waits for the signed result,
// ctx cancellation or req.ValidUntil, whichever comes first.
func (l *Link) SendTransaction(ctx context.Context, req TransactionRequest) (TransactionResult, error) {
	if !l.State().Connected {
		return TransactionResult{}, ErrNotConnected
	}

	id := uuid.NewString()
	reply := make(chan Event, 1)

	l.mu.Lock()
	if l.conn == nil {
		l.mu.Unlock()
		return TransactionResult{}, ErrNoLink
	}
	l.pending[id] = reply
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.pending, id)
		l.mu.Unlock()
	}()

	if err := l.send(push{Type: PushSendTransaction, ID: id, Data: req}); err != nil {
		return TransactionResult{}, fmt.Errorf("relay transaction: %w", err)
	}

	var expiry <-chan time.Time
	if req.ValidUntil > 0 {
		timer := time.NewTimer(time.Until(time.Unix(req.ValidUntil, 0)))
		defer timer.Stop()
		expiry = timer.C
	}

	select {
	case ev := <-reply:
		switch ev.Type {
		case EventTransactionSigned:
			return TransactionResult{BOC: ev.BOC}, nil
		case EventDisconnected:
			return TransactionResult{}, ErrNotConnected
		default:
			return TransactionResult{}, &TransactionError{Message: ev.Error, Rejected: ev.Rejected}
		}
	case <-expiry:
		return TransactionResult{}, ErrExpired
	case <-ctx.Done():
		return TransactionResult{}, ctx.Err()
	}
}

// HandleEvent applies a browser event to the link.
func (l *Link) HandleEvent(ev Event) error {
	switch ev.Type {
	case EventConnected:
		if ev.Account == nil || ev.Account.Address == "" {
			return errors.New("connected event without account address")
		}
		st := State{Connected: true, Account: *ev.Account}
		if ev.Device != nil {
			st.Device = *ev.Device
		}
		l.setState(st)
		return nil

	case EventDisconnected:
		l.setState(State{})
		l.failPending()
		return nil

	case EventTransactionSigned, EventTransactionFailed:
		if ev.ID == "" {
			return fmt.Errorf("%s event without request id", ev.Type)
		}
		l.mu.Lock()
		reply, ok := l.pending[ev.ID]
		l.mu.Unlock()
		if !ok {
			return fmt.Errorf("no pending transaction %q", ev.ID)
		}
		select {
		case reply <- ev:
		default:
		}
		return nil
	}
	return fmt.Errorf("unknown event type %q", ev.Type)
}

func (l *Link) failPending() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, reply := range l.pending {
		select {
		case reply <- Event{Type: EventDisconnected}:
		default:
		}
	}
}

func (l *Link) setState(st State) {
	l.mu.Lock()
	changed := l.state != st
	l.state = st
	fn := l.onChange
	l.mu.Unlock()

	if changed {
		l.log.WithFields(logrus.Fields{"connected": st.Connected, "address": st.Account.Address}).Info("wallet state changed")
		if fn != nil {
			fn(st)
		}
	}
}
