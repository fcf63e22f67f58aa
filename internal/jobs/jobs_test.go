package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/chatpay/internal/config"
	"github.com/sudo-init-do/chatpay/internal/records"
)

type queued struct {
	task *asynq.Task
	opts []asynq.Option
}

type fakeEnqueuer struct {
	tasks []queued
	seen  map[string]bool
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	for _, o := range opts {
		if o.Type() == asynq.TaskIDOpt {
			id := o.Value().(string)
			if f.seen[id] {
				return nil, asynq.ErrTaskIDConflict
			}
			f.seen[id] = true
		}
	}
	f.tasks = append(f.tasks, queued{task: task, opts: opts})
	return &asynq.TaskInfo{}, nil
}

func optValue(opts []asynq.Option, typ asynq.OptionType) (any, bool) {
	for _, o := range opts {
		if o.Type() == typ {
			return o.Value(), true
		}
	}
	return nil, false
}

func newClient(enq Enqueuer) *Client {
	return NewClient(enq,
		config.MailConfig{AppURL: "https://chatpay.example/", AlertTo: "ops@chatpay.example"},
		config.EscrowConfig{PersistRetries: 7},
	)
}

func TestEnqueuePersistContractDeduplicates(t *testing.T) {
	enq := &fakeEnqueuer{}
	c := newClient(enq)
	rec := records.NewContract{ID: "escrow_abc123", TransactionHash: "abc123", TotalAmount: 2.5}

	require.NoError(t, c.EnqueuePersistContract(context.Background(), rec))
	require.NoError(t, c.EnqueuePersistContract(context.Background(), rec))
	require.Len(t, enq.tasks, 1)

	q := enq.tasks[0]
	assert.Equal(t, TaskPersistContract, q.task.Type())
	id, _ := optValue(q.opts, asynq.TaskIDOpt)
	assert.Equal(t, "persist:escrow_abc123", id)
	queue, _ := optValue(q.opts, asynq.QueueOpt)
	assert.Equal(t, QueueContracts, queue)
	retries, _ := optValue(q.opts, asynq.MaxRetryOpt)
	assert.Equal(t, 7, retries)

	var got records.NewContract
	require.NoError(t, json.Unmarshal(q.task.Payload(), &got))
	assert.Equal(t, rec, got)
}

func TestEnqueueWelcome(t *testing.T) {
	enq := &fakeEnqueuer{}
	c := newClient(enq)
	require.NoError(t, c.EnqueueWelcome(context.Background(), records.RoleProvider, "EQwallet", "Ana", "ana@example.com"))

	require.Len(t, enq.tasks, 1)
	var p WelcomeEmailPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].task.Payload(), &p))
	assert.Equal(t, "ana@example.com", p.Envelope.To)
	assert.Contains(t, p.Envelope.Subject, "Ana")
	assert.Contains(t, p.Envelope.Body, "https://chatpay.example\n")
	assert.Contains(t, p.Envelope.Body, "receive contracts")
}

func TestEnqueueAdminAlertNeedsAddress(t *testing.T) {
	enq := &fakeEnqueuer{}
	c := NewClient(enq, config.MailConfig{}, config.EscrowConfig{})
	require.NoError(t, c.EnqueueAdminAlert(context.Background(), "critical", "x"))
	assert.Empty(t, enq.tasks)

	c = newClient(enq)
	require.NoError(t, c.EnqueueAdminAlert(context.Background(), "critical", "x"))
	require.Len(t, enq.tasks, 1)
	queue, _ := optValue(enq.tasks[0].opts, asynq.QueueOpt)
	assert.Equal(t, QueueAlerts, queue)
}

type sentMail struct{ to, subject, body string }

type recordingMailer struct {
	mu     sync.Mutex
	sent   []sentMail
	failTo string
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	if to == m.failTo {
		return errors.New("mailbox unavailable")
	}
	m.mu.Lock()
	m.sent = append(m.sent, sentMail{to, subject, body})
	m.mu.Unlock()
	return nil
}

type memContracts struct {
	rows      map[string]*records.Contract
	createErr error
}

func (m *memContracts) Create(_ context.Context, in records.NewContract) (*records.Contract, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	if c, ok := m.rows[in.ID]; ok {
		if c.ClientID != in.ClientID || c.ProviderID != in.ProviderID {
			return nil, records.ErrDuplicate
		}
		return c, nil
	}
	c := &records.Contract{ID: in.ID, ClientID: in.ClientID, ProviderID: in.ProviderID, TotalAmount: in.TotalAmount, Status: records.StatusCreated}
	m.rows[in.ID] = c
	return c, nil
}

func (m *memContracts) FindByID(_ context.Context, id string) (*records.Contract, error) {
	if c, ok := m.rows[id]; ok {
		return c, nil
	}
	return nil, records.ErrNotFound
}

type memClients map[string]*records.Client

func (m memClients) FindByID(_ context.Context, id string) (*records.Client, error) {
	if c, ok := m[id]; ok {
		return c, nil
	}
	return nil, records.ErrNotFound
}

type memProviders map[string]*records.Provider

func (m memProviders) FindByID(_ context.Context, id string) (*records.Provider, error) {
	if p, ok := m[id]; ok {
		return p, nil
	}
	return nil, records.ErrNotFound
}

func fixture() (*Processor, *memContracts, *recordingMailer, *fakeEnqueuer) {
	log, _ := test.NewNullLogger()
	contracts := &memContracts{rows: map[string]*records.Contract{
		"escrow_1": {ID: "escrow_1", ClientID: "cw", ProviderID: "pw", TotalAmount: 3, ProviderCategory: "Plumbing"},
	}}
	clients := memClients{"cw": {ID: "cw", Name: "Carla", Email: "carla@example.com"}}
	providers := memProviders{"pw": {ID: "pw", Name: "Paulo", Email: "paulo@example.com"}}
	mailer := &recordingMailer{}
	enq := &fakeEnqueuer{}
	return NewProcessor(contracts, clients, providers, mailer, newClient(enq), log), contracts, mailer, enq
}

func task(t *testing.T, typ string, payload any) *asynq.Task {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(typ, b)
}

func TestHandlePersistContract(t *testing.T) {
	p, contracts, _, _ := fixture()
	rec := records.NewContract{ID: "escrow_abc123", ClientID: "cw", ProviderID: "pw", TotalAmount: 2.5}

	require.NoError(t, p.HandlePersistContract(context.Background(), task(t, TaskPersistContract, rec)))
	require.NoError(t, p.HandlePersistContract(context.Background(), task(t, TaskPersistContract, rec)))
	assert.Contains(t, contracts.rows, "escrow_abc123")

	contracts.createErr = errors.New("db down")
	err := p.HandlePersistContract(context.Background(), task(t, TaskPersistContract, records.NewContract{ID: "escrow_x"}))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	err = p.HandlePersistContract(context.Background(), asynq.NewTask(TaskPersistContract, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleContractCreatedMailsProvider(t *testing.T) {
	p, _, mailer, _ := fixture()
	require.NoError(t, p.HandleContractCreated(context.Background(), task(t, TaskContractCreated, ContractNoticePayload{ContractID: "escrow_1"})))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "paulo@example.com", mailer.sent[0].to)
	assert.Contains(t, mailer.sent[0].body, "Carla")

	err := p.HandleContractCreated(context.Background(), task(t, TaskContractCreated, ContractNoticePayload{ContractID: "missing"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleContractCompletedMailsBoth(t *testing.T) {
	p, _, mailer, _ := fixture()
	require.NoError(t, p.HandleContractCompleted(context.Background(), task(t, TaskContractCompleted, ContractNoticePayload{ContractID: "escrow_1"})))
	require.Len(t, mailer.sent, 2)

	mailer.sent = nil
	mailer.failTo = "carla@example.com"
	err := p.HandleContractCompleted(context.Background(), task(t, TaskContractCompleted, ContractNoticePayload{ContractID: "escrow_1"}))
	assert.Error(t, err)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "paulo@example.com", mailer.sent[0].to)
}

func TestHandleWelcomeEmail(t *testing.T) {
	p, _, mailer, _ := fixture()
	payload := WelcomeEmailPayload{Envelope: EmailEnvelope{To: "a@b.c", Subject: "hi", Body: "welcome"}}
	require.NoError(t, p.HandleWelcomeEmail(context.Background(), task(t, TaskWelcomeEmail, payload)))
	assert.Equal(t, []sentMail{{"a@b.c", "hi", "welcome"}}, mailer.sent)
}

func TestPersistCollisionAlertsWithoutRetry(t *testing.T) {
	p, _, _, enq := fixture()
	tk := task(t, TaskPersistContract, records.NewContract{ID: "escrow_1", ClientID: "someone-else", ProviderID: "pw", TransactionHash: "1"})

	err := p.HandlePersistContract(context.Background(), tk)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.ErrorIs(t, err, records.ErrDuplicate)

	p.HandleError(context.Background(), tk, err)
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TaskAdminAlert, enq.tasks[0].task.Type())
	assert.Contains(t, string(enq.tasks[0].task.Payload()), "someone-else")
}

func TestHandleErrorIgnoresNonExhausted(t *testing.T) {
	p, _, _, enq := fixture()
	p.HandleError(context.Background(), task(t, TaskPersistContract, records.NewContract{ID: "escrow_1"}), errors.New("boom"))
	assert.Empty(t, enq.tasks)
}

func TestMuxRoutesAllTasks(t *testing.T) {
	p, _, mailer, _ := fixture()
	mux := p.Mux()
	err := mux.ProcessTask(context.Background(), task(t, TaskAdminAlert, AdminAlertPayload{Envelope: EmailEnvelope{To: "ops@x", Subject: "s", Body: "b"}}))
	require.NoError(t, err)
	assert.Len(t, mailer.sent, 1)
}

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("from@x", "to@y", "reply@z", "Hello", "plain body")
	assert.Contains(t, msg, "Reply-To: reply@z\r\n")
	assert.Contains(t, msg, `Content-Type: text/plain; charset="utf-8"`)
	assert.True(t, strings.HasSuffix(msg, "\r\nplain body\r\n"))

	html := buildMessage("f", "t", "", "s", "<html><body>x</body></html>")
	assert.Contains(t, html, "text/html")
	assert.NotContains(t, html, "Reply-To")
}

func TestNewMailerSelection(t *testing.T) {
	log, _ := test.NewNullLogger()
	assert.IsType(t, &PlunkMailer{}, NewMailer(config.MailConfig{PlunkAPIKey: "k"}, log))
	assert.IsType(t, &PlunkMailer{}, NewMailer(config.MailConfig{Provider: "plunk"}, log))
	assert.IsType(t, &SMTPMailer{}, NewMailer(config.MailConfig{Host: "h", Port: "465", Username: "u", Password: "p", From: "f"}, log))
	assert.IsType(t, &LogMailer{}, NewMailer(config.MailConfig{Host: "h"}, log))
}

func TestPlunkMailer(t *testing.T) {
	var got plunkSendBody
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		if got.To == "bad@x" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":"invalid recipient"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewPlunkMailer(config.MailConfig{PlunkAPIKey: "secret", PlunkURL: srv.URL, ReplyTo: "help@x"}, srv.Client())
	require.NoError(t, m.Send(context.Background(), "ok@x", "subj", "body"))
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "help@x", got.Reply)

	err := m.Send(context.Background(), "bad@x", "subj", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid recipient")

	assert.Error(t, NewPlunkMailer(config.MailConfig{}, nil).Send(context.Background(), "a", "b", "c"))
}
