package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sudo-init-do/chatpay/internal/config"
	"github.com/sudo-init-do/chatpay/internal/records"
)

// Enqueuer is the part of *asynq.Client the service uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Client schedules background tasks.
type Client struct {
	enq            Enqueuer
	appURL         string
	alertTo        string
	persistRetries int
	now            func() time.Time
}

func NewClient(enq Enqueuer, mail config.MailConfig, escrow config.EscrowConfig) *Client {
	retries := escrow.PersistRetries
	if retries <= 0 {
		retries = 10
	}
	return &Client{
		enq:            enq,
		appURL:         strings.TrimRight(mail.AppURL, "/"),
		alertTo:        mail.AlertTo,
		persistRetries: retries,
		now:            time.Now,
	}
}

// RedisOpt builds the asynq connection options from config.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.Address(), Password: cfg.Password}
}

func (c *Client) enqueue(ctx context.Context, typ string, payload any, opts ...asynq.Option) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", typ, err)
	}
	_, err = c.enq.EnqueueContext(ctx, asynq.NewTask(typ, b), opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", typ, err)
	}
	return nil
}

// EnqueuePersistContract queues the reconciliation of a contract record that
// could not be written inline. Repeated calls for one contract collapse into
// a single task.
func (c *Client) EnqueuePersistContract(ctx context.Context, rec records.NewContract) error {
	return c.enqueue(ctx, TaskPersistContract, rec,
		asynq.Queue(QueueContracts),
		asynq.TaskID("persist:"+rec.ID),
		asynq.MaxRetry(c.persistRetries),
	)
}

func (c *Client) EnqueueContractCreated(ctx context.Context, contractID string) error {
	return c.enqueue(ctx, TaskContractCreated,
		ContractNoticePayload{ContractID: contractID, QueuedAt: c.now()},
		asynq.Queue(QueueEmails),
		asynq.TaskID("created:"+contractID),
	)
}

func (c *Client) EnqueueContractCompleted(ctx context.Context, contractID string) error {
	return c.enqueue(ctx, TaskContractCompleted,
		ContractNoticePayload{ContractID: contractID, QueuedAt: c.now()},
		asynq.Queue(QueueEmails),
		asynq.TaskID("completed:"+contractID),
	)
}

// EnqueueWelcome schedules the welcome mail sent after registration.
func (c *Client) EnqueueWelcome(ctx context.Context, role records.Role, wallet, name, email string) error {
	env := EmailEnvelope{
		To:      email,
		Subject: fmt.Sprintf("Welcome to ChatPay, %s!", name),
		Body:    welcomeBody(role, name, c.appURL),
	}
	return c.enqueue(ctx, TaskWelcomeEmail, WelcomeEmailPayload{
		WalletAddress: wallet,
		Role:          string(role),
		Name:          name,
		Envelope:      env,
		QueuedAt:      c.now(),
	}, asynq.Queue(QueueEmails))
}

// EnqueueAdminAlert mails the operator address. It is a no-op when no
// address is configured.
func (c *Client) EnqueueAdminAlert(ctx context.Context, severity, message string) error {
	if c.alertTo == "" {
		return nil
	}
	env := EmailEnvelope{To: c.alertTo, Subject: "[ChatPay] " + strings.ToUpper(severity), Body: message}
	return c.enqueue(ctx, TaskAdminAlert, AdminAlertPayload{
		Severity: severity,
		Message:  message,
		Envelope: env,
		QueuedAt: c.now(),
	}, asynq.Queue(QueueAlerts))
}

func welcomeBody(role records.Role, name, appURL string) string {
	what := "find a provider and pay through escrow from your TON wallet"
	if role == records.RoleProvider {
		what = "receive contracts from clients, paid through escrow to your TON wallet"
	}
	return fmt.Sprintf("Hi %s,\n\nyour ChatPay account is ready. You can now %s.\n\nOpen ChatPay: %s\n", name, what, appURL)
}
