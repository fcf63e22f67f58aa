// Package jobs runs the asynq background work: contract reconciliation and
// e-mail notices.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/sudo-init-do/chatpay/internal/config"
	"github.com/sudo-init-do/chatpay/internal/records"
)

type ContractRepo interface {
	Create(ctx context.Context, in records.NewContract) (*records.Contract, error)
	FindByID(ctx context.Context, id string) (*records.Contract, error)
}

type ClientFinder interface {
	FindByID(ctx context.Context, id string) (*records.Client, error)
}

type ProviderFinder interface {
	FindByID(ctx context.Context, id string) (*records.Provider, error)
}

// Alerter is notified when reconciliation gives up on a contract.
type Alerter interface {
	EnqueueAdminAlert(ctx context.Context, severity, message string) error
}

type Processor struct {
	contracts ContractRepo
	clients   ClientFinder
	providers ProviderFinder
	mailer    Mailer
	alerts    Alerter
	log       logrus.FieldLogger
}

func NewProcessor(contracts ContractRepo, clients ClientFinder, providers ProviderFinder, mailer Mailer, alerts Alerter, log logrus.FieldLogger) *Processor {
	return &Processor{
		contracts: contracts,
		clients:   clients,
		providers: providers,
		mailer:    mailer,
		alerts:    alerts,
		log:       log.WithField("component", "jobs"),
	}
}

func (p *Processor) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskPersistContract, p.HandlePersistContract)
	mux.HandleFunc(TaskContractCreated, p.HandleContractCreated)
	mux.HandleFunc(TaskContractCompleted, p.HandleContractCompleted)
	mux.HandleFunc(TaskWelcomeEmail, p.HandleWelcomeEmail)
	mux.HandleFunc(TaskAdminAlert, p.HandleAdminAlert)
	return mux
}

// NewServer configures the asynq server with the service queues.
func NewServer(redis config.RedisConfig, cfg config.WorkerConfig, p *Processor, log logrus.FieldLogger) *asynq.Server {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	return asynq.NewServer(RedisOpt(redis), asynq.Config{
		Concurrency:  concurrency,
		Queues:       queueWeights,
		Logger:       log.WithField("component", "asynq"),
		ErrorHandler: asynq.ErrorHandlerFunc(p.HandleError),
	})
}

func decode(t *asynq.Task, v any) error {
	if err := json.Unmarshal(t.Payload(), v); err != nil {
		return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return nil
}

// HandlePersistContract writes a contract record that failed to persist
// inline. The insert is idempotent, so a retry after a partial failure is safe.
func (p *Processor) HandlePersistContract(ctx context.Context, t *asynq.Task) error {
	var rec records.NewContract
	if err := decode(t, &rec); err != nil {
		return err
	}
	if rec.ID == "" {
		return fmt.Errorf("contract id missing: %w", asynq.SkipRetry)
	}
	c, err := p.contracts.Create(ctx, rec)
	if errors.Is(err, records.ErrDuplicate) {
		return fmt.Errorf("reconcile %s: %v: %w", rec.ID, err, asynq.SkipRetry)
	}
	if err != nil {
		p.log.WithError(err).WithField("contract_id", rec.ID).Warn("contract reconciliation failed")
		return err
	}
	p.log.WithField("contract_id", c.ID).Info("contract reconciled")
	return nil
}

func (p *Processor) loadContract(ctx context.Context, t *asynq.Task) (*records.Contract, error) {
	var n ContractNoticePayload
	if err := decode(t, &n); err != nil {
		return nil, err
	}
	c, err := p.contracts.FindByID(ctx, n.ContractID)
	if errors.Is(err, records.ErrNotFound) {
		return nil, fmt.Errorf("contract %s: %v: %w", n.ContractID, err, asynq.SkipRetry)
	}
	return c, err
}

func (p *Processor) HandleContractCreated(ctx context.Context, t *asynq.Task) error {
	c, err := p.loadContract(ctx, t)
	if err != nil {
		return err
	}
	prov, err := p.providers.FindByID(ctx, c.ProviderID)
	if err != nil {
		return fmt.Errorf("load provider %s: %w", c.ProviderID, err)
	}
	clientName := c.ClientID
	if cl, err := p.clients.FindByID(ctx, c.ClientID); err == nil {
		clientName = cl.Name
	}

	subject := "New escrow contract on ChatPay"
	body := fmt.Sprintf("Hi %s,\n\n%s opened an escrow contract with you for %.2f TON (%s).\n\nContract: %s\n",
		prov.Name, clientName, c.TotalAmount, c.ProviderCategory, c.ID)
	if err := p.mailer.Send(ctx, prov.Email, subject, body); err != nil {
		p.log.WithError(err).WithField("contract_id", c.ID).Error("contract notice send failed")
		return err
	}
	p.log.WithFields(logrus.Fields{"contract_id": c.ID, "to": prov.Email}).Info("contract notice sent")
	return nil
}

// HandleContractCompleted mails both parties. Failures for either party are
// reported together.
func (p *Processor) HandleContractCompleted(ctx context.Context, t *asynq.Task) error {
	c, err := p.loadContract(ctx, t)
	if err != nil {
		return err
	}
	subject := "Contract completed"
	body := fmt.Sprintf("Contract %s is completed. Both parties confirmed the work; the escrow of %.2f TON is released to the provider.\n",
		c.ID, c.TotalAmount)

	var result *multierror.Error
	if cl, err := p.clients.FindByID(ctx, c.ClientID); err != nil {
		result = multierror.Append(result, fmt.Errorf("load client: %w", err))
	} else if err := p.mailer.Send(ctx, cl.Email, subject, body); err != nil {
		result = multierror.Append(result, fmt.Errorf("mail client: %w", err))
	}
	if prov, err := p.providers.FindByID(ctx, c.ProviderID); err != nil {
		result = multierror.Append(result, fmt.Errorf("load provider: %w", err))
	} else if err := p.mailer.Send(ctx, prov.Email, subject, body); err != nil {
		result = multierror.Append(result, fmt.Errorf("mail provider: %w", err))
	}

	if err := result.ErrorOrNil(); err != nil {
		p.log.WithError(err).WithField("contract_id", c.ID).Error("completion notice failed")
		return err
	}
	p.log.WithField("contract_id", c.ID).Info("completion notices sent")
	return nil
}

func (p *Processor) HandleWelcomeEmail(ctx context.Context, t *asynq.Task) error {
	var w WelcomeEmailPayload
	if err := decode(t, &w); err != nil {
		return err
	}
	if err := p.mailer.Send(ctx, w.Envelope.To, w.Envelope.Subject, w.Envelope.Body); err != nil {
		p.log.WithError(err).WithField("wallet", w.WalletAddress).Error("welcome mail send failed")
		return err
	}
	p.log.WithFields(logrus.Fields{"wallet": w.WalletAddress, "role": w.Role}).Info("welcome mail sent")
	return nil
}

func (p *Processor) HandleAdminAlert(ctx context.Context, t *asynq.Task) error {
	var a AdminAlertPayload
	if err := decode(t, &a); err != nil {
		return err
	}
	return p.mailer.Send(ctx, a.Envelope.To, a.Envelope.Subject, a.Envelope.Body)
}

// HandleError raises an operator alert once a reconciliation task has used
// up its retries or can never succeed.
func (p *Processor) HandleError(ctx context.Context, t *asynq.Task, err error) {
	retried, okRetried := asynq.GetRetryCount(ctx)
	maxRetry, okMax := asynq.GetMaxRetry(ctx)
	log := p.log.WithError(err).WithFields(logrus.Fields{"task": t.Type(), "retried": retried, "max_retry": maxRetry})

	final := errors.Is(err, asynq.SkipRetry) || (okRetried && okMax && retried >= maxRetry)
	if t.Type() != TaskPersistContract || !final {
		log.Warn("task failed")
		return
	}
	log.Error("contract reconciliation gave up")
	if p.alerts == nil {
		return
	}
	var rec records.NewContract
	_ = json.Unmarshal(t.Payload(), &rec)
	msg := fmt.Sprintf("Contract %s (tx %s, client %s) could not be saved after %d attempts: %v", rec.ID, rec.TransactionHash, rec.ClientID, retried+1, err)
	if aerr := p.alerts.EnqueueAdminAlert(ctx, "critical", msg); aerr != nil {
		log.WithError(aerr).Error("could not queue admin alert")
	}
}
