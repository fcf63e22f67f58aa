// Package escrow turns a "contract this provider" action into a signed
// escrow transaction and a local contract record.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sudo-init-do/chatpay/internal/config"
	"github.com/sudo-init-do/chatpay/internal/metrics"
	"github.com/sudo-init-do/chatpay/internal/records"
	"github.com/sudo-init-do/chatpay/internal/ton"
	"github.com/sudo-init-do/chatpay/internal/wallet"
)

// NoTransactionHash stands in for the transaction id when the wallet
// returns no BOC.
const NoTransactionHash = "hash_not_available"

const contractIDPrefix = "escrow_"

type ContractStore interface {
	Create(ctx context.Context, in records.NewContract) (*records.Contract, error)
	Confirm(ctx context.Context, id string, role records.Role) (*records.Contract, bool, error)
	Cancel(ctx context.Context, id string) (*records.Contract, error)
}

// Scheduler queues background work. Implemented by jobs.Client.
type Scheduler interface {
	EnqueuePersistContract(ctx context.Context, c records.NewContract) error
	EnqueueContractCreated(ctx context.Context, contractID string) error
	EnqueueContractCompleted(ctx context.Context, contractID string) error
}

type Service struct {
	contracts ContractStore
	jobs      Scheduler
	log       logrus.FieldLogger
	metrics   *metrics.Registry

	factory  string
	feeNano  *big.Int
	validFor time.Duration
	now      func() time.Time
}

func NewService(cfg config.EscrowConfig, contracts ContractStore, jobs Scheduler, log logrus.FieldLogger, m *metrics.Registry) (*Service, error) {
	if !ton.ValidAddress(cfg.FactoryAddress) {
		return nil, fmt.Errorf("escrow factory %q: %w", cfg.FactoryAddress, ton.ErrInvalidAddress)
	}
	fee, err := cfg.FeeTON()
	if err != nil {
		return nil, err
	}
	feeNano, err := ton.ToNano(fee)
	if err != nil {
		return nil, fmt.Errorf("escrow fee: %w", err)
	}
	validFor := cfg.ValidFor
	if validFor <= 0 {
		validFor = 5 * time.Minute
	}
	return &Service{
		contracts: contracts,
		jobs:      jobs,
		log:       log.WithField("component", "escrow"),
		metrics:   m,
		factory:   cfg.FactoryAddress,
		feeNano:   feeNano,
		validFor:  validFor,
		now:       time.Now,
	}, nil
}

// Result describes a submitted escrow. Persisted is false when the local
// record could not be written and reconciliation was queued instead.
type Result struct {
	ContractID    string            `json:"contract_id"`
	TransactionID string            `json:"transaction_id"`
	AmountNano    string            `json:"amount_nano"`
	SentNano      string            `json:"sent_nano"`
	Persisted     bool              `json:"persisted"`
	Contract      *records.Contract `json:"contract,omitempty"`
}

type prepared struct {
	client, provider string
	amount           *big.Int
	payload          string
}

// validate runs the preconditions in order. Each failure is terminal and
// happens before any wallet interaction.
func (s *Service) validate(conn wallet.Connector, userAddress string, provider *records.Provider) (prepared, error) {
	if userAddress == "" || conn == nil || !conn.State().Connected {
		return prepared{}, ErrNotConnected
	}
	if provider == nil || provider.WalletAddress == "" {
		return prepared{}, ErrProviderAddressMissing
	}
	if !ton.ValidAddress(provider.WalletAddress) {
		return prepared{}, ErrInvalidProviderAddress
	}
	providerAddr, err := ton.ParseAddress(provider.WalletAddress)
	if err != nil {
		return prepared{}, fmt.Errorf("%w: %v", ErrInvalidProviderAddress, err)
	}
	if ton.SameAccount(provider.WalletAddress, userAddress) {
		return prepared{}, ErrSelfContracting
	}
	if provider.HourlyRate <= 0 {
		return prepared{}, ErrInvalidAmount
	}
	clientAddr, err := ton.ParseAddress(userAddress)
	if err != nil {
		return prepared{}, fmt.Errorf("%w: %v", ErrInvalidClientAddress, err)
	}

	amount, err := ton.ToNano(decimal.NewFromFloat(provider.HourlyRate))
	if err != nil {
		return prepared{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if !amount.IsInt64() {
		return prepared{}, fmt.Errorf("%w: %s nanoton does not fit a record", ErrInvalidAmount, amount)
	}
	payload, err := ton.CreateEscrow{Client: clientAddr, Provider: providerAddr, Amount: amount}.Payload()
	if err != nil {
		return prepared{}, fmt.Errorf("build escrow payload: %w", err)
	}
	return prepared{client: userAddress, provider: provider.WalletAddress, amount: amount, payload: payload}, nil
}

// Contract submits an escrow for one hour of the provider's rate and records
// it locally. A failed local write does not fail the call: the transaction
// has already been sent, so the record is queued for reconciliation.
func (s *Service) Contract(ctx context.Context, conn wallet.Connector, userAddress string, provider *records.Provider) (*Result, error) {
	p, err := s.validate(conn, userAddress, provider)
	if err != nil {
		s.metrics.IncEscrow("invalid")
		return nil, err
	}

	sent := new(big.Int).Add(p.amount, s.feeNano)
	req := wallet.TransactionRequest{
		ValidUntil: s.now().Add(s.validFor).Unix(),
		Messages: []wallet.Message{{
			Address: s.factory,
			Amount:  sent.String(),
			Payload: p.payload,
		}},
	}

	log := s.log.WithFields(logrus.Fields{"client": p.client, "provider": p.provider, "amount_nano": p.amount.String()})
	log.Info("submitting escrow transaction")

	res, err := conn.SendTransaction(ctx, req)
	if err != nil {
		serr := &SubmissionError{Err: err}
		if serr.Rejected() {
			s.metrics.IncEscrow("rejected")
			log.Info("escrow transaction rejected by user")
		} else {
			s.metrics.IncEscrow("failed")
			log.WithError(err).Error("escrow transaction failed")
		}
		return nil, serr
	}
	s.metrics.IncEscrow("submitted")

	txID := res.BOC
	if txID == "" {
		txID = NoTransactionHash
	}
	rec := records.NewContract{
		ID:               contractIDPrefix + txID,
		ClientID:         userAddress,
		ProviderID:       provider.ID,
		ProviderCategory: provider.Category,
		TotalAmount:      provider.HourlyRate,
		AmountNano:       p.amount.Int64(),
		TransactionHash:  txID,
	}
	out := &Result{
		ContractID:    rec.ID,
		TransactionID: txID,
		AmountNano:    p.amount.String(),
		SentNano:      sent.String(),
	}

	contract, err := s.contracts.Create(ctx, rec)
	if err != nil {
		perr := &PersistenceError{ContractID: rec.ID, Err: err}
		s.metrics.IncPersistFailure()
		if errors.Is(err, records.ErrDuplicate) {
			log.WithError(perr).Error("escrow submitted but its contract id is held by another escrow")
		} else {
			log.WithError(perr).Warn("escrow submitted but contract record not saved, queueing reconciliation")
		}
		if qerr := s.jobs.EnqueuePersistContract(context.WithoutCancel(ctx), rec); qerr != nil {
			log.WithError(qerr).Error("could not queue contract reconciliation")
		}
		return out, nil
	}

	out.Persisted = true
	out.Contract = contract
	if err := s.jobs.EnqueueContractCreated(ctx, contract.ID); err != nil {
		log.WithError(err).Warn("could not queue contract notice")
	}
	log.WithField("contract_id", contract.ID).Info("escrow contract recorded")
	return out, nil
}

// Confirm records one party's confirmation. The contract completes once
// both parties have confirmed, in either order.
func (s *Service) Confirm(ctx context.Context, contractID string, role records.Role) (*records.Contract, error) {
	c, completed, err := s.contracts.Confirm(ctx, contractID, role)
	if err != nil {
		return nil, err
	}
	if completed {
		s.log.WithField("contract_id", contractID).Info("contract completed")
		if err := s.jobs.EnqueueContractCompleted(ctx, contractID); err != nil {
			s.log.WithError(err).WithField("contract_id", contractID).Warn("could not queue completion notice")
		}
	}
	return c, nil
}

func (s *Service) Cancel(ctx context.Context, contractID string) (*records.Contract, error) {
	c, err := s.contracts.Cancel(ctx, contractID)
	if err != nil {
		if !errors.Is(err, records.ErrNotFound) && !errors.Is(err, records.ErrContractClosed) {
			s.log.WithError(err).WithField("contract_id", contractID).Error("cancel contract failed")
		}
		return nil, err
	}
	s.log.WithField("contract_id", contractID).Info("contract cancelled")
	return c, nil
}
