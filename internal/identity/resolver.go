// Package identity classifies a connected wallet as a client, a provider or
// a newcomer by probing both record stores.
package identity

import (
	"context"
	"errors"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/sudo-init-do/chatpay/internal/metrics"
	"github.com/sudo-init-do/chatpay/internal/records"
)

type Type string

const (
	Client   Type = "client"
	Provider Type = "provider"
	New      Type = "new"
	Unknown  Type = "unknown"
)

// Result is the outcome of one resolution. At most one of Client and
// Provider is set.
type Result struct {
	Type     Type              `json:"type"`
	Client   *records.Client   `json:"client,omitempty"`
	Provider *records.Provider `json:"provider,omitempty"`
}

// User returns whichever record the result carries, or nil.
func (r Result) User() any {
	switch {
	case r.Client != nil:
		return r.Client
	case r.Provider != nil:
		return r.Provider
	}
	return nil
}

var ErrEmptyAddress = errors.New("wallet address is required")

// ResolutionError means neither store could be queried. Errors holds both
// lookup failures.
type ResolutionError struct {
	Address string
	Errors  *multierror.Error
}

func (e *ResolutionError) Error() string {
	return "resolve identity for " + e.Address + ": " + e.Errors.Error()
}

func (e *ResolutionError) Unwrap() error { return e.Errors.ErrorOrNil() }

type ClientLookup interface {
	FindByWalletAddress(ctx context.Context, addr string) (*records.Client, error)
}

type ProviderLookup interface {
	FindByWalletAddress(ctx context.Context, addr string) (*records.Provider, error)
}

type Resolver struct {
	clients   ClientLookup
	providers ProviderLookup
	log       logrus.FieldLogger
	metrics   *metrics.Registry
}

func NewResolver(clients ClientLookup, providers ProviderLookup, log logrus.FieldLogger, m *metrics.Registry) *Resolver {
	return &Resolver{
		clients:   clients,
		providers: providers,
		log:       log.WithField("component", "identity"),
		metrics:   m,
	}
}

// Resolve looks the address up in both stores at once and waits for both
// lookups before classifying. Client records win over provider records.
func (r *Resolver) Resolve(ctx context.Context, addr string) (Result, error) {
	if addr == "" {
		return Result{Type: Unknown}, ErrEmptyAddress
	}

	var (
		wg                 sync.WaitGroup
		client             *records.Client
		provider           *records.Provider
		clientErr, provErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		client, clientErr = r.clients.FindByWalletAddress(ctx, addr)
	}()
	go func() {
		defer wg.Done()
		provider, provErr = r.providers.FindByWalletAddress(ctx, addr)
	}()
	wg.Wait()

	clientErr = absentIsNil(clientErr)
	provErr = absentIsNil(provErr)

	res, err := r.classify(addr, client, provider, clientErr, provErr)
	r.metrics.IncIdentity(string(res.Type))
	return res, err
}

func absentIsNil(err error) error {
	if errors.Is(err, records.ErrNotFound) {
		return nil
	}
	return err
}

func (r *Resolver) classify(addr string, client *records.Client, provider *records.Provider, clientErr, provErr error) (Result, error) {
	log := r.log.WithField("wallet", addr)

	if clientErr != nil && provErr != nil {
		merr := multierror.Append(nil,
			wrapLookup("client", clientErr),
			wrapLookup("provider", provErr),
		)
		log.WithError(merr).Error("identity lookups failed")
		return Result{Type: Unknown}, &ResolutionError{Address: addr, Errors: merr}
	}

	switch {
	case clientErr == nil && client != nil:
		if provider != nil {
			log.Warn("wallet has both client and provider records, using client")
		}
		return Result{Type: Client, Client: client}, nil
	case provErr == nil && provider != nil:
		if clientErr != nil {
			log.WithError(clientErr).Warn("client lookup failed, provider record found")
		}
		return Result{Type: Provider, Provider: provider}, nil
	}

	if clientErr != nil {
		log.WithError(clientErr).Warn("client lookup failed, treating wallet as new")
	}
	if provErr != nil {
		log.WithError(provErr).Warn("provider lookup failed, treating wallet as new")
	}
	return Result{Type: New}, nil
}

type lookupError struct {
	store string
	err   error
}

func (e *lookupError) Error() string { return e.store + " lookup: " + e.err.Error() }
func (e *lookupError) Unwrap() error { return e.err }

func wrapLookup(store string, err error) error {
	return &lookupError{store: store, err: err}
}
