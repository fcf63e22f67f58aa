// Package wallet is the boundary to the user's TON wallet. Signing never
// happens here: transaction requests are relayed to the browser holding the
// wallet connection and the signed result is relayed back.
package wallet

import (
	"context"
	"errors"
)

type Account struct {
	Address   string `json:"address"`
	Chain     string `json:"chain,omitempty"`
	PublicKey string `json:"public_key,omitempty"`
}

type Device struct {
	Platform   string `json:"platform,omitempty"`
	AppName    string `json:"app_name,omitempty"`
	AppVersion string `json:"app_version,omitempty"`
}

// State is the wallet connection as last reported by the browser.
type State struct {
	Connected bool    `json:"connected"`
	Account   Account `json:"account"`
	Device    Device  `json:"device"`
}

// Address is the connected account address, or "" when disconnected.
func (s State) Address() string {
	if !s.Connected {
		return ""
	}
	return s.Account.Address
}

type Message struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
	Payload string `json:"payload,omitempty"`
}

// TransactionRequest mirrors the TON Connect sendTransaction argument.
type TransactionRequest struct {
	ValidUntil int64     `json:"validUntil"`
	Messages   []Message `json:"messages"`
}

type TransactionResult struct {
	BOC string `json:"boc"`
}

// Connector is what the rest of the service needs from a wallet connection.
type Connector interface {
	State() State
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	SendTransaction(ctx context.Context, req TransactionRequest) (TransactionResult, error)
}

var (
	ErrNotConnected = errors.New("wallet not connected")
	ErrNoLink       = errors.New("no browser attached to the wallet relay")
	ErrRejected     = errors.New("transaction rejected in wallet")
	ErrExpired      = errors.New("transaction request expired")
)

// ConnectionError wraps a failed connect or disconnect.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string { return "wallet " + e.Op + ": " + e.Err.Error() }
func (e *ConnectionError) Unwrap() error { return e.Err }

// TransactionError is a failure reported by the wallet itself.
type TransactionError struct {
	Message  string
	Rejected bool
}

func (e *TransactionError) Error() string {
	if e.Message == "" {
		return "wallet transaction failed"
	}
	return "wallet transaction failed: " + e.Message
}

func (e *TransactionError) Unwrap() error {
	if e.Rejected {
		return ErrRejected
	}
	return nil
}
