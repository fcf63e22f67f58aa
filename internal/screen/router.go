// Package screen keeps the per-browser session state machine that decides
// which screen the user sees.
package screen

import "github.com/sudo-init-do/chatpay/internal/identity"

type Screen string

const (
	Login                Screen = "login"
	UserTypeSelection    Screen = "user-type-selection"
	ClientRegistration   Screen = "client-registration"
	ProviderRegistration Screen = "provider-registration"
	ClientDashboard      Screen = "client-dashboard"
	ProviderDashboard    Screen = "provider-dashboard"
	Search               Screen = "search"
	ClientContracts      Screen = "client-contracts"
	ProviderContracts    Screen = "provider-contracts"
)

// Inputs are the values the routing rule depends on.
type Inputs struct {
	Connected bool
	Identity  identity.Type
	Loading   bool
	Failed    bool
}

// Next derives the screen from the wallet and identity state. It is
// idempotent: Next(Next(s, in), in) == Next(s, in).
func Next(current Screen, in Inputs) Screen {
	switch {
	case !in.Connected:
		return Login
	case in.Loading:
		return current
	case in.Failed:
		return Login
	}
	switch in.Identity {
	case identity.Client:
		return ClientDashboard
	case identity.Provider:
		return ProviderDashboard
	case identity.New:
		return UserTypeSelection
	}
	return Login
}

// Dashboard is the home screen for an identity, or Login when there is none.
func Dashboard(t identity.Type) Screen {
	switch t {
	case identity.Client:
		return ClientDashboard
	case identity.Provider:
		return ProviderDashboard
	}
	return Login
}

func (s Screen) Valid() bool {
	switch s {
	case Login, UserTypeSelection, ClientRegistration, ProviderRegistration,
		ClientDashboard, ProviderDashboard, Search, ClientContracts, ProviderContracts:
		return true
	}
	return false
}
