package records

import "time"

// Role is the single role a wallet is registered under.
type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
)

func (r Role) Valid() bool {
	return r == RoleClient || r == RoleProvider
}

// Client is a registered buyer. ID equals the wallet address.
type Client struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	WalletAddress string    `json:"wallet_address"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Provider is a registered service provider. ID equals the wallet address.
// DaysOfWeek is the comma-joined form of Availability.
type Provider struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	WalletAddress string    `json:"wallet_address"`
	HourlyRate    float64   `json:"hourly_rate"`
	City          string    `json:"city"`
	State         string    `json:"state"`
	Country       string    `json:"country"`
	Experience    string    `json:"experience"`
	Availability  []string  `json:"availability"`
	DaysOfWeek    string    `json:"days_of_week"`
	IsActive      bool      `json:"is_active"`
	Rating        float64   `json:"rating"`
	CompletedJobs int       `json:"completed_jobs"`
	Verified      bool      `json:"verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ServiceCategory reports the provider's category. Records exposing a
// non-empty category are treated as provider records.
func (p *Provider) ServiceCategory() string { return p.Category }

type NewClient struct {
	Name          string
	Email         string
	Phone         string
	WalletAddress string
}

type NewProvider struct {
	Name          string
	Email         string
	Phone         string
	Description   string
	Category      string
	WalletAddress string
	HourlyRate    float64
	City          string
	State         string
	Country       string
	Experience    string
	Availability  []string
}

// ClientUpdate carries a partial update; nil fields are left untouched.
type ClientUpdate struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// ProviderUpdate carries a partial update; nil fields are left untouched and
// a nil Availability keeps the stored days.
type ProviderUpdate struct {
	Name         *string  `json:"name,omitempty"`
	Email        *string  `json:"email,omitempty"`
	Phone        *string  `json:"phone,omitempty"`
	Description  *string  `json:"description,omitempty"`
	Category     *string  `json:"category,omitempty"`
	HourlyRate   *float64 `json:"hourly_rate,omitempty"`
	City         *string  `json:"city,omitempty"`
	State        *string  `json:"state,omitempty"`
	Country      *string  `json:"country,omitempty"`
	Experience   *string  `json:"experience,omitempty"`
	IsActive     *bool    `json:"is_active,omitempty"`
	Availability []string `json:"availability,omitempty"`
}

// Contract is the off-chain record of an escrow submitted on-chain.
type Contract struct {
	ID                  string    `json:"id"`
	ClientID            string    `json:"client_id"`
	ProviderID          string    `json:"provider_id"`
	ProviderCategory    string    `json:"provider_category"`
	TotalAmount         float64   `json:"total_amount"`
	AmountNano          int64     `json:"amount_nano"`
	Status              Status    `json:"status"`
	ConfirmedByClient   bool      `json:"confirmed_by_client"`
	ConfirmedByProvider bool      `json:"confirmed_by_provider"`
	TransactionHash     string    `json:"transaction_hash"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// HasParticipant reports whether wallet is the client or the provider.
func (c *Contract) HasParticipant(wallet string) bool {
	return wallet != "" && (c.ClientID == wallet || c.ProviderID == wallet)
}

type NewContract struct {
	ID               string  `json:"id"`
	ClientID         string  `json:"client_id"`
	ProviderID       string  `json:"provider_id"`
	ProviderCategory string  `json:"provider_category"`
	TotalAmount      float64 `json:"total_amount"`
	AmountNano       int64   `json:"amount_nano"`
	TransactionHash  string  `json:"transaction_hash"`
}

type ContractUpdate struct {
	Status          *Status  `json:"status,omitempty"`
	TransactionHash *string  `json:"transaction_hash,omitempty"`
	TotalAmount     *float64 `json:"total_amount,omitempty"`
}
