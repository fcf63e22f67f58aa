package user

import (
	"strings"

	"github.com/sudo-init-do/chatpay/internal/records"
)

type ClientForm struct {
	Name  string `json:"name" validate:"required,min=2"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required,min=10"`
}

type ProviderForm struct {
	Name         string   `json:"name" validate:"required,min=2"`
	Email        string   `json:"email" validate:"required,email"`
	Phone        string   `json:"phone" validate:"required,min=10"`
	Category     string   `json:"category" validate:"required,category"`
	Description  string   `json:"description" validate:"required,max=500"`
	HourlyRate   float64  `json:"hourly_rate" validate:"required,gt=0"`
	City         string   `json:"city" validate:"required"`
	State        string   `json:"state" validate:"required,len=2"`
	Country      string   `json:"country" validate:"required"`
	Experience   string   `json:"experience" validate:"required,experience"`
	Availability []string `json:"availability" validate:"required,min=1,dive,weekday"`
}

func (f *ClientForm) normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Phone = strings.TrimSpace(f.Phone)
}

func (f *ProviderForm) normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Phone = strings.TrimSpace(f.Phone)
	f.City = strings.TrimSpace(f.City)
	f.State = strings.ToUpper(strings.TrimSpace(f.State))
	f.Country = strings.TrimSpace(f.Country)
}

func (f ClientForm) record(wallet string) records.NewClient {
	return records.NewClient{Name: f.Name, Email: f.Email, Phone: f.Phone, WalletAddress: wallet}
}

func (f ProviderForm) record(wallet string) records.NewProvider {
	return records.NewProvider{
		Name:          f.Name,
		Email:         f.Email,
		Phone:         f.Phone,
		Description:   f.Description,
		Category:      f.Category,
		WalletAddress: wallet,
		HourlyRate:    f.HourlyRate,
		City:          f.City,
		State:         f.State,
		Country:       f.Country,
		Experience:    f.Experience,
		Availability:  f.Availability,
	}
}

// ClientPatch is a partial client profile update.
type ClientPatch struct {
	Name  *string `json:"name" validate:"omitempty,min=2"`
	Email *string `json:"email" validate:"omitempty,email"`
	Phone *string `json:"phone" validate:"omitempty,min=10"`
}

func (p ClientPatch) update() records.ClientUpdate {
	return records.ClientUpdate{Name: p.Name, Email: p.Email, Phone: p.Phone}
}

// ProviderPatch is a partial provider profile update.
type ProviderPatch struct {
	Name         *string  `json:"name" validate:"omitempty,min=2"`
	Email        *string  `json:"email" validate:"omitempty,email"`
	Phone        *string  `json:"phone" validate:"omitempty,min=10"`
	Category     *string  `json:"category" validate:"omitempty,category"`
	Description  *string  `json:"description" validate:"omitempty,max=500"`
	HourlyRate   *float64 `json:"hourly_rate" validate:"omitempty,gt=0"`
	City         *string  `json:"city" validate:"omitempty,min=1"`
	State        *string  `json:"state" validate:"omitempty,len=2"`
	Country      *string  `json:"country" validate:"omitempty,min=1"`
	Experience   *string  `json:"experience" validate:"omitempty,experience"`
	IsActive     *bool    `json:"is_active"`
	Availability []string `json:"availability" validate:"omitempty,min=1,dive,weekday"`
}

func (p ProviderPatch) update() records.ProviderUpdate {
	if p.State != nil {
		st := strings.ToUpper(*p.State)
		p.State = &st
	}
	return records.ProviderUpdate{
		Name:         p.Name,
		Email:        p.Email,
		Phone:        p.Phone,
		Description:  p.Description,
		Category:     p.Category,
		HourlyRate:   p.HourlyRate,
		City:         p.City,
		State:        p.State,
		Country:      p.Country,
		Experience:   p.Experience,
		IsActive:     p.IsActive,
		Availability: p.Availability,
	}
}
