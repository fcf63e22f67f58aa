package user

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/chatpay/internal/records"
)

// PublicProfile is the part of a provider shown to other users. Contact
// details stay private until a contract exists.
type PublicProfile struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	HourlyRate    float64   `json:"hourly_rate"`
	City          string    `json:"city"`
	State         string    `json:"state"`
	Country       string    `json:"country"`
	Experience    string    `json:"experience"`
	Availability  []string  `json:"availability"`
	IsActive      bool      `json:"is_active"`
	Rating        float64   `json:"rating"`
	CompletedJobs int       `json:"completed_jobs"`
	Verified      bool      `json:"verified"`
	CreatedAt     time.Time `json:"created_at"`
}

func NewPublicProfile(p *records.Provider) PublicProfile {
	return PublicProfile{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Category:      p.Category,
		HourlyRate:    p.HourlyRate,
		City:          p.City,
		State:         p.State,
		Country:       p.Country,
		Experience:    p.Experience,
		Availability:  p.Availability,
		IsActive:      p.IsActive,
		Rating:        p.Rating,
		CompletedJobs: p.CompletedJobs,
		Verified:      p.Verified,
		CreatedAt:     p.CreatedAt,
	}
}

// GET /providers/:id
func (h *Handler) PublicProvider(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing provider id"})
	}
	p, err := h.providers.FindByID(c.Request().Context(), id)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusOK, NewPublicProfile(p))
}
