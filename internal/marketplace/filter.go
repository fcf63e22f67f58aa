package marketplace

import (
	"strings"

	"github.com/sudo-init-do/chatpay/internal/records"
)

// Filter keeps the providers that pass every rule in f, in input order.
func Filter(providers []records.Provider, f SearchFilters) []records.Provider {
	out := make([]records.Provider, 0, len(providers))
	for _, p := range providers {
		if matches(&p, f) {
			out = append(out, p)
		}
	}
	return out
}

func matches(p *records.Provider, f SearchFilters) bool {
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !containsFold(p.Name, q) && !containsFold(p.Description, q) && !containsFold(p.Category, q) {
			return false
		}
	}
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.Location != "" && !containsFold(p.City, strings.ToLower(f.Location)) {
		return false
	}
	if p.HourlyRate < f.MinPrice {
		return false
	}
	if f.MaxPrice > 0 && p.HourlyRate > f.MaxPrice {
		return false
	}
	if p.Rating < f.MinRating {
		return false
	}
	if len(f.Availability) > 0 && !availableOn(p, f.Availability) {
		return false
	}
	return true
}

func containsFold(s, lowerSub string) bool {
	return strings.Contains(strings.ToLower(s), lowerSub)
}

func availableOn(p *records.Provider, wanted []string) bool {
	days := p.Availability
	if len(days) == 0 {
		days = records.SplitDays(p.DaysOfWeek)
	}
	for _, w := range wanted {
		for _, d := range days {
			if strings.EqualFold(strings.TrimSpace(d), w) {
				return true
			}
		}
	}
	return false
}
