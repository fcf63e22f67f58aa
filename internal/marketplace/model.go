package marketplace

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// SearchFilters narrows the provider listing. Zero values disable a rule,
// except MinPrice and MinRating which are plain lower bounds.
type SearchFilters struct {
	Query        string   `json:"query"`
	Category     string   `json:"category"`
	Location     string   `json:"location"`
	MinPrice     float64  `json:"min_price"`
	MaxPrice     float64  `json:"max_price"`
	MinRating    float64  `json:"min_rating"`
	Availability []string `json:"availability"`
}

// ParseFilters reads search filters from query parameters. Availability may
// be repeated or comma-separated.
func ParseFilters(q url.Values) (SearchFilters, error) {
	f := SearchFilters{
		Query:    strings.TrimSpace(q.Get("q")),
		Category: strings.TrimSpace(q.Get("category")),
		Location: strings.TrimSpace(q.Get("location")),
	}

	var err error
	if f.MinPrice, err = parseBound(q, "min_price"); err != nil {
		return SearchFilters{}, err
	}
	if f.MaxPrice, err = parseBound(q, "max_price"); err != nil {
		return SearchFilters{}, err
	}
	if f.MinRating, err = parseBound(q, "min_rating"); err != nil {
		return SearchFilters{}, err
	}
	if f.MaxPrice > 0 && f.MinPrice > f.MaxPrice {
		return SearchFilters{}, fmt.Errorf("min_price %v is above max_price %v", f.MinPrice, f.MaxPrice)
	}

	for _, v := range q["availability"] {
		for _, day := range strings.Split(v, ",") {
			if day = strings.ToLower(strings.TrimSpace(day)); day != "" {
				f.Availability = append(f.Availability, day)
			}
		}
	}
	return f, nil
}

func parseBound(q url.Values, key string) (float64, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, nil
}
