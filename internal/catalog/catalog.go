// Package catalog holds the fixed option lists offered during provider
// registration and search: service categories, experience levels and weekdays.
package catalog

import (
	_ "embed"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultYAML []byte

type Option struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

type Catalog struct {
	Categories []string `yaml:"categories" json:"categories"`
	Experience []Option `yaml:"experience" json:"experience"`
	Weekdays   []Option `yaml:"weekdays" json:"weekdays"`
}

// Parse decodes a catalog document and rejects empty lists.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(c.Categories) == 0 || len(c.Experience) == 0 || len(c.Weekdays) == 0 {
		return nil, fmt.Errorf("catalog: categories, experience and weekdays must be non-empty")
	}
	return &c, nil
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) HasCategory(v string) bool {
	for _, cat := range c.Categories {
		if cat == v {
			return true
		}
	}
	return false
}

func (c *Catalog) HasExperience(v string) bool {
	return hasOption(c.Experience, v)
}

// HasWeekday matches weekday values case-insensitively.
func (c *Catalog) HasWeekday(v string) bool {
	return hasOption(c.Weekdays, strings.ToLower(strings.TrimSpace(v)))
}

func hasOption(opts []Option, v string) bool {
	for _, o := range opts {
		if o.Value == v {
			return true
		}
	}
	return false
}

// Handler serves the catalog as JSON.
func (c *Catalog) Handler(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c)
}
