// Package rod fetches product listings and details from the supplier catalog with a headless browser.
package rod

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Selectors are the CSS selectors used to read the catalog pages.
type Selectors struct {
	// Tile matches one product card on a search results page.
	Tile        string
	Name        string
	Price       string
	Link        string
	Image       string
	Description string
	SKU         string
	// Detail maps a product field name to its selector on a product page.
	Detail map[string]string

	LoginEmail    string
	LoginPassword string
	LoginSubmit   string
	// LoggedIn appears only for authenticated sessions.
	LoggedIn string
}

// Config holds browser and catalog settings.
type Config struct {
	BaseURL string
	// SearchPath is resolved against BaseURL; {query} is replaced with the escaped search text.
	SearchPath string
	LoginPath  string
	Email      string
	Password   string
	Headless   bool
	// ControlURL connects to a running browser instead of launching one.
	ControlURL string
	// SettleTimeout bounds the wait for result tiles; an empty page after it means zero results.
	SettleTimeout time.Duration
	MaxResults    int
	Selectors     Selectors
}

// Defaults.
const (
	DefaultBaseURL       = "https://www.richelieu.com/ca/en/"
	DefaultSearchPath    = "search?searchTerm={query}"
	DefaultLoginPath     = "login"
	DefaultSettleTimeout = 10 * time.Second
	DefaultMaxResults    = 10
)

// DefaultSelectors returns selectors for the default catalog layout.
func DefaultSelectors() Selectors {
	return Selectors{
		Tile:        ".product-tile",
		Name:        ".product-tile__name",
		Price:       ".product-tile__price",
		Link:        "a.product-tile__link",
		Image:       "img",
		Description: ".product-tile__description",
		SKU:         ".product-tile__sku",
		Detail: map[string]string{
			"name":             "h1",
			"price":            ".product-price",
			"description":      ".product-description",
			"sku":              ".product-sku",
			"dimensions":       ".product-dimensions",
			"material":         ".product-material",
			"finish":           ".product-finish",
			"installation":     ".product-installation",
			"weight":           ".product-weight",
			"package_contents": ".product-package",
			"technical_specs":  ".product-specifications",
			"certifications":   ".product-certifications",
			"warranty":         ".product-warranty",
		},
		LoginEmail:    "input[type=email]",
		LoginPassword: "input[type=password]",
		LoginSubmit:   "button[type=submit]",
		LoggedIn:      ".account-menu",
	}
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.SearchPath == "" {
		c.SearchPath = DefaultSearchPath
	}
	if c.LoginPath == "" {
		c.LoginPath = DefaultLoginPath
	}
	if c.SettleTimeout <= 0 {
		c.SettleTimeout = DefaultSettleTimeout
	}
	if c.MaxResults <= 0 {
		c.MaxResults = DefaultMaxResults
	}
	def := DefaultSelectors()
	s := &c.Selectors
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&s.Tile, def.Tile)
	fill(&s.Name, def.Name)
	fill(&s.Price, def.Price)
	fill(&s.Link, def.Link)
	fill(&s.Image, def.Image)
	fill(&s.Description, def.Description)
	fill(&s.SKU, def.SKU)
	fill(&s.LoginEmail, def.LoginEmail)
	fill(&s.LoginPassword, def.LoginPassword)
	fill(&s.LoginSubmit, def.LoginSubmit)
	fill(&s.LoggedIn, def.LoggedIn)
	if len(s.Detail) == 0 {
		s.Detail = def.Detail
	}
}

// HasCredentials reports whether authenticated detail lookups are possible.
func (c *Config) HasCredentials() bool {
	return c.Email != "" && c.Password != ""
}

// SearchURL builds the results page URL for text.
func SearchURL(base, path, text string) (string, error) {
	ref := strings.ReplaceAll(path, "{query}", url.QueryEscape(strings.TrimSpace(text)))
	return resolve(base, ref)
}

func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", base, err)
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", ref, err)
	}
	return b.ResolveReference(r).String(), nil
}
