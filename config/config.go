// Package config loads the pricewatch YAML configuration. Secrets
// (cron secret, SendGrid key, VAPID keys, MINSAL credentials) come from
// the environment, never from the file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	// Addr is the HTTP listen address (default: ":8080").
	Addr string `yaml:"addr"`

	// DatabasePath is the SQLite file location (default: "data/pricewatch.db").
	DatabasePath string `yaml:"database_path"`

	// BaseURL is the public web app origin used in notification links.
	BaseURL string `yaml:"base_url"`

	Collection Collection `yaml:"collection"`
	Email      Email      `yaml:"email"`
	Push       Push       `yaml:"push"`
	Minsal     Minsal     `yaml:"minsal"`
}

// Collection tunes the scraping passes.
type Collection struct {
	// Queries are the medication search terms each pass covers.
	Queries []string `yaml:"queries"`

	// DelayMS is the base pause between queries; jitter is added on top.
	DelayMS int `yaml:"delay_ms"`

	// Headful runs a visible browser for selector debugging.
	Headful bool `yaml:"headful"`
}

// Delay returns the inter-query delay as a duration.
func (c Collection) Delay() time.Duration {
	return time.Duration(c.DelayMS) * time.Millisecond
}

// Email configures the alert email sender.
type Email struct {
	// FromName is the display name on outgoing mail.
	FromName string `yaml:"from_name"`

	// FromAddr must be a verified SendGrid sender identity.
	FromAddr string `yaml:"from_addr"`
}

// Push configures Web Push delivery.
type Push struct {
	// Subscriber is the mailto: contact required by VAPID.
	Subscriber string `yaml:"subscriber"`
}

// Minsal configures the government data clients.
type Minsal struct {
	FarmanetBaseURL  string `yaml:"farmanet_base_url"`
	FarmanetTokenURL string `yaml:"farmanet_token_url"`
	TuFarmaciaURL    string `yaml:"tufarmacia_url"`
}

func (c *Config) defaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/pricewatch.db"
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:3000"
	}
	if len(c.Collection.Queries) == 0 {
		c.Collection.Queries = []string{
			"paracetamol", "ibuprofeno", "omeprazol", "losartan",
			"metformina", "atorvastatina", "loratadina", "sertralina",
		}
	}
	if c.Collection.DelayMS <= 0 {
		c.Collection.DelayMS = 2000
	}
	if c.Email.FromName == "" {
		c.Email.FromName = "PharmaCheck"
	}
	if c.Email.FromAddr == "" {
		c.Email.FromAddr = "alertas@pharmacheck.cl"
	}
	if c.Push.Subscriber == "" {
		c.Push.Subscriber = "mailto:alertas@pharmacheck.cl"
	}
	if c.Minsal.FarmanetBaseURL == "" {
		c.Minsal.FarmanetBaseURL = "https://midas.minsal.cl/farmacia_v2/WS"
	}
}

// Load reads a YAML file and fills defaults. A missing path returns the
// defaults alone, so the service runs with zero configuration.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.defaults()
	return &cfg, nil
}
