package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// ErrInvalid marks configuration that fails validation. It is fatal at
// startup, before any pass runs.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Scraping ScrapingConfig  `json:"scraping"`
	Products []ProductConfig `json:"products"`
	Alerts   AlertsConfig    `json:"alerts"`
	Report   ReportConfig    `json:"report"`
	Database DatabaseConfig  `json:"-"`
}

type ScrapingConfig struct {
	// DelaySeconds is the pause between requests; politeness to target
	// sites, not a tunable performance knob.
	DelaySeconds   float64 `json:"delay"`
	TimeoutSeconds float64 `json:"timeout"`
	UserAgent      string  `json:"user_agent"`
}

type ProductConfig struct {
	Name           string   `json:"name"`
	URLs           []string `json:"urls"`
	TargetPrice    *float64 `json:"target_price,omitempty"`
	AlertThreshold *float64 `json:"alert_threshold,omitempty"`
}

type AlertsConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

type ReportConfig struct {
	Days      int     `json:"days"`
	NoiseBand float64 `json:"noise_band"`
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

func (d DatabaseConfig) DSN() string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   d.Host + ":" + d.Port,
		Path:   "/" + d.Name,
	}
	q := u.Query()
	q.Set("sslmode", "disable")
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Config) Delay() time.Duration {
	return time.Duration(c.Scraping.DelaySeconds * float64(time.Second))
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Scraping.TimeoutSeconds * float64(time.Second))
}

// Load reads the JSON settings file and merges database credentials from the
// environment (a .env file is honored when present).
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening settings file: %w", err)
	}
	defer f.Close()

	cfg := &Config{}
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrInvalid, path, err)
	}

	cfg.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "pricewatch"),
		Password: os.Getenv("DB_PASSWORD"),
		Name:     getEnv("DB_NAME", "pricewatch"),
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Scraping.DelaySeconds == 0 {
		c.Scraping.DelaySeconds = 2
	}
	if c.Scraping.TimeoutSeconds == 0 {
		c.Scraping.TimeoutSeconds = 15
	}
	if c.Scraping.UserAgent == "" {
		c.Scraping.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/115.0"
	}
	if c.Report.Days == 0 {
		c.Report.Days = 7
	}
	if c.Report.NoiseBand == 0 {
		c.Report.NoiseBand = 0.02
	}
}

func (c *Config) Validate() error {
	if len(c.Products) == 0 {
		return fmt.Errorf("%w: products list is empty", ErrInvalid)
	}
	if c.Scraping.DelaySeconds < 0 {
		return fmt.Errorf("%w: scraping.delay is negative", ErrInvalid)
	}
	if c.Scraping.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: scraping.timeout is negative", ErrInvalid)
	}
	if c.Report.Days < 0 {
		return fmt.Errorf("%w: report.days is negative", ErrInvalid)
	}

	seen := make(map[string]bool)
	for i, p := range c.Products {
		if p.Name == "" {
			return fmt.Errorf("%w: products[%d] has no name", ErrInvalid, i)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: duplicate product %q", ErrInvalid, p.Name)
		}
		seen[p.Name] = true
		if len(p.URLs) == 0 {
			return fmt.Errorf("%w: product %q has no urls", ErrInvalid, p.Name)
		}
		for _, u := range p.URLs {
			parsed, err := url.Parse(u)
			if err != nil || parsed.Host == "" || parsed.Scheme == "" {
				return fmt.Errorf("%w: product %q has malformed url %q", ErrInvalid, p.Name, u)
			}
		}
		if p.AlertThreshold != nil && (*p.AlertThreshold <= 0 || *p.AlertThreshold > 1) {
			return fmt.Errorf("%w: product %q alert_threshold must be in (0, 1]", ErrInvalid, p.Name)
		}
		if p.TargetPrice != nil && *p.TargetPrice < 0 {
			return fmt.Errorf("%w: product %q target_price is negative", ErrInvalid, p.Name)
		}
	}

	if c.Alerts.Enabled && c.Alerts.WebhookURL != "" {
		if parsed, err := url.Parse(c.Alerts.WebhookURL); err != nil || parsed.Host == "" {
			return fmt.Errorf("%w: alerts.webhook_url is malformed", ErrInvalid)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
