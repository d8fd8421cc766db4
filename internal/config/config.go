package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

const AppName = "accom-crawler"

// Config is the validated, typed view of the configuration file.
type Config struct {
	Requirements Requirements `yaml:"requirements"`
	Websites     []Site       `yaml:"websites"`
	Browser      Browser      `yaml:"browser"`
	Crawl        Timing       `yaml:"crawl"`
	Verify       Verify       `yaml:"verify"`
	Output       Output       `yaml:"output"`
}

type Browser struct {
	Driver   string `mapstructure:"driver" yaml:"driver"`
	Headless bool   `mapstructure:"headless" yaml:"headless"`
	Bin      string `mapstructure:"bin" yaml:"bin,omitempty"`
	Width    int    `mapstructure:"width" yaml:"width"`
	Height   int    `mapstructure:"height" yaml:"height"`
	// Trace logs every CDP call made by the driver.
	Trace bool `mapstructure:"trace" yaml:"trace"`
}

// Timing holds the fixed delays and bounds of the session-driving path.
type Timing struct {
	StepDelay     time.Duration `mapstructure:"step_delay" yaml:"step_delay"`
	SettleDelay   time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	FormDelay     time.Duration `mapstructure:"form_delay" yaml:"form_delay"`
	SiteCooldown  time.Duration `mapstructure:"site_cooldown" yaml:"site_cooldown"`
	WaitTimeout   time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	ActionTimeout time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	NavTimeout    time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"` // loading a page up to its load event
	MaxPageBound  int           `mapstructure:"max_page_bound" yaml:"max_page_bound"`
}

type Verify struct {
	Workers   int           `mapstructure:"workers" yaml:"workers"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Rate      float64       `mapstructure:"rate" yaml:"rate"` // requests per second and host, <= 0 disables
	Burst     int           `mapstructure:"burst" yaml:"burst"`
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"`
	MaxBody   int64         `mapstructure:"max_body" yaml:"max_body"`
}

type Database struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Driver  string `mapstructure:"driver" yaml:"driver"`
	DSN     string `mapstructure:"dsn" yaml:"dsn"`
}

type Output struct {
	Database Database `mapstructure:"database" yaml:"database"`
	Markdown string   `mapstructure:"markdown" yaml:"markdown,omitempty"`
	Open     bool     `mapstructure:"open" yaml:"open"`
}

type rawConfig struct {
	Requirements rawRequirements `mapstructure:"requirements"`
	Websites     []rawSite       `mapstructure:"websites"`
	Browser      Browser         `mapstructure:"browser"`
	Crawl        Timing          `mapstructure:"crawl"`
	Verify       Verify          `mapstructure:"verify"`
	Output       Output          `mapstructure:"output"`
}

// DefaultConfigDir is searched for config.{yaml,json,toml} when no file is
// given on the command line.
func DefaultConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

func DefaultDatabasePath() string {
	return filepath.Join(xdg.DataHome, AppName, "results.db")
}

// SetDefaults registers the default value of every setting on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("browser.driver", "rod")
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.width", 1920)
	v.SetDefault("browser.height", 1080)
	v.SetDefault("browser.trace", false)

	v.SetDefault("crawl.step_delay", 500*time.Millisecond)
	v.SetDefault("crawl.settle_delay", time.Second)
	v.SetDefault("crawl.form_delay", 5*time.Second)
	v.SetDefault("crawl.site_cooldown", 2*time.Second)
	v.SetDefault("crawl.wait_timeout", 10*time.Second)
	v.SetDefault("crawl.action_timeout", 5*time.Second)
	v.SetDefault("crawl.navigation_timeout", 30*time.Second)
	v.SetDefault("crawl.max_page_bound", 500)

	v.SetDefault("verify.workers", 70)
	v.SetDefault("verify.timeout", 20*time.Second)
	v.SetDefault("verify.rate", 10.0)
	v.SetDefault("verify.burst", 5)
	v.SetDefault("verify.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	v.SetDefault("verify.max_body", 5<<20)

	v.SetDefault("output.database.enabled", false)
	v.SetDefault("output.database.driver", "sqlite3")
	v.SetDefault("output.database.dsn", DefaultDatabasePath())
	v.SetDefault("output.open", false)
}

// Load decodes and validates the configuration held by v. Every problem
// found is reported; the returned error joins them.
func Load(v *viper.Viper) (*Config, error) {
	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg := &Config{
		Browser: raw.Browser,
		Crawl:   raw.Crawl,
		Verify:  raw.Verify,
		Output:  raw.Output,
	}

	req, errs := raw.Requirements.parse()
	cfg.Requirements = req

	if len(raw.Websites) == 0 {
		errs = append(errs, ErrNoWebsites)
	}
	for i, rs := range raw.Websites {
		site, siteErrs := rs.parse(fmt.Sprintf("websites[%d]", i))
		errs = append(errs, siteErrs...)
		cfg.Websites = append(cfg.Websites, site)
	}

	errs = append(errs, cfg.validateSettings()...)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func (c *Config) validateSettings() []error {
	var errs []error
	invalid := func(key string, value any) {
		errs = append(errs, fmt.Errorf("%s: %w (value: %v)", key, ErrInvalidSetting, value))
	}

	switch c.Browser.Driver {
	case "rod", "chromedp", "static":
	default:
		errs = append(errs, fmt.Errorf("browser.driver: %w %q", ErrUnknownDriver, c.Browser.Driver))
	}
	if c.Browser.Width <= 0 || c.Browser.Height <= 0 {
		invalid("browser.width/height", fmt.Sprintf("%dx%d", c.Browser.Width, c.Browser.Height))
	}

	for key, d := range map[string]time.Duration{
		"crawl.step_delay":    c.Crawl.StepDelay,
		"crawl.settle_delay":  c.Crawl.SettleDelay,
		"crawl.form_delay":    c.Crawl.FormDelay,
		"crawl.site_cooldown": c.Crawl.SiteCooldown,
	} {
		if d < 0 {
			invalid(key, d)
		}
	}
	if c.Crawl.WaitTimeout <= 0 {
		invalid("crawl.wait_timeout", c.Crawl.WaitTimeout)
	}
	if c.Crawl.ActionTimeout <= 0 {
		invalid("crawl.action_timeout", c.Crawl.ActionTimeout)
	}
	if c.Crawl.NavTimeout <= 0 {
		invalid("crawl.navigation_timeout", c.Crawl.NavTimeout)
	}
	if c.Crawl.MaxPageBound < 1 {
		invalid("crawl.max_page_bound", c.Crawl.MaxPageBound)
	}

	if c.Verify.Workers < 1 {
		invalid("verify.workers", c.Verify.Workers)
	}
	if c.Verify.Timeout <= 0 {
		invalid("verify.timeout", c.Verify.Timeout)
	}
	if c.Verify.Rate > 0 && c.Verify.Burst < 1 {
		invalid("verify.burst", c.Verify.Burst)
	}
	if c.Verify.MaxBody <= 0 {
		invalid("verify.max_body", c.Verify.MaxBody)
	}

	if c.Output.Database.Enabled {
		switch c.Output.Database.Driver {
		case "sqlite3", "pgx":
		default:
			errs = append(errs, fmt.Errorf("output.database.driver: %w %q", ErrUnknownDriver, c.Output.Database.Driver))
		}
		if c.Output.Database.DSN == "" {
			errs = append(errs, fmt.Errorf("output.database.dsn: %w", ErrMissingField))
		}
	}
	return errs
}
