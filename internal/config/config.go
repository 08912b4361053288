// Package config loads ledger.yaml. Values come from, in rising priority:
// built-in defaults, the YAML file, and LEDGER_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the config file created by `ledger init`.
const FileName = "ledger.yaml"

// EnvPrefix prefixes environment overrides, e.g. LEDGER_DATABASE_DSN.
const EnvPrefix = "LEDGER"

// Config represents the top-level ledger.yaml configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Redis    RedisConfig    `yaml:"redis" mapstructure:"redis"`
	Advisor  AdvisorConfig  `yaml:"advisor" mapstructure:"advisor"`
	Watchdog WatchdogConfig `yaml:"watchdog" mapstructure:"watchdog"`
	Audit    AuditConfig    `yaml:"audit" mapstructure:"audit"`
	Git      GitConfig      `yaml:"git" mapstructure:"git"`
	Tenants  []TenantConfig `yaml:"tenants,omitempty" mapstructure:"tenants" validate:"dive"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr        string   `yaml:"addr" mapstructure:"addr" validate:"required"`
	CORSOrigins []string `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
}

// DatabaseConfig selects the store.
type DatabaseConfig struct {
	Driver  string `yaml:"driver" mapstructure:"driver" validate:"oneof=memory sqlite3 postgres"`
	DSN     string `yaml:"dsn" mapstructure:"dsn" validate:"required_unless=Driver memory"`
	Migrate bool   `yaml:"migrate" mapstructure:"migrate"`
}

// RedisConfig controls the suggestion cache.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Addr     string        `yaml:"addr" mapstructure:"addr" validate:"required_if=Enabled true"`
	Password string        `yaml:"password,omitempty" mapstructure:"password"`
	DB       int           `yaml:"db" mapstructure:"db" validate:"gte=0"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// AdvisorConfig tunes account suggestions.
type AdvisorConfig struct {
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MinScore float64       `yaml:"min_score" mapstructure:"min_score" validate:"gte=0,lte=1"`
}

// WatchdogConfig holds scan defaults. A tenant's own threshold wins.
type WatchdogConfig struct {
	LargeOutflowThresholdCents int64   `yaml:"large_outflow_threshold_cents" mapstructure:"large_outflow_threshold_cents" validate:"gte=0"`
	FuzzyDuplicates            bool    `yaml:"fuzzy_duplicates" mapstructure:"fuzzy_duplicates"`
	FuzzyRatio                 float64 `yaml:"fuzzy_ratio" mapstructure:"fuzzy_ratio" validate:"gte=0,lte=1"`
	WindowDays                 int     `yaml:"window_days" mapstructure:"window_days" validate:"gte=0"`
}

// AuditConfig controls the CSV audit log.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir     string `yaml:"dir" mapstructure:"dir"`
}

// GitConfig controls git integration of exported books.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit" mapstructure:"auto_commit"`
	AuthorName  string `yaml:"author_name" mapstructure:"author_name"`
	AuthorEmail string `yaml:"author_email" mapstructure:"author_email" validate:"omitempty,email"`
}

// TenantConfig bootstraps one tenant's books.
type TenantConfig struct {
	ID                         string              `yaml:"id" mapstructure:"id" validate:"required"`
	Name                       string              `yaml:"name" mapstructure:"name"`
	EntityType                 string              `yaml:"entity_type" mapstructure:"entity_type"`
	Currency                   string              `yaml:"currency" mapstructure:"currency" validate:"omitempty,len=3"`
	BankFeed                   BankFeedConfig      `yaml:"bank_feed" mapstructure:"bank_feed"`
	LargeOutflowThresholdCents int64               `yaml:"large_outflow_threshold_cents,omitempty" mapstructure:"large_outflow_threshold_cents" validate:"gte=0"`
	SuggestRules               []SuggestRuleConfig `yaml:"suggest_rules,omitempty" mapstructure:"suggest_rules" validate:"dive"`
	ReserveRules               []ReserveRuleConfig `yaml:"reserve_rules,omitempty" mapstructure:"reserve_rules" validate:"dive"`
}

// BankFeedConfig maps a bank feed to the operating account.
type BankFeedConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Format      string `yaml:"format" mapstructure:"format"`
	LastFour    string `yaml:"last_four,omitempty" mapstructure:"last_four" validate:"omitempty,len=4,numeric"`
	AccountCode string `yaml:"account_code" mapstructure:"account_code"`
}

// SuggestRuleConfig maps a description keyword to an account code.
type SuggestRuleConfig struct {
	Keyword     string `yaml:"keyword" mapstructure:"keyword" validate:"required"`
	AccountCode string `yaml:"account_code" mapstructure:"account_code" validate:"required"`
}

// ReserveRuleConfig declares a reserve rule by account codes.
type ReserveRuleConfig struct {
	Name        string `yaml:"name" mapstructure:"name" validate:"required"`
	Percentage  string `yaml:"percentage" mapstructure:"percentage" validate:"required,numeric"`
	SourceCode  string `yaml:"source_code" mapstructure:"source_code" validate:"required"`
	ReserveCode string `yaml:"reserve_code" mapstructure:"reserve_code" validate:"required,nefield=SourceCode"`
	Automated   bool   `yaml:"automated" mapstructure:"automated"`
}

// Load reads a ledger.yaml file from disk. An empty path uses defaults and the environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default("", ""))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("database.migrate", d.Database.Migrate)
	v.SetDefault("redis.enabled", d.Redis.Enabled)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.ttl", d.Redis.TTL)
	v.SetDefault("advisor.timeout", d.Advisor.Timeout)
	v.SetDefault("advisor.min_score", d.Advisor.MinScore)
	v.SetDefault("watchdog.large_outflow_threshold_cents", d.Watchdog.LargeOutflowThresholdCents)
	v.SetDefault("watchdog.fuzzy_duplicates", d.Watchdog.FuzzyDuplicates)
	v.SetDefault("watchdog.fuzzy_ratio", d.Watchdog.FuzzyRatio)
	v.SetDefault("watchdog.window_days", d.Watchdog.WindowDays)
	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("audit.dir", d.Audit.Dir)
	v.SetDefault("git.auto_commit", d.Git.AutoCommit)
	v.SetDefault("git.author_name", d.Git.AuthorName)
	v.SetDefault("git.author_email", d.Git.AuthorEmail)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and that tenant IDs are unique.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	seen := make(map[string]bool)
	for _, t := range c.Tenants {
		if seen[t.ID] {
			return fmt.Errorf("invalid config: duplicate tenant %q", t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}

// Tenant returns the tenant with the given ID, or nil.
func (c *Config) Tenant(id string) *TenantConfig {
	for i := range c.Tenants {
		if c.Tenants[i].ID == id {
			return &c.Tenants[i]
		}
	}
	return nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project. A
// non-empty businessName adds a "default" tenant fed from a Chase export
// into account 1010.
func Default(businessName, entityType string) *Config {
	cfg := &Config{
		Server: ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{
			Driver:  "sqlite3",
			DSN:     "ledger.db",
			Migrate: true,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  24 * time.Hour,
		},
		Advisor: AdvisorConfig{
			Timeout:  2 * time.Second,
			MinScore: 0.8,
		},
		Watchdog: WatchdogConfig{
			LargeOutflowThresholdCents: 1_000_000,
			FuzzyRatio:                 0.3,
			WindowDays:                 3,
		},
		Audit: AuditConfig{Enabled: true, Dir: "."},
		Git: GitConfig{
			AutoCommit:  true,
			AuthorName:  "Ledger",
			AuthorEmail: "ledger@cleared.dev",
		},
	}
	if businessName != "" {
		cfg.Tenants = []TenantConfig{{
			ID:         "default",
			Name:       businessName,
			EntityType: entityType,
			Currency:   "USD",
			BankFeed: BankFeedConfig{
				Name:        "Business Checking",
				Format:      "chase",
				AccountCode: "1010",
			},
		}}
	}
	return cfg
}
