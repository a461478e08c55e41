package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	JWT    JWTConfig    `yaml:"jwt"`
	Tenant TenantConfig `yaml:"tenant"`
	Store  StoreConfig  `yaml:"store"`
	Audit  AuditConfig  `yaml:"audit"`
	OIDC   *OIDCConfig  `yaml:"oidc,omitempty"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// JWTConfig drives key material and token issuance.
type JWTConfig struct {
	Issuer         string        `yaml:"issuer"`
	Audience       string        `yaml:"audience"`
	KID            string        `yaml:"kid"`
	PrivateKeyPath string        `yaml:"private_key_path"`
	AccessTTL      time.Duration `yaml:"access_ttl"`
	RefreshTTL     time.Duration `yaml:"refresh_ttl"`
}

// TenantConfig names the tenant that sign-up and password sign-in operate
// in. Multi-tenant provisioning is out of scope; isolation is still enforced
// on every token.
type TenantConfig struct {
	Name string `yaml:"name"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Type   string         `yaml:"type"`    // "memory" or "postgres"
	Config map[string]any `yaml:",inline"` // backend-specific fields
}

// AuditConfig selects the operational auth auditor.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Type    string `yaml:"type"` // "file" or "memory"
	Path    string `yaml:"path"`
}

// OIDCConfig enables the federated sign-in mode when present.
type OIDCConfig struct {
	IssuerURL string `yaml:"issuer_url"`
	ClientID  string `yaml:"client_id"`
}

// Load reads and parses the configuration file at the given path, applies
// defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// Default returns a runnable configuration for local development.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "http://localhost:8000"
	}
	if c.JWT.Audience == "" {
		c.JWT.Audience = "aiddiag-api"
	}
	if c.JWT.KID == "" {
		c.JWT.KID = "local-rs256"
	}
	if c.JWT.PrivateKeyPath == "" {
		c.JWT.PrivateKeyPath = "data/private.pem"
	}
	if c.JWT.AccessTTL == 0 {
		c.JWT.AccessTTL = 15 * time.Minute
	}
	if c.JWT.RefreshTTL == 0 {
		c.JWT.RefreshTTL = 7 * 24 * time.Hour
	}
	if c.Tenant.Name == "" {
		c.Tenant.Name = "demo"
	}
	if c.Store.Type == "" {
		c.Store.Type = "memory"
	}
	if c.Audit.Type == "" {
		c.Audit.Type = "file"
	}
	if c.Audit.Path == "" {
		c.Audit.Path = "data/audit.log"
	}
}

func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return fmt.Errorf("refresh_ttl must exceed access_ttl")
	}
	switch c.Store.Type {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown store type %q", c.Store.Type)
	}
	if c.Audit.Enabled {
		switch c.Audit.Type {
		case "file", "memory":
		default:
			return fmt.Errorf("unknown audit type %q", c.Audit.Type)
		}
		if c.Audit.Type == "file" && c.Audit.Path == "" {
			return fmt.Errorf("audit path is required for file auditor")
		}
	}
	if c.OIDC != nil {
		if c.OIDC.IssuerURL == "" {
			return fmt.Errorf("oidc issuer_url is required")
		}
		if c.OIDC.ClientID == "" {
			return fmt.Errorf("oidc client_id is required")
		}
	}
	return nil
}
