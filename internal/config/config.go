// Package config provides configuration management for the gateway.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/relaymux/gateway/internal/domain"
)

const configFileName = "config.yaml"

// Provider is the on-disk shape of one upstream endpoint. It is converted
// to a domain.Provider once loaded; the split exists so the YAML surface
// can evolve (string enums, omitempty) independently of the core model.
type Provider struct {
	ID         int64             `yaml:"id"`
	Name       string            `yaml:"name"`
	Type       string            `yaml:"type"` // claude | openai-compatible | codex | gemini-cli
	BaseURL    string            `yaml:"base-url"`
	Credential string            `yaml:"credential"`
	Enabled    *bool             `yaml:"enabled,omitempty"`
	Weight     int               `yaml:"weight,omitempty"`
	Priority   int               `yaml:"priority,omitempty"`
	GroupTag   string            `yaml:"group-tag,omitempty"`
	CostPerMtok *float64         `yaml:"cost-per-mtok,omitempty"`

	Limit5hUSD      float64 `yaml:"limit-5h-usd,omitempty"`
	LimitWeeklyUSD  float64 `yaml:"limit-weekly-usd,omitempty"`
	LimitMonthlyUSD float64 `yaml:"limit-monthly-usd,omitempty"`

	LimitConcurrentSessions int `yaml:"limit-concurrent-sessions,omitempty"`

	TPM int `yaml:"tpm,omitempty"`
	RPM int `yaml:"rpm,omitempty"`
	RPD int `yaml:"rpd,omitempty"`
	CC  int `yaml:"cc,omitempty"`

	ModelRedirect map[string]string `yaml:"model-redirect,omitempty"`
}

// IsEnabled returns true if the provider is enabled (default: true).
func (p *Provider) IsEnabled() bool {
	if p.Enabled == nil {
		return true
	}
	return *p.Enabled
}

// ToDomain converts the on-disk provider into the core pipeline's model.
func (p *Provider) ToDomain() *domain.Provider {
	return &domain.Provider{
		ID:                      p.ID,
		Name:                    p.Name,
		BaseURL:                 strings.TrimRight(p.BaseURL, "/"),
		Credential:              p.Credential,
		Type:                    domain.ProviderType(p.Type),
		Enabled:                 p.IsEnabled(),
		Weight:                  p.Weight,
		Priority:                p.Priority,
		CostPerMtok:             p.CostPerMtok,
		GroupTag:                p.GroupTag,
		Limit5hUSD:              p.Limit5hUSD,
		LimitWeeklyUSD:          p.LimitWeeklyUSD,
		LimitMonthlyUSD:         p.LimitMonthlyUSD,
		LimitConcurrentSessions: p.LimitConcurrentSessions,
		TPM:                     p.TPM,
		RPM:                     p.RPM,
		RPD:                     p.RPD,
		CC:                      p.CC,
		ModelRedirect:           p.ModelRedirect,
	}
}

// Config is the root of the on-disk YAML document.
type Config struct {
	ListenAddr string `yaml:"listen-addr"`

	// DatabaseDSN selects the StatisticsSink backend. Empty means the
	// in-memory sink; a postgres DSN selects the pgx-backed sink. The
	// provider repository is always the in-memory store. See
	// internal/config.ParseDSN for the schemes it parses.
	DatabaseDSN string `yaml:"database-dsn,omitempty"`

	Debug         bool   `yaml:"debug,omitempty"`
	LoggingToFile bool   `yaml:"logging-to-file,omitempty"`
	LogPath       string `yaml:"log-path,omitempty"`

	MaxRequestBytes int64 `yaml:"max-request-bytes,omitempty"`

	// APIKeys maps a bearer token to the user id billed for its requests.
	APIKeys map[string]string `yaml:"api-keys,omitempty"`

	// SensitiveWords, when non-empty, blocks any request whose body
	// contains one of these substrings (case-insensitive).
	SensitiveWords []string `yaml:"sensitive-words,omitempty"`

	// PricePerMtok prices usage by model name. An entry here takes
	// precedence over Provider.CostPerMtok, which is used only for models
	// without an entry.
	PricePerMtok map[string]float64 `yaml:"price-per-mtok,omitempty"`

	StickySessionTTLSeconds int `yaml:"sticky-session-ttl-seconds,omitempty"`

	Providers []Provider `yaml:"providers"`
}

// NewDefaultConfig returns the configuration a fresh install should start
// from: a local listener, no providers, and no backing database.
func NewDefaultConfig() *Config {
	return &Config{
		ListenAddr:              ":8317",
		MaxRequestBytes:         50 * 1024 * 1024,
		StickySessionTTLSeconds: 600,
		Providers:               []Provider{},
	}
}

// DomainProviders converts every configured provider to the core model.
func (c *Config) DomainProviders() []*domain.Provider {
	out := make([]*domain.Provider, 0, len(c.Providers))
	for i := range c.Providers {
		out = append(out, c.Providers[i].ToDomain())
	}
	return out
}

// ConfigDir returns the gateway's config directory following the XDG Base
// Directory spec: $XDG_CONFIG_HOME/relaymux if set, otherwise
// ~/.config/relaymux.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "relaymux")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "relaymux")
	}
	return ""
}

// DefaultConfigPath returns the default config file location, expanding
// $XDG_CONFIG_HOME and ~ the way ResolvePath does.
func DefaultConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return configFileName
	}
	return filepath.Join(dir, configFileName)
}

// ResolvePath expands a leading "$XDG_CONFIG_HOME" or "~" in path, the way
// config and auth paths are written in the default config template.
func ResolvePath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if rest, ok := cutPrefixDir(path, "$XDG_CONFIG_HOME"); ok {
		xdg := os.Getenv("XDG_CONFIG_HOME")
		if xdg == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("resolve path: %w", err)
			}
			xdg = filepath.Join(home, ".config")
		}
		return filepath.Clean(filepath.Join(xdg, rest)), nil
	}
	if rest, ok := cutPrefixDir(path, "~"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve path: %w", err)
		}
		return filepath.Clean(filepath.Join(home, rest)), nil
	}
	return filepath.Clean(path), nil
}

func cutPrefixDir(path, prefix string) (rest string, ok bool) {
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	rest = strings.TrimPrefix(path, prefix)
	rest = strings.TrimLeft(rest, "/\\")
	return filepath.FromSlash(strings.ReplaceAll(rest, "\\", "/")), true
}

// Load reads and parses the YAML config at path (after XDG/~ expansion).
func Load(path string) (*Config, error) {
	resolved, err := ResolvePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", resolved, err)
	}
	cfg := NewDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", resolved, err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	resolved, err := ResolvePath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(resolved, data, 0o644)
}

// GenerateDefaultConfigYAML renders NewDefaultConfig() as YAML. The `init`
// command writes its file through Save instead.
func GenerateDefaultConfigYAML() []byte {
	data, err := yaml.Marshal(NewDefaultConfig())
	if err != nil {
		return nil
	}
	return data
}
