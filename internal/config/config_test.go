package config

import (
	"path/filepath"
	"testing"

	"github.com/relaymux/gateway/internal/domain"
)

func TestProviderToDomainMapsEveryField(t *testing.T) {
	enabled := false
	cost := 12.5
	p := Provider{
		ID:                      7,
		Name:                    "primary-claude",
		Type:                    "claude",
		BaseURL:                 "https://api.example.com/",
		Credential:              "sk-test",
		Enabled:                 &enabled,
		Weight:                  3,
		Priority:                1,
		GroupTag:                "tier-1",
		CostPerMtok:             &cost,
		Limit5hUSD:              10,
		LimitWeeklyUSD:          50,
		LimitMonthlyUSD:         200,
		LimitConcurrentSessions: 4,
		TPM:                     1000,
		RPM:                     60,
		RPD:                     1000,
		CC:                      4,
		ModelRedirect:           map[string]string{"claude-3": "claude-3-opus"},
	}

	d := p.ToDomain()

	if d.ID != p.ID || d.Name != p.Name || d.Credential != p.Credential {
		t.Fatalf("identity fields not preserved: %+v", d)
	}
	if d.BaseURL != "https://api.example.com" {
		t.Errorf("BaseURL should have trailing slash trimmed, got %q", d.BaseURL)
	}
	if d.Type != domain.ProviderClaude {
		t.Errorf("Type = %q, want %q", d.Type, domain.ProviderClaude)
	}
	if d.Enabled {
		t.Errorf("Enabled should follow the explicit false pointer")
	}
	if d.Weight != 3 || d.Priority != 1 || d.GroupTag != "tier-1" {
		t.Errorf("routing fields not preserved: %+v", d)
	}
	if d.CostPerMtok == nil || *d.CostPerMtok != 12.5 {
		t.Errorf("CostPerMtok not preserved: %v", d.CostPerMtok)
	}
	if d.TPM != 1000 || d.RPM != 60 || d.RPD != 1000 || d.CC != 4 {
		t.Errorf("ceilings not preserved: %+v", d)
	}
	if d.ModelRedirect["claude-3"] != "claude-3-opus" {
		t.Errorf("ModelRedirect not preserved: %v", d.ModelRedirect)
	}
}

func TestProviderIsEnabledDefaultsTrue(t *testing.T) {
	p := Provider{}
	if !p.IsEnabled() {
		t.Error("a provider with no Enabled pointer should default to enabled")
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := NewDefaultConfig()
	cfg.ListenAddr = ":9000"
	cfg.SensitiveWords = []string{"forbidden"}
	cfg.Providers = []Provider{{ID: 1, Name: "a", Type: "openai-compatible", BaseURL: "https://a", Credential: "k"}}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if loaded.ListenAddr != ":9000" {
		t.Errorf("ListenAddr = %q, want :9000", loaded.ListenAddr)
	}
	if len(loaded.Providers) != 1 || loaded.Providers[0].Name != "a" {
		t.Errorf("Providers not round-tripped: %+v", loaded.Providers)
	}
	if len(loaded.SensitiveWords) != 1 || loaded.SensitiveWords[0] != "forbidden" {
		t.Errorf("SensitiveWords not round-tripped: %v", loaded.SensitiveWords)
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("Load() on a missing file should return an error")
	}
}

func TestDomainProvidersConvertsEveryEntry(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Providers = []Provider{
		{ID: 1, Name: "a", Type: "claude"},
		{ID: 2, Name: "b", Type: "openai-compatible"},
	}

	got := cfg.DomainProviders()
	if len(got) != 2 {
		t.Fatalf("len(DomainProviders()) = %d, want 2", len(got))
	}
	if got[0].Name != "a" || got[1].Name != "b" {
		t.Errorf("DomainProviders() order/content wrong: %+v", got)
	}
}
