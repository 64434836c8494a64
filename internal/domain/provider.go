// Package domain holds the core data model shared across the forwarding
// pipeline: providers, the per-request proxy session, and the diagnostic
// decision chain.
package domain

import "time"

// ProviderType identifies which of the four upstream wire families a
// provider speaks.
type ProviderType string

const (
	ProviderClaude         ProviderType = "claude"
	ProviderOpenAICompat   ProviderType = "openai-compatible"
	ProviderCodex          ProviderType = "codex"
	ProviderGeminiCLI      ProviderType = "gemini-cli"
)

// Provider is an upstream LLM endpoint with credentials, routing weight and
// usage ceilings.
type Provider struct {
	ID          int64
	Name        string
	BaseURL     string
	Credential  string
	Type        ProviderType
	Enabled     bool
	Weight      int
	Priority    int
	CostPerMtok *float64
	GroupTag    string

	Limit5hUSD      float64
	LimitWeeklyUSD  float64
	LimitMonthlyUSD float64

	LimitConcurrentSessions int

	TPM int
	RPM int
	RPD int
	CC  int

	// ModelRedirect maps a client-requested model name to the name this
	// provider actually expects upstream.
	ModelRedirect map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// IsTombstoned reports whether the provider has been soft-deleted.
func (p *Provider) IsTombstoned() bool {
	return p != nil && p.DeletedAt != nil
}

// RedirectModel applies the provider's model-redirection map, if any entry
// matches. Returns the original name unchanged when there is no mapping.
func (p *Provider) RedirectModel(model string) string {
	if p == nil || p.ModelRedirect == nil {
		return model
	}
	if to, ok := p.ModelRedirect[model]; ok && to != "" {
		return to
	}
	return model
}
