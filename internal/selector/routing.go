package selector

import "github.com/relaymux/gateway/internal/domain"

// routeFamily maps a model-name prefix to the provider types compatible
// with it. The first matching, longest prefix wins.
type routeFamily struct {
	prefix string
	types  []domain.ProviderType
}

var defaultRouteFamilies = []routeFamily{
	{"claude-", []domain.ProviderType{domain.ProviderClaude}},
	{"gpt-5-codex", []domain.ProviderType{domain.ProviderCodex}},
	{"gpt-", []domain.ProviderType{domain.ProviderOpenAICompat, domain.ProviderCodex}},
	{"o1", []domain.ProviderType{domain.ProviderOpenAICompat, domain.ProviderCodex}},
	{"o3", []domain.ProviderType{domain.ProviderOpenAICompat, domain.ProviderCodex}},
	{"gemini-", []domain.ProviderType{domain.ProviderGeminiCLI}},
}

// CompatibleTypes returns the provider types eligible to serve model,
// via longest-prefix route-family mapping. An unrecognized model
// prefix is compatible with every provider type, so a custom or
// newly-added model still routes rather than failing closed.
func CompatibleTypes(model string) []domain.ProviderType {
	best := -1
	var types []domain.ProviderType
	for _, fam := range defaultRouteFamilies {
		if len(fam.prefix) <= best {
			continue
		}
		if hasPrefix(model, fam.prefix) {
			best = len(fam.prefix)
			types = fam.types
		}
	}
	if types == nil {
		return []domain.ProviderType{
			domain.ProviderClaude, domain.ProviderOpenAICompat,
			domain.ProviderCodex, domain.ProviderGeminiCLI,
		}
	}
	return types
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
