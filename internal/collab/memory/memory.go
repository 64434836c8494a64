// Package memory provides in-memory reference implementations of the
// internal/collab interfaces, sufficient to run and test the proxy
// standalone without a real credential store or telemetry backend.
package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/relaymux/gateway/internal/collab"
	"github.com/relaymux/gateway/internal/domain"
)

// ProviderStore is a concurrency-safe in-memory ProviderRepository. Callers
// mutate it via Put/Remove; ListEnabled/ByID never see a torn read thanks
// to the RWMutex.
type ProviderStore struct {
	mu        sync.RWMutex
	providers map[int64]*domain.Provider
}

func NewProviderStore() *ProviderStore {
	return &ProviderStore{providers: make(map[int64]*domain.Provider)}
}

func (s *ProviderStore) Put(p *domain.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[p.ID] = p
}

func (s *ProviderStore) Remove(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.providers, id)
}

func (s *ProviderStore) ListEnabled(_ context.Context) ([]*domain.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		if p.Enabled && !p.IsTombstoned() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *ProviderStore) ByID(_ context.Context, id int64) (*domain.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[id]
	if !ok {
		return nil, errors.New("memory: provider not found")
	}
	return p, nil
}

var _ collab.ProviderRepository = (*ProviderStore)(nil)

// APIKeyAuthN authenticates requests against a static map of bearer
// tokens to principals: a simple lookup returning a principal.
type APIKeyAuthN struct {
	mu   sync.RWMutex
	keys map[string]domain.Principal
}

func NewAPIKeyAuthN() *APIKeyAuthN {
	return &APIKeyAuthN{keys: make(map[string]domain.Principal)}
}

func (a *APIKeyAuthN) AddKey(token string, principal domain.Principal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys[token] = principal
}

func (a *APIKeyAuthN) Authenticate(_ context.Context, headers map[string][]string) (domain.Principal, error) {
	token := bearerToken(headers)
	if token == "" {
		return domain.Principal{}, errors.New("memory: missing credentials")
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	principal, ok := a.keys[token]
	if !ok {
		return domain.Principal{}, errors.New("memory: unknown api key")
	}
	return principal, nil
}

func bearerToken(headers map[string][]string) string {
	for _, key := range []string{"Authorization", "X-Api-Key"} {
		for _, v := range headers[key] {
			v = strings.TrimSpace(v)
			if after, ok := strings.CutPrefix(v, "Bearer "); ok {
				return after
			}
			if v != "" {
				return v
			}
		}
	}
	return ""
}

var _ collab.AuthN = (*APIKeyAuthN)(nil)

// WordListGuard blocks requests whose serialized text contains any of a
// configured set of case-insensitive substrings.
type WordListGuard struct {
	words []string
}

func NewWordListGuard(words []string) *WordListGuard {
	lower := make([]string, len(words))
	for i, w := range words {
		lower[i] = strings.ToLower(w)
	}
	return &WordListGuard{words: lower}
}

func (g *WordListGuard) Check(_ context.Context, body map[string]any) (bool, string) {
	if len(g.words) == 0 {
		return false, ""
	}
	text := strings.ToLower(flattenText(body))
	for _, w := range g.words {
		if w != "" && strings.Contains(text, w) {
			return true, "matched sensitive word: " + w
		}
	}
	return false, ""
}

func flattenText(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		var sb strings.Builder
		for _, child := range val {
			sb.WriteString(flattenText(child))
			sb.WriteByte(' ')
		}
		return sb.String()
	case []any:
		var sb strings.Builder
		for _, child := range val {
			sb.WriteString(flattenText(child))
			sb.WriteByte(' ')
		}
		return sb.String()
	default:
		return ""
	}
}

var _ collab.SensitiveWordGuard = (*WordListGuard)(nil)

// StaticPriceBook resolves cost per million tokens from a fixed map,
// configured at startup from the app config.
type StaticPriceBook struct {
	prices map[string]float64
}

func NewStaticPriceBook(prices map[string]float64) *StaticPriceBook {
	return &StaticPriceBook{prices: prices}
}

func (b *StaticPriceBook) Lookup(_ context.Context, model string) (float64, bool) {
	v, ok := b.prices[model]
	return v, ok
}

var _ collab.PriceBook = (*StaticPriceBook)(nil)

// NopStatisticsSink discards every record. Useful for tests and for
// running the proxy without an accounting backend configured.
type NopStatisticsSink struct{}

func (NopStatisticsSink) Record(context.Context, collab.UsageRecord) error { return nil }

var _ collab.StatisticsSink = NopStatisticsSink{}
