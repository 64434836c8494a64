// Package selector implements the Provider Selector: route-family
// filtering, eligibility exclusion, sticky-session affinity, and
// priority-banded weighted selection.
package selector

import (
	"context"
	"math/rand/v2"
	"sort"

	"github.com/relaymux/gateway/internal/breaker"
	"github.com/relaymux/gateway/internal/collab"
	"github.com/relaymux/gateway/internal/domain"
)

// EligibilityGuard reports whether a provider currently has headroom under
// its rate/budget/concurrency ceilings. internal/ratelimit.Limiter
// implements this.
type EligibilityGuard interface {
	WithinLimits(p *domain.Provider) bool
}

// Selector picks a provider for a session, honoring route compatibility,
// eligibility, sticky affinity, and weighted priority bands.
type Selector struct {
	repo     collab.ProviderRepository
	breakers *breaker.Registry
	guard    EligibilityGuard
	sticky   *StickyMap
}

func New(repo collab.ProviderRepository, breakers *breaker.Registry, guard EligibilityGuard, sticky *StickyMap) *Selector {
	return &Selector{repo: repo, breakers: breakers, guard: guard, sticky: sticky}
}

// Pick runs the route-filter, eligibility, sticky-affinity and weighted-
// draw pipeline. It returns nil,nil (not an error) when no eligible
// provider exists; a non-nil error means the provider repository itself
// failed. A half-open candidate is only returned once
// breaker.Registry.AllowProbe admits it; a candidate whose single probe
// slot is already taken is dropped and the next-best candidate tried, so
// the half-open state never dispatches more than one concurrent probe.
func (s *Selector) Pick(ctx context.Context, session *domain.ProxySession) (*domain.Provider, error) {
	all, err := s.repo.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	eligible := s.filterEligible(all, session)

	for len(eligible) > 0 {
		var picked *domain.Provider
		reason := "selected"

		if session.SessionID != "" {
			if id, ok := s.sticky.Get(session.SessionID); ok {
				for _, p := range eligible {
					if p.ID == id {
						picked = p
						reason = "sticky"
						break
					}
				}
			}
		}

		if picked == nil {
			band := lowestPriorityBand(eligible)
			picked = weightedDraw(band)
			if picked == nil {
				return nil, nil
			}
		}

		if !s.breakers.AllowProbe(picked.ID) {
			eligible = excludeProviderID(eligible, picked.ID)
			continue
		}

		session.RecordDecision(domain.DecisionEntry{ProviderID: picked.ID, Reason: reason, CircuitState: string(s.breakers.State(picked.ID))})
		if session.SessionID != "" {
			s.sticky.Set(session.SessionID, picked.ID)
		}
		return picked, nil
	}
	return nil, nil
}

func excludeProviderID(providers []*domain.Provider, id int64) []*domain.Provider {
	out := make([]*domain.Provider, 0, len(providers))
	for _, p := range providers {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

func (s *Selector) filterEligible(providers []*domain.Provider, session *domain.ProxySession) []*domain.Provider {
	compatible := make(map[domain.ProviderType]struct{})
	for _, t := range CompatibleTypes(session.Model) {
		compatible[t] = struct{}{}
	}

	out := make([]*domain.Provider, 0, len(providers))
	for _, p := range providers {
		if p == nil || !p.Enabled || p.IsTombstoned() {
			continue
		}
		if _, ok := compatible[p.Type]; !ok {
			continue
		}
		if _, excluded := session.Excluded[p.ID]; excluded {
			continue
		}
		if s.breakers.State(p.ID) == breaker.Open {
			continue
		}
		if s.guard != nil && !s.guard.WithinLimits(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// lowestPriorityBand returns the subset of eligible sharing the lowest
// (best) priority value.
func lowestPriorityBand(eligible []*domain.Provider) []*domain.Provider {
	best := eligible[0].Priority
	for _, p := range eligible[1:] {
		if p.Priority < best {
			best = p.Priority
		}
	}
	band := make([]*domain.Provider, 0, len(eligible))
	for _, p := range eligible {
		if p.Priority == best {
			band = append(band, p)
		}
	}
	return band
}

// weightedDraw performs a weighted random draw over band's Weight field.
// Zero-weight providers are excluded from the draw unless they are the
// only candidates, in which case the draw is uniform.
func weightedDraw(band []*domain.Provider) *domain.Provider {
	if len(band) == 0 {
		return nil
	}
	if len(band) == 1 {
		return band[0]
	}

	weighted := make([]*domain.Provider, 0, len(band))
	total := 0
	for _, p := range band {
		if p.Weight > 0 {
			weighted = append(weighted, p)
			total += p.Weight
		}
	}
	if len(weighted) == 0 {
		sorted := sortedByID(band)
		return sorted[rand.IntN(len(sorted))]
	}

	sorted := sortedByID(weighted)
	r := rand.IntN(total)
	cum := 0
	for _, p := range sorted {
		cum += p.Weight
		if r < cum {
			return p
		}
	}
	return sorted[len(sorted)-1]
}

// sortedByID gives the weighted draw a deterministic iteration order so
// that, for a fixed RNG seed, the pick is reproducible.
func sortedByID(providers []*domain.Provider) []*domain.Provider {
	out := append([]*domain.Provider(nil), providers...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
