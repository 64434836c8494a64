package selector

import (
	"context"
	"testing"
	"time"

	"github.com/relaymux/gateway/internal/breaker"
	"github.com/relaymux/gateway/internal/domain"
)

type fakeRepo struct {
	providers []*domain.Provider
}

func (r *fakeRepo) ListEnabled(context.Context) ([]*domain.Provider, error) {
	return r.providers, nil
}

func (r *fakeRepo) ByID(_ context.Context, id int64) (*domain.Provider, error) {
	for _, p := range r.providers {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

type alwaysEligible struct{}

func (alwaysEligible) WithinLimits(*domain.Provider) bool { return true }

func newSession(model string) *domain.ProxySession {
	s := domain.NewProxySession()
	s.Model = model
	return s
}

func TestPickReturnsNilWhenNoProvidersEligible(t *testing.T) {
	repo := &fakeRepo{}
	sel := New(repo, breaker.NewRegistry(), alwaysEligible{}, NewStickyMap())

	p, err := sel.Pick(context.Background(), newSession("gpt-5"))
	if err != nil {
		t.Fatal(err)
	}
	if p != nil {
		t.Fatalf("expected nil provider, got %+v", p)
	}
}

func TestPickHonorsExclusion(t *testing.T) {
	repo := &fakeRepo{providers: []*domain.Provider{
		{ID: 1, Enabled: true, Type: domain.ProviderOpenAICompat, Weight: 1, Priority: 0},
		{ID: 2, Enabled: true, Type: domain.ProviderOpenAICompat, Weight: 1, Priority: 0},
	}}
	sel := New(repo, breaker.NewRegistry(), alwaysEligible{}, NewStickyMap())

	session := newSession("gpt-5")
	session.Exclude(1)

	for i := 0; i < 20; i++ {
		p, err := sel.Pick(context.Background(), session)
		if err != nil {
			t.Fatal(err)
		}
		if p == nil {
			t.Fatal("expected a provider")
		}
		if p.ID == 1 {
			t.Fatal("selector returned an excluded provider")
		}
	}
}

func TestPickPrefersLowestPriorityBand(t *testing.T) {
	repo := &fakeRepo{providers: []*domain.Provider{
		{ID: 1, Enabled: true, Type: domain.ProviderOpenAICompat, Weight: 1, Priority: 5},
		{ID: 2, Enabled: true, Type: domain.ProviderOpenAICompat, Weight: 1, Priority: 0},
	}}
	sel := New(repo, breaker.NewRegistry(), alwaysEligible{}, NewStickyMap())

	for i := 0; i < 20; i++ {
		p, err := sel.Pick(context.Background(), newSession("gpt-5"))
		if err != nil {
			t.Fatal(err)
		}
		if p.ID != 2 {
			t.Fatalf("expected the priority-0 provider, got %d", p.ID)
		}
	}
}

func TestPickSkipsOpenCircuit(t *testing.T) {
	repo := &fakeRepo{providers: []*domain.Provider{
		{ID: 1, Enabled: true, Type: domain.ProviderOpenAICompat, Weight: 1, Priority: 0},
		{ID: 2, Enabled: true, Type: domain.ProviderOpenAICompat, Weight: 1, Priority: 0},
	}}
	breakers := breaker.NewRegistry()
	for i := 0; i < breaker.FailureThreshold; i++ {
		breakers.RecordFailure(1, nil)
	}
	sel := New(repo, breakers, alwaysEligible{}, NewStickyMap())

	for i := 0; i < 20; i++ {
		p, err := sel.Pick(context.Background(), newSession("gpt-5"))
		if err != nil {
			t.Fatal(err)
		}
		if p.ID != 2 {
			t.Fatalf("expected provider 2 (circuit closed), got %d", p.ID)
		}
	}
}

func TestPickZeroWeightFallsBackToUniform(t *testing.T) {
	repo := &fakeRepo{providers: []*domain.Provider{
		{ID: 1, Enabled: true, Type: domain.ProviderOpenAICompat, Weight: 0, Priority: 0},
	}}
	sel := New(repo, breaker.NewRegistry(), alwaysEligible{}, NewStickyMap())

	p, err := sel.Pick(context.Background(), newSession("gpt-5"))
	if err != nil {
		t.Fatal(err)
	}
	if p == nil || p.ID != 1 {
		t.Fatalf("expected the sole zero-weight provider to be picked, got %+v", p)
	}
}

func TestPickStickySessionStability(t *testing.T) {
	repo := &fakeRepo{providers: []*domain.Provider{
		{ID: 1, Enabled: true, Type: domain.ProviderOpenAICompat, Weight: 1, Priority: 0},
		{ID: 2, Enabled: true, Type: domain.ProviderOpenAICompat, Weight: 100, Priority: 0},
	}}
	sel := New(repo, breaker.NewRegistry(), alwaysEligible{}, NewStickyMap())

	session := newSession("gpt-5")
	session.SessionID = "sess-1"

	first, err := sel.Pick(context.Background(), session)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 20; i++ {
		next, err := sel.Pick(context.Background(), session)
		if err != nil {
			t.Fatal(err)
		}
		if next.ID != first.ID {
			t.Fatalf("expected sticky provider %d, got %d", first.ID, next.ID)
		}
	}
}

func TestPickStickyFallsThroughWhenNoLongerEligible(t *testing.T) {
	repo := &fakeRepo{providers: []*domain.Provider{
		{ID: 1, Enabled: true, Type: domain.ProviderOpenAICompat, Weight: 1, Priority: 0},
		{ID: 2, Enabled: true, Type: domain.ProviderOpenAICompat, Weight: 1, Priority: 0},
	}}
	sticky := NewStickyMap()
	sticky.Set("sess-1", 1)

	breakers := breaker.NewRegistry()
	for i := 0; i < breaker.FailureThreshold; i++ {
		breakers.RecordFailure(1, nil)
	}
	sel := New(repo, breakers, alwaysEligible{}, sticky)

	session := newSession("gpt-5")
	session.SessionID = "sess-1"

	p, err := sel.Pick(context.Background(), session)
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != 2 {
		t.Fatalf("expected fallback to provider 2, got %d", p.ID)
	}
}

func TestPickSerializesHalfOpenProbeAdmission(t *testing.T) {
	repo := &fakeRepo{providers: []*domain.Provider{
		{ID: 1, Enabled: true, Type: domain.ProviderOpenAICompat, Weight: 1, Priority: 0},
		{ID: 2, Enabled: true, Type: domain.ProviderOpenAICompat, Weight: 1, Priority: 0},
	}}

	fixed := time.Now()
	breakers := breaker.NewRegistryWithClock(func() time.Time { return fixed })
	for i := 0; i < breaker.FailureThreshold; i++ {
		breakers.RecordFailure(1, nil)
	}
	// Advance the clock past provider 1's backoff so it promotes to
	// half-open on the next read, and exclude provider 2 so the only
	// remaining candidate is the half-open one.
	fixed = fixed.Add(time.Hour)

	sel := New(repo, breakers, alwaysEligible{}, NewStickyMap())

	session1 := newSession("gpt-5")
	session1.Exclude(2)
	p1, err := sel.Pick(context.Background(), session1)
	if err != nil {
		t.Fatal(err)
	}
	if p1 == nil || p1.ID != 1 {
		t.Fatalf("expected the single probe to admit provider 1, got %+v", p1)
	}

	session2 := newSession("gpt-5")
	session2.Exclude(2)
	p2, err := sel.Pick(context.Background(), session2)
	if err != nil {
		t.Fatal(err)
	}
	if p2 != nil {
		t.Fatalf("expected a concurrent probe to be refused while one is in flight, got %+v", p2)
	}
}

func TestPickFiltersByRouteFamily(t *testing.T) {
	repo := &fakeRepo{providers: []*domain.Provider{
		{ID: 1, Enabled: true, Type: domain.ProviderClaude, Weight: 1, Priority: 0},
		{ID: 2, Enabled: true, Type: domain.ProviderGeminiCLI, Weight: 1, Priority: 0},
	}}
	sel := New(repo, breaker.NewRegistry(), alwaysEligible{}, NewStickyMap())

	p, err := sel.Pick(context.Background(), newSession("claude-opus-4"))
	if err != nil {
		t.Fatal(err)
	}
	if p == nil || p.ID != 1 {
		t.Fatalf("expected the claude provider, got %+v", p)
	}
}
