package ratelimit

import (
	"testing"

	"github.com/relaymux/gateway/internal/domain"
)

func TestWithinLimitsAllowsUnconfiguredCeilings(t *testing.T) {
	l := NewLimiter(NewUsageCounter())
	p := &domain.Provider{ID: 1}
	if !l.WithinLimits(p) {
		t.Fatal("expected a provider with no ceilings configured to always be within limits")
	}
}

func TestWithinLimitsRejectsAtTPMCeiling(t *testing.T) {
	counter := NewUsageCounter()
	l := NewLimiter(counter)
	p := &domain.Provider{ID: 1, TPM: 100}

	counter.Record(1, 100, 0)
	if l.WithinLimits(p) {
		t.Fatal("expected provider at tpm ceiling to be ineligible")
	}
}

func TestWithinLimitsRejectsAtRPDCeiling(t *testing.T) {
	counter := NewUsageCounter()
	l := NewLimiter(counter)
	p := &domain.Provider{ID: 1, RPD: 2}

	counter.Record(1, 1, 0)
	counter.Record(1, 1, 0)
	if l.WithinLimits(p) {
		t.Fatal("expected provider at rpd ceiling to be ineligible")
	}
}

func TestWithinLimitsRejectsAtConcurrencyCap(t *testing.T) {
	counter := NewUsageCounter()
	l := NewLimiter(counter)
	p := &domain.Provider{ID: 1, CC: 1}

	counter.AcquireConcurrent(1)
	if l.WithinLimits(p) {
		t.Fatal("expected provider at its concurrent-call cap to be ineligible")
	}
}

func TestWithinLimitsRejectsAtUSDCeilings(t *testing.T) {
	counter := NewUsageCounter()
	l := NewLimiter(counter)
	p := &domain.Provider{ID: 1, Limit5hUSD: 1.0}

	counter.Record(1, 0, 1.0)
	if l.WithinLimits(p) {
		t.Fatal("expected provider at its 5h USD ceiling to be ineligible")
	}
}

func TestWithinLimitsNilProvider(t *testing.T) {
	l := NewLimiter(NewUsageCounter())
	if l.WithinLimits(nil) {
		t.Fatal("expected a nil provider to never be within limits")
	}
}
