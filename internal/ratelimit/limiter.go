// Package ratelimit implements the rate-limit guard: per-provider sliding
// windows over tokens, requests and USD spent, a concurrent-session cap
// feeding provider eligibility checks, and local token estimation used as
// fallback usage when a response carries none.
package ratelimit

import "github.com/relaymux/gateway/internal/domain"

// Limiter reports whether a provider currently has headroom under its
// tpm/rpm/rpd/cc/USD ceilings. It implements internal/selector's
// EligibilityGuard interface.
type Limiter struct {
	counter *UsageCounter
}

func NewLimiter(counter *UsageCounter) *Limiter {
	return &Limiter{counter: counter}
}

// WithinLimits reports whether p has headroom on every configured
// ceiling. A ceiling of zero means "unconfigured", not "zero allowed",
// matching how the rest of the ceilings on Provider are optional.
func (l *Limiter) WithinLimits(p *domain.Provider) bool {
	if p == nil {
		return false
	}
	snap := l.counter.Snapshot(p.ID)

	if p.TPM > 0 && snap.TokensPerMinute >= float64(p.TPM) {
		return false
	}
	if p.RPM > 0 && snap.RequestsPerMinute >= float64(p.RPM) {
		return false
	}
	if p.RPD > 0 && snap.RequestsPerDay >= float64(p.RPD) {
		return false
	}
	if p.CC > 0 && snap.Concurrent >= int64(p.CC) {
		return false
	}
	if p.LimitConcurrentSessions > 0 && snap.Concurrent >= int64(p.LimitConcurrentSessions) {
		return false
	}
	if p.Limit5hUSD > 0 && snap.USDLast5Hours >= p.Limit5hUSD {
		return false
	}
	if p.LimitWeeklyUSD > 0 && snap.USDThisWeek >= p.LimitWeeklyUSD {
		return false
	}
	if p.LimitMonthlyUSD > 0 && snap.USDThisMonth >= p.LimitMonthlyUSD {
		return false
	}
	return true
}

// RecordUsage folds a completed upstream response's token count and USD
// cost into the provider's sliding windows.
func (l *Limiter) RecordUsage(providerID int64, tokens int, usd float64) {
	l.counter.Record(providerID, tokens, usd)
}

// AcquireConcurrent and ReleaseConcurrent expose the counter's concurrent-
// session bookkeeping directly, since the dispatcher must release on
// every exit path regardless of how the request ended.
func (l *Limiter) AcquireConcurrent(providerID int64) { l.counter.AcquireConcurrent(providerID) }
func (l *Limiter) ReleaseConcurrent(providerID int64) { l.counter.ReleaseConcurrent(providerID) }
