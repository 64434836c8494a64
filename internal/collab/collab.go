// Package collab declares the interfaces the core pipeline consumes from
// systems deliberately kept out of scope: persistent provider storage, end
// user authentication, sensitive-word filtering, price-book lookups, and
// statistics aggregation. internal/collab/memory and internal/collab/pgstats
// provide reference implementations sufficient to run and test the proxy
// standalone; neither is the administrative web UI or relational store the
// core itself excludes.
package collab

import (
	"context"
	"time"

	"github.com/relaymux/gateway/internal/domain"
)

// ProviderRepository is the source of truth for provider configuration.
type ProviderRepository interface {
	ListEnabled(ctx context.Context) ([]*domain.Provider, error)
	ByID(ctx context.Context, id int64) (*domain.Provider, error)
}

// AuthN authenticates an inbound request from its headers.
type AuthN interface {
	Authenticate(ctx context.Context, headers map[string][]string) (domain.Principal, error)
}

// SensitiveWordGuard inspects a request body for disallowed content.
type SensitiveWordGuard interface {
	Check(ctx context.Context, body map[string]any) (blocked bool, reason string)
}

// PriceBook resolves a model's cost per million tokens, in USD, when known.
type PriceBook interface {
	Lookup(ctx context.Context, model string) (usdPerMtok float64, ok bool)
}

// Outcome classifies a completed request for statistics purposes.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// StatisticsSink records completed request accounting data.
type StatisticsSink interface {
	Record(ctx context.Context, rec UsageRecord) error
}

// UsageRecord is one row of accounting data for a completed request.
type UsageRecord struct {
	UserID     string
	ProviderID int64
	Model      string
	TokensIn   int
	TokensOut  int
	Latency    time.Duration
	Outcome    Outcome
}
