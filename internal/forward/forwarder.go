// Package forward implements the Forwarder: the retry/failover state
// machine that drives a single logical client request across one initial
// provider attempt plus up to MaxRetryAttempts retries.
package forward

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/relaymux/gateway/internal/breaker"
	"github.com/relaymux/gateway/internal/domain"
	"github.com/relaymux/gateway/internal/jsonutil"
	"github.com/relaymux/gateway/internal/proxyerr"
	"github.com/relaymux/gateway/internal/selector"
	"github.com/relaymux/gateway/internal/xlate"
)

// MaxRetryAttempts bounds how many alternate providers a single logical
// request may try before the forwarder gives up.
const MaxRetryAttempts = 3

// Fetcher issues the outbound HTTP call. *http.Client satisfies this;
// tests substitute a stub.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// ConcurrencyTracker tracks in-flight requests per provider so the
// selector's concurrency ceiling sees attempts as soon as they're
// dispatched, not once they complete. internal/ratelimit.Limiter
// implements this.
type ConcurrencyTracker interface {
	AcquireConcurrent(providerID int64)
	ReleaseConcurrent(providerID int64)
}

// Forwarder executes the PICK -> TRANSLATE -> SANITIZE -> FETCH loop.
type Forwarder struct {
	client      Fetcher
	selector    *selector.Selector
	breakers    *breaker.Registry
	concurrency ConcurrencyTracker
}

func New(client Fetcher, sel *selector.Selector, breakers *breaker.Registry, concurrency ConcurrencyTracker) *Forwarder {
	return &Forwarder{client: client, selector: sel, breakers: breakers, concurrency: concurrency}
}

// Forward runs the retry/failover loop for session and returns the
// upstream 2xx response, or an *proxyerr.Error wrapping every attempt's
// last failure once the retry budget is exhausted.
func (f *Forwarder) Forward(ctx context.Context, session *domain.ProxySession) (*http.Response, error) {
	var lastErr *proxyerr.Error
	exhausted := false

	rp := retrypolicy.NewBuilder[*http.Response]().
		WithMaxRetries(MaxRetryAttempts).
		WithBackoff(10*time.Millisecond, 200*time.Millisecond).
		HandleIf(func(_ *http.Response, err error) bool {
			return err != nil && !exhausted
		}).
		Build()

	resp, err := failsafe.With[*http.Response](rp).WithContext(ctx).Get(func() (*http.Response, error) {
		return f.attempt(ctx, session, &lastErr, &exhausted)
	})
	if err != nil {
		if lastErr != nil {
			return nil, proxyerr.AllProvidersFailed(lastErr)
		}
		var pe *proxyerr.Error
		if errors.As(err, &pe) {
			return nil, pe
		}
		return nil, proxyerr.Wrap(proxyerr.KindAllProvidersFailed, "all eligible providers failed", err)
	}
	return resp, nil
}

// attempt runs one PICK -> TRANSLATE -> SANITIZE -> FETCH cycle. On
// failure it records the breaker failure, excludes the provider from
// future picks within this session, and returns an error the retry
// policy inspects to decide whether to try again. lastErr accumulates the
// most recent real attempt failure so that, if the selector eventually
// returns no alternative, Forward can raise AllProvidersFailed carrying
// that failure's payload rather than a generic "no provider" error.
//
// The concurrency tracker is acquired the moment a provider is picked, not
// once the attempt succeeds, so the selector's concurrency ceiling reflects
// in-flight requests. A failed attempt releases it before the next pick; a
// successful attempt leaves it held for the caller to release once the
// response body has been fully consumed.
func (f *Forwarder) attempt(ctx context.Context, session *domain.ProxySession, lastErr **proxyerr.Error, exhausted *bool) (*http.Response, error) {
	provider, err := f.selector.Pick(ctx, session)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		*exhausted = true
		if *lastErr != nil {
			return nil, *lastErr
		}
		return nil, proxyerr.New(proxyerr.KindNoProviderAvailable, "no eligible provider remains")
	}
	session.Provider = provider

	if f.concurrency != nil {
		f.concurrency.AcquireConcurrent(provider.ID)
	}

	resp, perr := f.doAttempt(ctx, session, provider)
	if perr != nil {
		if f.concurrency != nil {
			f.concurrency.ReleaseConcurrent(provider.ID)
		}
		*lastErr = perr
		f.breakers.RecordFailure(provider.ID, perr)
		session.RecordDecision(domain.DecisionEntry{
			ProviderID:   provider.ID,
			Reason:       "attempt_failed",
			CircuitState: string(f.breakers.State(provider.ID)),
			ErrorMessage: perr.Error(),
		})
		session.Exclude(provider.ID)
		return nil, perr
	}

	f.breakers.RecordSuccess(provider.ID)
	session.RecordDecision(domain.DecisionEntry{
		ProviderID:   provider.ID,
		Reason:       "attempt_succeeded",
		CircuitState: string(f.breakers.State(provider.ID)),
	})
	return resp, nil
}

// doAttempt drives one full request cycle against a single provider:
// model redirection, format translation, Codex sanitization, outbound
// request construction, and dispatch.
func (f *Forwarder) doAttempt(ctx context.Context, session *domain.ProxySession, provider *domain.Provider) (*http.Response, *proxyerr.Error) {
	session.Model = provider.RedirectModel(session.Model)

	fromFormat := domain.MapClientToProviderFormat(session.OriginalFormat)
	toFormat := domain.MapProviderType(provider.Type)

	body := session.Body
	if fromFormat != toFormat && fromFormat != domain.FormatUnknown && toFormat != domain.FormatUnknown {
		if translated, ok := translateBody(session, fromFormat, toFormat); ok {
			body = translated
		}
		// Translator failure keeps the original body and proceeds in
		// degraded mode rather than failing the attempt outright.
	}

	if toFormat == domain.FormatCodex {
		body = xlate.SanitizeCodexRequest(body, session.UserAgent, session.Model)
	}

	method, target, headers := buildOutboundRequest(session, provider, toFormat)

	var payload []byte
	if method != http.MethodGet && method != http.MethodHead {
		encoded, err := jsonutil.Marshal(body)
		if err != nil {
			return nil, proxyerr.Wrap(proxyerr.KindInvalidRequest, "failed to encode outbound body", err)
		}
		payload = encoded
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, proxyerr.Wrap(proxyerr.KindInvalidRequest, "failed to build outbound request", err)
	}
	req.Header = headers

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, proxyerr.UpstreamNetwork(provider.ID, provider.Name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, proxyerr.MaxTruncatedBodyLen))
		return nil, proxyerr.UpstreamHTTP(provider.ID, provider.Name, resp.StatusCode, proxyerr.TruncateBody(errBody))
	}

	return resp, nil
}

// translateBody runs the request through the format registry, updating
// the translated request's model to the (possibly redirected) session
// model. It returns ok=false on any translation failure.
func translateBody(session *domain.ProxySession, fromFormat, toFormat domain.Format) (map[string]any, bool) {
	payload, err := jsonutil.Marshal(session.Body)
	if err != nil {
		return nil, false
	}
	parsed, err := xlate.ParseRequest(string(fromFormat), payload)
	if err != nil {
		return nil, false
	}
	parsed.Model = session.Model
	rendered, err := xlate.RenderRequest(string(toFormat), parsed)
	if err != nil {
		return nil, false
	}
	return rendered, true
}
