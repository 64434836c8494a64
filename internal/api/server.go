// Package api wires the HTTP surface: the four inbound wire formats, the
// auth -> sensitive-word -> rate-limit -> select -> forward -> dispatch
// guard chain, and the management introspection endpoints.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/relaymux/gateway/internal/api/handlers/management"
	"github.com/relaymux/gateway/internal/api/middleware"
	"github.com/relaymux/gateway/internal/breaker"
	"github.com/relaymux/gateway/internal/collab"
	"github.com/relaymux/gateway/internal/collab/memory"
	"github.com/relaymux/gateway/internal/collab/pgstats"
	"github.com/relaymux/gateway/internal/config"
	"github.com/relaymux/gateway/internal/dispatch"
	"github.com/relaymux/gateway/internal/domain"
	"github.com/relaymux/gateway/internal/forward"
	"github.com/relaymux/gateway/internal/jsonutil"
	log "github.com/relaymux/gateway/internal/logging"
	"github.com/relaymux/gateway/internal/proxyerr"
	"github.com/relaymux/gateway/internal/ratelimit"
	"github.com/relaymux/gateway/internal/selector"
	"github.com/relaymux/gateway/internal/xlate"
	"github.com/relaymux/gateway/internal/xlate/ir"
)

// Server holds every collaborator the guard chain needs, rebuilt whenever
// the config is reloaded.
type Server struct {
	breakers  *breaker.Registry
	counter   *ratelimit.UsageCounter
	limiter   *ratelimit.Limiter
	estimator *ratelimit.TokenEstimator
	sticky    *selector.StickyMap
	stats     collab.StatisticsSink
	dispatch  *dispatch.Dispatcher

	// cacheMu guards the collaborators below, which ApplyConfig swaps
	// wholesale on every hot-reload while requests are in flight.
	cacheMu   sync.RWMutex
	providers collab.ProviderRepository
	auth      collab.AuthN
	guard     collab.SensitiveWordGuard
	prices    collab.PriceBook
	selector  *selector.Selector
	forwarder *forward.Forwarder
	cfg       *config.Config
}

// snapshot is a consistent, point-in-time view of the reloadable
// collaborators, taken once at the top of a request so a concurrent
// ApplyConfig can't mix old and new state within one request.
type snapshot struct {
	providers collab.ProviderRepository
	auth      collab.AuthN
	guard     collab.SensitiveWordGuard
	prices    collab.PriceBook
	selector  *selector.Selector
	forwarder *forward.Forwarder
	cfg       *config.Config
}

func (s *Server) snapshot() snapshot {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return snapshot{
		providers: s.providers,
		auth:      s.auth,
		guard:     s.guard,
		prices:    s.prices,
		selector:  s.selector,
		forwarder: s.forwarder,
		cfg:       s.cfg,
	}
}

// New builds a Server from cfg: an in-memory statistics sink when
// cfg.DatabaseDSN is empty, or a Postgres-backed one otherwise.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	store := memory.NewProviderStore()
	for _, p := range cfg.DomainProviders() {
		store.Put(p)
	}

	authN := memory.NewAPIKeyAuthN()
	for token, userID := range cfg.APIKeys {
		authN.AddKey(token, domain.Principal{UserID: userID, KeyID: token})
	}

	var stats collab.StatisticsSink = memory.NopStatisticsSink{}
	if cfg.DatabaseDSN != "" {
		parsed, err := config.ParseDSN(cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("api: parse database-dsn: %w", err)
		}
		if !parsed.IsPostgres() {
			return nil, fmt.Errorf("api: statistics sink requires a postgres:// dsn, got backend %q", parsed.Backend)
		}
		sink, err := pgstats.New(ctx, parsed.URL)
		if err != nil {
			return nil, fmt.Errorf("api: connect statistics sink: %w", err)
		}
		sink.Start()
		stats = sink
	}

	breakers := breaker.NewRegistry()
	counter := ratelimit.NewUsageCounter()
	limiter := ratelimit.NewLimiter(counter)
	sticky := selector.NewStickyMap()
	sel := selector.New(store, breakers, limiter, sticky)

	s := &Server{
		providers: store,
		auth:      authN,
		guard:     memory.NewWordListGuard(cfg.SensitiveWords),
		prices:    memory.NewStaticPriceBook(cfg.PricePerMtok),
		stats:     stats,
		breakers:  breakers,
		counter:   counter,
		limiter:   limiter,
		estimator: ratelimit.NewTokenEstimator(),
		sticky:    sticky,
		selector:  sel,
		forwarder: forward.New(&http.Client{Timeout: 5 * time.Minute}, sel, breakers, limiter),
		dispatch:  dispatch.New(),
		cfg:       cfg,
	}
	return s, nil
}

// ApplyConfig rebuilds the provider set, auth keys, sensitive-word list and
// price book from a reloaded config, without tearing down circuit state,
// sliding-window counters or sticky-session affinity.
func (s *Server) ApplyConfig(cfg *config.Config) {
	store := memory.NewProviderStore()
	for _, p := range cfg.DomainProviders() {
		store.Put(p)
	}
	authN := memory.NewAPIKeyAuthN()
	for token, userID := range cfg.APIKeys {
		authN.AddKey(token, domain.Principal{UserID: userID, KeyID: token})
	}
	sel := selector.New(store, s.breakers, s.limiter, s.sticky)
	fwd := forward.New(&http.Client{Timeout: 5 * time.Minute}, sel, s.breakers, s.limiter)

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.providers = store
	s.auth = authN
	s.guard = memory.NewWordListGuard(cfg.SensitiveWords)
	s.prices = memory.NewStaticPriceBook(cfg.PricePerMtok)
	s.selector = sel
	s.forwarder = fwd
	s.cfg = cfg
}

// liveProviders is a collab.ProviderRepository that always reads through to
// the Server's current snapshot, so the management API reflects the latest
// hot-reloaded provider set instead of the one captured at Engine() build
// time.
type liveProviders struct{ s *Server }

func (l liveProviders) ListEnabled(ctx context.Context) ([]*domain.Provider, error) {
	return l.s.snapshot().providers.ListEnabled(ctx)
}

func (l liveProviders) ByID(ctx context.Context, id int64) (*domain.Provider, error) {
	return l.s.snapshot().providers.ByID(ctx, id)
}

// Engine builds the gin engine with every route and middleware attached.
func (s *Server) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(middleware.RequestSizeLimitWithConfigMiddleware(func() int64 { return s.snapshot().cfg.MaxRequestBytes }))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	r.POST("/v1/chat/completions", s.handleInbound(domain.FormatOpenAI))
	r.POST("/v1/messages", s.handleInbound(domain.FormatClaude))
	r.POST("/v1/responses", s.handleInbound(domain.FormatResponse))
	r.POST("/v1beta/models/*model", s.handleInbound(domain.FormatGeminiCLI))

	mgmt := r.Group("/v1/management")
	mgmt.Use(s.requireManagementKey())
	management.Register(mgmt, liveProviders{s}, s.breakers, s.counter)

	return r
}

// requireManagementKey gates the management API behind the local
// credentials file's key, independent of the per-provider AuthN used for
// inbound inference traffic.
func (s *Server) requireManagementKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		want := config.GetManagementKey()
		if want == "" {
			c.Next()
			return
		}
		got := c.GetHeader("Authorization")
		if got != "Bearer "+want {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// handleInbound returns the gin handler for one client-facing wire format,
// running the full auth -> sensitive-word -> rate-limit -> select ->
// forward -> dispatch guard chain.
func (s *Server) handleInbound(clientFormat domain.Format) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		snap := s.snapshot()

		principal, err := snap.auth.Authenticate(ctx, c.Request.Header)
		if err != nil {
			writeError(c, proxyerr.New(proxyerr.KindUnauthorized, "invalid credentials"))
			return
		}

		raw, err := readBody(c)
		if err != nil {
			writeError(c, proxyerr.Wrap(proxyerr.KindInvalidRequest, "failed to read request body", err))
			return
		}

		body, err := jsonutil.UnmarshalMap(raw)
		if err != nil {
			writeError(c, proxyerr.Wrap(proxyerr.KindInvalidRequest, "failed to decode request body", err))
			return
		}

		// The route a request arrived on is only a default hint; the body's
		// own shape is authoritative, so a request misrouted relative to its
		// payload still gets parsed and rendered in its real format.
		detected := domain.DetectFormat(body)

		parsed, err := xlate.ParseRequest(string(domain.MapClientToProviderFormat(detected)), raw)
		if err != nil {
			writeError(c, proxyerr.Wrap(proxyerr.KindInvalidRequest, "failed to parse request body", err))
			return
		}

		if blocked, reason := snap.guard.Check(ctx, body); blocked {
			writeError(c, proxyerr.New(proxyerr.KindBlocked, reason))
			return
		}

		clientFormat := detected

		session := domain.NewProxySession()
		session.Model = parsed.Model
		session.Body = body
		session.Method = http.MethodPost
		session.URL = c.Request.URL
		session.Headers = c.Request.Header.Clone()
		session.UserAgent = c.Request.UserAgent()
		session.OriginalFormat = clientFormat
		session.Principal = principal
		session.SessionID = c.GetHeader("X-Session-Id")

		tokens := s.estimator.EstimateRequest(parsed)

		start := time.Now()
		resp, err := snap.forwarder.Forward(ctx, session)
		if err != nil {
			s.recordOutcome(ctx, snap, session, principal, tokens, 0, start, collab.OutcomeFailure)
			writeError(c, err)
			return
		}
		defer resp.Body.Close()

		// The forwarder already acquired the concurrency slot at selection
		// time; it's released here once the response has been fully
		// streamed back to the client.
		provider := session.Provider
		defer s.limiter.ReleaseConcurrent(provider.ID)

		c.Status(resp.StatusCode)
		for k, vs := range resp.Header {
			for _, v := range vs {
				c.Writer.Header().Add(k, v)
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			errBody, _ := io.ReadAll(io.LimitReader(resp.Body, proxyerr.MaxTruncatedBodyLen))
			rendered := dispatch.RenderErrorEnvelope(domain.MapProviderType(provider.Type), clientFormat, resp.StatusCode, errBody)
			c.Writer.Write(rendered)
			s.recordOutcome(ctx, snap, session, principal, tokens, 0, start, collab.OutcomeFailure)
			return
		}

		messageID := "msg_" + uuid.NewString()
		var usageTokens int
		err = s.dispatch.Dispatch(ctx, domain.MapProviderType(provider.Type), clientFormat,
			resp.Header.Get("Content-Type"), resp.Body, session.Model, messageID, c.Writer,
			func(u *ir.Usage) {
				if u != nil {
					usageTokens = u.PromptTokens + u.CompletionTokens
				}
			})
		if err != nil {
			log.Warnf("api: dispatch error for provider %d: %v", provider.ID, err)
		}

		s.recordOutcome(ctx, snap, session, principal, tokens, usageTokens, start, collab.OutcomeSuccess)
	}
}

func (s *Server) recordOutcome(ctx context.Context, snap snapshot, session *domain.ProxySession, principal domain.Principal, estimatedTokens, actualTokens int, start time.Time, outcome collab.Outcome) {
	tokens := actualTokens
	if tokens == 0 {
		tokens = estimatedTokens
	}

	var usd float64
	if session.Provider != nil {
		if perMtok, ok := snap.prices.Lookup(ctx, session.Model); ok {
			usd = perMtok * float64(tokens) / 1_000_000
		} else if session.Provider.CostPerMtok != nil {
			usd = *session.Provider.CostPerMtok * float64(tokens) / 1_000_000
		}
		s.limiter.RecordUsage(session.Provider.ID, tokens, usd)
	}

	rec := collab.UsageRecord{
		UserID:  principal.UserID,
		Model:   session.Model,
		Latency: time.Since(start),
		Outcome: outcome,
	}
	if session.Provider != nil {
		rec.ProviderID = session.Provider.ID
	}
	if err := s.stats.Record(ctx, rec); err != nil {
		log.Warnf("api: failed to record usage: %v", err)
	}
}

func writeError(c *gin.Context, err error) {
	var pe *proxyerr.Error
	if e, ok := err.(*proxyerr.Error); ok {
		pe = e
	} else {
		pe = proxyerr.Wrap(proxyerr.KindInvalidRequest, "request failed", err)
	}
	c.JSON(pe.StatusCode(), gin.H{"error": gin.H{"message": pe.Error(), "type": pe.Kind}})
}

func readBody(c *gin.Context) ([]byte, error) {
	return io.ReadAll(c.Request.Body)
}

// Run loads cfg, builds the server, starts config hot-reload, and blocks
// until SIGINT/SIGTERM.
func Run(cfg *config.Config, configPath string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := New(ctx, cfg)
	if err != nil {
		return err
	}

	stop := make(chan struct{})
	defer close(stop)
	if err := config.Watch(configPath, srv.ApplyConfig, stop); err != nil {
		log.Warnf("api: config hot-reload disabled: %v", err)
	}

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Engine(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("relaymux listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Infof("relaymux shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
