package management

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/relaymux/gateway/internal/breaker"
	"github.com/relaymux/gateway/internal/collab"
	"github.com/relaymux/gateway/internal/domain"
	"github.com/relaymux/gateway/internal/ratelimit"
)

// providerView is the introspection shape returned by GET /providers: the
// static config plus live circuit and usage state, for operators checking
// why a provider isn't receiving traffic.
type providerView struct {
	ID            int64             `json:"id"`
	Name          string            `json:"name"`
	Type          string            `json:"type"`
	Enabled       bool              `json:"enabled"`
	GroupTag      string            `json:"group_tag,omitempty"`
	CircuitState  string            `json:"circuit_state"`
	TokensPerMin  float64           `json:"tokens_per_minute"`
	ReqsPerMin    float64           `json:"requests_per_minute"`
	ReqsPerDay    float64           `json:"requests_per_day"`
	Concurrent    int64             `json:"concurrent_sessions"`
	USDLast5Hours float64           `json:"usd_last_5_hours"`
	USDThisWeek   float64           `json:"usd_this_week"`
	USDThisMonth  float64           `json:"usd_this_month"`
}

// Register attaches the management API's read-only introspection routes
// to group.
func Register(group *gin.RouterGroup, providers collab.ProviderRepository, breakers *breaker.Registry, counter *ratelimit.UsageCounter) {
	h := &providersHandler{providers: providers, breakers: breakers, counter: counter}
	group.GET("/providers", h.list)
	group.GET("/providers/:id", h.get)
}

type providersHandler struct {
	providers collab.ProviderRepository
	breakers  *breaker.Registry
	counter   *ratelimit.UsageCounter
}

func (h *providersHandler) list(c *gin.Context) {
	all, err := h.providers.ListEnabled(c.Request.Context())
	if err != nil {
		respondInternalError(c, err.Error())
		return
	}
	views := make([]providerView, 0, len(all))
	for _, p := range all {
		views = append(views, h.view(p))
	}
	respondOK(c, views)
}

func (h *providersHandler) get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(c, "invalid provider id")
		return
	}
	p, err := h.providers.ByID(c.Request.Context(), id)
	if err != nil {
		respondInternalError(c, err.Error())
		return
	}
	if p == nil {
		respondNotFound(c, "provider not found")
		return
	}
	respondOK(c, h.view(p))
}

func (h *providersHandler) view(p *domain.Provider) providerView {
	snap := h.counter.Snapshot(p.ID)
	return providerView{
		ID:            p.ID,
		Name:          p.Name,
		Type:          string(p.Type),
		Enabled:       p.Enabled,
		GroupTag:      p.GroupTag,
		CircuitState:  string(h.breakers.State(p.ID)),
		TokensPerMin:  snap.TokensPerMinute,
		ReqsPerMin:    snap.RequestsPerMinute,
		ReqsPerDay:    snap.RequestsPerDay,
		Concurrent:    snap.Concurrent,
		USDLast5Hours: snap.USDLast5Hours,
		USDThisWeek:   snap.USDThisWeek,
		USDThisMonth:  snap.USDThisMonth,
	}
}
