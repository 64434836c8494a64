package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/relaymux/gateway/internal/config"
	"github.com/relaymux/gateway/internal/jsonutil"
)

func newTestUpstream(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}))
}

func newTestServer(t *testing.T, upstreamURL string) *Server {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.APIKeys = map[string]string{"secret": "user-1"}
	cfg.Providers = []config.Provider{{
		ID:         1,
		Name:       "primary",
		Type:       "openai-compatible",
		BaseURL:    upstreamURL,
		Credential: "upstream-key",
	}}
	srv, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv
}

const chatCompletionBody = `{"model":"gpt-4","messages":[{"role":"user","content":"hi"}]}`

func TestHandleInboundPassthroughOnMatchingFormat(t *testing.T) {
	upstream := newTestUpstream(t, `{"id":"chatcmpl-1","object":"chat.completion","choices":[]}`)
	defer upstream.Close()

	srv := newTestServer(t, upstream.URL)
	engine := srv.Engine()

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(chatCompletionBody))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()

	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "chatcmpl-1") {
		t.Errorf("expected passthrough body, got %q", rec.Body.String())
	}
}

func TestHandleInboundRejectsMissingCredentials(t *testing.T) {
	upstream := newTestUpstream(t, `{}`)
	defer upstream.Close()

	srv := newTestServer(t, upstream.URL)
	engine := srv.Engine()

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(chatCompletionBody))
	rec := httptest.NewRecorder()

	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestHandleInboundBlocksSensitiveWords(t *testing.T) {
	upstream := newTestUpstream(t, `{}`)
	defer upstream.Close()

	srv := newTestServer(t, upstream.URL)
	srv.guard = wordGuard{word: "forbidden"}
	engine := srv.Engine()

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
		strings.NewReader(`{"model":"gpt-4","messages":[{"role":"user","content":"forbidden topic"}]}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()

	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403, body = %s", rec.Code, rec.Body.String())
	}
}

func TestManagementProvidersRequiresKey(t *testing.T) {
	upstream := newTestUpstream(t, `{}`)
	defer upstream.Close()

	srv := newTestServer(t, upstream.URL)
	config.InvalidateCache()
	t.Setenv("RELAYMUX_MANAGEMENT_KEY", "mgmt-secret")
	engine := srv.Engine()

	req := httptest.NewRequest(http.MethodGet, "/v1/management/providers", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/v1/management/providers", nil)
	req2.Header.Set("Authorization", "Bearer mgmt-secret")
	rec2 := httptest.NewRecorder()
	engine.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body = %s", rec2.Code, rec2.Body.String())
	}
}

// wordGuard is a minimal collab.SensitiveWordGuard stub for one test case.
type wordGuard struct{ word string }

func (g wordGuard) Check(_ context.Context, body map[string]any) (bool, string) {
	raw, _ := jsonutil.Marshal(body)
	if strings.Contains(string(raw), g.word) {
		return true, "blocked"
	}
	return false, ""
}
