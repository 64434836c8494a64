package domain

import (
	"net/http"
	"net/url"
)

// Format identifies a wire schema family, either as detected at ingress
// (client format) or as a provider's native format for translation
// purposes.
type Format string

const (
	FormatUnknown  Format = ""
	FormatClaude   Format = "claude"
	FormatOpenAI   Format = "openai"
	FormatResponse Format = "response" // Codex Response API wire shape
	FormatCodex    Format = "codex"    // synonym used on the provider side
	FormatGeminiCLI Format = "gemini-cli"
)

// MapClientToProviderFormat translates the client-detected format into the
// format identifier used by the translator registry.
func MapClientToProviderFormat(f Format) Format {
	if f == FormatResponse {
		return FormatCodex
	}
	return f
}

// DetectFormat classifies a decoded request body by shape, independent of
// the route it arrived on: a gemini-cli envelope wraps everything under a
// top-level "request" object, a Codex Response API body carries an "input"
// array, and a Claude Messages body is distinguished from an OpenAI Chat
// Completions body by the presence of a top-level "system" array. A body
// matching none of these falls back to claude, the most permissive shape.
func DetectFormat(body map[string]any) Format {
	if _, ok := body["request"].(map[string]any); ok {
		return FormatGeminiCLI
	}
	if _, ok := body["input"].([]any); ok {
		return FormatResponse
	}
	_, hasMessages := body["messages"].([]any)
	_, hasSystem := body["system"].([]any)
	if hasMessages && hasSystem {
		return FormatClaude
	}
	if hasMessages {
		return FormatOpenAI
	}
	return FormatClaude
}

// MapProviderType translates a provider's transport type into the format
// identifier the translator registry keys on.
func MapProviderType(t ProviderType) Format {
	switch t {
	case ProviderOpenAICompat:
		return FormatOpenAI
	case ProviderCodex:
		return FormatCodex
	case ProviderClaude:
		return FormatClaude
	case ProviderGeminiCLI:
		return FormatGeminiCLI
	default:
		return FormatUnknown
	}
}

// Principal is the authenticated caller, returned by the external AuthN
// collaborator. It is opaque data as far as the core pipeline is
// concerned beyond the fields it needs for rate limiting/accounting.
type Principal struct {
	UserID string
	KeyID  string
}

// DecisionEntry is one row of a ProxySession's diagnostic decision chain.
type DecisionEntry struct {
	ProviderID    int64
	Reason        string
	CircuitState  string
	AttemptNumber int
	ErrorMessage  string
}

// ProxySession is the mutable per-request envelope that flows through the
// entire pipeline: auth -> sensitive-word -> rate-limit -> select -> forward
// -> dispatch. It is owned exclusively by the handler goroutine that created
// it and lives until the response has been fully streamed.
type ProxySession struct {
	Model   string
	Body    map[string]any
	Method  string
	URL     *url.URL
	Headers http.Header

	UserAgent      string
	OriginalFormat Format

	Principal Principal

	Provider *Provider

	DecisionChain []DecisionEntry

	// SessionID is the client-supplied sticky-session key. Empty means the
	// client did not request affinity.
	SessionID string

	// Excluded accumulates provider ids already attempted this logical
	// request, so the selector never dispatches the same attempt twice.
	Excluded map[int64]struct{}

	Attempt int
}

// NewProxySession constructs an empty envelope ready for the guard chain.
func NewProxySession() *ProxySession {
	return &ProxySession{
		Headers:  make(http.Header),
		Excluded: make(map[int64]struct{}),
	}
}

// Exclude marks a provider id as already attempted.
func (s *ProxySession) Exclude(id int64) {
	if s.Excluded == nil {
		s.Excluded = make(map[int64]struct{})
	}
	s.Excluded[id] = struct{}{}
}

// RecordDecision appends an entry to the diagnostic decision chain.
func (s *ProxySession) RecordDecision(entry DecisionEntry) {
	entry.AttemptNumber = s.Attempt
	s.DecisionChain = append(s.DecisionChain, entry)
}
