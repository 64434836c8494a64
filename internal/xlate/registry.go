package xlate

import (
	"fmt"
	"sync"

	"github.com/relaymux/gateway/internal/domain"
	"github.com/relaymux/gateway/internal/xlate/fromir"
	"github.com/relaymux/gateway/internal/xlate/ir"
	"github.com/relaymux/gateway/internal/xlate/toir"
)

// ToIRParser parses one wire format's request body into the unified IR.
type ToIRParser interface {
	Parse(payload []byte) (*ir.UnifiedChatRequest, error)
	Format() domain.Format
}

// FromIRConverter renders the unified IR into one wire format's request
// body.
type FromIRConverter interface {
	ConvertRequest(req *ir.UnifiedChatRequest) map[string]any
	Provider() domain.Format
}

type toIRFunc struct {
	format domain.Format
	parse  func([]byte) (*ir.UnifiedChatRequest, error)
}

func (f toIRFunc) Parse(payload []byte) (*ir.UnifiedChatRequest, error) { return f.parse(payload) }
func (f toIRFunc) Format() domain.Format                                { return f.format }

type fromIRFunc struct {
	provider domain.Format
	convert  func(*ir.UnifiedChatRequest) map[string]any
}

func (f fromIRFunc) ConvertRequest(req *ir.UnifiedChatRequest) map[string]any { return f.convert(req) }
func (f fromIRFunc) Provider() domain.Format                                  { return f.provider }

// Registry holds the format<->IR adapters, keyed by the format they parse
// or render. Unsupported pairs fail lookups with an error rather than a
// panic, except the Must* accessors used for internal wiring the caller
// controls.
type Registry struct {
	mu         sync.RWMutex
	toIR       map[string]ToIRParser
	fromIR     map[string]FromIRConverter
	formatToIR map[domain.Format]ToIRParser
}

// NewRegistry returns an empty registry. Production code uses GetRegistry
// instead; this constructor exists for tests that need isolation.
func NewRegistry() *Registry {
	return &Registry{
		toIR:       make(map[string]ToIRParser),
		fromIR:     make(map[string]FromIRConverter),
		formatToIR: make(map[domain.Format]ToIRParser),
	}
}

func (r *Registry) RegisterToIR(format string, parser ToIRParser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toIR[format] = parser
	r.formatToIR[domain.Format(format)] = parser
}

func (r *Registry) RegisterFromIR(providerFormat string, converter FromIRConverter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fromIR[providerFormat] = converter
}

func (r *Registry) GetToIR(format string) (ToIRParser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.toIR[format]
	return p, ok
}

func (r *Registry) GetFromIR(providerFormat string) (FromIRConverter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.fromIR[providerFormat]
	return c, ok
}

func (r *Registry) MustGetToIR(format string) ToIRParser {
	p, ok := r.GetToIR(format)
	if !ok {
		panic(fmt.Sprintf("xlate: no ToIR parser registered for format %q", format))
	}
	return p
}

func (r *Registry) MustGetFromIR(providerFormat string) FromIRConverter {
	c, ok := r.GetFromIR(providerFormat)
	if !ok {
		panic(fmt.Sprintf("xlate: no FromIR converter registered for provider format %q", providerFormat))
	}
	return c
}

func (r *Registry) ListToIRFormats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.toIR))
	for f := range r.toIR {
		out = append(out, f)
	}
	return out
}

func (r *Registry) ListFromIRProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.fromIR))
	for p := range r.fromIR {
		out = append(out, p)
	}
	return out
}

var (
	globalRegistry     *Registry
	globalRegistryOnce sync.Once
)

// GetRegistry returns the process-wide registry, pre-populated with the
// four wire formats' adapters.
func GetRegistry() *Registry {
	globalRegistryOnce.Do(func() {
		globalRegistry = NewRegistry()
		registerDefaults(globalRegistry)
	})
	return globalRegistry
}

func registerDefaults(r *Registry) {
	r.RegisterToIR(string(domain.FormatOpenAI), toIRFunc{domain.FormatOpenAI, toir.ParseOpenAIRequest})
	r.RegisterToIR(string(domain.FormatClaude), toIRFunc{domain.FormatClaude, toir.ParseClaudeRequest})
	r.RegisterToIR(string(domain.FormatCodex), toIRFunc{domain.FormatCodex, toir.ParseCodexRequest})
	r.RegisterToIR(string(domain.FormatResponse), toIRFunc{domain.FormatResponse, toir.ParseCodexRequest})
	r.RegisterToIR(string(domain.FormatGeminiCLI), toIRFunc{domain.FormatGeminiCLI, toir.ParseGeminiRequest})

	r.RegisterFromIR(string(domain.FormatOpenAI), fromIRFunc{domain.FormatOpenAI, fromir.RenderOpenAI})
	r.RegisterFromIR(string(domain.FormatClaude), fromIRFunc{domain.FormatClaude, fromir.RenderClaude})
	r.RegisterFromIR(string(domain.FormatCodex), fromIRFunc{domain.FormatCodex, fromir.RenderCodex})
	r.RegisterFromIR(string(domain.FormatGeminiCLI), fromIRFunc{domain.FormatGeminiCLI, fromir.RenderGemini})
}

// ParseRequest parses a payload in the named format using the global
// registry, returning TranslationUnsupported semantics via a plain error
// for an unregistered format.
func ParseRequest(format string, payload []byte) (*ir.UnifiedChatRequest, error) {
	parser, ok := GetRegistry().GetToIR(format)
	if !ok {
		return nil, fmt.Errorf("xlate: unsupported source format %q", format)
	}
	return parser.Parse(payload)
}

// RenderRequest renders req into the named target format using the global
// registry.
func RenderRequest(providerFormat string, req *ir.UnifiedChatRequest) (map[string]any, error) {
	converter, ok := GetRegistry().GetFromIR(providerFormat)
	if !ok {
		return nil, fmt.Errorf("xlate: unsupported target format %q", providerFormat)
	}
	return converter.ConvertRequest(req), nil
}
