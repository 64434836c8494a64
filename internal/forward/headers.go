package forward

import (
	"net/http"
	"net/url"

	"github.com/relaymux/gateway/internal/domain"
)

// codexUserAgent is forced onto every outbound Codex request, matching the
// official CLI's own identification string.
const codexUserAgent = "codex_cli_rs/1.0.0 (Mac OS 14.0.0; arm64)"

// codexResponsesPath is the fixed upstream path Codex providers expect,
// regardless of the client's inbound path.
const codexResponsesPath = "/v1/responses"

// buildOutboundRequest assembles the outbound URL, method and headers for
// one attempt against provider. It does not set the body; the caller
// attaches it separately since GET/HEAD send none.
func buildOutboundRequest(session *domain.ProxySession, provider *domain.Provider, toFormat domain.Format) (method string, target *url.URL, headers http.Header) {
	base, err := url.Parse(provider.BaseURL)
	if err != nil {
		base = &url.URL{}
	}

	path := session.URL.Path
	if toFormat == domain.FormatCodex {
		path = codexResponsesPath
	}

	target = &url.URL{
		Scheme:   base.Scheme,
		Host:     base.Host,
		Path:     joinPath(base.Path, path),
		RawQuery: session.URL.RawQuery,
	}

	headers = make(http.Header)
	for k, vs := range session.Headers {
		for _, v := range vs {
			headers.Add(k, v)
		}
	}
	headers.Del("Content-Length")
	headers.Set("Host", target.Host)
	headers.Set("Authorization", "Bearer "+provider.Credential)
	headers.Set("X-Api-Key", provider.Credential)
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept-Encoding", "identity")
	if toFormat == domain.FormatCodex {
		headers.Set("User-Agent", codexUserAgent)
	}

	return session.Method, target, headers
}

func joinPath(base, path string) string {
	if base == "" || base == "/" {
		return path
	}
	if len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	if len(path) == 0 || path[0] != '/' {
		path = "/" + path
	}
	return base + path
}
