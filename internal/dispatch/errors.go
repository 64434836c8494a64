package dispatch

import (
	"github.com/tidwall/gjson"

	"github.com/relaymux/gateway/internal/domain"
	"github.com/relaymux/gateway/internal/jsonutil"
)

// upstreamErrorMessage best-effort extracts a human-readable message from
// an upstream error body regardless of which format produced it.
func upstreamErrorMessage(fromFormat domain.Format, body []byte) (message, kind string, code any) {
	root := gjson.ParseBytes(body)
	switch fromFormat {
	case domain.FormatOpenAI:
		return root.Get("error.message").String(), root.Get("error.type").String(), root.Get("error.code").Value()
	case domain.FormatClaude:
		return root.Get("error.message").String(), root.Get("error.type").String(), nil
	case domain.FormatCodex, domain.FormatResponse:
		return root.Get("error.message").String(), root.Get("error.type").String(), root.Get("error.code").Value()
	case domain.FormatGeminiCLI:
		return root.Get("error.message").String(), root.Get("error.status").String(), root.Get("error.code").Value()
	default:
		if msg := root.Get("message").String(); msg != "" {
			return msg, "", nil
		}
		return string(body), "", nil
	}
}

// RenderErrorEnvelope wraps an upstream non-2xx body into toFormat's own
// error schema, rendered as a single non-streamed body.
func RenderErrorEnvelope(fromFormat, toFormat domain.Format, status int, body []byte) []byte {
	message, kind, code := upstreamErrorMessage(fromFormat, body)
	if message == "" {
		message = "upstream request failed"
	}

	var payload map[string]any
	switch toFormat {
	case domain.FormatClaude:
		payload = map[string]any{
			"type":  "error",
			"error": map[string]any{"type": defaultString(kind, "api_error"), "message": message},
		}
	case domain.FormatGeminiCLI:
		payload = map[string]any{
			"error": map[string]any{"code": status, "message": message, "status": defaultString(kind, "UNKNOWN")},
		}
	default: // OpenAI, Codex/Response
		payload = map[string]any{
			"error": map[string]any{
				"message": message,
				"type":    defaultString(kind, "api_error"),
				"code":    code,
			},
		}
	}

	out, err := jsonutil.Marshal(payload)
	if err != nil {
		return body
	}
	return out
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
