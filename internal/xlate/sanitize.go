// Package xlate wires the format registry, streaming translation, and the
// Codex request sanitizer on top of internal/xlate/{ir,toir,fromir}.
package xlate

import (
	"github.com/tidwall/sjson"

	"github.com/relaymux/gateway/internal/jsonutil"
	"github.com/relaymux/gateway/internal/xlate/officials"
)

// forbiddenCodexParams are stripped whenever a request is sanitized before
// reaching a codex provider, mirroring the drop list in the openai->codex
// renderer.
var forbiddenCodexParams = []string{
	"max_tokens",
	"max_output_tokens",
	"max_completion_tokens",
	"temperature",
	"top_p",
}

// SanitizeCodexRequest applies the post-translation pass required whenever
// toFormat == codex and the inbound User-Agent does not match the
// official-client prefix table. Official clients bypass sanitization
// entirely; the body is returned unmodified.
//
// The rewrite runs as path-based sjson.SetBytes/DeleteBytes calls against
// the marshaled body rather than direct map mutation, so a forbidden
// parameter nested under a path is dropped the same way the official
// payload-override pass sets defaults by path.
func SanitizeCodexRequest(body map[string]any, userAgent, model string) map[string]any {
	if officials.IsOfficialUserAgent(userAgent) {
		return body
	}

	raw, err := jsonutil.Marshal(body)
	if err != nil {
		return body
	}

	for _, p := range forbiddenCodexParams {
		if updated, derr := sjson.DeleteBytes(raw, p); derr == nil {
			raw = updated
		}
	}

	sets := []struct {
		path  string
		value any
	}{
		{"instructions", officials.DefaultInstructionsFor(model)},
		{"store", false},
		{"stream", true},
		{"parallel_tool_calls", true},
	}
	for _, s := range sets {
		if updated, serr := sjson.SetBytes(raw, s.path, s.value); serr == nil {
			raw = updated
		}
	}

	sanitized, err := jsonutil.UnmarshalMap(raw)
	if err != nil {
		return body
	}
	return sanitized
}
