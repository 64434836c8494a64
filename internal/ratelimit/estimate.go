package ratelimit

import (
	"github.com/tiktoken-go/tokenizer"

	"github.com/relaymux/gateway/internal/xlate/ir"
)

// TokenEstimator estimates the prompt token count of a request before it
// is sent upstream. The estimate is recorded as the request's usage when
// the upstream response reports none; it is not checked against the tpm
// ceiling before the request is sent.
type TokenEstimator struct {
	codec tokenizer.Codec
}

// NewTokenEstimator loads the cl100k_base BPE codec used by GPT-family
// models. If the codec cannot be loaded, EstimateRequest falls back to a
// character-count heuristic rather than failing closed.
func NewTokenEstimator() *TokenEstimator {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return &TokenEstimator{}
	}
	return &TokenEstimator{codec: codec}
}

// EstimateRequest returns the estimated prompt token count for req.
func (e *TokenEstimator) EstimateRequest(req *ir.UnifiedChatRequest) int {
	var text string
	for _, m := range req.Messages {
		text += ir.CombineTextParts(m)
		text += "\n"
	}
	for _, t := range req.Tools {
		text += t.Name + " " + t.Description + "\n"
	}
	return e.EstimateText(text)
}

// EstimateText returns an estimated token count for a raw string.
func (e *TokenEstimator) EstimateText(text string) int {
	if e.codec == nil {
		// ~4 characters per token is the standard fallback heuristic when a
		// BPE codec is unavailable.
		return (len(text) + 3) / 4
	}
	ids, _, err := e.codec.Encode(text)
	if err != nil {
		return (len(text) + 3) / 4
	}
	return len(ids)
}
