package dispatch

import (
	"bytes"
	"context"
	"testing"

	"github.com/relaymux/gateway/internal/domain"
	"github.com/relaymux/gateway/internal/xlate/ir"
)

// flushBuffer is a minimal Flusher backed by a bytes.Buffer.
type flushBuffer struct {
	bytes.Buffer
}

func (f *flushBuffer) Flush() {}

func TestStreamTranslateFiresUsageOnMessageStop(t *testing.T) {
	frame := "event: message_delta\ndata: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"end_turn\"},\"usage\":{\"output_tokens\":7}}\n\n"

	var got *ir.Usage
	var w flushBuffer
	err := streamTranslate(context.Background(), &w, bytes.NewReader([]byte(frame)),
		domain.FormatClaude, domain.FormatOpenAI, "gpt-4", "msg_1",
		func(u *ir.Usage) { got = u })
	if err != nil {
		t.Fatalf("streamTranslate() error: %v", err)
	}
	if got == nil || got.CompletionTokens != 7 {
		t.Fatalf("expected usage with CompletionTokens=7, got %+v", got)
	}
}

func TestPassthroughStreamFiresUsageOnMessageStop(t *testing.T) {
	frame := "event: message_delta\ndata: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"end_turn\"},\"usage\":{\"output_tokens\":9}}\n\n"

	var got *ir.Usage
	var w flushBuffer
	err := passthrough(context.Background(), &w, bytes.NewReader([]byte(frame)),
		domain.FormatClaude, true, func(u *ir.Usage) { got = u })
	if err != nil {
		t.Fatalf("passthrough() error: %v", err)
	}
	if w.String() != frame {
		t.Fatalf("passthrough must copy bytes verbatim, got %q", w.String())
	}
	if got == nil || got.CompletionTokens != 9 {
		t.Fatalf("expected usage with CompletionTokens=9, got %+v", got)
	}
}

func TestPassthroughNonStreamParsesFinalUsage(t *testing.T) {
	body := `{"stop_reason":"end_turn","content":[{"type":"text","text":"hi"}],"usage":{"input_tokens":3,"output_tokens":5}}`

	var got *ir.Usage
	var w flushBuffer
	err := passthrough(context.Background(), &w, bytes.NewReader([]byte(body)),
		domain.FormatClaude, false, func(u *ir.Usage) { got = u })
	if err != nil {
		t.Fatalf("passthrough() error: %v", err)
	}
	if w.String() != body {
		t.Fatalf("passthrough must copy bytes verbatim, got %q", w.String())
	}
	if got == nil || got.PromptTokens != 3 || got.CompletionTokens != 5 {
		t.Fatalf("expected usage with PromptTokens=3 CompletionTokens=5, got %+v", got)
	}
}
