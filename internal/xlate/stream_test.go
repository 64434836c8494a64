package xlate

import (
	"testing"

	"github.com/relaymux/gateway/internal/domain"
	"github.com/relaymux/gateway/internal/xlate/ir"
)

func TestSplitSSEFramesCompleteAndPartial(t *testing.T) {
	input := []byte("event: message_start\ndata: {\"a\":1}\n\ndata: partial")
	frames, remainder := SplitSSEFrames(input)

	if len(frames) != 1 {
		t.Fatalf("expected 1 complete frame, got %d", len(frames))
	}
	if frames[0].Event != "message_start" || string(frames[0].Data) != `{"a":1}` {
		t.Fatalf("unexpected frame: %+v", frames[0])
	}
	if string(remainder) != "data: partial" {
		t.Fatalf("expected leftover partial data, got %q", remainder)
	}
}

func TestSplitSSEFramesAcrossReads(t *testing.T) {
	first, rem := SplitSSEFrames([]byte("data: {\"x\":1"))
	if len(first) != 0 {
		t.Fatalf("expected no complete frames yet, got %d", len(first))
	}
	combined := append(rem, []byte("}\n\n")...)
	second, rem2 := SplitSSEFrames(combined)
	if len(second) != 1 || string(second[0].Data) != `{"x":1}` {
		t.Fatalf("expected frame completed after second read, got %+v rem=%q", second, rem2)
	}
}

func TestDecodeEncodeOpenAITextDelta(t *testing.T) {
	frame := SSEFrame{Data: []byte(`{"choices":[{"index":0,"delta":{"content":"hi"}}]}`)}
	ev, err := DecodeEvent(domain.FormatOpenAI, frame)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != ir.EventTextDelta || ev.TextDelta != "hi" {
		t.Fatalf("unexpected event: %+v", ev)
	}

	out := EncodeEvent(domain.FormatOpenAI, *ev, "gpt-5", "chatcmpl-1")
	if out == nil {
		t.Fatal("expected non-nil encoded chunk")
	}
}

func TestDecodeOpenAIDoneSentinel(t *testing.T) {
	frame := SSEFrame{Data: []byte("[DONE]")}
	ev, err := DecodeEvent(domain.FormatOpenAI, frame)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != ir.EventMessageStop {
		t.Fatalf("expected message_stop for [DONE], got %+v", ev)
	}
}

func TestDecodeEncodeClaudeTextDelta(t *testing.T) {
	frame := SSEFrame{Event: "content_block_delta", Data: []byte(`{"delta":{"type":"text_delta","text":"hi"}}`)}
	ev, err := DecodeEvent(domain.FormatClaude, frame)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != ir.EventTextDelta || ev.TextDelta != "hi" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if out := EncodeEvent(domain.FormatClaude, *ev, "", "msg-1"); out == nil {
		t.Fatal("expected non-nil encoded chunk")
	}
}

func TestDecodeCodexTextDelta(t *testing.T) {
	frame := SSEFrame{Event: "response.output_text.delta", Data: []byte(`{"delta":"hi"}`)}
	ev, err := DecodeEvent(domain.FormatCodex, frame)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != ir.EventTextDelta || ev.TextDelta != "hi" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestDecodeGeminiTextDelta(t *testing.T) {
	frame := SSEFrame{Data: []byte(`{"candidates":[{"content":{"parts":[{"text":"hi"}]}}]}`)}
	ev, err := DecodeEvent(domain.FormatGeminiCLI, frame)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != ir.EventTextDelta || ev.TextDelta != "hi" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}
