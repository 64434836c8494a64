package xlate

import (
	"bytes"

	"github.com/tidwall/gjson"

	"github.com/relaymux/gateway/internal/domain"
	"github.com/relaymux/gateway/internal/jsonutil"
	"github.com/relaymux/gateway/internal/xlate/ir"
)

// SSEFrame is one raw server-sent-event frame pulled off an upstream byte
// stream, before format-specific decoding.
type SSEFrame struct {
	Event string
	Data  []byte
}

// SplitSSEFrames pull-parses as many complete "event:...\ndata:...\n\n"
// (or bare "data:...\n\n") blocks as are present in buf, returning them in
// order along with the unconsumed remainder. The Response Dispatcher feeds
// each network read into this function so partial frames straddling reads
// never get discarded: forward what's decodable, not "read one frame per
// read".
func SplitSSEFrames(buf []byte) (frames []SSEFrame, remainder []byte) {
	for {
		idx := bytes.Index(buf, []byte("\n\n"))
		if idx == -1 {
			return frames, buf
		}
		block := buf[:idx]
		buf = buf[idx+2:]

		var frame SSEFrame
		for _, line := range bytes.Split(block, []byte("\n")) {
			switch {
			case bytes.HasPrefix(line, []byte("event:")):
				frame.Event = string(bytes.TrimSpace(line[len("event:"):]))
			case bytes.HasPrefix(line, []byte("data:")):
				data := bytes.TrimPrefix(line, []byte("data:"))
				data = bytes.TrimPrefix(data, []byte(" "))
				if frame.Data == nil {
					frame.Data = append([]byte{}, data...)
				} else {
					frame.Data = append(append(frame.Data, '\n'), data...)
				}
			}
		}
		if frame.Data != nil {
			frames = append(frames, frame)
		}
	}
}

// DecodeEvent decodes one upstream SSE frame, produced by a provider
// speaking sourceFormat, into a UnifiedEvent.
func DecodeEvent(sourceFormat domain.Format, frame SSEFrame) (*ir.UnifiedEvent, error) {
	switch sourceFormat {
	case domain.FormatOpenAI:
		return decodeOpenAIChunk(frame.Data)
	case domain.FormatClaude:
		return decodeClaudeEvent(frame.Event, frame.Data)
	case domain.FormatCodex, domain.FormatResponse:
		return decodeCodexEvent(frame.Event, frame.Data)
	case domain.FormatGeminiCLI:
		return decodeGeminiChunk(frame.Data)
	default:
		return nil, nil
	}
}

// EncodeEvent renders a UnifiedEvent into the wire bytes of an SSE frame
// (or frames) for targetFormat, ready to write to the client connection.
func EncodeEvent(targetFormat domain.Format, ev ir.UnifiedEvent, model, messageID string) []byte {
	switch targetFormat {
	case domain.FormatOpenAI:
		return encodeOpenAIChunk(ev, model, messageID)
	case domain.FormatClaude:
		return encodeClaudeEvent(ev, messageID)
	case domain.FormatCodex, domain.FormatResponse:
		return encodeCodexEvent(ev, messageID)
	case domain.FormatGeminiCLI:
		return encodeGeminiChunk(ev, model)
	default:
		return nil
	}
}

const sseDone = "[DONE]"

func decodeOpenAIChunk(data []byte) (*ir.UnifiedEvent, error) {
	if string(bytes.TrimSpace(data)) == sseDone {
		return &ir.UnifiedEvent{Type: ir.EventMessageStop}, nil
	}
	root := gjson.ParseBytes(data)
	choice := root.Get("choices.0")
	delta := choice.Get("delta")

	if text := delta.Get("content").String(); text != "" {
		return &ir.UnifiedEvent{Type: ir.EventTextDelta, TextDelta: text}, nil
	}
	if tc := delta.Get("tool_calls.0"); tc.Exists() {
		if id := tc.Get("id").String(); id != "" {
			return &ir.UnifiedEvent{
				Type:         ir.EventToolCallStart,
				ToolCallID:   id,
				ToolCallName: tc.Get("function.name").String(),
			}, nil
		}
		return &ir.UnifiedEvent{
			Type:              ir.EventToolCallDelta,
			ToolCallArgsDelta: tc.Get("function.arguments").String(),
		}, nil
	}
	if reason := choice.Get("finish_reason").String(); reason != "" {
		return &ir.UnifiedEvent{Type: ir.EventMessageStop, FinishReason: reason}, nil
	}
	if usage := root.Get("usage"); usage.Exists() {
		return &ir.UnifiedEvent{Type: ir.EventUsage, Usage: &ir.Usage{
			PromptTokens:     int(usage.Get("prompt_tokens").Int()),
			CompletionTokens: int(usage.Get("completion_tokens").Int()),
			TotalTokens:      int(usage.Get("total_tokens").Int()),
		}}, nil
	}
	return &ir.UnifiedEvent{Type: ir.EventMessageStart}, nil
}

func encodeOpenAIChunk(ev ir.UnifiedEvent, model, messageID string) []byte {
	payload := map[string]any{
		"id":      messageID,
		"object":  "chat.completion.chunk",
		"model":   model,
		"choices": []any{},
	}
	delta := map[string]any{}
	choice := map[string]any{"index": 0, "delta": delta}

	switch ev.Type {
	case ir.EventTextDelta:
		delta["content"] = ev.TextDelta
	case ir.EventToolCallStart:
		delta["tool_calls"] = []any{map[string]any{
			"index": 0, "id": ev.ToolCallID, "type": "function",
			"function": map[string]any{"name": ev.ToolCallName, "arguments": ""},
		}}
	case ir.EventToolCallDelta:
		delta["tool_calls"] = []any{map[string]any{
			"index": 0, "function": map[string]any{"arguments": ev.ToolCallArgsDelta},
		}}
	case ir.EventMessageStop:
		choice["finish_reason"] = ev.FinishReason
	case ir.EventUsage:
		if ev.Usage != nil {
			payload["usage"] = map[string]any{
				"prompt_tokens":     ev.Usage.PromptTokens,
				"completion_tokens": ev.Usage.CompletionTokens,
				"total_tokens":      ev.Usage.TotalTokens,
			}
		}
	}
	payload["choices"] = []any{choice}

	body, err := jsonutil.Marshal(payload)
	if err != nil {
		return nil
	}
	if ev.Type == ir.EventMessageStop {
		out := ir.BuildSSEChunk(body)
		return append(out, ir.BuildSSEChunk([]byte(sseDone))...)
	}
	return ir.BuildSSEChunk(body)
}

func decodeClaudeEvent(eventType string, data []byte) (*ir.UnifiedEvent, error) {
	root := gjson.ParseBytes(data)
	switch eventType {
	case "message_start":
		return &ir.UnifiedEvent{Type: ir.EventMessageStart}, nil
	case "content_block_start":
		if block := root.Get("content_block"); block.Get("type").String() == "tool_use" {
			return &ir.UnifiedEvent{
				Type:         ir.EventToolCallStart,
				ToolCallID:   block.Get("id").String(),
				ToolCallName: block.Get("name").String(),
			}, nil
		}
		return &ir.UnifiedEvent{Type: ir.EventMessageStart}, nil
	case "content_block_delta":
		delta := root.Get("delta")
		switch delta.Get("type").String() {
		case "text_delta":
			return &ir.UnifiedEvent{Type: ir.EventTextDelta, TextDelta: delta.Get("text").String()}, nil
		case "input_json_delta":
			return &ir.UnifiedEvent{Type: ir.EventToolCallDelta, ToolCallArgsDelta: delta.Get("partial_json").String()}, nil
		}
	case "content_block_stop":
		return &ir.UnifiedEvent{Type: ir.EventToolCallDone}, nil
	case "message_delta":
		ev := &ir.UnifiedEvent{Type: ir.EventMessageStop, FinishReason: root.Get("delta.stop_reason").String()}
		if usage := root.Get("usage"); usage.Exists() {
			ev.Usage = &ir.Usage{
				CompletionTokens: int(usage.Get("output_tokens").Int()),
			}
		}
		return ev, nil
	case "message_stop":
		return &ir.UnifiedEvent{Type: ir.EventMessageStop}, nil
	case "error":
		return &ir.UnifiedEvent{Type: ir.EventError, ErrorMessage: root.Get("error.message").String()}, nil
	}
	return &ir.UnifiedEvent{Type: ir.EventMessageStart}, nil
}

func encodeClaudeEvent(ev ir.UnifiedEvent, messageID string) []byte {
	switch ev.Type {
	case ir.EventMessageStart:
		payload, _ := jsonutil.Marshal(map[string]any{
			"type":    "message_start",
			"message": map[string]any{"id": messageID, "type": "message", "role": "assistant", "content": []any{}},
		})
		return ir.BuildSSEEvent("message_start", payload)
	case ir.EventTextDelta:
		payload, _ := jsonutil.Marshal(map[string]any{
			"type": "content_block_delta", "index": 0,
			"delta": map[string]any{"type": "text_delta", "text": ev.TextDelta},
		})
		return ir.BuildSSEEvent("content_block_delta", payload)
	case ir.EventToolCallStart:
		payload, _ := jsonutil.Marshal(map[string]any{
			"type": "content_block_start", "index": 0,
			"content_block": map[string]any{"type": "tool_use", "id": ev.ToolCallID, "name": ev.ToolCallName, "input": map[string]any{}},
		})
		return ir.BuildSSEEvent("content_block_start", payload)
	case ir.EventToolCallDelta:
		payload, _ := jsonutil.Marshal(map[string]any{
			"type": "content_block_delta", "index": 0,
			"delta": map[string]any{"type": "input_json_delta", "partial_json": ev.ToolCallArgsDelta},
		})
		return ir.BuildSSEEvent("content_block_delta", payload)
	case ir.EventToolCallDone:
		payload, _ := jsonutil.Marshal(map[string]any{"type": "content_block_stop", "index": 0})
		return ir.BuildSSEEvent("content_block_stop", payload)
	case ir.EventMessageStop:
		payload, _ := jsonutil.Marshal(map[string]any{
			"type": "message_delta",
			"delta": map[string]any{"stop_reason": ev.FinishReason},
		})
		return ir.BuildSSEEvent("message_delta", payload)
	case ir.EventError:
		payload, _ := jsonutil.Marshal(map[string]any{
			"type": "error", "error": map[string]any{"type": "api_error", "message": ev.ErrorMessage},
		})
		return ir.BuildSSEEvent("error", payload)
	}
	return nil
}

func decodeCodexEvent(eventType string, data []byte) (*ir.UnifiedEvent, error) {
	root := gjson.ParseBytes(data)
	switch eventType {
	case "response.created", "response.in_progress":
		return &ir.UnifiedEvent{Type: ir.EventMessageStart}, nil
	case "response.output_text.delta":
		return &ir.UnifiedEvent{Type: ir.EventTextDelta, TextDelta: root.Get("delta").String()}, nil
	case "response.function_call_arguments.delta":
		return &ir.UnifiedEvent{Type: ir.EventToolCallDelta, ToolCallArgsDelta: root.Get("delta").String()}, nil
	case "response.output_item.added":
		item := root.Get("item")
		if item.Get("type").String() == "function_call" {
			return &ir.UnifiedEvent{
				Type:         ir.EventToolCallStart,
				ToolCallID:   item.Get("call_id").String(),
				ToolCallName: item.Get("name").String(),
			}, nil
		}
		return &ir.UnifiedEvent{Type: ir.EventMessageStart}, nil
	case "response.output_item.done":
		return &ir.UnifiedEvent{Type: ir.EventToolCallDone}, nil
	case "response.completed":
		ev := &ir.UnifiedEvent{Type: ir.EventMessageStop, FinishReason: "stop"}
		if usage := root.Get("response.usage"); usage.Exists() {
			ev.Usage = &ir.Usage{
				PromptTokens:     int(usage.Get("input_tokens").Int()),
				CompletionTokens: int(usage.Get("output_tokens").Int()),
				TotalTokens:      int(usage.Get("total_tokens").Int()),
			}
		}
		return ev, nil
	case "response.failed", "error":
		return &ir.UnifiedEvent{Type: ir.EventError, ErrorMessage: root.Get("response.error.message").String()}, nil
	}
	return &ir.UnifiedEvent{Type: ir.EventMessageStart}, nil
}

func encodeCodexEvent(ev ir.UnifiedEvent, messageID string) []byte {
	switch ev.Type {
	case ir.EventMessageStart:
		payload, _ := jsonutil.Marshal(map[string]any{
			"type": "response.created",
			"response": map[string]any{"id": messageID},
		})
		return ir.BuildSSEEvent("response.created", payload)
	case ir.EventTextDelta:
		payload, _ := jsonutil.Marshal(map[string]any{"type": "response.output_text.delta", "delta": ev.TextDelta})
		return ir.BuildSSEEvent("response.output_text.delta", payload)
	case ir.EventToolCallStart:
		payload, _ := jsonutil.Marshal(map[string]any{
			"type": "response.output_item.added",
			"item": map[string]any{"type": "function_call", "call_id": ev.ToolCallID, "name": ev.ToolCallName},
		})
		return ir.BuildSSEEvent("response.output_item.added", payload)
	case ir.EventToolCallDelta:
		payload, _ := jsonutil.Marshal(map[string]any{"type": "response.function_call_arguments.delta", "delta": ev.ToolCallArgsDelta})
		return ir.BuildSSEEvent("response.function_call_arguments.delta", payload)
	case ir.EventToolCallDone:
		payload, _ := jsonutil.Marshal(map[string]any{"type": "response.output_item.done"})
		return ir.BuildSSEEvent("response.output_item.done", payload)
	case ir.EventMessageStop:
		usage := map[string]any{}
		if ev.Usage != nil {
			usage = map[string]any{
				"input_tokens":  ev.Usage.PromptTokens,
				"output_tokens": ev.Usage.CompletionTokens,
				"total_tokens":  ev.Usage.TotalTokens,
			}
		}
		payload, _ := jsonutil.Marshal(map[string]any{
			"type":     "response.completed",
			"response": map[string]any{"id": messageID, "usage": usage},
		})
		return ir.BuildSSEEvent("response.completed", payload)
	case ir.EventError:
		payload, _ := jsonutil.Marshal(map[string]any{
			"type": "response.failed", "response": map[string]any{"error": map[string]any{"message": ev.ErrorMessage}},
		})
		return ir.BuildSSEEvent("response.failed", payload)
	}
	return nil
}

func decodeGeminiChunk(data []byte) (*ir.UnifiedEvent, error) {
	root := gjson.ParseBytes(data)
	candidate := root.Get("candidates.0")

	for _, part := range candidate.Get("content.parts").Array() {
		if text := part.Get("text").String(); text != "" {
			return &ir.UnifiedEvent{Type: ir.EventTextDelta, TextDelta: text}, nil
		}
		if fc := part.Get("functionCall"); fc.Exists() {
			return &ir.UnifiedEvent{
				Type:              ir.EventToolCallStart,
				ToolCallName:      fc.Get("name").String(),
				ToolCallArgsDelta: fc.Get("args").Raw,
			}, nil
		}
	}
	if reason := candidate.Get("finishReason").String(); reason != "" {
		ev := &ir.UnifiedEvent{Type: ir.EventMessageStop, FinishReason: reason}
		if usage := root.Get("usageMetadata"); usage.Exists() {
			ev.Usage = &ir.Usage{
				PromptTokens:     int(usage.Get("promptTokenCount").Int()),
				CompletionTokens: int(usage.Get("candidatesTokenCount").Int()),
				TotalTokens:      int(usage.Get("totalTokenCount").Int()),
			}
		}
		return ev, nil
	}
	return &ir.UnifiedEvent{Type: ir.EventMessageStart}, nil
}

func encodeGeminiChunk(ev ir.UnifiedEvent, model string) []byte {
	var part map[string]any
	switch ev.Type {
	case ir.EventTextDelta:
		part = map[string]any{"text": ev.TextDelta}
	case ir.EventToolCallStart, ir.EventToolCallDelta:
		part = map[string]any{"functionCall": map[string]any{"name": ev.ToolCallName, "args": map[string]any{}}}
	case ir.EventMessageStop:
		payload := map[string]any{
			"candidates": []any{map[string]any{"content": map[string]any{"role": "model", "parts": []any{}}, "finishReason": ev.FinishReason}},
			"modelVersion": model,
		}
		if ev.Usage != nil {
			payload["usageMetadata"] = map[string]any{
				"promptTokenCount":     ev.Usage.PromptTokens,
				"candidatesTokenCount": ev.Usage.CompletionTokens,
				"totalTokenCount":      ev.Usage.TotalTokens,
			}
		}
		body, _ := jsonutil.Marshal(payload)
		return ir.BuildSSEChunk(body)
	default:
		return nil
	}
	payload := map[string]any{
		"candidates":   []any{map[string]any{"content": map[string]any{"role": "model", "parts": []any{part}}}},
		"modelVersion": model,
	}
	body, _ := jsonutil.Marshal(payload)
	return ir.BuildSSEChunk(body)
}
