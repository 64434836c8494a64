package dispatch

import (
	"github.com/tidwall/gjson"

	"github.com/relaymux/gateway/internal/domain"
	"github.com/relaymux/gateway/internal/jsonutil"
	"github.com/relaymux/gateway/internal/xlate/ir"
)

// finalResponse is the extracted shape of a complete (non-streamed)
// upstream reply: enough to re-render into any of the four target
// formats' single-shot response schema.
type finalResponse struct {
	Text         string
	ToolCallID   string
	ToolCallName string
	ToolCallArgs string
	FinishReason string
	Usage        *ir.Usage
}

// parseFinalResponse extracts a finalResponse from a complete upstream
// body in fromFormat's non-streamed response schema.
func parseFinalResponse(fromFormat domain.Format, body []byte) finalResponse {
	root := gjson.ParseBytes(body)
	switch fromFormat {
	case domain.FormatOpenAI:
		return parseOpenAIFinalResponse(root)
	case domain.FormatClaude:
		return parseClaudeFinalResponse(root)
	case domain.FormatCodex, domain.FormatResponse:
		return parseCodexFinalResponse(root)
	case domain.FormatGeminiCLI:
		return parseGeminiFinalResponse(root)
	default:
		return finalResponse{}
	}
}

func parseOpenAIFinalResponse(root gjson.Result) finalResponse {
	choice := root.Get("choices.0")
	fr := finalResponse{
		Text:         choice.Get("message.content").String(),
		FinishReason: choice.Get("finish_reason").String(),
	}
	if call := choice.Get("message.tool_calls.0"); call.Exists() {
		fr.ToolCallID = call.Get("id").String()
		fr.ToolCallName = call.Get("function.name").String()
		fr.ToolCallArgs = call.Get("function.arguments").String()
	}
	if u := root.Get("usage"); u.Exists() {
		fr.Usage = &ir.Usage{
			PromptTokens:     int(u.Get("prompt_tokens").Int()),
			CompletionTokens: int(u.Get("completion_tokens").Int()),
			TotalTokens:      int(u.Get("total_tokens").Int()),
		}
	}
	return fr
}

func parseClaudeFinalResponse(root gjson.Result) finalResponse {
	fr := finalResponse{FinishReason: root.Get("stop_reason").String()}
	root.Get("content").ForEach(func(_, block gjson.Result) bool {
		switch block.Get("type").String() {
		case "text":
			fr.Text += block.Get("text").String()
		case "tool_use":
			fr.ToolCallID = block.Get("id").String()
			fr.ToolCallName = block.Get("name").String()
			fr.ToolCallArgs = block.Get("input").Raw
		}
		return true
	})
	if u := root.Get("usage"); u.Exists() {
		in := int(u.Get("input_tokens").Int())
		out := int(u.Get("output_tokens").Int())
		fr.Usage = &ir.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}
	}
	return fr
}

func parseCodexFinalResponse(root gjson.Result) finalResponse {
	var fr finalResponse
	root.Get("output").ForEach(func(_, item gjson.Result) bool {
		switch item.Get("type").String() {
		case "message":
			item.Get("content").ForEach(func(_, part gjson.Result) bool {
				if part.Get("type").String() == "output_text" {
					fr.Text += part.Get("text").String()
				}
				return true
			})
		case "function_call":
			fr.ToolCallID = item.Get("call_id").String()
			fr.ToolCallName = item.Get("name").String()
			fr.ToolCallArgs = item.Get("arguments").String()
		}
		return true
	})
	fr.FinishReason = root.Get("status").String()
	if u := root.Get("usage"); u.Exists() {
		in := int(u.Get("input_tokens").Int())
		out := int(u.Get("output_tokens").Int())
		fr.Usage = &ir.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}
	}
	return fr
}

func parseGeminiFinalResponse(root gjson.Result) finalResponse {
	candidate := root.Get("candidates.0")
	fr := finalResponse{FinishReason: candidate.Get("finishReason").String()}
	candidate.Get("content.parts").ForEach(func(_, part gjson.Result) bool {
		if part.Get("text").Exists() {
			fr.Text += part.Get("text").String()
		}
		if fc := part.Get("functionCall"); fc.Exists() {
			fr.ToolCallName = fc.Get("name").String()
			fr.ToolCallArgs = fc.Get("args").Raw
		}
		return true
	})
	if u := root.Get("usageMetadata"); u.Exists() {
		in := int(u.Get("promptTokenCount").Int())
		out := int(u.Get("candidatesTokenCount").Int())
		fr.Usage = &ir.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out}
	}
	return fr
}

// renderFinalResponse re-renders fr into toFormat's single-shot response
// schema.
func renderFinalResponse(toFormat domain.Format, fr finalResponse, model, messageID string) []byte {
	var payload map[string]any
	switch toFormat {
	case domain.FormatOpenAI:
		payload = renderOpenAIFinalResponse(fr, model, messageID)
	case domain.FormatClaude:
		payload = renderClaudeFinalResponse(fr, model, messageID)
	case domain.FormatCodex, domain.FormatResponse:
		payload = renderCodexFinalResponse(fr, model, messageID)
	case domain.FormatGeminiCLI:
		payload = renderGeminiFinalResponse(fr)
	default:
		return nil
	}
	body, err := jsonutil.Marshal(payload)
	if err != nil {
		return nil
	}
	return body
}

func renderOpenAIFinalResponse(fr finalResponse, model, messageID string) map[string]any {
	message := map[string]any{"role": "assistant", "content": fr.Text}
	if fr.ToolCallName != "" {
		message["tool_calls"] = []any{map[string]any{
			"id": fr.ToolCallID, "type": "function",
			"function": map[string]any{"name": fr.ToolCallName, "arguments": fr.ToolCallArgs},
		}}
	}
	choice := map[string]any{"index": 0, "message": message, "finish_reason": fr.FinishReason}
	out := map[string]any{
		"id": messageID, "object": "chat.completion", "model": model,
		"choices": []any{choice},
	}
	if fr.Usage != nil {
		out["usage"] = map[string]any{
			"prompt_tokens": fr.Usage.PromptTokens, "completion_tokens": fr.Usage.CompletionTokens,
			"total_tokens": fr.Usage.TotalTokens,
		}
	}
	return out
}

func renderClaudeFinalResponse(fr finalResponse, model, messageID string) map[string]any {
	var content []any
	if fr.Text != "" {
		content = append(content, map[string]any{"type": "text", "text": fr.Text})
	}
	if fr.ToolCallName != "" {
		content = append(content, map[string]any{
			"type": "tool_use", "id": fr.ToolCallID, "name": fr.ToolCallName,
			"input": rawJSONOrEmptyObject(fr.ToolCallArgs),
		})
	}
	out := map[string]any{
		"id": messageID, "type": "message", "role": "assistant", "model": model,
		"content": content, "stop_reason": fr.FinishReason,
	}
	if fr.Usage != nil {
		out["usage"] = map[string]any{
			"input_tokens": fr.Usage.PromptTokens, "output_tokens": fr.Usage.CompletionTokens,
		}
	}
	return out
}

func renderCodexFinalResponse(fr finalResponse, model, messageID string) map[string]any {
	var output []any
	if fr.Text != "" {
		output = append(output, map[string]any{
			"type": "message", "role": "assistant",
			"content": []any{map[string]any{"type": "output_text", "text": fr.Text}},
		})
	}
	if fr.ToolCallName != "" {
		output = append(output, map[string]any{
			"type": "function_call", "call_id": fr.ToolCallID,
			"name": fr.ToolCallName, "arguments": fr.ToolCallArgs,
		})
	}
	out := map[string]any{"id": messageID, "model": model, "output": output, "status": fr.FinishReason}
	if fr.Usage != nil {
		out["usage"] = map[string]any{
			"input_tokens": fr.Usage.PromptTokens, "output_tokens": fr.Usage.CompletionTokens,
		}
	}
	return out
}

func renderGeminiFinalResponse(fr finalResponse) map[string]any {
	var parts []any
	if fr.Text != "" {
		parts = append(parts, map[string]any{"text": fr.Text})
	}
	if fr.ToolCallName != "" {
		parts = append(parts, map[string]any{
			"functionCall": map[string]any{"name": fr.ToolCallName, "args": rawJSONOrEmptyObject(fr.ToolCallArgs)},
		})
	}
	candidate := map[string]any{
		"content":      map[string]any{"role": "model", "parts": parts},
		"finishReason": fr.FinishReason,
	}
	out := map[string]any{"candidates": []any{candidate}}
	if fr.Usage != nil {
		out["usageMetadata"] = map[string]any{
			"promptTokenCount": fr.Usage.PromptTokens, "candidatesTokenCount": fr.Usage.CompletionTokens,
			"totalTokenCount": fr.Usage.PromptTokens + fr.Usage.CompletionTokens,
		}
	}
	return out
}

func rawJSONOrEmptyObject(raw string) any {
	if raw == "" {
		return map[string]any{}
	}
	var v any
	if err := jsonutil.Unmarshal([]byte(raw), &v); err != nil {
		return map[string]any{}
	}
	return v
}
