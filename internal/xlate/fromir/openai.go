// Package fromir renders the unified IR back into each of the four wire
// formats.
package fromir

import (
	"github.com/relaymux/gateway/internal/xlate/ir"
)

// RenderOpenAI renders a UnifiedChatRequest as an OpenAI Chat Completions
// request body.
func RenderOpenAI(req *ir.UnifiedChatRequest) map[string]any {
	out := map[string]any{
		"model":  req.Model,
		"stream": req.Stream,
	}

	messages := make([]any, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, renderOpenAIMessage(m)...)
	}
	out["messages"] = messages

	if len(req.Tools) > 0 {
		tools := make([]any, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  t.Parameters,
				},
			})
		}
		out["tools"] = tools
	}

	if req.ToolChoice != nil {
		out["tool_choice"] = renderOpenAIToolChoice(req.ToolChoice)
	}

	if req.MaxTokens != nil {
		out["max_tokens"] = *req.MaxTokens
	}
	if req.Temperature != nil {
		out["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		out["top_p"] = *req.TopP
	}

	return out
}

// renderOpenAIMessage may expand a single IR message into more than one
// OpenAI message: a message mixing an assistant tool_call with prior text
// stays one message, but tool_result parts always become their own
// standalone "tool" role message per OpenAI's wire format.
func renderOpenAIMessage(m ir.Message) []any {
	var out []any

	toolResults := m.ToolResults()
	for _, tr := range toolResults {
		out = append(out, map[string]any{
			"role":         "tool",
			"tool_call_id": tr.ToolResultCallID,
			"content":      tr.ToolResultOutput,
		})
	}
	if len(toolResults) == len(m.Content) {
		return out
	}

	msg := map[string]any{"role": string(m.Role)}
	text := ir.CombineTextParts(m)
	if text != "" {
		msg["content"] = text
	} else if len(m.ToolCalls()) == 0 {
		msg["content"] = ""
	}

	if calls := m.ToolCalls(); len(calls) > 0 {
		toolCalls := make([]any, 0, len(calls))
		for _, c := range calls {
			var args any = c.Args
			toolCalls = append(toolCalls, map[string]any{
				"id":   c.ToolCallID,
				"type": "function",
				"function": map[string]any{
					"name":      c.ToolCallName,
					"arguments": args,
				},
			})
		}
		msg["tool_calls"] = toolCalls
	}

	out = append([]any{msg}, out...)
	return out
}

func renderOpenAIToolChoice(tc *ir.ToolChoice) any {
	switch tc.Mode {
	case ir.ToolChoiceNone:
		return "none"
	case ir.ToolChoiceRequired:
		return "required"
	case ir.ToolChoiceFunction:
		return map[string]any{
			"type":     "function",
			"function": map[string]any{"name": tc.FunctionName},
		}
	default:
		return "auto"
	}
}
