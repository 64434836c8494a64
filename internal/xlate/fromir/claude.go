package fromir

import "github.com/relaymux/gateway/internal/xlate/ir"

// RenderClaude renders a UnifiedChatRequest as a Claude Messages request
// body. Leading system messages are pulled out into the top-level `system`
// field, matching Claude's own request shape.
func RenderClaude(req *ir.UnifiedChatRequest) map[string]any {
	out := map[string]any{
		"model": req.Model,
	}
	if req.Stream {
		out["stream"] = true
	}

	var system string
	messages := make([]any, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == ir.RoleSystem {
			system += ir.CombineTextParts(m)
			continue
		}
		messages = append(messages, renderClaudeMessage(m))
	}
	if system != "" {
		out["system"] = system
	}
	out["messages"] = messages

	if len(req.Tools) > 0 {
		tools := make([]any, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, map[string]any{
				"name":         t.Name,
				"description":  t.Description,
				"input_schema": t.Parameters,
			})
		}
		out["tools"] = tools
	}

	if req.ToolChoice != nil {
		out["tool_choice"] = renderClaudeToolChoice(req.ToolChoice)
	}

	if req.MaxTokens != nil {
		out["max_tokens"] = *req.MaxTokens
	} else {
		out["max_tokens"] = 4096
	}
	if req.Temperature != nil {
		out["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		out["top_p"] = *req.TopP
	}

	return out
}

func renderClaudeMessage(m ir.Message) map[string]any {
	role := string(m.Role)
	if m.Role == ir.RoleTool {
		role = "user"
	}

	var blocks []any
	for _, p := range m.Content {
		switch p.Type {
		case ir.ContentTypeText:
			blocks = append(blocks, map[string]any{"type": "text", "text": p.Text})
		case ir.ContentTypeImage:
			src := map[string]any{}
			if p.Image != nil {
				if p.Image.URL != "" {
					src["type"] = "url"
					src["url"] = p.Image.URL
				} else {
					src["type"] = "base64"
					src["media_type"] = p.Image.MimeType
					src["data"] = p.Image.Data
				}
			}
			blocks = append(blocks, map[string]any{"type": "image", "source": src})
		case ir.ContentTypeToolCall:
			var input any
			if p.ArgsIsObject {
				input = rawJSONOrNil(p.Args)
			} else {
				input = p.Args
			}
			blocks = append(blocks, map[string]any{
				"type":  "tool_use",
				"id":    p.ToolCallID,
				"name":  p.ToolCallName,
				"input": input,
			})
		case ir.ContentTypeToolResult:
			blocks = append(blocks, map[string]any{
				"type":        "tool_result",
				"tool_use_id": p.ToolResultCallID,
				"content":     p.ToolResultOutput,
			})
		}
	}

	return map[string]any{"role": role, "content": blocks}
}

func renderClaudeToolChoice(tc *ir.ToolChoice) any {
	switch tc.Mode {
	case ir.ToolChoiceNone:
		return map[string]any{"type": "none"}
	case ir.ToolChoiceRequired:
		return map[string]any{"type": "any"}
	case ir.ToolChoiceFunction:
		return map[string]any{"type": "tool", "name": tc.FunctionName}
	default:
		return map[string]any{"type": "auto"}
	}
}
