package fromir

import (
	"strings"

	"github.com/relaymux/gateway/internal/xlate/ir"
	"github.com/relaymux/gateway/internal/xlate/officials"
)

// RenderCodex implements the openai->codex algorithm in full: forced
// fields, system/non-system partition, official-instructions detection,
// the first-user-message injection rule, and the forbidden-parameter drop.
// The injection rule keys off whether extractedInstructions itself matches
// an official prefix, not the inbound User-Agent; UA-based sanitization is
// a separate post-translation pass (internal/xlate/sanitize.go).
func RenderCodex(req *ir.UnifiedChatRequest) map[string]any {
	out := map[string]any{
		"stream":              true,
		"store":               false,
		"parallel_tool_calls": true,
		"include":             []any{"reasoning.encrypted_content"},
		"model":               req.Model,
	}

	var systemParts []string
	var nonSystem []ir.Message
	for _, m := range req.Messages {
		if m.Role == ir.RoleSystem {
			if text := ir.CombineTextParts(m); text != "" {
				systemParts = append(systemParts, text)
			}
			continue
		}
		nonSystem = append(nonSystem, m)
	}
	extractedInstructions := strings.Join(systemParts, "\n\n")
	isOfficial := officials.IsOfficialInstructions(extractedInstructions)

	input := make([]any, 0, len(nonSystem))
	firstUserSeen := false
	for _, m := range nonSystem {
		if m.Role == ir.RoleTool {
			for _, tr := range m.ToolResults() {
				input = append(input, map[string]any{
					"type":    "function_call_output",
					"call_id": tr.ToolResultCallID,
					"output":  tr.ToolResultOutput,
				})
			}
			continue
		}

		if calls := m.ToolCalls(); len(calls) > 0 {
			for _, c := range calls {
				var args any = c.Args
				if c.ArgsIsObject {
					args = rawJSONOrNil(c.Args)
				}
				input = append(input, map[string]any{
					"type":      "function_call",
					"call_id":   c.ToolCallID,
					"name":      c.ToolCallName,
					"arguments": args,
				})
			}
		}

		var textTypeName string
		if m.Role == ir.RoleAssistant {
			textTypeName = "output_text"
		} else {
			textTypeName = "input_text"
		}

		var parts []any
		for _, p := range m.Content {
			switch p.Type {
			case ir.ContentTypeText:
				parts = append(parts, map[string]any{"type": textTypeName, "text": p.Text})
			case ir.ContentTypeImage:
				if p.Image != nil {
					parts = append(parts, map[string]any{"type": "input_image", "image_url": p.Image.URL})
				}
			}
		}

		if m.Role == ir.RoleUser && !firstUserSeen {
			firstUserSeen = true
			if extractedInstructions != "" && !isOfficial {
				injected := []any{
					map[string]any{"type": "input_text", "text": officials.InjectionMarker},
					map[string]any{"type": "input_text", "text": extractedInstructions},
				}
				parts = append(injected, parts...)
			}
		}

		if len(parts) > 0 {
			input = append(input, map[string]any{
				"type":    "message",
				"role":    string(m.Role),
				"content": parts,
			})
		}
	}
	out["input"] = input

	if isOfficial {
		out["instructions"] = extractedInstructions
	} else {
		out["instructions"] = officials.DefaultInstructionsFor(req.Model)
	}

	if len(req.Tools) > 0 {
		tools := make([]any, 0, len(req.Tools))
		for _, t := range req.Tools {
			params := t.Parameters
			if params == nil {
				params = map[string]any{}
			}
			tools = append(tools, map[string]any{
				"type":        "function",
				"name":        t.Name,
				"description": t.Description,
				"parameters":  params,
			})
		}
		out["tools"] = tools
	}

	if req.ToolChoice != nil {
		out["tool_choice"] = renderCodexToolChoice(req.ToolChoice)
	}

	// max_tokens, max_output_tokens, max_completion_tokens, temperature,
	// and top_p are intentionally dropped: the codex upstream rejects them.

	return out
}

func renderCodexToolChoice(tc *ir.ToolChoice) any {
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
