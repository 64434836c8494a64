package toir

import (
	"github.com/tidwall/gjson"

	"github.com/relaymux/gateway/internal/xlate/ir"
)

// ParseCodexRequest converts a Codex Response API request body (its `input`
// array of typed items) into the unified IR. This is the inverse of
// the openai->codex rendering algorithm, used when a codex-format request
// must be translated to a different client-facing format.
func ParseCodexRequest(payload []byte) (*ir.UnifiedChatRequest, error) {
	root := gjson.ParseBytes(payload)

	req := &ir.UnifiedChatRequest{
		Model:  root.Get("model").String(),
		Stream: root.Get("stream").Bool(),
	}

	if instr := root.Get("instructions").String(); instr != "" {
		req.Messages = append(req.Messages, ir.Message{
			Role:    ir.RoleSystem,
			Content: []ir.ContentPart{{Type: ir.ContentTypeText, Text: instr}},
		})
	}

	root.Get("input").ForEach(func(_, item gjson.Result) bool {
		switch item.Get("type").String() {
		case "message":
			role := ir.Role(item.Get("role").String())
			m := ir.Message{Role: role}
			item.Get("content").ForEach(func(_, part gjson.Result) bool {
				switch part.Get("type").String() {
				case "input_text", "output_text":
					m.Content = append(m.Content, ir.ContentPart{Type: ir.ContentTypeText, Text: part.Get("text").String()})
				case "input_image":
					m.Content = append(m.Content, ir.ContentPart{
						Type:  ir.ContentTypeImage,
						Image: &ir.ImagePart{URL: part.Get("image_url").String()},
					})
				}
				return true
			})
			req.Messages = append(req.Messages, m)
		case "function_call":
			args := item.Get("arguments")
			isObject := args.Type != gjson.String
			req.Messages = append(req.Messages, ir.Message{
				Role: ir.RoleAssistant,
				Content: []ir.ContentPart{{
					Type:         ir.ContentTypeToolCall,
					ToolCallID:   item.Get("call_id").String(),
					ToolCallName: item.Get("name").String(),
					Args:         toolCallArgs(args, isObject),
					ArgsIsObject: isObject,
				}},
			})
		case "function_call_output":
			req.Messages = append(req.Messages, ir.Message{
				Role: ir.RoleTool,
				Content: []ir.ContentPart{{
					Type:             ir.ContentTypeToolResult,
					ToolResultCallID: item.Get("call_id").String(),
					ToolResultOutput: item.Get("output").String(),
				}},
			})
		}
		return true
	})

	root.Get("tools").ForEach(func(_, t gjson.Result) bool {
		req.Tools = append(req.Tools, ir.Tool{
			Name:        t.Get("name").String(),
			Description: t.Get("description").String(),
			Parameters:  toMap(t.Get("parameters")),
		})
		return true
	})

	if tc := root.Get("tool_choice"); tc.Exists() {
		if tc.Type == gjson.String {
			switch tc.String() {
			case "none":
				req.ToolChoice = &ir.ToolChoice{Mode: ir.ToolChoiceNone}
			case "required":
				req.ToolChoice = &ir.ToolChoice{Mode: ir.ToolChoiceRequired}
			default:
				req.ToolChoice = &ir.ToolChoice{Mode: ir.ToolChoiceAuto}
			}
		} else if name := tc.Get("function.name").String(); name != "" {
			req.ToolChoice = &ir.ToolChoice{Mode: ir.ToolChoiceFunction, FunctionName: name}
		}
	}

	return req, nil
}
