package toir

import (
	"github.com/tidwall/gjson"

	"github.com/relaymux/gateway/internal/xlate/ir"
)

// ParseClaudeRequest converts a Claude Messages request body into the
// unified IR. The top-level `system` array/string becomes a leading system
// message, matching Claude's own request shape.
func ParseClaudeRequest(payload []byte) (*ir.UnifiedChatRequest, error) {
	root := gjson.ParseBytes(payload)

	req := &ir.UnifiedChatRequest{
		Model:  root.Get("model").String(),
		Stream: root.Get("stream").Bool(),
	}

	if sys := root.Get("system"); sys.Exists() {
		if text := combineClaudeSystem(sys); text != "" {
			req.Messages = append(req.Messages, ir.Message{
				Role:    ir.RoleSystem,
				Content: []ir.ContentPart{{Type: ir.ContentTypeText, Text: text}},
			})
		}
	}

	root.Get("messages").ForEach(func(_, msg gjson.Result) bool {
		req.Messages = append(req.Messages, parseClaudeMessage(msg))
		return true
	})

	root.Get("tools").ForEach(func(_, t gjson.Result) bool {
		req.Tools = append(req.Tools, ir.Tool{
			Name:        t.Get("name").String(),
			Description: t.Get("description").String(),
			Parameters:  toMap(t.Get("input_schema")),
		})
		return true
	})

	if tc := root.Get("tool_choice"); tc.Exists() {
		req.ToolChoice = parseClaudeToolChoice(tc)
	}

	if v := root.Get("max_tokens"); v.Exists() {
		n := int(v.Int())
		req.MaxTokens = &n
	}
	if v := root.Get("temperature"); v.Exists() {
		f := v.Float()
		req.Temperature = &f
	}
	if v := root.Get("top_p"); v.Exists() {
		f := v.Float()
		req.TopP = &f
	}

	return req, nil
}

func combineClaudeSystem(sys gjson.Result) string {
	if sys.Type == gjson.String {
		return sys.String()
	}
	var out string
	sys.ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").String() == "text" {
			out += block.Get("text").String()
		}
		return true
	})
	return out
}

func parseClaudeMessage(msg gjson.Result) ir.Message {
	role := ir.Role(msg.Get("role").String())
	m := ir.Message{Role: role}

	content := msg.Get("content")
	if content.Type == gjson.String {
		m.Content = append(m.Content, ir.ContentPart{Type: ir.ContentTypeText, Text: content.String()})
		return m
	}

	content.ForEach(func(_, block gjson.Result) bool {
		switch block.Get("type").String() {
		case "text":
			m.Content = append(m.Content, ir.ContentPart{Type: ir.ContentTypeText, Text: block.Get("text").String()})
		case "image":
			src := block.Get("source")
			m.Content = append(m.Content, ir.ContentPart{
				Type: ir.ContentTypeImage,
				Image: &ir.ImagePart{
					MimeType: src.Get("media_type").String(),
					Data:     src.Get("data").String(),
					URL:      src.Get("url").String(),
				},
			})
		case "tool_use":
			input := block.Get("input")
			m.Content = append(m.Content, ir.ContentPart{
				Type:         ir.ContentTypeToolCall,
				ToolCallID:   block.Get("id").String(),
				ToolCallName: block.Get("name").String(),
				Args:         input.Raw,
				ArgsIsObject: true,
			})
		case "tool_result":
			m.Content = append(m.Content, ir.ContentPart{
				Type:             ir.ContentTypeToolResult,
				ToolResultCallID: block.Get("tool_use_id").String(),
				ToolResultOutput: claudeToolResultText(block),
			})
		}
		return true
	})

	return m
}

func claudeToolResultText(block gjson.Result) string {
	c := block.Get("content")
	if c.Type == gjson.String {
		return c.String()
	}
	var out string
	c.ForEach(func(_, part gjson.Result) bool {
		if part.Get("type").String() == "text" {
			out += part.Get("text").String()
		}
		return true
	})
	return out
}

func parseClaudeToolChoice(tc gjson.Result) *ir.ToolChoice {
	switch tc.Get("type").String() {
	case "none":
		return &ir.ToolChoice{Mode: ir.ToolChoiceNone}
	case "any":
		return &ir.ToolChoice{Mode: ir.ToolChoiceRequired}
	case "tool":
		return &ir.ToolChoice{Mode: ir.ToolChoiceFunction, FunctionName: tc.Get("name").String()}
	default:
		return &ir.ToolChoice{Mode: ir.ToolChoiceAuto}
	}
}
