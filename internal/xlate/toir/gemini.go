package toir

import (
	"github.com/tidwall/gjson"

	"github.com/relaymux/gateway/internal/xlate/ir"
)

// ParseGeminiRequest converts a Gemini generateContent request body into the
// unified IR. A gemini-cli envelope (its payload nested under a top-level
// `request` field alongside `project`/`model` siblings) is unwrapped first.
func ParseGeminiRequest(payload []byte) (*ir.UnifiedChatRequest, error) {
	root := gjson.ParseBytes(payload)
	body := root
	if inner := root.Get("request"); inner.Exists() {
		body = inner
	}

	req := &ir.UnifiedChatRequest{
		Model: root.Get("model").String(),
	}
	if req.Model == "" {
		req.Model = body.Get("model").String()
	}

	if sys := body.Get("systemInstruction"); sys.Exists() {
		if text := geminiPartsText(sys.Get("parts")); text != "" {
			req.Messages = append(req.Messages, ir.Message{
				Role:    ir.RoleSystem,
				Content: []ir.ContentPart{{Type: ir.ContentTypeText, Text: text}},
			})
		}
	}

	body.Get("contents").ForEach(func(_, c gjson.Result) bool {
		req.Messages = append(req.Messages, parseGeminiContent(c))
		return true
	})

	body.Get("tools").ForEach(func(_, t gjson.Result) bool {
		t.Get("functionDeclarations").ForEach(func(_, fn gjson.Result) bool {
			req.Tools = append(req.Tools, ir.Tool{
				Name:        fn.Get("name").String(),
				Description: fn.Get("description").String(),
				Parameters:  toMap(fn.Get("parameters")),
			})
			return true
		})
		return true
	})

	if cfg := body.Get("generationConfig"); cfg.Exists() {
		if v := cfg.Get("maxOutputTokens"); v.Exists() {
			n := int(v.Int())
			req.MaxTokens = &n
		}
		if v := cfg.Get("temperature"); v.Exists() {
			f := v.Float()
			req.Temperature = &f
		}
		if v := cfg.Get("topP"); v.Exists() {
			f := v.Float()
			req.TopP = &f
		}
	}

	return req, nil
}

func geminiPartsText(parts gjson.Result) string {
	var out string
	parts.ForEach(func(_, p gjson.Result) bool {
		out += p.Get("text").String()
		return true
	})
	return out
}

func parseGeminiContent(c gjson.Result) ir.Message {
	role := ir.RoleUser
	switch c.Get("role").String() {
	case "model":
		role = ir.RoleAssistant
	case "user", "":
		role = ir.RoleUser
	}
	m := ir.Message{Role: role}

	c.Get("parts").ForEach(func(_, part gjson.Result) bool {
		switch {
		case part.Get("text").Exists():
			m.Content = append(m.Content, ir.ContentPart{Type: ir.ContentTypeText, Text: part.Get("text").String()})
		case part.Get("inlineData").Exists():
			data := part.Get("inlineData")
			m.Content = append(m.Content, ir.ContentPart{
				Type: ir.ContentTypeImage,
				Image: &ir.ImagePart{
					MimeType: data.Get("mimeType").String(),
					Data:     data.Get("data").String(),
				},
			})
		case part.Get("functionCall").Exists():
			fc := part.Get("functionCall")
			args := fc.Get("args")
			m.Role = ir.RoleAssistant
			m.Content = append(m.Content, ir.ContentPart{
				Type:         ir.ContentTypeToolCall,
				ToolCallName: fc.Get("name").String(),
				Args:         args.Raw,
				ArgsIsObject: true,
			})
		case part.Get("functionResponse").Exists():
			fr := part.Get("functionResponse")
			m.Role = ir.RoleTool
			m.Content = append(m.Content, ir.ContentPart{
				Type:             ir.ContentTypeToolResult,
				ToolResultCallID: fr.Get("name").String(),
				ToolResultOutput: fr.Get("response").Raw,
			})
		}
		return true
	})

	return m
}
