package fromir

import "github.com/relaymux/gateway/internal/xlate/ir"

// RenderGemini renders a UnifiedChatRequest as a Gemini generateContent
// request body.
func RenderGemini(req *ir.UnifiedChatRequest) map[string]any {
	out := map[string]any{}

	var contents []any
	for _, m := range req.Messages {
		if m.Role == ir.RoleSystem {
			out["systemInstruction"] = map[string]any{
				"parts": []any{map[string]any{"text": ir.CombineTextParts(m)}},
			}
			continue
		}
		contents = append(contents, renderGeminiContent(m))
	}
	out["contents"] = contents

	if len(req.Tools) > 0 {
		decls := make([]any, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			})
		}
		out["tools"] = []any{map[string]any{"functionDeclarations": decls}}
	}

	cfg := map[string]any{}
	if req.MaxTokens != nil {
		cfg["maxOutputTokens"] = *req.MaxTokens
	}
	if req.Temperature != nil {
		cfg["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		cfg["topP"] = *req.TopP
	}
	if len(cfg) > 0 {
		out["generationConfig"] = cfg
	}

	return out
}

func renderGeminiContent(m ir.Message) map[string]any {
	role := "user"
	if m.Role == ir.RoleAssistant {
		role = "model"
	}

	var parts []any
	for _, p := range m.Content {
		switch p.Type {
		case ir.ContentTypeText:
			parts = append(parts, map[string]any{"text": p.Text})
		case ir.ContentTypeImage:
			if p.Image != nil {
				parts = append(parts, map[string]any{
					"inlineData": map[string]any{
						"mimeType": p.Image.MimeType,
						"data":     p.Image.Data,
					},
				})
			}
		case ir.ContentTypeToolCall:
			parts = append(parts, map[string]any{
				"functionCall": map[string]any{
					"name": p.ToolCallName,
					"args": rawJSONOrNil(p.Args),
				},
			})
		case ir.ContentTypeToolResult:
			parts = append(parts, map[string]any{
				"functionResponse": map[string]any{
					"name":     p.ToolResultCallID,
					"response": rawJSONOrNil(p.ToolResultOutput),
				},
			})
		}
	}

	return map[string]any{"role": role, "parts": parts}
}

// WrapGeminiCLIEnvelope wraps a rendered Gemini body inside the gemini-cli
// request envelope, alongside a `project` field when one is configured.
func WrapGeminiCLIEnvelope(body map[string]any, model, project string) map[string]any {
	out := map[string]any{
		"model":   model,
		"request": body,
	}
	if project != "" {
		out["project"] = project
	}
	return out
}
