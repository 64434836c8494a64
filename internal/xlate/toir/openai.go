// Package toir parses each of the four wire formats into the unified IR.
package toir

import (
	"github.com/tidwall/gjson"

	"github.com/relaymux/gateway/internal/xlate/ir"
)

// ParseOpenAIRequest converts an OpenAI Chat Completions request body into
// the unified IR.
func ParseOpenAIRequest(payload []byte) (*ir.UnifiedChatRequest, error) {
	root := gjson.ParseBytes(payload)

	req := &ir.UnifiedChatRequest{
		Model:  root.Get("model").String(),
		Stream: root.Get("stream").Bool(),
	}

	root.Get("messages").ForEach(func(_, msg gjson.Result) bool {
		req.Messages = append(req.Messages, parseOpenAIMessage(msg))
		return true
	})

	root.Get("tools").ForEach(func(_, t gjson.Result) bool {
		fn := t.Get("function")
		req.Tools = append(req.Tools, ir.Tool{
			Name:        fn.Get("name").String(),
			Description: fn.Get("description").String(),
			Parameters:  toMap(fn.Get("parameters")),
		})
		return true
	})

	if tc := root.Get("tool_choice"); tc.Exists() {
		req.ToolChoice = parseOpenAIToolChoice(tc)
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

func parseOpenAIMessage(msg gjson.Result) ir.Message {
	role := ir.Role(msg.Get("role").String())
	m := ir.Message{Role: role}

	if role == ir.RoleTool {
		m.Content = append(m.Content, ir.ContentPart{
			Type:             ir.ContentTypeToolResult,
			ToolResultCallID: msg.Get("tool_call_id").String(),
			ToolResultOutput: msg.Get("content").String(),
		})
		return m
	}

	content := msg.Get("content")
	switch {
	case content.IsArray():
		content.ForEach(func(_, part gjson.Result) bool {
			switch part.Get("type").String() {
			case "text":
				m.Content = append(m.Content, ir.ContentPart{Type: ir.ContentTypeText, Text: part.Get("text").String()})
			case "image_url":
				m.Content = append(m.Content, ir.ContentPart{
					Type:  ir.ContentTypeImage,
					Image: &ir.ImagePart{URL: part.Get("image_url.url").String()},
				})
			}
			return true
		})
	case content.Exists() && content.Type == gjson.String:
		m.Content = append(m.Content, ir.ContentPart{Type: ir.ContentTypeText, Text: content.String()})
	}

	msg.Get("tool_calls").ForEach(func(_, tc gjson.Result) bool {
		fn := tc.Get("function")
		args := fn.Get("arguments")
		isObject := args.Type != gjson.String
		m.Content = append(m.Content, ir.ContentPart{
			Type:         ir.ContentTypeToolCall,
			ToolCallID:   tc.Get("id").String(),
			ToolCallName: fn.Get("name").String(),
			Args:         toolCallArgs(args, isObject),
			ArgsIsObject: isObject,
		})
		return true
	})

	return m
}

func parseOpenAIToolChoice(tc gjson.Result) *ir.ToolChoice {
	if tc.Type == gjson.String {
		switch tc.String() {
		case "none":
			return &ir.ToolChoice{Mode: ir.ToolChoiceNone}
		case "required":
			return &ir.ToolChoice{Mode: ir.ToolChoiceRequired}
		default:
			return &ir.ToolChoice{Mode: ir.ToolChoiceAuto}
		}
	}
	if name := tc.Get("function.name").String(); name != "" {
		return &ir.ToolChoice{Mode: ir.ToolChoiceFunction, FunctionName: name}
	}
	return &ir.ToolChoice{Mode: ir.ToolChoiceAuto}
}

// toolCallArgs returns the IR's Args payload for a tool call's arguments
// field: the raw object text when it's a JSON object, or the unquoted
// string contents when the wire form carries arguments as a JSON string
// (the normal OpenAI/Codex shape). Storing args.Raw for the string case
// would keep the surrounding quotes and escaping, which the renderers
// would then re-encode a second time.
func toolCallArgs(args gjson.Result, isObject bool) string {
	if isObject {
		return args.Raw
	}
	return args.String()
}

func toMap(v gjson.Result) map[string]any {
	if !v.Exists() || !v.IsObject() {
		return nil
	}
	m, ok := v.Value().(map[string]any)
	if !ok {
		return nil
	}
	return m
}
