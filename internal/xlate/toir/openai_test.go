package toir

import "testing"

func TestParseOpenAIToolCallArgsUnquotesStringForm(t *testing.T) {
	payload := []byte(`{
		"model": "gpt-4",
		"messages": [{
			"role": "assistant",
			"tool_calls": [{
				"id": "c1",
				"function": {"name": "f", "arguments": "{\"x\":1}"}
			}]
		}]
	}`)

	req, err := ParseOpenAIRequest(payload)
	if err != nil {
		t.Fatalf("ParseOpenAIRequest() error: %v", err)
	}

	part := req.Messages[0].Content[0]
	if part.ArgsIsObject {
		t.Fatal("string-form arguments must not be marked ArgsIsObject")
	}
	if part.Args != `{"x":1}` {
		t.Fatalf("Args = %q, want unescaped %q", part.Args, `{"x":1}`)
	}
}

func TestParseOpenAIToolCallArgsKeepsRawForObjectForm(t *testing.T) {
	payload := []byte(`{
		"model": "gpt-4",
		"messages": [{
			"role": "assistant",
			"tool_calls": [{
				"id": "c1",
				"function": {"name": "f", "arguments": {"x": 1}}
			}]
		}]
	}`)

	req, err := ParseOpenAIRequest(payload)
	if err != nil {
		t.Fatalf("ParseOpenAIRequest() error: %v", err)
	}

	part := req.Messages[0].Content[0]
	if !part.ArgsIsObject {
		t.Fatal("object-form arguments must be marked ArgsIsObject")
	}
	if part.Args != `{"x": 1}` {
		t.Fatalf("Args = %q, want raw object text", part.Args)
	}
}
