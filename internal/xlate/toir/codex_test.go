package toir

import "testing"

func TestParseCodexFunctionCallArgsUnquotesStringForm(t *testing.T) {
	payload := []byte(`{
		"model": "gpt-5",
		"input": [{
			"type": "function_call",
			"call_id": "c1",
			"name": "f",
			"arguments": "{\"x\":1}"
		}]
	}`)

	req, err := ParseCodexRequest(payload)
	if err != nil {
		t.Fatalf("ParseCodexRequest() error: %v", err)
	}

	part := req.Messages[0].Content[0]
	if part.ArgsIsObject {
		t.Fatal("string-form arguments must not be marked ArgsIsObject")
	}
	if part.Args != `{"x":1}` {
		t.Fatalf("Args = %q, want unescaped %q", part.Args, `{"x":1}`)
	}
}
