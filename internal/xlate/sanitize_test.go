package xlate

import "testing"

func TestSanitizeCodexRequestStripsForbiddenParams(t *testing.T) {
	body := map[string]any{
		"model":        "gpt-5-codex",
		"temperature":  0.7,
		"max_tokens":   100,
		"instructions": "whatever the client sent",
		"store":        true,
		"stream":       false,
	}
	out := SanitizeCodexRequest(body, "curl/8.0.0", "gpt-5-codex")

	for _, p := range []string{"temperature", "max_tokens"} {
		if _, has := out[p]; has {
			t.Errorf("expected %q to be stripped", p)
		}
	}
	if out["store"] != false || out["stream"] != true || out["parallel_tool_calls"] != true {
		t.Errorf("forced fields not applied: %+v", out)
	}
	if out["instructions"] == "whatever the client sent" {
		t.Error("expected instructions to be replaced for non-official client")
	}
}

func TestSanitizeCodexRequestBypassesOfficialClients(t *testing.T) {
	body := map[string]any{
		"temperature":  0.7,
		"instructions": "You are Codex, based on GPT-5 and trained by OpenAI.",
	}
	out := SanitizeCodexRequest(body, "codex_cli_rs/1.0.0", "gpt-5-codex")

	if _, has := out["temperature"]; !has {
		t.Error("official client body must not be modified")
	}
	if out["instructions"] != "You are Codex, based on GPT-5 and trained by OpenAI." {
		t.Error("official client instructions must not be replaced")
	}
}
