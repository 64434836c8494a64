package officials

import "testing"

func TestIsOfficialInstructions(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"You are Codex, based on GPT-5 and trained by OpenAI.", true},
		{"You are a coding agent running in the Codex CLI, an interactive tool.", true},
		{"You are a friendly assistant.", false},
	}
	for _, c := range cases {
		if got := IsOfficialInstructions(c.in); got != c.want {
			t.Errorf("IsOfficialInstructions(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestIsOfficialUserAgent(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"codex_cli_rs/1.2.3", true},
		{"codex-cli/0.9.0", true},
		{"curl/8.0.0", false},
	}
	for _, c := range cases {
		if got := IsOfficialUserAgent(c.in); got != c.want {
			t.Errorf("IsOfficialUserAgent(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestDefaultInstructionsForNeverEmpty(t *testing.T) {
	for _, model := range []string{"gpt-5-codex", "gpt-5", "unknown-model"} {
		if s := DefaultInstructionsFor(model); s == "" {
			t.Errorf("DefaultInstructionsFor(%q) returned empty string", model)
		}
	}
}
