package domain

import "testing"

func TestDetectFormatScenarios(t *testing.T) {
	cases := []struct {
		name string
		body map[string]any
		want Format
	}{
		{
			name: "gemini-cli envelope",
			body: map[string]any{"request": map[string]any{"messages": []any{}}},
			want: FormatGeminiCLI,
		},
		{
			name: "codex response input array",
			body: map[string]any{"input": []any{}},
			want: FormatResponse,
		},
		{
			name: "claude messages plus system array",
			body: map[string]any{"messages": []any{}, "system": []any{}},
			want: FormatClaude,
		},
		{
			name: "openai messages without system",
			body: map[string]any{"messages": []any{}},
			want: FormatOpenAI,
		},
		{
			name: "unrecognized shape defaults to claude",
			body: map[string]any{"foo": "bar"},
			want: FormatClaude,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectFormat(tc.body); got != tc.want {
				t.Fatalf("DetectFormat(%+v) = %q, want %q", tc.body, got, tc.want)
			}
		})
	}
}
