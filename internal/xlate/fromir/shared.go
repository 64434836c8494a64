package fromir

import "github.com/relaymux/gateway/internal/jsonutil"

// rawJSONOrNil decodes a raw JSON object/array string captured from an IR
// tool_call's Args field back into a Go value suitable for map[string]any
// rendering. Malformed or empty input yields nil rather than an error,
// since a renderer has no path to report translation failures mid-tree.
func rawJSONOrNil(raw string) any {
	if raw == "" {
		return nil
	}
	var v any
	if err := jsonutil.Unmarshal([]byte(raw), &v); err != nil {
		return nil
	}
	return v
}
