// Package jsonutil hides the JSON codec behind a small surface so the rest
// of the module never imports encoding/json or sonic directly.
package jsonutil

import "github.com/bytedance/sonic"

var api = sonic.ConfigStd

// Marshal encodes v as JSON using the sonic codec.
func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

// MarshalIndent encodes v as indented JSON.
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return api.MarshalIndent(v, prefix, indent)
}

// Unmarshal decodes JSON into v.
func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}

// UnmarshalMap decodes a JSON object into a generic map, the representation
// the translators mutate in place.
func UnmarshalMap(data []byte) (map[string]any, error) {
	var m map[string]any
	if err := api.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
