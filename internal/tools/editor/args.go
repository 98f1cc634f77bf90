package editor

import (
	"encoding/json"
	"fmt"
)

// requireString extracts a non-empty string from args by key.
func requireString(args map[string]any, key string) (string, error) {
	v, _ := args[key].(string)
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

// requireJSON extracts a string argument and checks that it holds valid JSON.
func requireJSON(args map[string]any, key string) (json.RawMessage, error) {
	s, err := requireString(args, key)
	if err != nil {
		return nil, err
	}
	if !json.Valid([]byte(s)) {
		return nil, fmt.Errorf("%s must be valid JSON", key)
	}
	return json.RawMessage(s), nil
}
