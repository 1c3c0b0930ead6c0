package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/cmsync/internal/model"
)

// marshalLocaleMap converts a LocaleMap to JSON TEXT for storage.
// Go's encoder sorts map keys, so equal maps always store identical text.
// HTML escaping is disabled so markup in titles is kept verbatim.
func marshalLocaleMap(m model.LocaleMap) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]string(m)); err != nil {
		return "", fmt.Errorf("marshal locale map: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalLocaleMap parses JSON TEXT into a LocaleMap.
// Returns nil for the empty object so absent maps round-trip as nil.
func unmarshalLocaleMap(data string) (model.LocaleMap, error) {
	if data == "" || data == "{}" {
		return nil, nil
	}
	var m model.LocaleMap
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("unmarshal locale map: %w", err)
	}
	return m, nil
}

// marshalActions converts an action list to JSON TEXT.
func marshalActions(actions []string) (string, error) {
	if actions == nil {
		actions = []string{}
	}
	data, err := json.Marshal(actions)
	if err != nil {
		return "", fmt.Errorf("marshal actions: %w", err)
	}
	return string(data), nil
}

// unmarshalActions parses JSON TEXT into an action list.
// Always returns a non-nil slice.
func unmarshalActions(data string) ([]string, error) {
	actions := []string{}
	if data == "" {
		return actions, nil
	}
	if err := json.Unmarshal([]byte(data), &actions); err != nil {
		return nil, fmt.Errorf("unmarshal actions: %w", err)
	}
	return actions, nil
}
