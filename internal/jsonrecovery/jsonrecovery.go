// Package jsonrecovery implements the tolerant JSON extraction shared by
// every stage that parses a backend's free-text response as structured
// output (spec §4.6).
package jsonrecovery

import (
	"encoding/json"
	"strings"
)

var decorativePrefixes = []string{"Output:", "Result:"}

// Extract attempts to parse raw as a JSON object into dest. It first looks
// for the first '{' and last '}' in the text and tries to decode that span.
// If that fails, it strips fenced code markers and common decorative
// prefixes and retries once. It reports whether a legible JSON object was
// ultimately recovered.
func Extract(raw string, dest interface{}) bool {
	if tryParse(raw, dest) {
		return true
	}
	cleaned := clean(raw)
	return tryParse(cleaned, dest)
}

func tryParse(raw string, dest interface{}) bool {
	text := strings.TrimSpace(raw)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return false
	}
	span := text[start : end+1]
	return json.Unmarshal([]byte(span), dest) == nil
}

func clean(raw string) string {
	text := raw
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	for _, prefix := range decorativePrefixes {
		text = strings.ReplaceAll(text, prefix, "")
	}
	return text
}
