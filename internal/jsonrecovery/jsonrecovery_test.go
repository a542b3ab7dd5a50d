package jsonrecovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Claims []string `json:"claims"`
}

func TestExtractCanonical(t *testing.T) {
	var p payload
	ok := Extract(`{"claims": ["A", "B"]}`, &p)
	require.True(t, ok)
	assert.Equal(t, []string{"A", "B"}, p.Claims)
}

func TestExtractWithSurroundingNoise(t *testing.T) {
	var p payload
	ok := Extract("Here is the answer: {\"claims\": [\"A\"]} -- done", &p)
	require.True(t, ok)
	assert.Equal(t, []string{"A"}, p.Claims)
}

func TestExtractAfterCodeFenceCleanup(t *testing.T) {
	raw := "```json\n{\"claims\": [\"A\"]}\n```"
	var p payload
	ok := Extract(raw, &p)
	require.True(t, ok)
	assert.Equal(t, []string{"A"}, p.Claims)
}

func TestExtractAfterDecorativePrefixCleanup(t *testing.T) {
	raw := "Output: {\"claims\": [\"A\"]}"
	var p payload
	ok := Extract(raw, &p)
	require.True(t, ok)
	assert.Equal(t, []string{"A"}, p.Claims)
}

func TestExtractFailsOnNoJSON(t *testing.T) {
	var p payload
	ok := Extract("no json object here at all", &p)
	assert.False(t, ok)
}

func TestExtractFailsOnMalformedJSON(t *testing.T) {
	var p payload
	ok := Extract(`{"claims": [`, &p)
	assert.False(t, ok)
}
