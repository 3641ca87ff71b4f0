package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_UnknownKey_TopLevel(t *testing.T) {
	path := writeTestConfig(t, `
unknown_section = "value"
`)
	_, err := Load(path, testLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
}

func TestLoad_UnknownKey_Typo(t *testing.T) {
	path := writeTestConfig(t, "debonce = \"5s\"\n")
	_, err := Load(path, testLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key \"debonce\"")
	assert.Contains(t, err.Error(), "did you mean \"debounce\"")
}

func TestLoad_UnknownKey_TableReportedOnce(t *testing.T) {
	path := writeTestConfig(t, "[watch]\ndebounce = \"5s\"\nextension = \".pdf\"\n")
	_, err := Load(path, testLogger(t))
	require.Error(t, err)
	assert.Equal(t, 1, strings.Count(err.Error(), "unknown config key"))
	assert.Contains(t, err.Error(), "\"watch\"")
}

func TestLoad_UnknownKey_NoSuggestion(t *testing.T) {
	path := writeTestConfig(t, `
completely_unrelated_key = true
`)
	_, err := Load(path, testLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"abc", "abc", 0},
		{"abc", "abd", 1},
		{"debonce", "debounce", 1},
		{"log_levle", "log_level", 2},
		{"completely_different", "xyz", 19},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.expected, levenshtein(tt.a, tt.b))
		})
	}
}

func TestClosestMatch_Found(t *testing.T) {
	assert.Equal(t, "watch_dir", closestMatch("watchdir", knownKeysList))
	assert.Equal(t, "metrics_addr", closestMatch("metric_addr", knownKeysList))
}

func TestClosestMatch_NotFound(t *testing.T) {
	assert.Equal(t, "", closestMatch("completely_unrelated", knownKeysList))
}
