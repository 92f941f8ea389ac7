package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONStripsMarkdownFence(t *testing.T) {
	text := "```json\n{\"scores_by_wine\":{\"Opus One\":0.9}}\n```"
	assert.Equal(t, `{"scores_by_wine":{"Opus One":0.9}}`, extractJSON(text))
}

func TestExtractJSONPassesThroughBareJSON(t *testing.T) {
	text := `{"scores_by_wine":{}}`
	assert.Equal(t, text, extractJSON(text))
}

func TestExtractJSONTrimsSurroundingWhitespace(t *testing.T) {
	text := "  \n```\n{\"a\":1}\n```\n  "
	assert.Equal(t, `{"a":1}`, extractJSON(text))
}

func TestBuildPromptIncludesDishAndCandidates(t *testing.T) {
	prompt := BuildPrompt("grilled salmon", []string{"Chablis", "Sancerre"})
	assert.Contains(t, prompt, "grilled salmon")
	assert.Contains(t, prompt, "Chablis")
	assert.Contains(t, prompt, "Sancerre")
	assert.Contains(t, prompt, "scores_by_wine")
}

func TestNewGenAIProviderRequiresAPIKey(t *testing.T) {
	_, err := NewGenAIProvider(nil, "", "")
	assert.Error(t, err)
}
