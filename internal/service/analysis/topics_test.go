package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeToken(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Paro", "paro"},
		{"strips hashtag", "#huelga", "huelga"},
		{"collapses whitespace", "  crisis   económica ", "crisis_económica"},
		{"drops single char", "a", ""},
		{"drops single multi-byte char", "ñ", ""},
		{"keeps two multi-byte chars", "Ñu", "ñu"},
		{"drops empty", "", ""},
		{"drops lone hashtag", "#", ""},
		{"keeps two chars", "ai", "ai"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeToken(tt.input))
		})
	}
}

func TestNormalizeTopicsDeduplicatesAndSorts(t *testing.T) {
	got := NormalizeTopics([]string{"#Paro", "paro", "Huelga", "x", ""})
	assert.Equal(t, []string{"huelga", "paro"}, got)
}

func TestMergeTopicsUnionsExplicitAndExtracted(t *testing.T) {
	got := MergeTopics([]string{"Economía", "#paro"}, []string{"paro", "inflación"})
	assert.Equal(t, []string{"economía", "inflación", "paro"}, got)
}

func TestMergeTopicsKeepsExplicitWhenExtractionEmpty(t *testing.T) {
	got := MergeTopics([]string{"#Paro"}, nil)
	assert.Equal(t, []string{"paro"}, got)
}
