package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"abc", "abc", 0},
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"cat", "car", 1},
		{"cat", "cats", 1},
		{"cats", "cat", 1},
		{"kitten", "sitting", 3},
		{"abc", "xyz", 3},
		{"github", "gihtub", 2},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, levenshtein(tt.a, tt.b))
		})
	}
}

func TestSuggestIDs_CloseMatch(t *testing.T) {
	known := []string{"github", "gcloud", "azure", "vercel", "agent-tools"}

	assert.Equal(t, []string{"github"}, suggestIDs("githb", known))
	assert.Contains(t, suggestIDs("gclod", known), "gcloud")
}

func TestSuggestIDs_NoMatch(t *testing.T) {
	assert.Empty(t, suggestIDs("zzzzzzzzzzzzzzzzzzz", []string{"github", "docker"}))
}

func TestSuggestIDs_MaxThree(t *testing.T) {
	suggestions := suggestIDs("aax", []string{"aaa", "aab", "aac", "aad", "aae"})
	assert.Equal(t, []string{"aaa", "aab", "aac"}, suggestions)
}

func TestSuggestIDs_ExactMatchExcluded(t *testing.T) {
	assert.Empty(t, suggestIDs("github", []string{"github"}))
}

func TestSuggestIDs_SortedByDistance(t *testing.T) {
	suggestions := suggestIDs("pythn", []string{"docker", "python3", "python"})
	assert.Equal(t, []string{"python", "python3"}, suggestions)
}

func TestSuggestIDs_Empty(t *testing.T) {
	assert.Empty(t, suggestIDs("github", nil))
	// maxDist is at least 3, so short ids are suggested for empty input.
	assert.Equal(t, []string{"ab", "abc"}, suggestIDs("", []string{"ab", "abc", "abcd"}))
}
