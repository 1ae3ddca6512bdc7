package main

import (
	"cmp"
	"slices"
)

// maxSuggestions caps the "Did you mean" list.
const maxSuggestions = 3

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// suggestIDs returns up to three known ids closest to input by edit distance.
// Exact matches are excluded.
func suggestIDs(input string, known []string) []string {
	type candidate struct {
		id   string
		dist int
	}

	maxDist := max(len(input)/2, 3)

	var candidates []candidate
	for _, id := range known {
		if d := levenshtein(input, id); d > 0 && d <= maxDist {
			candidates = append(candidates, candidate{id: id, dist: d})
		}
	}
	slices.SortFunc(candidates, func(x, y candidate) int {
		if c := cmp.Compare(x.dist, y.dist); c != 0 {
			return c
		}
		return cmp.Compare(x.id, y.id)
	})

	if len(candidates) > maxSuggestions {
		candidates = candidates[:maxSuggestions]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.id
	}
	return out
}
