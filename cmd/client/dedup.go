package main

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// recentTranscripts remembers the last few printed transcripts so that a
// sentence repeated by the backend, possibly with small differences in
// punctuation or casing, is printed only once. Only the client's reader
// goroutine uses it.
type recentTranscripts struct {
	entries   []string
	head      int
	size      int
	threshold float64
}

func newRecentTranscripts(capacity int, threshold float64) *recentTranscripts {
	if capacity <= 0 {
		capacity = 1
	}
	return &recentTranscripts{
		entries:   make([]string, capacity),
		threshold: threshold,
	}
}

// Seen reports whether sentence is similar to a remembered transcript.
// Sentences that were not seen are remembered, evicting the oldest entry
// once full.
func (rt *recentTranscripts) Seen(sentence string) bool {
	normalized := normalize(sentence)
	if normalized == "" {
		return true
	}

	for i := 0; i < rt.size; i++ {
		if similarity(normalized, rt.entries[i]) >= rt.threshold {
			return true
		}
	}

	rt.entries[rt.head] = normalized
	rt.head = (rt.head + 1) % len(rt.entries)
	if rt.size < len(rt.entries) {
		rt.size++
	}
	return false
}

// normalize lowercases s, drops punctuation and collapses whitespace.
func normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// similarity is 1 minus the edit distance relative to the longer string.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	distance := levenshtein.ComputeDistance(a, b)
	maxLen := max(len([]rune(a)), len([]rune(b)))
	return 1 - float64(distance)/float64(maxLen)
}
