package services

import (
	"regexp"
	"strings"
)

var (
	wordRe     = regexp.MustCompile(`[\p{L}\p{N}_']+`)
	sentenceRe = regexp.MustCompile(`[.!?]+`)
	emphasisRe = regexp.MustCompile(`\b[A-Z]{3,}\b`)
)

// tokenize splits text into lowercase word tokens.
func tokenize(text string) []string {
	return wordRe.FindAllString(strings.ToLower(text), -1)
}

// splitSentences splits on terminal punctuation and drops empty fragments.
func splitSentences(text string) []string {
	var out []string
	for _, s := range sentenceRe.Split(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func countIn(tokens []string, set map[string]struct{}) int {
	n := 0
	for _, t := range tokens {
		if _, ok := set[t]; ok {
			n++
		}
	}
	return n
}

func countPhrases(textLower string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		n += strings.Count(textLower, p)
	}
	return n
}

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
