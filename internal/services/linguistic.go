package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/submit4201/candor/internal/analysis"
)

var (
	firstPersonPronouns = set("i", "me", "my", "mine", "myself",
		"we", "us", "our", "ours", "ourselves")
	secondPersonPronouns = set("you", "your", "yours", "yourself", "yourselves")
	thirdPersonPronouns  = set("he", "him", "his", "himself", "she", "her", "hers",
		"herself", "they", "them", "their", "theirs", "themselves", "it", "its", "itself")

	definiteArticles = set("the")
	allArticles      = set("the", "a", "an")

	emotionalLeakageWords = set(
		"honestly", "frankly", "truthfully", "literally", "actually", "really",
		"maybe", "perhaps", "possibly", "probably", "might", "could",
		"somewhat", "rather",
		"absolutely", "definitely", "certainly", "surely", "clearly",
		"obviously", "totally", "completely", "entirely",
		"basically", "essentially", "generally", "typically", "normally")
	emotionalLeakagePhrases = []string{
		"believe me", "trust me", "to be honest", "to tell the truth",
		"sort of", "kind of",
	}

	subordinateMarkers = set("because", "since", "although", "though", "while",
		"when", "if", "unless", "until", "before", "after", "as", "that", "which", "who")

	congruencePositive = set("good", "great", "excellent", "wonderful", "happy",
		"joy", "pleased", "satisfied", "love", "like", "enjoy")
	congruenceNegative = set("bad", "terrible", "awful", "sad", "angry", "hate",
		"dislike", "upset", "frustrated", "disappointed", "worried", "concerned")
)

// LinguisticEnhancement extracts the deception-relevant lexical structure of
// the transcript: pronoun distancing, article specificity, clause
// complexity, emotional leakage, and the congruence between what is said and
// how it sounds.
type LinguisticEnhancement struct {
	deps Deps
}

// NewLinguisticEnhancement builds the linguistic enhancement service.
func NewLinguisticEnhancement(deps Deps) *LinguisticEnhancement {
	return &LinguisticEnhancement{deps: deps}
}

var _ analysis.Service = (*LinguisticEnhancement)(nil)

func (s *LinguisticEnhancement) Name() string    { return "linguistic_enhancement" }
func (s *LinguisticEnhancement) Version() string { return Version }

func (s *LinguisticEnhancement) StreamAnalyze(ctx context.Context, actx *analysis.Context) <-chan analysis.ResultChunk {
	out := make(chan analysis.ResultChunk, 4)
	go func() {
		defer close(out)
		em := analysis.NewEmitter(ctx, s.Name(), Version, out)

		text := actx.Transcript()
		if strings.TrimSpace(text) == "" {
			em.FailFinal(analysis.Errorf(analysis.ErrInsufficientData, "empty transcript"))
			return
		}

		// Congruence compares text sentiment against the sentiment the
		// interaction metrics derived, when that slice already exists.
		var externalSentiment string
		if quant := actx.QuantitativeMetrics(); quant != nil {
			if im, ok := quant["interaction_metrics"].(map[string]any); ok {
				externalSentiment, _ = im["overall_sentiment_label"].(string)
			}
		}

		result := map[string]any{
			"pronoun_ratios":      pronounRatios(text),
			"article_usage":       articleUsage(text),
			"sentence_complexity": sentenceComplexity(text),
			"emotional_leakage":   emotionalLeakage(text),
			"prosodic_congruence": prosodicCongruence(text, externalSentiment),
		}
		actx.SetEnhancedLinguistic(result)
		actx.SetServiceResult(s.Name(), result)
		em.Final(result, nil)
	}()
	return out
}

func pronounRatios(text string) map[string]any {
	tokens := tokenize(text)
	total := len(tokens)
	if total == 0 {
		return map[string]any{
			"first_person_count":  0,
			"first_person_ratio":  0.0,
			"second_person_ratio": 0.0,
			"third_person_ratio":  0.0,
		}
	}
	first := countIn(tokens, firstPersonPronouns)
	return map[string]any{
		"first_person_count":  first,
		"first_person_ratio":  float64(first) / float64(total),
		"second_person_ratio": float64(countIn(tokens, secondPersonPronouns)) / float64(total),
		"third_person_ratio":  float64(countIn(tokens, thirdPersonPronouns)) / float64(total),
	}
}

func articleUsage(text string) map[string]any {
	tokens := tokenize(text)
	total := len(tokens)
	if total == 0 {
		return map[string]any{"article_count": 0, "article_ratio": 0.0, "definite_ratio": 0.0}
	}
	articles := countIn(tokens, allArticles)
	definite := countIn(tokens, definiteArticles)
	definiteRatio := 0.0
	if articles > 0 {
		definiteRatio = float64(definite) / float64(articles)
	}
	return map[string]any{
		"article_count":  articles,
		"article_ratio":  float64(articles) / float64(total),
		"definite_ratio": definiteRatio,
	}
}

// sentenceComplexity combines sentence length and subordination into a single
// score in [0, 1]: longer sentences plus more subordinate clauses mean higher
// complexity.
func sentenceComplexity(text string) map[string]any {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return map[string]any{
			"complexity_score":         0.0,
			"avg_clauses_per_sentence": 0.0,
			"subordinate_clause_ratio": 0.0,
		}
	}
	totalWords := len(tokenize(text))
	avgWords := float64(totalWords) / float64(len(sentences))

	subordinate := 0
	for _, s := range sentences {
		subordinate += countIn(tokenize(s), subordinateMarkers)
	}
	subRatio := float64(subordinate) / float64(len(sentences))

	return map[string]any{
		"complexity_score":         min(1, (avgWords/30)*0.5+(subRatio/2)*0.5),
		"avg_clauses_per_sentence": 1 + subRatio,
		"subordinate_clause_ratio": subRatio,
	}
}

func emotionalLeakage(text string) map[string]any {
	textLower := strings.ToLower(text)
	tokens := tokenize(text)
	tokenSet := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = struct{}{}
	}

	var detected []string
	for w := range emotionalLeakageWords {
		if _, ok := tokenSet[w]; ok {
			detected = append(detected, w)
		}
	}
	for _, p := range emotionalLeakagePhrases {
		if strings.Contains(textLower, p) {
			detected = append(detected, p)
		}
	}
	sort.Strings(detected)

	ratio := 0.0
	if len(tokens) > 0 {
		ratio = float64(len(detected)) / float64(len(tokens))
	}
	return map[string]any{
		"leakage_words": detected,
		"leakage_count": len(detected),
		"leakage_ratio": ratio,
	}
}

// prosodicCongruence compares the transcript's lexical sentiment against an
// externally derived sentiment label. Matching or indeterminate signals score
// high; an outright polarity conflict scores low. With no external signal the
// score defaults to moderate.
func prosodicCongruence(text, externalSentiment string) map[string]any {
	tokens := tokenize(text)
	pos := countIn(tokens, congruencePositive)
	neg := countIn(tokens, congruenceNegative)

	textSentiment := "neutral"
	if pos > neg {
		textSentiment = "positive"
	} else if neg > pos {
		textSentiment = "negative"
	}

	score := 0.7
	var mismatches []string
	if externalSentiment != "" {
		if externalSentiment != textSentiment && externalSentiment != "neutral" && textSentiment != "neutral" {
			mismatches = append(mismatches,
				fmt.Sprintf("Derived sentiment (%s) vs text sentiment (%s)", externalSentiment, textSentiment))
			score = 0.3
		} else {
			score = 0.8
		}
	}

	return map[string]any{
		"congruence_score": score,
		"mismatches":       mismatches,
		"text_sentiment":   textSentiment,
	}
}
