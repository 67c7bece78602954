package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/submit4201/candor/internal/analysis"
)

var (
	hesitationMarkers   = set("um", "uh", "er", "ah")
	fillerWords         = set("like", "basically", "actually", "literally", "so", "well")
	fillerPhrases       = []string{"you know"}
	qualifierWords      = set("maybe", "perhaps", "might", "could", "possibly")
	qualifierPhrases    = []string{"sort of", "kind of", "i guess", "i think"}
	certaintyIndicators = set("definitely", "absolutely", "certainly", "surely",
		"clearly", "undoubtedly", "always", "never")

	positiveSentiment = set("good", "great", "excellent", "positive", "confident",
		"sure", "clear", "definitely", "absolutely", "trust", "honest", "calm",
		"secure", "upbeat", "happy", "glad", "yes", "agree")
	negativeSentiment = set("bad", "poor", "negative", "uncertain", "doubt",
		"worry", "concern", "angry", "mad", "frustrated", "anxious", "sad",
		"no", "disagree", "hesitant", "nervous", "stress", "confused")
)

// QuantMetrics computes the deterministic linguistic counters and, in its
// final phase, the LLM-inferred interaction metrics. When the LLM call fails
// the interaction slice degrades to a local heuristic instead of failing the
// service.
type QuantMetrics struct {
	deps Deps
}

// NewQuantMetrics builds the quantitative metrics service.
func NewQuantMetrics(deps Deps) *QuantMetrics {
	return &QuantMetrics{deps: deps}
}

var _ analysis.Service = (*QuantMetrics)(nil)

func (s *QuantMetrics) Name() string    { return "quantitative_metrics" }
func (s *QuantMetrics) Version() string { return Version }

func (s *QuantMetrics) StreamAnalyze(ctx context.Context, actx *analysis.Context) <-chan analysis.ResultChunk {
	out := make(chan analysis.ResultChunk, 4)
	go func() {
		defer close(out)
		em := analysis.NewEmitter(ctx, s.Name(), Version, out)

		text := actx.Transcript()
		if strings.TrimSpace(text) == "" {
			em.FailFinal(analysis.Errorf(analysis.ErrInsufficientData, "empty transcript"))
			return
		}

		var durationS float64
		if d, ok := asFloat(actx.AudioSummary()["duration_s"]); ok {
			durationS = d
		}

		numerical := numericalMetrics(text, durationS)
		actx.SetQuantitativeMetrics(map[string]any{"numerical_linguistic_metrics": numerical})
		em.Partial(map[string]any{"numerical_linguistic_metrics": numerical}, nil)

		// Re-read: the transcript may have been finalized since the coarse
		// pass started.
		text = actx.Transcript()
		numerical = numericalMetrics(text, durationS)

		interaction, fromLLM := s.interactionMetrics(ctx, actx, text, durationS)
		result := map[string]any{
			"numerical_linguistic_metrics": numerical,
			"interaction_metrics":          interaction,
		}
		actx.SetQuantitativeMetrics(result)
		actx.SetServiceResult(s.Name(), result)
		if fromLLM {
			em.Final(map[string]any{"numerical_linguistic_metrics": numerical},
				map[string]any{"interaction_metrics": interaction})
			return
		}
		em.Final(result, nil)
	}()
	return out
}

// numericalMetrics computes the lexicon-based counters over one transcript.
// Rates that need a clock (wpm, hpm) are only present when the audio
// duration is known.
func numericalMetrics(text string, durationS float64) map[string]any {
	tokens := tokenize(text)
	textLower := strings.ToLower(text)
	wordCount := len(tokens)
	unique := make(map[string]struct{}, wordCount)
	charTotal := 0
	for _, t := range tokens {
		unique[t] = struct{}{}
		charTotal += len(t)
	}
	sentences := splitSentences(text)

	hesitations := countIn(tokens, hesitationMarkers)
	fillers := countIn(tokens, fillerWords) + countPhrases(textLower, fillerPhrases)
	qualifiers := countIn(tokens, qualifierWords) + countPhrases(textLower, qualifierPhrases)
	certainty := countIn(tokens, certaintyIndicators)

	repetitions := 0
	for i := 1; i < len(tokens); i++ {
		if tokens[i] == tokens[i-1] {
			repetitions++
		}
	}

	m := map[string]any{
		"word_count":                wordCount,
		"unique_word_count":         len(unique),
		"sentence_count":            len(sentences),
		"hesitation_marker_count":   hesitations,
		"filler_word_count":         fillers,
		"qualifier_count":           qualifiers,
		"certainty_indicator_count": certainty,
		"repetition_count":          repetitions,
	}
	if wordCount > 0 {
		m["avg_word_length_chars"] = round2(float64(charTotal) / float64(wordCount))
		m["vocabulary_richness_ttr"] = round3(float64(len(unique)) / float64(wordCount))
	}
	if len(sentences) > 0 {
		m["avg_sentence_length_words"] = round2(float64(wordCount) / float64(len(sentences)))
	}
	if durationS > 0 {
		minutes := durationS / 60
		m["speech_rate_wpm"] = round2(float64(wordCount) / minutes)
		m["hesitation_rate_hpm"] = round2(float64(hesitations) / minutes)
	}
	if total := certainty + qualifiers; total > 0 {
		m["confidence_metric_ratio"] = round2(float64(certainty) / float64(total))
	}
	return m
}

const interactionPromptHeader = `Analyze the following transcript and associated data to determine interaction metrics.
Transcript (may be partial or full):
%q

Speaker segments: %d, unique speakers: %d.
Audio duration (if available): %s seconds.

Calculate or infer the following interaction metrics:
1. talk_to_listen_ratio (number or null)
2. speaker_turn_duration_avg_seconds (number or null)
3. interruptions_count (integer or null)
4. sentiment_trend (array)
5. overall_sentiment_label (string: positive/neutral/negative)
6. overall_sentiment_score (number 0-1) and sentiment_confidence (number 0-1)
7. emotion_distribution (array of objects with emotion and score)
8. engagement_level (string: high/medium/low)
9. question_to_statement_ratio (number)
10. conversation_energy_score (number 0-1 based on pacing and emphasis cues)
11. notable_interaction_events (array of strings)

Provide the result as a single JSON object with exactly those keys. Use null
for fields that cannot be reliably inferred and empty arrays for list fields.
Return only valid JSON.
`

// interactionMetrics asks the LLM for the interaction slice, degrading to the
// local heuristic on any failure. The second return reports whether the LLM
// produced the result.
func (s *QuantMetrics) interactionMetrics(ctx context.Context, actx *analysis.Context, text string, durationS float64) (map[string]any, bool) {
	segs := actx.SpeakerSegments()
	if s.deps.LLM != nil {
		unique := make(map[string]struct{})
		for _, seg := range segs {
			unique[seg.Speaker] = struct{}{}
		}
		durText := "not provided"
		if durationS > 0 {
			durText = fmt.Sprintf("%.1f", durationS)
		}
		prompt := fmt.Sprintf(interactionPromptHeader, text, len(segs), len(unique), durText)
		result, err := s.deps.LLM.QueryJSON(ctx, prompt, "")
		if err == nil {
			return result, true
		}
		s.deps.logger().Warn("interaction metrics LLM call failed, using local fallback",
			"request_id", actx.Meta().RequestID, "error", err)
	}
	return localInteractionMetrics(text, segs, durationS), false
}

// localInteractionMetrics is the deterministic fallback: lexicon sentiment,
// punctuation-driven engagement, and turn statistics from speaker segments.
func localInteractionMetrics(text string, segs []analysis.SpeakerSegment, durationS float64) map[string]any {
	label, score, confidence, emotions := estimateSentiment(text)
	questionRatio, engagement, energy, events := engagementFeatures(text)

	m := map[string]any{
		"talk_to_listen_ratio":              nil,
		"speaker_turn_duration_avg_seconds": nil,
		"interruptions_count":               nil,
		"sentiment_trend":                   []any{},
		"overall_sentiment_label":           label,
		"overall_sentiment_score":           score,
		"sentiment_confidence":              confidence,
		"emotion_distribution":              emotions,
		"engagement_level":                  engagement,
		"question_to_statement_ratio":       questionRatio,
		"conversation_energy_score":         energy,
	}

	if len(segs) > 0 {
		var total float64
		speakerTime := make(map[string]float64)
		for _, seg := range segs {
			d := seg.EndS - seg.StartS
			if d < 0 {
				continue
			}
			total += d
			speakerTime[seg.Speaker] += d
		}
		avgTurn := total / float64(len(segs))
		m["speaker_turn_duration_avg_seconds"] = round2(avgTurn)

		interruptions := 0
		if len(segs) > 5 && avgTurn < 5 {
			interruptions = len(segs) / 10
		}
		m["interruptions_count"] = interruptions

		if durationS > 0 && len(speakerTime) > 0 {
			var dominant float64
			for _, t := range speakerTime {
				if t > dominant {
					dominant = t
				}
			}
			ratio := dominant / durationS
			if ratio > 1 {
				ratio = 1
			}
			m["talk_to_listen_ratio"] = round2(ratio)
			if ratio >= 0.75 {
				events = append(events, "dominant speaker detected")
			}
		}
		if interruptions > 0 {
			events = append(events, "possible interruptions observed")
		}
	}

	seen := make(map[string]struct{}, len(events))
	deduped := make([]string, 0, len(events))
	for _, e := range events {
		if _, ok := seen[e]; !ok {
			seen[e] = struct{}{}
			deduped = append(deduped, e)
		}
	}
	m["notable_interaction_events"] = deduped
	return m
}

func estimateSentiment(text string) (label string, score, confidence float64, emotions []map[string]any) {
	tokens := tokenize(text)
	neutral := func() (string, float64, float64, []map[string]any) {
		return "neutral", 0.5, 0.1, []map[string]any{{"emotion": "neutral", "score": 1.0}}
	}
	if len(tokens) == 0 {
		return neutral()
	}
	pos := countIn(tokens, positiveSentiment)
	neg := countIn(tokens, negativeSentiment)
	total := pos + neg
	if total == 0 {
		return neutral()
	}

	raw := float64(pos-neg) / float64(total) // -1..1
	score = round3((raw + 1) / 2)
	label = "neutral"
	if raw > 0.1 {
		label = "positive"
	} else if raw < -0.1 {
		label = "negative"
	}
	confidence = round3(min(1, max(0.1, abs(raw))))

	if pos > 0 {
		emotions = append(emotions, map[string]any{"emotion": "positive", "score": round3(float64(pos) / float64(total))})
	}
	if neg > 0 {
		emotions = append(emotions, map[string]any{"emotion": "negative", "score": round3(float64(neg) / float64(total))})
	}
	return label, score, confidence, emotions
}

func engagementFeatures(text string) (questionRatio float64, engagement string, energy float64, events []string) {
	sentences := splitSentences(text)
	questions := strings.Count(text, "?")
	declaratives := len(sentences) - questions
	if declaratives < 1 {
		declaratives = 1
	}
	if questions > 0 {
		questionRatio = round2(float64(questions) / float64(declaratives))
	}

	exclamations := strings.Count(text, "!")
	emphasis := emphasisRe.FindAllString(text, -1)
	denom := len(sentences)
	if denom < 1 {
		denom = 1
	}
	energy = round3(min(1, float64(questions+exclamations+len(emphasis))/float64(denom)))

	switch {
	case energy >= 0.6 || questionRatio >= 0.5:
		engagement = "high"
	case energy >= 0.3 || questionRatio >= 0.25:
		engagement = "medium"
	default:
		engagement = "low"
	}

	if questionRatio >= 0.5 {
		events = append(events, "high inquisitiveness")
	}
	if exclamations >= 3 {
		events = append(events, "heightened emphasis")
	}
	if len(emphasis) >= 2 {
		events = append(events, "frequent emphasis words")
	}
	tokens := tokenize(text)
	if len(tokens) > 0 {
		fillers := countIn(tokens, set("um", "uh", "like")) +
			countPhrases(strings.ToLower(text), []string{"you know", "sort of", "kind of"})
		if float64(fillers)/float64(len(tokens)) >= 0.05 {
			events = append(events, "high filler usage")
		}
	}
	return questionRatio, engagement, energy, events
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
