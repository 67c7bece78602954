package promptbuild

import (
	"fmt"

	"github.com/submit4201/candor/internal/analysis"
)

// Prompt is one fully assembled LLM request: the instruction text and, when
// the dimension demands structured output, the JSON schema to enforce.
type Prompt struct {
	Text   string
	Schema map[string]any
}

// BuilderFunc assembles the prompt for one analysis dimension at one phase.
type BuilderFunc func(ctx *analysis.Context, phase analysis.Phase) Prompt

var builders = map[string]BuilderFunc{
	"manipulation":           BuildManipulation,
	"argument":               BuildArgument,
	"psychological":          BuildPsychological,
	"conversation_flow":      BuildConversationFlow,
	"enhanced_understanding": BuildEnhancedUnderstanding,
	"linguistic":             BuildLinguistic,
	"speaker_attitude":       BuildSpeakerAttitude,
}

// For returns the prompt builder registered for a service name.
func For(service string) (BuilderFunc, bool) {
	b, ok := builders[service]
	return b, ok
}

// Services lists every dimension with a registered builder.
func Services() []string {
	out := make([]string, 0, len(builders))
	for name := range builders {
		out = append(out, name)
	}
	return out
}

func phaseLine(phase analysis.Phase, coarse, final string) string {
	if phase == analysis.PhaseCoarse {
		return "This is an early coarse analysis. " + coarse
	}
	return "This is the final detailed analysis. " + final
}

func header(ctx *analysis.Context, phase analysis.Phase, task, audioFocus string) string {
	return fmt.Sprintf(`%s

Transcript:
%q

Context information:
%s
%s
Phase: %s
`, task, ctx.Transcript(), FormatContext(BuildContextReport(ctx)), audioReminder(ctx, audioFocus), phase)
}

// ManipulationSchema constrains the manipulation dimension's output.
func ManipulationSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"overall_risk_score": map[string]any{"type": "number", "minimum": 0, "maximum": 100},
			"confidence":         map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			"manipulation_patterns": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"pattern":  map[string]any{"type": "string"},
						"severity": map[string]any{"type": "string", "enum": []string{"low", "medium", "high"}},
						"evidence": map[string]any{"type": "string"},
					},
					"required": []string{"pattern", "severity", "evidence"},
				},
			},
			"tactics": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"rationale": map[string]any{"type": "string"},
		},
		"required": []string{"overall_risk_score", "confidence", "manipulation_patterns", "tactics", "rationale"},
	}
}

// BuildManipulation assembles the manipulation-risk prompt.
func BuildManipulation(ctx *analysis.Context, phase analysis.Phase) Prompt {
	text := header(ctx, phase,
		"Analyze the following transcript for signs of manipulation and deception.",
		"indicate deception or manipulation") +
		phaseLine(phase, "Focus on obvious patterns.", "Be thorough.") + `

Provide your analysis as a JSON object matching the response schema supplied with this request.

Focus on:
- Emotional manipulation tactics
- Gaslighting or reality distortion
- Guilt-tripping or victim-blaming
- False urgency or pressure
- Love bombing or excessive flattery
- Projection or blame-shifting
- Minimization or denial of concerns

Return only valid JSON.
`
	return Prompt{Text: text, Schema: ManipulationSchema()}
}

// ArgumentSchema constrains the argument-structure dimension's output.
func ArgumentSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"claims": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"claim":          map[string]any{"type": "string"},
						"confidence":     map[string]any{"type": "number", "minimum": 0, "maximum": 1},
						"support":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"contradictions": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"speaker":        map[string]any{"type": "string"},
					},
					"required": []string{"claim", "confidence", "support"},
				},
			},
			"logical_fallacies": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"type":        map[string]any{"type": "string"},
						"description": map[string]any{"type": "string"},
						"location":    map[string]any{"type": "string"},
					},
					"required": []string{"type", "description"},
				},
			},
			"argument_quality": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"coherence":           map[string]any{"type": "number", "minimum": 0, "maximum": 100},
					"evidence_strength":   map[string]any{"type": "number", "minimum": 0, "maximum": 100},
					"logical_consistency": map[string]any{"type": "number", "minimum": 0, "maximum": 100},
				},
				"required": []string{"coherence", "evidence_strength", "logical_consistency"},
			},
			"hesitations": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []string{"claims", "logical_fallacies", "argument_quality"},
	}
}

// BuildArgument assembles the argument-structure prompt.
func BuildArgument(ctx *analysis.Context, phase analysis.Phase) Prompt {
	text := header(ctx, phase,
		"Analyze the logical structure and argumentation in the following transcript.",
		"reveal argument weakness or uncertainty") +
		phaseLine(phase, "Identify main claims and obvious issues.", "Provide comprehensive argument mapping.") + `

Provide your analysis as a JSON object matching the response schema supplied with this request.

Focus on:
- Main claims and their supporting evidence
- Logical fallacies (ad hominem, straw man, false dichotomy, etc.)
- Contradictions within the argument
- Quality of evidence and reasoning
- Hesitations or uncertainty markers
- Speaker attribution if multiple speakers present

Return only valid JSON.
`
	return Prompt{Text: text, Schema: ArgumentSchema()}
}

// BuildPsychological assembles the psychological-state prompt.
func BuildPsychological(ctx *analysis.Context, phase analysis.Phase) Prompt {
	text := header(ctx, phase,
		"Analyze the speaker's psychological state based on the following transcript.",
		"indicate stress, load, or emotional state") +
		phaseLine(phase, "Cover the dominant signals only.", "Support every field with transcript evidence.") + `

Provide your analysis as a JSON object with the following fields:
1. emotional_state (string): Current emotional state (e.g., "Calm", "Anxious", "Excited", "Frustrated")
2. emotional_state_analysis (string): Detailed explanation with examples from transcript
3. cognitive_load (string): Level of mental processing (e.g., "Low", "Normal", "High", "Overloaded")
4. cognitive_load_analysis (string): Reasoning for cognitive load assessment with evidence
5. stress_level (number, 0.0-1.0): Stress level score
6. stress_level_analysis (string): Detailed stress level reasoning
7. confidence_level (number, 0.0-1.0): Speaker's confidence score
8. confidence_level_analysis (string): Reasoning for confidence assessment
9. psychological_summary (string): Overall psychological state summary
10. potential_biases (array of string): Potential cognitive biases detected
11. potential_biases_analysis (string): Explanation of detected biases

Return only valid JSON matching this structure.
`
	return Prompt{Text: text}
}

// BuildConversationFlow assembles the conversation-dynamics prompt.
func BuildConversationFlow(ctx *analysis.Context, phase analysis.Phase) Prompt {
	text := header(ctx, phase,
		"Analyze the conversational dynamics in the following transcript.",
		"mark turn boundaries and engagement shifts") +
		phaseLine(phase, "Estimate the dominant dynamics only.", "Account for every speaker turn.") + `

Provide your analysis as a JSON object with the following fields:
1. engagement_level (string): "Low", "Medium", or "High"
2. topic_coherence_score (number, 0.0-1.0): How well the conversation stays on topic
3. conversation_dominance (object): Map of speaker name to dominance fraction
4. turn_taking_efficiency (string): Assessment of how smoothly turns are exchanged
5. conversation_phase (string): Current phase (e.g., "opening", "development", "conflict", "resolution")
6. flow_disruptions (array of string): Interruptions, topic breaks, or derailments observed

Return only valid JSON matching this structure.
`
	return Prompt{Text: text}
}

// BuildEnhancedUnderstanding assembles the deep-comprehension prompt.
func BuildEnhancedUnderstanding(ctx *analysis.Context, phase analysis.Phase) Prompt {
	text := header(ctx, phase,
		"Provide a deep contextual understanding of the following transcript.",
		"expose evasiveness, nuance, or contradiction") +
		phaseLine(phase, "Capture the main topics and obvious gaps.", "Cover every inconsistency and open thread.") + `

Provide your analysis as a JSON object with the following fields:
1. key_topics (array of string): Main topics discussed
2. action_items (array of string): Commitments or tasks mentioned
3. unresolved_questions (array of string): Questions raised but not answered
4. summary_of_understanding (string): Concise summary of what was communicated
5. contextual_insights (array of string): Insights that require reading between the lines
6. nuances_detected (array of string): Subtle meanings, sarcasm, or implication
7. key_inconsistencies (array of string): Statements that conflict with each other
8. areas_of_evasiveness (array of string): Topics the speaker avoids or deflects
9. suggested_follow_up_questions (array of string): Questions that would clarify or probe further
10. unverified_claims (array of string): Factual claims made without support
11. key_inconsistencies_analysis (string): Explanation of the inconsistencies found
12. areas_of_evasiveness_analysis (string): Explanation of the evasive behavior
13. suggested_follow_up_questions_analysis (string): Why the follow-ups matter
14. fact_checking_analysis (string): Assessment of the verifiability of claims
15. deep_dive_analysis (string): Extended interpretation of the exchange

Return only valid JSON matching this structure.
`
	return Prompt{Text: text}
}

// BuildLinguistic assembles the linguistic-interpretation prompt.
func BuildLinguistic(ctx *analysis.Context, phase analysis.Phase) Prompt {
	text := header(ctx, phase,
		"Interpret the linguistic patterns in the following transcript.",
		"ground the interpretation of hesitation and speech rate") +
		phaseLine(phase, "Name the dominant patterns only.", "Interpret every pattern with evidence.") + `

Provide your analysis as a JSON object with the following fields:
1. linguistic_interpretation_summary (string): Overall interpretation of the language used
2. linguistic_patterns (array of string): Notable patterns (hedging, repetition, qualifiers, etc.)
3. confidence_linguistic (number, 0.0-1.0): Confidence conveyed by the language itself
4. hedging_analysis (string): Use of hedges and qualifiers
5. certainty_analysis (string): Use of certainty markers
6. formality_analysis (string): Register and formality of the language
7. complexity_analysis (string): Sentence complexity and vocabulary
8. hesitation_interpretation (string): What the hesitation markers suggest
9. repetition_interpretation (string): What the repetitions suggest
10. speech_rate_interpretation (string): What the pacing suggests

Return only valid JSON matching this structure.
`
	return Prompt{Text: text}
}

// BuildSpeakerAttitude assembles the attitude-and-politeness prompt.
func BuildSpeakerAttitude(ctx *analysis.Context, phase analysis.Phase) Prompt {
	text := header(ctx, phase,
		"Assess the speaker's attitude, respect, and politeness in the following transcript.",
		"carry tone cues the text alone cannot") +
		phaseLine(phase, "Score the dominant attitude only.", "Justify every score from the transcript.") + `

Provide your analysis as a JSON object with the following fields:
1. dominant_attitude (string): The prevailing attitude (e.g., "Cooperative", "Defensive", "Dismissive")
2. attitude_scores (object): Map of attitude name to score 0.0-1.0
3. respect_level (string): Qualitative respect assessment
4. respect_level_score (number, 0.0-1.0): Respect score
5. respect_level_score_analysis (string): Reasoning for the respect score
6. formality_score (number, 0.0-1.0): Formality of address and phrasing
7. formality_assessment (string): Reasoning for the formality score
8. politeness_score (number, 0.0-1.0): Politeness of the language
9. politeness_assessment (string): Reasoning for the politeness score

Return only valid JSON matching this structure.
`
	return Prompt{Text: text}
}
