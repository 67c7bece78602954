// Package promptbuild constructs the prompts and JSON schemas for the
// LLM-backed analysis dimensions.
//
// Prompts embed a compact context report instead of raw session data: the
// report carries transcript length and word count but never the transcript
// body, and metric key names but never metric values, so a prompt can be
// logged without leaking request content beyond the transcript section
// itself.
package promptbuild

import (
	"fmt"
	"sort"
	"strings"

	"github.com/submit4201/candor/internal/analysis"
)

// BuildContextReport summarizes the current request state for prompt
// injection. All fields are privacy-safe aggregates.
func BuildContextReport(ctx *analysis.Context) map[string]any {
	report := make(map[string]any)

	if final, ok := ctx.TranscriptFinal(); ok {
		report["transcript_status"] = "final"
		report["transcript_length"] = len(final)
		report["transcript_word_count"] = len(strings.Fields(final))
	} else if partial := ctx.Transcript(); partial != "" {
		report["transcript_status"] = "partial"
		report["transcript_length"] = len(partial)
		report["transcript_word_count"] = len(strings.Fields(partial))
	} else {
		report["transcript_status"] = "none"
	}

	if summary := ctx.AudioSummary(); len(summary) > 0 {
		report["audio_available"] = true
		report["audio_summary"] = map[string]any{
			"duration":        summary["duration_s"],
			"quality_metrics": summary["quality_metrics"],
		}
	} else {
		report["audio_available"] = len(ctx.AudioBytes()) > 0
	}

	if metrics := ctx.QuantitativeMetrics(); len(metrics) > 0 {
		report["metrics_available"] = true
		keys := make([]string, 0, len(metrics))
		for k := range metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		report["metrics_keys"] = keys
	} else {
		report["metrics_available"] = false
	}

	if segs := ctx.SpeakerSegments(); len(segs) > 0 {
		report["speaker_segments_count"] = len(segs)
		unique := make(map[string]struct{})
		for _, seg := range segs {
			if seg.Speaker != "" {
				unique[seg.Speaker] = struct{}{}
			}
		}
		report["unique_speakers"] = len(unique)
	} else {
		report["speaker_segments_count"] = 0
	}

	if summary := ctx.SessionSummary(); len(summary) > 0 {
		report["session_summary"] = summary
	}

	return report
}

// FormatContext renders a context report as a deterministic bullet list.
// Keys are sorted so the same report always yields the same prompt text.
func FormatContext(report map[string]any) string {
	keys := make([]string, 0, len(report))
	for k := range report {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		switch v := report[k].(type) {
		case map[string]any:
			fmt.Fprintf(&b, "- %s:\n", k)
			subKeys := make([]string, 0, len(v))
			for sk := range v {
				subKeys = append(subKeys, sk)
			}
			sort.Strings(subKeys)
			for _, sk := range subKeys {
				fmt.Fprintf(&b, "  - %s: %v\n", sk, v[sk])
			}
		default:
			fmt.Fprintf(&b, "- %s: %v\n", k, v)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// audioReminder returns the instruction block steering the model toward the
// attached audio. The closing bullet names the concern of the requesting
// dimension. Empty when the request carries no audio.
func audioReminder(ctx *analysis.Context, focus string) string {
	if len(ctx.AudioBytes()) == 0 && len(ctx.AudioSummary()) == 0 {
		return ""
	}
	return fmt.Sprintf(`
IMPORTANT: Audio data is available for this analysis. When analyzing, pay close attention to:
- Vocal tone and emotional inflections
- Speaking pace and rhythm changes
- Hesitations, pauses, and stammering
- Pitch variations and stress patterns
- Voice quality indicators (trembling, shakiness, confidence)
- Prosodic features that may %s

Use both the transcript text AND the audio characteristics to inform your analysis.
`, focus)
}
