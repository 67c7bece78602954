package analysis

import (
	"sync"
	"testing"
)

func TestTranscriptMonotonicity(t *testing.T) {
	ac := NewContext("hello", nil, Meta{RequestID: "r1"})

	t.Run("partial never shrinks", func(t *testing.T) {
		ac.UpdatePartialTranscript("hello world")
		if got := ac.Transcript(); got != "hello world" {
			t.Fatalf("Transcript() = %q, want %q", got, "hello world")
		}
		ac.UpdatePartialTranscript("hi")
		if got := ac.Transcript(); got != "hello world" {
			t.Fatalf("shorter update applied: Transcript() = %q", got)
		}
	})

	t.Run("final set exactly once", func(t *testing.T) {
		if !ac.FinalizeTranscript("hello world final") {
			t.Fatal("first FinalizeTranscript returned false")
		}
		if ac.FinalizeTranscript("overwrite attempt") {
			t.Fatal("second FinalizeTranscript returned true")
		}
		got, ok := ac.TranscriptFinal()
		if !ok || got != "hello world final" {
			t.Fatalf("TranscriptFinal() = %q, %v", got, ok)
		}
	})

	t.Run("partial updates ignored after final", func(t *testing.T) {
		ac.UpdatePartialTranscript("hello world final and then some more words")
		if got := ac.Transcript(); got != "hello world final" {
			t.Fatalf("Transcript() = %q after finalization", got)
		}
	})
}

func TestServiceResultSingleWriter(t *testing.T) {
	ac := NewContext("", nil, Meta{})

	ac.SetServiceResult("manipulation", map[string]any{"score": 1})
	ac.SetServiceResult("manipulation", map[string]any{"score": 2})

	got, ok := ac.ServiceResult("manipulation")
	if !ok {
		t.Fatal("result missing")
	}
	if got["score"] != 1 {
		t.Fatalf("result overwritten: score = %v", got["score"])
	}
}

func TestContextConcurrentAccess(t *testing.T) {
	ac := NewContext("", nil, Meta{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ac.UpdatePartialTranscript("some growing transcript text")
			ac.SetAudioSummary(map[string]any{"duration_s": 2.5})
			ac.SetQuantitativeMetrics(map[string]any{"word_count": n})
			_ = ac.Transcript()
			_ = ac.AudioSummary()
			_ = ac.ServiceResults()
		}(i)
	}
	wg.Wait()

	if ac.AudioSummary()["duration_s"] != 2.5 {
		t.Fatal("audio summary lost under concurrency")
	}
}

func TestSetBaselineKeepsInline(t *testing.T) {
	inline := &BaselineProfile{UserID: "u1"}
	ac := NewContext("", nil, Meta{Baseline: inline})

	ac.SetBaseline(&BaselineProfile{UserID: "u2"})
	if ac.Baseline().UserID != "u1" {
		t.Fatalf("inline baseline replaced by store load")
	}
}

func TestWordCount(t *testing.T) {
	ac := NewContext("one two  three\nfour", nil, Meta{})
	if got := ac.WordCount(); got != 4 {
		t.Fatalf("WordCount() = %d, want 4", got)
	}
}
