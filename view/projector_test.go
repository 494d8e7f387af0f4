package view

import (
	"strings"
	"testing"
	"time"

	"minute/transcript"
	"minute/wire"
)

func snapWith(texts ...string) transcript.Snapshot {
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	var events []transcript.Event
	for i, txt := range texts {
		events = append(events, transcript.Event{
			ID:         i + 1,
			Text:       txt,
			Speaker:    transcript.SpeakerYou,
			Confidence: 0.9,
			SourceTime: base.Add(time.Duration(i) * 5 * time.Second),
		})
	}
	return transcript.Snapshot{SessionID: "s1", Events: events}
}

func TestExtracted(t *testing.T) {
	snap := snapWith("hello how are", "you", "fine thanks")
	want := "hello how are you fine thanks"
	if got := Extracted(snap); got != want {
		t.Errorf("Extracted = %q, want %q", got, want)
	}
}

func TestExtractedCollapsesWhitespace(t *testing.T) {
	snap := snapWith("hello   how\tare ", " you  ")
	want := "hello how are you"
	if got := Extracted(snap); got != want {
		t.Errorf("Extracted = %q, want %q", got, want)
	}
}

func TestExtractedIdempotent(t *testing.T) {
	snap := snapWith("one two", "three")
	once := Extracted(snap)
	again := Extracted(transcript.Snapshot{Events: []transcript.Event{{Text: once}}})
	if once != again {
		t.Errorf("re-extraction changed output: %q -> %q", once, again)
	}
}

func TestExtractedEmpty(t *testing.T) {
	if got := Extracted(snapWith()); got != "" {
		t.Errorf("Extracted(empty) = %q", got)
	}
}

func TestRenderDetailed(t *testing.T) {
	base := time.Date(2026, 3, 14, 10, 30, 15, 0, time.UTC)
	snap := transcript.Snapshot{Events: []transcript.Event{
		{Text: "hello", Speaker: transcript.SpeakerYou, Confidence: 0.91, SourceTime: base},
		{Text: "hi", Speaker: transcript.SpeakerOther, Confidence: 0.5, SourceTime: base.Add(3 * time.Second)},
	}}
	got := Render(snap, ModeDetailed)
	want := "[10:30:15] you (91%)\nhello\n\n[10:30:18] other (50%)\nhi\n"
	if got != want {
		t.Errorf("detailed =\n%q\nwant\n%q", got, want)
	}
}

func TestRenderEnhancedEmpty(t *testing.T) {
	got := Render(snapWith("words"), ModeEnhanced)
	if got != emptyEnhanced {
		t.Errorf("enhanced(no analysis) = %q", got)
	}
}

func TestRenderEnhanced(t *testing.T) {
	snap := snapWith("words")
	snap.Analysis = &wire.EnhancedAnalysis{
		CombinedTranscript: "words",
		AnalysisParagraph:  "a short summary",
		AnalysisData: &wire.AnalysisData{
			Jargon:   map[string]string{"VAD": "voice activity detection", "ASR": "speech recognition"},
			Entities: []string{"Acme"},
		},
	}
	got := Render(snap, ModeEnhanced)
	for _, want := range []string{"## Transcript", "## Analysis", "a short summary", "## Jargon", "## Entities", "- Acme"} {
		if !strings.Contains(got, want) {
			t.Errorf("enhanced output missing %q:\n%s", want, got)
		}
	}
	// Jargon keys render sorted so output is stable across runs.
	if strings.Index(got, "- ASR:") > strings.Index(got, "- VAD:") {
		t.Errorf("jargon not sorted:\n%s", got)
	}
}

func TestRenderSentimentEmpty(t *testing.T) {
	got := Render(snapWith("words"), ModeSentiment)
	if got != emptySentiment {
		t.Errorf("sentiment(no analysis) = %q", got)
	}
}

func TestRenderSentiment(t *testing.T) {
	snap := snapWith("words")
	snap.Analysis = &wire.EnhancedAnalysis{
		SentimentParagraph: "upbeat overall",
		SentimentData: &wire.SentimentData{
			Overall:    "positive",
			Confidence: 0.82,
			Sentences:  []wire.SentimentSentence{{Text: "great", Label: "positive", Confidence: 0.95}},
			Counts:     map[string]int{"positive": 1, "neutral": 2},
		},
	}
	got := Render(snap, ModeSentiment)
	for _, want := range []string{"## Summary", "upbeat overall", "positive (82%)", "[positive 95%] great", "- neutral: 2", "- positive: 1"} {
		if !strings.Contains(got, want) {
			t.Errorf("sentiment output missing %q:\n%s", want, got)
		}
	}
}

func TestRenderDeterministic(t *testing.T) {
	snap := snapWith("alpha beta", "gamma")
	snap.Analysis = &wire.EnhancedAnalysis{
		AnalysisParagraph: "p",
		AnalysisData:      &wire.AnalysisData{Jargon: map[string]string{"a": "1", "b": "2", "c": "3"}},
	}
	for _, mode := range Modes {
		first := Render(snap, mode)
		for i := 0; i < 5; i++ {
			if got := Render(snap, mode); got != first {
				t.Fatalf("%s render unstable", mode)
			}
		}
	}
}

func TestModesCycle(t *testing.T) {
	if len(Modes) != 4 {
		t.Fatalf("Modes = %v", Modes)
	}
	for _, m := range Modes {
		if !m.Valid() {
			t.Errorf("%s invalid", m)
		}
	}
	if Mode("summary").Valid() {
		t.Error("unknown mode reported valid")
	}
}
