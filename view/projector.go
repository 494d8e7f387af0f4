// Package view derives the four presentation projections of an aggregated
// session transcript. Rendering is a pure function of the snapshot and the
// selected mode; the same snapshot always yields byte-identical output.
package view

import (
	"fmt"
	"sort"
	"strings"

	"minute/transcript"
)

type Mode string

const (
	ModeExtracted Mode = "extracted"
	ModeDetailed  Mode = "detailed"
	ModeEnhanced  Mode = "enhanced"
	ModeSentiment Mode = "sentiment"
)

// Modes lists every view mode in cycle order.
var Modes = []Mode{ModeExtracted, ModeDetailed, ModeEnhanced, ModeSentiment}

func (m Mode) Valid() bool {
	switch m {
	case ModeExtracted, ModeDetailed, ModeEnhanced, ModeSentiment:
		return true
	}
	return false
}

const (
	emptyEnhanced  = "No enhanced analysis available. It is delivered by the backend once a recording stops."
	emptySentiment = "No sentiment analysis available. It is delivered by the backend once a recording stops."
)

func Render(snap transcript.Snapshot, mode Mode) string {
	switch mode {
	case ModeDetailed:
		return renderDetailed(snap)
	case ModeEnhanced:
		return renderEnhanced(snap)
	case ModeSentiment:
		return renderSentiment(snap)
	default:
		return Extracted(snap)
	}
}

// Extracted joins every accepted event's raw text into one paragraph,
// order-preserving, with internal whitespace collapsed.
func Extracted(snap transcript.Snapshot) string {
	var words []string
	for _, ev := range snap.Events {
		words = append(words, strings.Fields(ev.Text)...)
	}
	return strings.Join(words, " ")
}

func renderDetailed(snap transcript.Snapshot) string {
	var b strings.Builder
	for i, ev := range snap.Events {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%s] %s (%.0f%%)\n%s\n",
			ev.SourceTime.Format("15:04:05"), ev.Speaker, ev.Confidence*100, ev.Text)
	}
	return b.String()
}

func renderEnhanced(snap transcript.Snapshot) string {
	ea := snap.Analysis
	if ea == nil || (ea.AnalysisParagraph == "" && ea.CombinedTranscript == "" && ea.AnalysisData == nil) {
		return emptyEnhanced
	}

	var b strings.Builder
	if ea.CombinedTranscript != "" {
		b.WriteString("## Transcript\n")
		b.WriteString(ea.CombinedTranscript)
		b.WriteString("\n")
	}
	if ea.AnalysisParagraph != "" {
		b.WriteString("\n## Analysis\n")
		b.WriteString(ea.AnalysisParagraph)
		b.WriteString("\n")
	}
	if ad := ea.AnalysisData; ad != nil {
		if ad.KeyInsights != "" {
			b.WriteString("\n## Key Insights\n")
			b.WriteString(ad.KeyInsights)
			b.WriteString("\n")
		}
		if len(ad.Jargon) > 0 {
			b.WriteString("\n## Jargon\n")
			terms := make([]string, 0, len(ad.Jargon))
			for term := range ad.Jargon {
				terms = append(terms, term)
			}
			sort.Strings(terms)
			for _, term := range terms {
				fmt.Fprintf(&b, "- %s: %s\n", term, ad.Jargon[term])
			}
		}
		if len(ad.Entities) > 0 {
			b.WriteString("\n## Entities\n")
			for _, e := range ad.Entities {
				fmt.Fprintf(&b, "- %s\n", e)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func renderSentiment(snap transcript.Snapshot) string {
	ea := snap.Analysis
	if ea == nil || (ea.SentimentParagraph == "" && ea.SentimentData == nil) {
		return emptySentiment
	}

	var b strings.Builder
	if ea.SentimentParagraph != "" {
		b.WriteString("## Summary\n")
		b.WriteString(ea.SentimentParagraph)
		b.WriteString("\n")
	}
	if sd := ea.SentimentData; sd != nil {
		if sd.Overall != "" {
			fmt.Fprintf(&b, "\n## Overall\n%s (%.0f%%)\n", sd.Overall, sd.Confidence*100)
		}
		if len(sd.Sentences) > 0 {
			b.WriteString("\n## Sentences\n")
			for _, s := range sd.Sentences {
				fmt.Fprintf(&b, "- [%s %.0f%%] %s\n", s.Label, s.Confidence*100, s.Text)
			}
		}
		if len(sd.Counts) > 0 {
			b.WriteString("\n## Counts\n")
			labels := make([]string, 0, len(sd.Counts))
			for label := range sd.Counts {
				labels = append(labels, label)
			}
			sort.Strings(labels)
			for _, label := range labels {
				fmt.Fprintf(&b, "- %s: %d\n", label, sd.Counts[label])
			}
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
