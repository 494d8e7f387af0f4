// Package transcript accumulates recognition events into the session
// transcript: deduplication, arrival ordering, the live caption ring and
// running statistics.
package transcript

import (
	"sort"
	"strings"
	"sync"
	"time"

	"minute/wire"
)

type Speaker string

const (
	SpeakerYou     Speaker = "you"
	SpeakerOther   Speaker = "other"
	SpeakerMixed   Speaker = "mixed"
	SpeakerUnknown Speaker = "unknown"
)

// ParseSpeaker maps a wire speaker tag onto the closed Speaker set.
func ParseSpeaker(s string) Speaker {
	switch Speaker(s) {
	case SpeakerYou, SpeakerOther, SpeakerMixed:
		return Speaker(s)
	default:
		return SpeakerUnknown
	}
}

// Event is one accepted utterance. Immutable once accepted.
type Event struct {
	ID          int
	Text        string
	LabeledText string
	Speaker     Speaker
	Confidence  float64
	SourceTime  time.Time
	ArrivalTime time.Time
	Seq         int
}

// DedupWindow is the timestamp distance under which two events with
// identical raw text and speaker are considered the same utterance.
const DedupWindow = 3000 * time.Millisecond

const captionRingSize = 10

type Stats struct {
	Total         int
	AvgConfidence float64
	Speakers      []string
	Duration      time.Duration
}

type Aggregator struct {
	mu sync.Mutex

	events  []Event
	nextID  int
	sumConf float64

	speakers map[Speaker]struct{}

	startedAt time.Time
	stoppedAt time.Time

	analysis *wire.EnhancedAnalysis
	backend  *wire.SessionStats
}

func NewAggregator() *Aggregator {
	return &Aggregator{speakers: make(map[Speaker]struct{})}
}

// Accept adds an event unless it duplicates one already accepted: identical
// raw text, identical speaker, source timestamps less than DedupWindow
// apart. Returns false for duplicates, which are dropped silently.
func (a *Aggregator) Accept(ev Event) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := len(a.events) - 1; i >= 0; i-- {
		prev := a.events[i]
		if prev.Text != ev.Text || prev.Speaker != ev.Speaker {
			continue
		}
		delta := ev.SourceTime.Sub(prev.SourceTime)
		if delta < 0 {
			delta = -delta
		}
		if delta < DedupWindow {
			return false
		}
	}

	a.nextID++
	ev.ID = a.nextID
	if ev.ArrivalTime.IsZero() {
		ev.ArrivalTime = time.Now()
	}
	if ev.LabeledText == "" {
		ev.LabeledText = string(ev.Speaker) + ": " + ev.Text
	}
	a.events = append(a.events, ev)
	a.sumConf += ev.Confidence
	a.speakers[ev.Speaker] = struct{}{}
	return true
}

// Events returns the authoritative transcript in acceptance order.
func (a *Aggregator) Events() []Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Event, len(a.events))
	copy(out, a.events)
	return out
}

// Latest returns up to captionRingSize most recent events, newest first.
// Display projection only; the authoritative order is Events.
func (a *Aggregator) Latest() []Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := min(len(a.events), captionRingSize)
	out := make([]Event, 0, n)
	for i := len(a.events) - 1; i >= len(a.events)-n; i-- {
		out = append(out, a.events[i])
	}
	return out
}

func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.statsLocked()
}

func (a *Aggregator) statsLocked() Stats {
	s := Stats{Total: len(a.events)}
	if s.Total > 0 {
		s.AvgConfidence = a.sumConf / float64(s.Total)
	}
	for sp := range a.speakers {
		s.Speakers = append(s.Speakers, string(sp))
	}
	sort.Strings(s.Speakers)
	switch {
	case a.startedAt.IsZero():
	case a.stoppedAt.IsZero():
		s.Duration = time.Since(a.startedAt)
	default:
		s.Duration = a.stoppedAt.Sub(a.startedAt)
	}
	return s
}

func (a *Aggregator) MarkStart(t time.Time) {
	a.mu.Lock()
	a.startedAt = t
	a.stoppedAt = time.Time{}
	a.mu.Unlock()
}

func (a *Aggregator) MarkStop(t time.Time) {
	a.mu.Lock()
	a.stoppedAt = t
	a.mu.Unlock()
}

// SetAnalysis merges the post-session analysis payload.
func (a *Aggregator) SetAnalysis(ea *wire.EnhancedAnalysis, stats *wire.SessionStats) {
	a.mu.Lock()
	a.analysis = ea
	a.backend = stats
	a.mu.Unlock()
}

// Reset clears all session-scoped state before a new session starts.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.events = nil
	a.nextID = 0
	a.sumConf = 0
	a.speakers = make(map[Speaker]struct{})
	a.startedAt = time.Time{}
	a.stoppedAt = time.Time{}
	a.analysis = nil
	a.backend = nil
	a.mu.Unlock()
}

// Snapshot is an immutable copy of the aggregated state for projection
// and export.
type Snapshot struct {
	SessionID string
	Events    []Event
	Stats     Stats
	Analysis  *wire.EnhancedAnalysis
	Backend   *wire.SessionStats
}

func (a *Aggregator) Snapshot(sessionID string) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	events := make([]Event, len(a.events))
	copy(events, a.events)
	return Snapshot{
		SessionID: sessionID,
		Events:    events,
		Stats:     a.statsLocked(),
		Analysis:  a.analysis,
		Backend:   a.backend,
	}
}

// FromWire builds an Event from an inbound transcript message. Timestamps
// are epoch seconds on the wire.
func FromWire(msg *wire.Transcript, arrival time.Time) Event {
	src := arrival
	if msg.Timestamp > 0 {
		sec := int64(msg.Timestamp)
		nsec := int64((msg.Timestamp - float64(sec)) * 1e9)
		src = time.Unix(sec, nsec)
	}
	return Event{
		Text:        strings.TrimSpace(msg.Text),
		LabeledText: msg.LabeledText,
		Speaker:     ParseSpeaker(msg.Speaker),
		Confidence:  msg.Confidence,
		SourceTime:  src,
		ArrivalTime: arrival,
		Seq:         msg.Seq,
	}
}
