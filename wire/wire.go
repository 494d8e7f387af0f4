// Package wire defines the message protocol spoken over the persistent
// connection to the transcription backend. Every frame is a JSON envelope
// with a type discriminator; payload fields live under "data" (older
// backend builds put them at the top level, which Decode tolerates).
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownType = errors.New("wire: unknown message type")

type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Outbound is the closed set of client-to-backend messages.
type Outbound interface {
	kind() string
}

type Handshake struct {
	ClientID string `json:"client_id"`
}

type StartRecording struct {
	Mode          string  `json:"mode"`
	CaptureMode   string  `json:"captureMode"`
	RecordingType string  `json:"recordingType"`
	Timestamp     float64 `json:"timestamp"`
	AudioOnly     bool    `json:"audioOnly,omitempty"`
}

type AudioChunk struct {
	Audio      []float64 `json:"audio"`
	SampleRate int       `json:"sample_rate"`
	Timestamp  float64   `json:"timestamp"`
	Mode       string    `json:"mode"`
	RMSLevel   float64   `json:"rms_level"`
	Speaker    string    `json:"speaker"`
}

type StopRecording struct {
	Timestamp float64 `json:"timestamp"`
	Reason    string  `json:"reason,omitempty"`
}

func (Handshake) kind() string      { return "handshake" }
func (StartRecording) kind() string { return "start_recording" }
func (AudioChunk) kind() string     { return "audio_chunk" }
func (StopRecording) kind() string  { return "stop_recording" }

func Encode(msg Outbound) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("wire: encode %s payload: %w", msg.kind(), err)
	}
	return json.Marshal(Envelope{Type: msg.kind(), Data: data})
}

// Inbound is the closed set of backend-to-client messages.
type Inbound interface {
	inbound()
}

type Transcript struct {
	Text        string  `json:"text"`
	LabeledText string  `json:"labeled_text,omitempty"`
	Speaker     string  `json:"speaker,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	Timestamp   float64 `json:"timestamp,omitempty"`
	Seq         int     `json:"sequence_number,omitempty"`
}

type RecordingStarted struct {
	SessionID     string `json:"session_id"`
	CaptureMode   string `json:"capture_mode"`
	RecordingType string `json:"recording_type"`
	ASREnabled    bool   `json:"asr_enabled"`
}

type RecordingStopped struct {
	SessionID           string               `json:"session_id"`
	CompleteTranscripts *CompleteTranscripts `json:"complete_transcripts,omitempty"`
	EnhancedAnalysis    *EnhancedAnalysis    `json:"enhanced_transcript_analysis,omitempty"`
}

type Status struct {
	Message string `json:"message"`
}

type ErrorMsg struct {
	Message string `json:"message"`
}

func (Transcript) inbound()       {}
func (RecordingStarted) inbound() {}
func (RecordingStopped) inbound() {}
func (Status) inbound()           {}
func (ErrorMsg) inbound()         {}

// SessionStats echoes the backend's per-session counters at stop time.
type SessionStats struct {
	Duration        string `json:"duration"`
	AudioChunks     int    `json:"audio_chunks"`
	TranscriptCount int    `json:"transcript_count"`
}

type CompleteTranscripts struct {
	Transcripts  []Transcript `json:"transcripts"`
	SessionStats SessionStats `json:"session_stats"`
	TotalCount   int          `json:"total_count"`
}

// AnalysisData is the jargon/entity/insight portion of the post-session
// analysis. The backend treats it as best effort; any field may be absent.
type AnalysisData struct {
	KeyInsights string            `json:"key_insights,omitempty"`
	Jargon      map[string]string `json:"jargon_definitions,omitempty"`
	Entities    []string          `json:"entities,omitempty"`
	Keywords    []string          `json:"keywords,omitempty"`
}

type SentimentSentence struct {
	Text       string  `json:"text"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type SentimentData struct {
	Overall    string              `json:"overall_sentiment"`
	Confidence float64             `json:"confidence"`
	Sentences  []SentimentSentence `json:"sentences"`
	Counts     map[string]int      `json:"sentiment_counts"`
}

type EnhancedAnalysis struct {
	OriginalTranscript string         `json:"original_transcript"`
	CombinedTranscript string         `json:"combined_transcript"`
	AnalysisParagraph  string         `json:"enhanced_analysis_paragraph"`
	AnalysisData       *AnalysisData  `json:"analysis_data"`
	SentimentParagraph string         `json:"sentiment_analysis_paragraph"`
	SentimentData      *SentimentData `json:"sentiment_data"`
	AnalysisStatus     string         `json:"analysis_status"`
	SentimentStatus    string         `json:"sentiment_status"`
}

// Decode parses one inbound frame into its typed message. Unrecognized
// types return ErrUnknownType so the caller can log and move on.
func Decode(raw []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("wire: bad envelope: %w", err)
	}
	payload := []byte(env.Data)
	if len(payload) == 0 {
		payload = raw
	}

	unmarshal := func(v Inbound) (Inbound, error) {
		if err := json.Unmarshal(payload, v); err != nil {
			return nil, fmt.Errorf("wire: bad %s payload: %w", env.Type, err)
		}
		return v, nil
	}

	switch env.Type {
	case "transcript":
		return unmarshal(&Transcript{})
	case "recording_started":
		return unmarshal(&RecordingStarted{})
	case "recording_stopped":
		return unmarshal(&RecordingStopped{})
	case "status":
		return unmarshal(&Status{})
	case "error":
		return unmarshal(&ErrorMsg{})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}
