package pipeline

import (
	"sync"
	"time"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

const (
	vadMode     = 3
	vadFrameMs  = 20
	vadDebounce = 3 // consecutive speech frames to confirm voice

	speechHold = 500 * time.Millisecond
)

// activityMonitor feeds capture data through webrtcvad to derive an
// advisory speaking indicator. It never influences transmission.
type activityMonitor struct {
	vad        *webrtcvad.VAD
	sampleRate int
	frameBytes int

	mu         sync.Mutex
	buf        []byte
	speechRun  int
	lastSpeech time.Time
}

func newActivityMonitor(sampleRate int) (*activityMonitor, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}
	if err := v.SetMode(vadMode); err != nil {
		return nil, err
	}
	return &activityMonitor{
		vad:        v,
		sampleRate: sampleRate,
		frameBytes: sampleRate * vadFrameMs / 1000 * 2,
	}, nil
}

func (m *activityMonitor) Process(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.buf = append(m.buf, data...)
	for len(m.buf) >= m.frameBytes {
		frame := m.buf[:m.frameBytes]
		m.buf = m.buf[m.frameBytes:]

		active, err := m.vad.Process(m.sampleRate, frame)
		if err != nil {
			continue
		}
		if active {
			m.speechRun++
			if m.speechRun >= vadDebounce {
				m.lastSpeech = time.Now()
			}
		} else {
			m.speechRun = 0
		}
	}
}

// SpeechRecently reports whether confirmed speech was seen within the
// hold window.
func (m *activityMonitor) SpeechRecently() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.lastSpeech.IsZero() && time.Since(m.lastSpeech) < speechHold
}
