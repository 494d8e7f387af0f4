package main

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"minute/audio"
	"minute/session"
	"minute/transcript"
)

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// sink bridges session events into the Bubble Tea program. Session
// callbacks arrive on the audio and receive goroutines; Program.Send is
// safe from any of them.
type sink struct{}

func (sink) StateChange(s session.State) { tuiSend(StateMsg{State: s}) }

func (sink) Caption(ev transcript.Event) { tuiSend(CaptionMsg{Event: ev}) }

func (sink) Level(source audio.Kind, rms float64, speech bool) {
	tuiSend(LevelMsg{Source: source, RMS: rms, Speech: speech})
}

func (sink) Status(text string) { tuiSend(StatusMsg{Text: text}) }

func (sink) Failure(text string) { tuiSend(FailureMsg{Text: text}) }

func (sink) AnalysisReady() { tuiSend(AnalysisReadyMsg{}) }
