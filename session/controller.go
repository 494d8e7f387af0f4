// Package session coordinates acquisition, pipelines and the connection
// into one user-visible recording session.
package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"minute/audio"
	"minute/log"
	"minute/pipeline"
	"minute/transcript"
	"minute/wire"
)

type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateActive     State = "active"
	StateStopping   State = "stopping"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// Link is the outbound half of the connection the controller talks to.
type Link interface {
	Send(wire.Outbound)
}

// Events receives user-facing notifications. Implementations must not
// block; callbacks may run on the audio or receive goroutines.
type Events interface {
	StateChange(State)
	Caption(ev transcript.Event)
	Level(source audio.Kind, rms float64, speech bool)
	Status(text string)
	Failure(text string)
	AnalysisReady()
}

// NopEvents discards everything.
type NopEvents struct{}

func (NopEvents) StateChange(State)               {}
func (NopEvents) Caption(transcript.Event)        {}
func (NopEvents) Level(audio.Kind, float64, bool) {}
func (NopEvents) Status(string)                   {}
func (NopEvents) Failure(string)                  {}
func (NopEvents) AnalysisReady()                  {}

type Config struct {
	SampleRate    int
	MicDevice     *audio.DeviceInfo
	RecordingType string // client-chosen label carried in start_recording
}

type Controller struct {
	cfg    Config
	actx   audio.Context
	link   Link
	agg    *transcript.Aggregator
	events Events

	// active is the transmission gate: flipped before any teardown so
	// in-flight batches discard instead of send.
	active atomic.Bool

	mu        sync.Mutex
	state     State
	mode      audio.Mode
	sessionID string
	res       *Resources
	startedAt time.Time
}

func NewController(cfg Config, actx audio.Context, link Link, agg *transcript.Aggregator, events Events) *Controller {
	if events == nil {
		events = NopEvents{}
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = audio.SampleRateIdeal
	}
	if cfg.RecordingType == "" {
		cfg.RecordingType = "meeting"
	}
	return &Controller{
		cfg:    cfg,
		actx:   actx,
		link:   link,
		agg:    agg,
		events: events,
		state:  StateIdle,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Controller) Mode() audio.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Snapshot captures the aggregated session state for projection or export.
func (c *Controller) Snapshot() transcript.Snapshot {
	return c.agg.Snapshot(c.SessionID())
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.events.StateChange(s)
}

// Start begins a new recording session. A session already running is
// stopped first with reason "new_session_started".
func (c *Controller) Start(mode audio.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("session: invalid mode %q", mode)
	}

	c.mu.Lock()
	running := c.state == StateActive || c.state == StateRequesting
	c.mu.Unlock()
	if running {
		c.stop("new_session_started")
	}

	c.mu.Lock()
	c.mode = mode
	c.sessionID = ""
	c.mu.Unlock()
	c.setState(StateRequesting)

	src, err := audio.Acquire(c.actx, mode, audio.AcquireConfig{
		MicDevice:  c.cfg.MicDevice,
		SampleRate: uint32(c.cfg.SampleRate),
	})
	if err != nil {
		c.setState(StateError)
		c.events.Failure(audio.Guidance(err))
		return err
	}
	if src.SystemErr != nil {
		// Microphone-only fallback; tell the user why the other channel
		// is missing.
		c.events.Status(audio.Guidance(src.SystemErr))
	}

	dual := pipeline.NewDual(src, mode, c.cfg.SampleRate, c.active.Load, c.sendBatch, c.events.Level)
	if err := dual.Start(); err != nil {
		// Dual tears down partially started pipelines and devices itself.
		c.setState(StateError)
		c.events.Failure(err.Error())
		return err
	}

	// Fresh session: no cross-session leakage of transcript, stats or
	// captions.
	c.agg.Reset()
	now := time.Now()
	c.agg.MarkStart(now)

	c.mu.Lock()
	c.res = NewResources(dual)
	c.startedAt = now
	c.mu.Unlock()

	c.link.Send(wire.StartRecording{
		Mode:          string(mode),
		CaptureMode:   string(mode),
		RecordingType: c.cfg.RecordingType,
		Timestamp:     epoch(now),
		AudioOnly:     true,
	})

	// Optimistic: local audio flows as soon as the start message is on
	// the wire, no backend ack required.
	c.active.Store(true)
	c.setState(StateActive)
	log.SessionStart("", string(mode))
	return nil
}

// Stop ends the running session.
func (c *Controller) Stop() {
	c.stop("")
}

func (c *Controller) stop(reason string) {
	c.mu.Lock()
	if c.state != StateActive && c.state != StateRequesting {
		c.mu.Unlock()
		return
	}
	c.state = StateStopping
	res := c.res
	c.res = nil
	c.mu.Unlock()
	c.events.StateChange(StateStopping)

	// Gate first, teardown second: pipelines still on the audio clock
	// drop their next batch instead of sending it.
	c.active.Store(false)
	if res != nil {
		res.Release()
	}

	now := time.Now()
	c.agg.MarkStop(now)
	c.link.Send(wire.StopRecording{Timestamp: epoch(now), Reason: reason})

	// Completed locally; the backend's recording_stopped with the
	// analysis bundle arrives asynchronously.
	c.setState(StateCompleted)
	c.logMetrics(res)
}

func (c *Controller) logMetrics(res *Resources) {
	stats := c.agg.Stats()
	var sent, dropped int64
	if res != nil {
		sent = res.Emitted()
		dropped = res.Dropped()
	}
	log.SessionMetrics(log.SessionMetricsData{
		SessionID:     c.SessionID(),
		Mode:          string(c.Mode()),
		DurationS:     stats.Duration.Seconds(),
		SentChunks:    int(sent),
		SentKB:        float64(sent) * pipeline.BatchSize * 8 / 1024,
		DroppedChunks: int(dropped),
		Accepted:      stats.Total,
		AvgConfidence: stats.AvgConfidence,
	})
	log.SessionEnd(c.SessionID(), stats.Total)
}

// Shutdown stops any running session; used on process exit.
func (c *Controller) Shutdown() {
	c.stop("")
}

func (c *Controller) sendBatch(b pipeline.Batch) {
	c.link.Send(wire.AudioChunk{
		Audio:      b.Samples,
		SampleRate: b.SampleRate,
		Timestamp:  epoch(b.Captured),
		Mode:       string(c.Mode()),
		RMSLevel:   b.RMS,
		Speaker:    string(b.Speaker),
	})
}

// HandleInbound routes decoded backend messages. Wire it as the
// connection manager's handler.
func (c *Controller) HandleInbound(msg wire.Inbound) {
	switch msg := msg.(type) {
	case *wire.Transcript:
		c.handleTranscript(msg)
	case *wire.RecordingStarted:
		c.mu.Lock()
		c.sessionID = msg.SessionID
		c.mu.Unlock()
		log.Infof("recording started: session=%s asr=%v", msg.SessionID, msg.ASREnabled)
		c.events.Status("recording started: " + msg.SessionID)
	case *wire.RecordingStopped:
		c.handleStopped(msg)
	case *wire.Status:
		log.Info("backend status: " + msg.Message)
		c.events.Status(msg.Message)
	case *wire.ErrorMsg:
		log.Error("backend error: " + msg.Message)
		c.events.Failure(msg.Message)
	}
}

func (c *Controller) handleTranscript(msg *wire.Transcript) {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	// Late finals after a local stop are still part of the session;
	// anything arriving with no session at all is noise.
	if state == StateIdle || state == StateError {
		return
	}

	ev := transcript.FromWire(msg, time.Now())
	if ev.Text == "" {
		return
	}
	if !c.agg.Accept(ev) {
		log.Debugf("duplicate transcript dropped: %q", ev.Text)
		return
	}
	log.TranscriptText(ev.LabeledText)
	c.events.Caption(ev)
}

func (c *Controller) handleStopped(msg *wire.RecordingStopped) {
	var stats *wire.SessionStats
	if msg.CompleteTranscripts != nil {
		s := msg.CompleteTranscripts.SessionStats
		stats = &s
		log.Infof("backend session stats: duration=%s transcripts=%d",
			s.Duration, msg.CompleteTranscripts.TotalCount)
	}
	c.agg.SetAnalysis(msg.EnhancedAnalysis, stats)
	c.events.AnalysisReady()

	// Derived views are computable now; the session parks back at idle.
	c.mu.Lock()
	done := c.state == StateCompleted
	c.mu.Unlock()
	if done {
		c.setState(StateIdle)
	}
}

func epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
