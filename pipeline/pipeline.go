// Package pipeline turns acquired capture devices into a stream of
// fixed-size, source-labeled PCM batches. Each source gets its own
// independent pipeline so closing or losing one cannot affect the other.
package pipeline

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"minute/audio"
	"minute/log"
	"minute/transcript"
)

// BatchSize is the number of samples per emitted batch.
const BatchSize = 4096

// quietRMS is the advisory loudness floor. Batches below it are still
// transmitted; the threshold only drives the activity indicator and demotes
// their log line.
const quietRMS = 0.01

// Batch is the unit of transmission: one window of samples plus metadata.
type Batch struct {
	Source     audio.Kind
	Speaker    transcript.Speaker
	Samples    []float64 // normalized to [-1, 1]
	SampleRate int
	RMS        float64
	Captured   time.Time
}

type EmitFunc func(Batch)

// LevelFunc receives the advisory activity level per source.
type LevelFunc func(source audio.Kind, rms float64, speech bool)

// SpeakerFor labels a source positionally, not by content. Microphone
// batches are "you"; in mixed mode without a system source the mic is the
// only channel carrying every participant, so the label degrades to
// "mixed". System batches are always "other".
func SpeakerFor(kind audio.Kind, mode audio.Mode, hasSystem bool) transcript.Speaker {
	if kind == audio.KindSystem {
		return transcript.SpeakerOther
	}
	if mode == audio.ModeMixed && !hasSystem {
		return transcript.SpeakerMixed
	}
	return transcript.SpeakerYou
}

// Pipeline is the processing graph for one source.
type Pipeline struct {
	dev        audio.CaptureDevice
	source     audio.Kind
	speaker    transcript.Speaker
	sampleRate int
	gate       func() bool
	emit       EmitFunc
	level      LevelFunc
	act        *activityMonitor

	mu      sync.Mutex
	buf     []float64
	started bool
	closed  bool

	emitted atomic.Int64
	dropped atomic.Int64
}

func New(dev audio.CaptureDevice, source audio.Kind, speaker transcript.Speaker, sampleRate int, gate func() bool, emit EmitFunc, level LevelFunc) *Pipeline {
	p := &Pipeline{
		dev:        dev,
		source:     source,
		speaker:    speaker,
		sampleRate: sampleRate,
		gate:       gate,
		emit:       emit,
		level:      level,
	}
	if act, err := newActivityMonitor(sampleRate); err == nil {
		p.act = act
	} else {
		log.Debugf("%s: activity monitor disabled: %v", source, err)
	}
	return p
}

func (p *Pipeline) Start() error {
	p.dev.SetCallback(p.onData)
	if err := p.dev.Start(); err != nil {
		p.dev.ClearCallback()
		return fmt.Errorf("pipeline %s: %w", p.source, err)
	}
	p.mu.Lock()
	p.started = true
	p.mu.Unlock()
	return nil
}

// onData runs on the audio clock. It accumulates samples and emits full
// batches; gated batches are dropped at emission, never buffered.
func (p *Pipeline) onData(data []byte, _ uint32) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(data[i:]))
		p.buf = append(p.buf, float64(sample)/32768.0)
	}
	var batches [][]float64
	for len(p.buf) >= BatchSize {
		batch := make([]float64, BatchSize)
		copy(batch, p.buf[:BatchSize])
		p.buf = p.buf[BatchSize:]
		batches = append(batches, batch)
	}
	p.mu.Unlock()

	if p.act != nil {
		p.act.Process(data)
	}

	for _, samples := range batches {
		p.emitBatch(samples)
	}
}

func (p *Pipeline) emitBatch(samples []float64) {
	rms := RMS(samples)
	speech := p.act != nil && p.act.SpeechRecently()
	if p.level != nil {
		p.level(p.source, rms, speech)
	}

	if !p.gate() {
		p.dropped.Add(1)
		return
	}

	p.emitted.Add(1)
	if rms < quietRMS {
		log.Debugf("%s: quiet batch rms=%.4f", p.source, rms)
	}
	p.emit(Batch{
		Source:     p.source,
		Speaker:    p.speaker,
		Samples:    samples,
		SampleRate: p.sampleRate,
		RMS:        rms,
		Captured:   time.Now(),
	})
}

// Close tears down the processing graph and the underlying device
// together. Idempotent.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.buf = nil
	p.mu.Unlock()

	p.dev.Stop()
	p.dev.ClearCallback()
	p.dev.Close()
}

func (p *Pipeline) Emitted() int64 { return p.emitted.Load() }
func (p *Pipeline) Dropped() int64 { return p.dropped.Load() }

// RMS computes the normalized loudness of a sample window.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Dual owns the one or two per-source pipelines of a session and the
// devices beneath them. Release happens through Close only, all together.
type Dual struct {
	pipes []*Pipeline
	src   *audio.Sources

	closeOnce sync.Once
}

func NewDual(src *audio.Sources, mode audio.Mode, sampleRate int, gate func() bool, emit EmitFunc, level LevelFunc) *Dual {
	d := &Dual{src: src}
	hasSystem := src.System != nil
	if src.Microphone != nil {
		speaker := SpeakerFor(audio.KindMicrophone, mode, hasSystem)
		d.pipes = append(d.pipes, New(src.Microphone, audio.KindMicrophone, speaker, sampleRate, gate, emit, level))
	}
	if src.System != nil {
		d.pipes = append(d.pipes, New(src.System, audio.KindSystem, transcript.SpeakerOther, sampleRate, gate, emit, level))
	}
	return d
}

func (d *Dual) Start() error {
	for i, p := range d.pipes {
		if err := p.Start(); err != nil {
			for _, started := range d.pipes[:i] {
				started.Close()
			}
			d.src.Close()
			return err
		}
	}
	return nil
}

// Close releases every pipeline and every device, exactly once.
func (d *Dual) Close() {
	d.closeOnce.Do(func() {
		for _, p := range d.pipes {
			p.Close()
		}
		d.src.Close()
	})
}

func (d *Dual) Pipelines() []*Pipeline { return d.pipes }

func (d *Dual) Emitted() int64 {
	var n int64
	for _, p := range d.pipes {
		n += p.Emitted()
	}
	return n
}

func (d *Dual) Dropped() int64 {
	var n int64
	for _, p := range d.pipes {
		n += p.Dropped()
	}
	return n
}
