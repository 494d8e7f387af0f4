package conn

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"minute/wire"
)

// fakeConn scripts one transport connection. Recv blocks until a frame is
// pushed or the connection is closed.
type fakeConn struct {
	mu     sync.Mutex
	sent   [][]byte
	frames chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) Send(data []byte) error {
	select {
	case <-f.closed:
		return io.ErrClosedPipe
	default:
	}
	f.mu.Lock()
	f.sent = append(f.sent, data)
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) Recv() ([]byte, error) {
	select {
	case data := <-f.frames:
		return data, nil
	case <-f.closed:
		return nil, io.EOF
	}
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) push(t *testing.T, raw string) {
	t.Helper()
	select {
	case f.frames <- []byte(raw):
	case <-time.After(time.Second):
		t.Fatal("push stalled")
	}
}

func (f *fakeConn) sentTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var types []string
	for _, data := range f.sent {
		var env wire.Envelope
		if err := json.Unmarshal(data, &env); err == nil {
			types = append(types, env.Type)
		}
	}
	return types
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startManager(t *testing.T, dial dialFunc, handler func(wire.Inbound)) *Manager {
	t.Helper()
	m := newManager(dial, handler)
	m.retry = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	t.Cleanup(func() {
		m.Shutdown()
		cancel()
	})
	return m
}

func TestHandshakeOnOpen(t *testing.T) {
	fc := newFakeConn()
	m := startManager(t, func(context.Context) (rawConn, error) {
		return fc, nil
	}, nil)

	waitFor(t, "open state", func() bool { return m.State() == StateOpen })
	waitFor(t, "handshake", func() bool {
		types := fc.sentTypes()
		return len(types) == 1 && types[0] == "handshake"
	})
	if m.Sent() != 1 {
		t.Errorf("Sent = %d, want 1", m.Sent())
	}
}

func TestSendWhileDisconnectedDrops(t *testing.T) {
	m := startManager(t, func(context.Context) (rawConn, error) {
		return nil, errors.New("backend down")
	}, nil)

	m.Send(wire.AudioChunk{SampleRate: 16000})
	m.Send(wire.AudioChunk{SampleRate: 16000})

	if m.Dropped() != 2 {
		t.Errorf("Dropped = %d, want 2", m.Dropped())
	}
	if m.Sent() != 0 {
		t.Errorf("Sent = %d, want 0", m.Sent())
	}
}

func TestSendWhileOpen(t *testing.T) {
	fc := newFakeConn()
	m := startManager(t, func(context.Context) (rawConn, error) {
		return fc, nil
	}, nil)
	waitFor(t, "open state", func() bool { return m.State() == StateOpen })

	m.Send(wire.StartRecording{Mode: "microphone"})
	waitFor(t, "start frame", func() bool {
		types := fc.sentTypes()
		return len(types) == 2 && types[1] == "start_recording"
	})
	if m.Dropped() != 0 {
		t.Errorf("Dropped = %d, want 0", m.Dropped())
	}
}

func TestInboundDispatch(t *testing.T) {
	fc := newFakeConn()
	var got atomic.Value
	m := startManager(t, func(context.Context) (rawConn, error) {
		return fc, nil
	}, func(msg wire.Inbound) {
		got.Store(msg)
	})
	waitFor(t, "open state", func() bool { return m.State() == StateOpen })

	fc.push(t, `{"type":"transcript","data":{"text":"hello","speaker":"you"}}`)
	waitFor(t, "dispatch", func() bool { return got.Load() != nil })

	tr, ok := got.Load().(*wire.Transcript)
	if !ok {
		t.Fatalf("handler got %T", got.Load())
	}
	if tr.Text != "hello" {
		t.Errorf("Text = %q", tr.Text)
	}
}

func TestUnknownTypeIgnored(t *testing.T) {
	fc := newFakeConn()
	var texts []string
	var mu sync.Mutex
	m := startManager(t, func(context.Context) (rawConn, error) {
		return fc, nil
	}, func(msg wire.Inbound) {
		if tr, ok := msg.(*wire.Transcript); ok {
			mu.Lock()
			texts = append(texts, tr.Text)
			mu.Unlock()
		}
	})
	waitFor(t, "open state", func() bool { return m.State() == StateOpen })

	fc.push(t, `{"type":"future_feature","data":{}}`)
	fc.push(t, `{"type":"transcript","data":{"text":"after"}}`)

	waitFor(t, "transcript after unknown", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(texts) == 1 && texts[0] == "after"
	})
	if m.Received() != 2 {
		t.Errorf("Received = %d, want 2", m.Received())
	}
}

func TestReconnectAfterDrop(t *testing.T) {
	var dials atomic.Int32
	conns := make(chan *fakeConn, 4)
	m := startManager(t, func(context.Context) (rawConn, error) {
		dials.Add(1)
		fc := newFakeConn()
		conns <- fc
		return fc, nil
	}, nil)

	waitFor(t, "first dial", func() bool { return dials.Load() >= 1 })
	first := <-conns
	waitFor(t, "open state", func() bool { return m.State() == StateOpen })

	first.Close()
	waitFor(t, "redial", func() bool { return dials.Load() >= 2 })
	waitFor(t, "reopen", func() bool { return m.State() == StateOpen })

	// The fresh connection gets its own handshake.
	second := <-conns
	waitFor(t, "second handshake", func() bool {
		types := second.sentTypes()
		return len(types) >= 1 && types[0] == "handshake"
	})
}

func TestShutdownStopsReconnecting(t *testing.T) {
	var dials atomic.Int32
	m := newManager(func(context.Context) (rawConn, error) {
		dials.Add(1)
		return nil, errors.New("down")
	}, nil)
	m.retry = 5 * time.Millisecond
	m.Start(context.Background())

	waitFor(t, "first dial", func() bool { return dials.Load() >= 1 })
	m.Shutdown()

	settled := dials.Load()
	time.Sleep(30 * time.Millisecond)
	if dials.Load() != settled {
		t.Errorf("dials kept climbing after Shutdown: %d -> %d", settled, dials.Load())
	}
	if m.State() != StateDisconnected {
		t.Errorf("State = %s, want disconnected", m.State())
	}
}

func TestClientIDStable(t *testing.T) {
	m := newManager(func(context.Context) (rawConn, error) {
		return nil, errors.New("down")
	}, nil)
	if m.ClientID() == "" {
		t.Fatal("empty client id")
	}
	if m.ClientID() != m.ClientID() {
		t.Error("client id not stable")
	}
}
