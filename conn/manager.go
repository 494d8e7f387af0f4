// Package conn owns the persistent duplex link to the transcription
// backend: connect, handshake, send, receive, reconnect, close. The link
// favors dropping outbound messages over buffering them; for live
// captioning, late audio is worse than lost audio.
package conn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"minute/log"
	"minute/wire"
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "disconnected"
	}
}

// reconnectDelay is the fixed pause before redialing a dropped link.
// Retries are unbounded until Shutdown.
const reconnectDelay = 3 * time.Second

const maxInboundBytes = 1 << 22 // recording_stopped payloads can be large

// rawConn is the transport seam; the websocket implementation lives in
// dialWS and tests script their own.
type rawConn interface {
	Send(data []byte) error
	Recv() ([]byte, error)
	Close() error
}

type dialFunc func(ctx context.Context) (rawConn, error)

type Manager struct {
	dial     dialFunc
	handler  func(wire.Inbound)
	clientID string
	retry    time.Duration

	state atomic.Int32

	mu sync.Mutex
	rc rawConn

	done     chan struct{}
	doneOnce sync.Once
	stopped  chan struct{}

	sent    atomic.Int64
	dropped atomic.Int64
	recv    atomic.Int64
}

// New builds a manager for the backend at url. handler receives every
// decoded inbound message, on the receive goroutine.
func New(url string, handler func(wire.Inbound)) *Manager {
	return newManager(func(ctx context.Context) (rawConn, error) {
		return dialWS(ctx, url)
	}, handler)
}

func newManager(dial dialFunc, handler func(wire.Inbound)) *Manager {
	return &Manager{
		dial:     dial,
		handler:  handler,
		clientID: uuid.NewString(),
		retry:    reconnectDelay,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (m *Manager) ClientID() string { return m.clientID }

func (m *Manager) State() State { return State(m.state.Load()) }

func (m *Manager) setState(s State) { m.state.Store(int32(s)) }

// Start runs the connect/receive/reconnect loop until Shutdown or ctx
// cancellation.
func (m *Manager) Start(ctx context.Context) {
	go m.run(ctx)
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.stopped)
	defer m.setState(StateDisconnected)

	for {
		select {
		case <-m.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		m.setState(StateConnecting)
		rc, err := m.dial(ctx)
		if err != nil {
			m.setState(StateDisconnected)
			log.Warnf("connect failed, retrying in %s: %v", m.retry, err)
			if !m.pause(ctx) {
				return
			}
			continue
		}

		m.mu.Lock()
		m.rc = rc
		m.mu.Unlock()
		m.setState(StateOpen)
		log.Info("link open")

		// Handshake identifies this client for backend diagnostics only;
		// session identity comes from recording_started.
		if err := m.writeRaw(rc, wire.Handshake{ClientID: m.clientID}); err != nil {
			log.Warnf("handshake failed: %v", err)
		}

		m.readLoop(rc)

		m.mu.Lock()
		m.rc = nil
		m.mu.Unlock()

		select {
		case <-m.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		m.setState(StateDisconnected)
		log.Warnf("link lost, reconnecting in %s", m.retry)
		if !m.pause(ctx) {
			return
		}
	}
}

func (m *Manager) pause(ctx context.Context) bool {
	select {
	case <-time.After(m.retry):
		return true
	case <-m.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (m *Manager) readLoop(rc rawConn) {
	for {
		data, err := rc.Recv()
		if err != nil {
			return
		}
		m.recv.Add(1)

		msg, err := wire.Decode(data)
		if err != nil {
			if errors.Is(err, wire.ErrUnknownType) {
				log.Warnf("ignoring inbound message: %v", err)
			} else {
				log.Errorf("inbound decode: %v", err)
			}
			continue
		}
		if m.handler != nil {
			m.handler(msg)
		}
	}
}

// Send transmits one message if the link is open; otherwise the message is
// silently dropped, never queued.
func (m *Manager) Send(msg wire.Outbound) {
	if m.State() != StateOpen {
		m.dropped.Add(1)
		return
	}
	m.mu.Lock()
	rc := m.rc
	m.mu.Unlock()
	if rc == nil {
		m.dropped.Add(1)
		return
	}
	if err := m.writeRaw(rc, msg); err != nil {
		log.Warnf("send failed: %v", err)
	}
}

func (m *Manager) writeRaw(rc rawConn, msg wire.Outbound) error {
	data, err := wire.Encode(msg)
	if err != nil {
		return err
	}
	if err := rc.Send(data); err != nil {
		return err
	}
	m.sent.Add(1)
	return nil
}

// Shutdown tears the link down for good; no further reconnects.
func (m *Manager) Shutdown() {
	m.doneOnce.Do(func() {
		m.setState(StateClosing)
		close(m.done)
		m.mu.Lock()
		rc := m.rc
		m.mu.Unlock()
		if rc != nil {
			rc.Close()
		}
	})
	<-m.stopped
}

// Sent, Dropped and Received expose link counters for session metrics.
func (m *Manager) Sent() int64     { return m.sent.Load() }
func (m *Manager) Dropped() int64  { return m.dropped.Load() }
func (m *Manager) Received() int64 { return m.recv.Load() }

type wsConn struct {
	c   *websocket.Conn
	ctx context.Context
}

func dialWS(ctx context.Context, url string) (rawConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(dialCtx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c.SetReadLimit(maxInboundBytes)
	return &wsConn{c: c, ctx: ctx}, nil
}

func (w *wsConn) Send(data []byte) error {
	return w.c.Write(w.ctx, websocket.MessageText, data)
}

func (w *wsConn) Recv() ([]byte, error) {
	_, data, err := w.c.Read(w.ctx)
	return data, err
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "")
}
