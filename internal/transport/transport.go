// Package transport maintains the persistent websocket connection to the
// server. It owns no retry policy: reconnect lives in the client, which knows
// the user-facing restart semantics.
package transport

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ourchat/ourchat-client/internal/proto"
)

type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Closing
)

var (
	ErrNotConnected = errors.New("transport: not connected")
	// ErrServerClosed: the server closed the connection cleanly while we did
	// not ask it to. Escalates to a restart, not a reconnect.
	ErrServerClosed = errors.New("transport: connection closed by server")
	// ErrConnectionLost: the connection dropped abruptly. Subject to the
	// caller's bounded reconnect protocol.
	ErrConnectionLost = errors.New("transport: connection lost")
)

// Publisher is the slice of the scheduler the transport needs.
type Publisher interface {
	Publish(ev proto.Event)
}

type Transport struct {
	log *zap.Logger
	bus Publisher

	mu      sync.Mutex
	conn    *websocket.Conn
	state   State
	closing bool
}

func New(bus Publisher, log *zap.Logger) *Transport {
	return &Transport{log: log, bus: bus}
}

func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Connect makes a single attempt against addr ("ip:port"). It publishes the
// outcome as a connection-status event either way and does not retry.
func (t *Transport) Connect(addr string) error {
	t.mu.Lock()
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
	t.state = Connecting
	t.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr, nil)
	if err != nil {
		t.mu.Lock()
		t.state = Disconnected
		t.mu.Unlock()
		t.log.Warn("connect to server failed", zap.String("addr", addr), zap.Error(err))
		t.bus.Publish(proto.ConnectionStatus{Status: proto.StatusServerError, Err: err.Error()})
		return errors.Wrap(err, "connect to server")
	}

	t.mu.Lock()
	t.conn = conn
	t.state = Connected
	t.closing = false
	t.mu.Unlock()
	t.log.Info("connected to server", zap.String("addr", addr))
	t.bus.Publish(proto.ConnectionStatus{Status: proto.StatusOK})
	return nil
}

// Send serializes one request frame. Valid only while connected.
func (t *Transport) Send(req proto.Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "encode request")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil || t.state != Connected {
		return ErrNotConnected
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return errors.Wrap(err, "write frame")
	}
	return nil
}

// ReceiveLoop blocks reading frames until the connection ends, publishing
// every decoded frame as an event. Intended to run on a dedicated worker.
// Returns nil after a locally initiated close, ErrServerClosed after a clean
// close we did not ask for, ErrConnectionLost otherwise.
func (t *Transport) ReceiveLoop() error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			closing := t.closing
			t.closing = false
			if t.conn == conn {
				t.conn = nil
			}
			t.state = Disconnected
			t.mu.Unlock()

			if closing {
				t.log.Info("connection closed")
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.log.Warn("server closed the connection", zap.Error(err))
				return ErrServerClosed
			}
			t.log.Warn("connection lost", zap.Error(err))
			return errors.WithMessage(ErrConnectionLost, err.Error())
		}

		ev, err := proto.Decode(frame)
		if err != nil {
			t.log.Warn("dropping undecodable frame", zap.Error(err))
			continue
		}
		t.bus.Publish(ev)
	}
}

// Close marks the close as locally initiated so the receive loop does not
// mistake it for a server shutdown, then closes the socket.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	t.closing = true
	t.state = Closing
	deadline := time.Now().Add(time.Second)
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	err := t.conn.Close()
	t.conn = nil
	return err
}
