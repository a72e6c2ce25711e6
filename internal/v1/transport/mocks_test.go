package transport

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var errConnClosed = errors.New("mock connection closed")

// mockConn implements wsConnection for testing. Frames pushed into inbound
// are returned by ReadMessage; every text frame written is recorded.
type mockConn struct {
	inbound chan []byte

	mu      sync.Mutex
	written [][]byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newMockConn() *mockConn {
	return &mockConn{
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (m *mockConn) ReadMessage() (int, []byte, error) {
	select {
	case <-m.closed:
		return 0, nil, errConnClosed
	case data, ok := <-m.inbound:
		if !ok {
			return 0, nil, errConnClosed
		}
		return websocket.TextMessage, data, nil
	}
}

func (m *mockConn) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if messageType == websocket.TextMessage {
		m.written = append(m.written, data)
	}
	return nil
}

func (m *mockConn) SetWriteDeadline(t time.Time) error { return nil }

func (m *mockConn) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

func (m *mockConn) isClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

// push delivers an inbound frame as if the remote client sent it.
func (m *mockConn) push(event string, payload any) {
	data, err := encodeEvent(event, payload)
	if err != nil {
		panic(err)
	}
	m.inbound <- data
}

// events decodes the envelope event names written so far, in order.
func (m *mockConn) events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.written))
	for _, frame := range m.written {
		var env Envelope
		if json.Unmarshal(frame, &env) == nil {
			out = append(out, env.Event)
		}
	}
	return out
}

// countOf reports how many frames carried the event.
func (m *mockConn) countOf(event string) int {
	count := 0
	for _, e := range m.events() {
		if e == event {
			count++
		}
	}
	return count
}
