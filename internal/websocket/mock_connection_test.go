package websocket

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

var errConnClosed = errors.New("connection closed")

// MockConnection is an in-memory Connection. ReadMessage serves queued
// messages and then blocks until Close.
type MockConnection struct {
	mu sync.Mutex

	written   []MockMessage
	reads     chan MockMessage
	closed    chan struct{}
	closeOnce sync.Once

	WriteErr      error
	RemoteAddress string
	ReadLimit     int64
	PongHandler   func(string) error
}

// MockMessage is one frame read or written
type MockMessage struct {
	Type int
	Data []byte
}

func NewMockConnection() *MockConnection {
	return &MockConnection{
		reads:         make(chan MockMessage, 16),
		closed:        make(chan struct{}),
		RemoteAddress: "127.0.0.1:50000",
	}
}

func (m *MockConnection) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isClosed() {
		return errConnClosed
	}
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.written = append(m.written, MockMessage{Type: messageType, Data: append([]byte(nil), data...)})
	return nil
}

func (m *MockConnection) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-m.reads:
		return msg.Type, msg.Data, nil
	case <-m.closed:
		return 0, nil, io.EOF
	}
}

func (m *MockConnection) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

func (m *MockConnection) isClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

func (m *MockConnection) SetReadDeadline(time.Time) error  { return nil }
func (m *MockConnection) SetWriteDeadline(time.Time) error { return nil }

func (m *MockConnection) SetReadLimit(limit int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadLimit = limit
}

func (m *MockConnection) SetPongHandler(h func(string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PongHandler = h
}

func (m *MockConnection) RemoteAddr() string { return m.RemoteAddress }

// Push queues a message for ReadMessage
func (m *MockConnection) Push(messageType int, data []byte) {
	m.reads <- MockMessage{Type: messageType, Data: data}
}

// Written returns a copy of every written frame
func (m *MockConnection) Written() []MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockMessage, len(m.written))
	copy(out, m.written)
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
