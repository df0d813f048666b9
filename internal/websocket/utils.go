package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadJSON reads and decodes a message into the provided structure.
// It sets a read deadline.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
	return conn.ReadJSON(v)
}

// SafeConn serializes writes to a gorilla connection. The session
// machine pushes events from its own goroutine while the read loop
// answers pings, and gorilla connections allow only one writer.
type SafeConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewSafeConn wraps a gorilla connection.
func NewSafeConn(conn *websocket.Conn) *SafeConn {
	return &SafeConn{conn: conn}
}

// Send writes one JSON payload. Implements session.Conn.
func (s *SafeConn) Send(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return WriteTyped(s.conn, v)
}

// SendError writes a typed error payload.
func (s *SafeConn) SendError(errMsg string) error {
	return s.Send(ErrorResponse{Event: EventError, Error: errMsg})
}
