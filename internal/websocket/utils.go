package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// SafeConn serializes writes to a WebSocket connection. The action loop and
// the tick pusher write concurrently, and gorilla/websocket allows at most
// one concurrent writer.
type SafeConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewSafeConn wraps a WebSocket connection for concurrent writers.
func NewSafeConn(conn *websocket.Conn) *SafeConn {
	return &SafeConn{conn: conn}
}

// WriteTyped sends a strongly-typed event payload over the WebSocket.
func (sc *SafeConn) WriteTyped(v interface{}) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return sc.conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func (sc *SafeConn) WriteError(errMsg string) error {
	return sc.WriteTyped(ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadJSON reads and decodes a message into the provided structure.
// It sets a read deadline. Reads stay single-threaded on the action loop,
// so no locking is needed here.
func (sc *SafeConn) ReadJSON(v interface{}) error {
	sc.conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
	return sc.conn.ReadJSON(v)
}

// Close closes the underlying connection.
func (sc *SafeConn) Close() error {
	return sc.conn.Close()
}
