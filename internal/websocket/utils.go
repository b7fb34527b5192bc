package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// WriteWait bounds a single frame write.
	WriteWait = 10 * time.Second
	// IdleTimeout closes a stream that sent nothing, not even a ping.
	IdleTimeout = 2 * time.Minute
	// PingPeriod is how often a client pings. Must be below IdleTimeout.
	PingPeriod = 30 * time.Second
	// CloseGracePeriod is how long a closing side waits for the peer's close frame.
	CloseGracePeriod = 2 * time.Second
	// MaxMessageSize caps one inbound frame; violation reports are tiny.
	MaxMessageSize = 4 << 10
)

// Prepare applies the read limit and the first idle deadline to a fresh connection.
func Prepare(conn *websocket.Conn) {
	conn.SetReadLimit(MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(IdleTimeout))
}

// WriteTyped sends a strongly-typed payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(WriteWait))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadJSON decodes the next message. Every message, pings included, pushes
// the idle deadline forward.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	if err := conn.ReadJSON(v); err != nil {
		return err
	}
	return conn.SetReadDeadline(time.Now().Add(IdleTimeout))
}

// CloseNormal sends a close frame with reason, ignoring write errors.
func CloseNormal(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(WriteWait))
}
