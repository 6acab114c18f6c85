package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeDeadline = 10 * time.Second
	// Monitor clients only talk when they ping or refresh, so the read
	// deadline doubles as the idle timeout.
	readDeadline = 5 * time.Minute
)

func write(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return conn.WriteJSON(v)
}

// WriteSnapshot pushes the full attempt table to the client.
func WriteSnapshot(conn *websocket.Conn, attempts interface{}) error {
	return write(conn, SnapshotResponse{Event: EventSnapshot, Attempts: attempts})
}

// WriteMonitor relays one live event from the session channel.
func WriteMonitor(conn *websocket.Conn, payload interface{}) error {
	return write(conn, MonitorResponse{Event: EventMonitor, Payload: payload})
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, errMsg string) error {
	return write(conn, ErrorResponse{Event: EventError, Error: errMsg})
}

// WritePong answers a client ping.
func WritePong(conn *websocket.Conn) error {
	return write(conn, PongResponse{Event: EventPong})
}

// ReadEnvelope reads the next client message. It refreshes the read
// deadline so an active client is never cut off.
func ReadEnvelope(conn *websocket.Conn) (RequestEnvelope, error) {
	var env RequestEnvelope
	conn.SetReadDeadline(time.Now().Add(readDeadline))
	err := conn.ReadJSON(&env)
	return env, err
}
