package websocket

// Actions a monitor client may send. The monitor stream is mostly
// server-push, so the client vocabulary is small.

type Action string

const (
	ActionPing    Action = "ping"
	ActionRefresh Action = "refresh"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// Events pushed to the monitor client.

type Event string

const (
	EventError    Event = "error"
	EventSnapshot Event = "snapshot"
	EventMonitor  Event = "monitor"
	EventPong     Event = "pong"
)

// SnapshotResponse carries the full per-student attempt table. Sent on
// connect and on an explicit refresh request.
type SnapshotResponse struct {
	Event    Event       `json:"event"`
	Attempts interface{} `json:"attempts"`
}

// MonitorResponse wraps a single live event relayed from the session's
// pub/sub channel.
type MonitorResponse struct {
	Event   Event       `json:"event"`
	Payload interface{} `json:"payload"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
