// Package stream manages server-push clients and the events broadcast to
// them by the poll loop.
package stream

// Event type names on the wire.
const (
	EventHello     = "hello"
	EventPatch     = "patch"
	EventComms     = "comms"
	EventHeartbeat = "heartbeat"
)

// Event is the envelope delivered to streaming clients.
type Event struct {
	Type string
	Data interface{}
}

// Hello is the payload of the hello event sent on connect.
type Hello struct {
	PollIntervalMs int64 `json:"pollIntervalMs"`
}

// TagUpdate is one changed tag inside a patch batch.
type TagUpdate struct {
	TagID     string      `json:"tagId"`
	Value     interface{} `json:"value"`
	Timestamp *int64      `json:"timestamp"`
}

// Comms is the payload of a liveness transition event.
type Comms struct {
	OK        bool        `json:"ok"`
	Timestamp int64       `json:"timestamp"`
	Tag       string      `json:"tag"`
	Value     interface{} `json:"value"`
	TimeoutMs int64       `json:"timeoutMs"`
}
