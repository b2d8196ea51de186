package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"taglink/logging"
	"taglink/stream"
)

// handleSSE serves the streaming subscription. Per-client event order:
// hello first, then an initial full patch, then the current comms state,
// then live updates in poll-tick order.
func (h *handlers) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	hub := h.eng.Hub()
	client := stream.NewClient()

	// Registering before the initial writes means no tick falls in the gap:
	// live events queue on the client channel and are only drained after
	// the join sequence below has gone out.
	hub.Register(client)
	defer hub.Unregister(client)

	if h.metrics != nil {
		h.metrics.ConnectedClients.Inc()
		defer h.metrics.ConnectedClients.Dec()
	}
	logging.DebugLog("sse", "client %s connected", client.ID)
	defer logging.DebugLog("sse", "client %s disconnected", client.ID)

	hello := stream.Hello{PollIntervalMs: h.eng.PollInterval().Milliseconds()}
	if err := writeSSE(w, stream.EventHello, hello); err != nil {
		return
	}
	if err := writeSSE(w, stream.EventPatch, h.eng.SnapshotUpdates()); err != nil {
		return
	}
	if err := writeSSE(w, stream.EventComms, h.eng.CurrentComms()); err != nil {
		return
	}
	flusher.Flush()

	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			return

		case event, ok := <-client.Events:
			if !ok {
				return
			}
			if err := writeSSE(w, event.Type, event.Data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeSSE serializes one event in text/event-stream framing.
func writeSSE(w http.ResponseWriter, eventType string, data interface{}) error {
	if data == nil {
		data = struct{}{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil // Skip unserializable payloads; do not kill the stream
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload)
	return err
}
