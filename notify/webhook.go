// Package notify sends webhook notifications on comms transitions.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"taglink/config"
	"taglink/logging"
	"taglink/stream"
)

// Webhook fires an HTTP request when upstream comms are lost (and,
// optionally, when they recover). A cooldown interval suppresses repeat
// notifications during flapping.
type Webhook struct {
	config *config.NotifyConfig

	sendCount    int64
	lastSend     time.Time
	lastHTTPCode int
	lastErr      error
	mu           sync.RWMutex

	httpClient *http.Client
}

// payload is the JSON body sent to the webhook endpoint.
type payload struct {
	Event     string      `json:"event"` // "comms-lost" or "comms-restored"
	OK        bool        `json:"ok"`
	Tag       string      `json:"tag"`
	Value     interface{} `json:"value"`
	Timestamp int64       `json:"timestamp"`
	TimeoutMs int64       `json:"timeoutMs"`
}

// NewWebhook creates a webhook notifier from configuration.
func NewWebhook(cfg *config.NotifyConfig) *Webhook {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Webhook{
		config:     cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name returns the webhook's name.
func (n *Webhook) Name() string {
	return n.config.Name
}

// GetStats returns notification statistics.
func (n *Webhook) GetStats() (sendCount int64, lastSend time.Time, lastHTTPCode int) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.sendCount, n.lastSend, n.lastHTTPCode
}

// GetError returns the last send error.
func (n *Webhook) GetError() error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.lastErr
}

// OnComms handles a liveness transition from the engine. Runs on the poll
// goroutine, so the HTTP send is dispatched to its own goroutine.
func (n *Webhook) OnComms(comms stream.Comms) {
	if !n.config.Enabled {
		return
	}
	if comms.OK && !n.config.OnRestore {
		return
	}

	n.mu.RLock()
	inCooldown := n.config.Cooldown > 0 && time.Since(n.lastSend) < n.config.Cooldown
	n.mu.RUnlock()
	if inCooldown {
		logging.DebugLog("notify", "%s: suppressed by cooldown", n.config.Name)
		return
	}

	go n.fire(comms)
}

func (n *Webhook) fire(comms stream.Comms) {
	event := "comms-lost"
	if comms.OK {
		event = "comms-restored"
	}

	body, err := json.Marshal(payload{
		Event:     event,
		OK:        comms.OK,
		Tag:       comms.Tag,
		Value:     comms.Value,
		Timestamp: comms.Timestamp,
		TimeoutMs: comms.TimeoutMs,
	})
	if err != nil {
		return
	}

	req, err := n.buildRequest(body)
	if err != nil {
		n.handleError(fmt.Errorf("failed to build request: %w", err))
		return
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.handleError(fmt.Errorf("HTTP request failed: %w", err))
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	logging.DebugLog("notify", "%s: sent %s, status=%d", n.config.Name, event, resp.StatusCode)

	n.mu.Lock()
	n.sendCount++
	n.lastSend = time.Now()
	n.lastHTTPCode = resp.StatusCode
	n.lastErr = nil
	n.mu.Unlock()
}

// buildRequest constructs the HTTP request with headers and auth.
func (n *Webhook) buildRequest(body []byte) (*http.Request, error) {
	method := n.config.Method
	if method == "" {
		method = "POST"
	}

	req, err := http.NewRequest(method, n.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	ct := n.config.ContentType
	if ct == "" {
		ct = "application/json"
	}
	req.Header.Set("Content-Type", ct)

	for k, v := range n.config.Headers {
		req.Header.Set(k, v)
	}

	if n.config.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+n.config.BearerToken)
	}

	return req, nil
}

func (n *Webhook) handleError(err error) {
	logging.DebugLog("notify", "%s: error: %v", n.config.Name, err)

	n.mu.Lock()
	n.lastErr = err
	n.mu.Unlock()
}
