// Package valkey republishes tag patches and liveness state to a
// Valkey/Redis server: current values as keys, changes on a pub/sub channel.
package valkey

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"taglink/config"
	"taglink/logging"
	"taglink/namespace"
	"taglink/stream"
)

// TagMessage represents a tag value stored in Valkey.
type TagMessage struct {
	Namespace string      `json:"namespace"`
	Tag       string      `json:"tag"`
	Value     interface{} `json:"value"`
	Timestamp *int64      `json:"timestamp"`
}

// CommsMessage represents the liveness state stored in Valkey.
type CommsMessage struct {
	Namespace string      `json:"namespace"`
	OK        bool        `json:"ok"`
	Tag       string      `json:"tag"`
	Value     interface{} `json:"value"`
	Timestamp int64       `json:"timestamp"`
	TimeoutMs int64       `json:"timeoutMs"`
}

// Publisher handles publishing to a single Valkey server.
type Publisher struct {
	config  *config.ValkeyConfig
	ns      *namespace.Builder
	client  *redis.Client
	running bool
	mu      sync.RWMutex
}

// NewPublisher creates a new Valkey publisher.
func NewPublisher(cfg *config.ValkeyConfig, ns *namespace.Builder) *Publisher {
	return &Publisher{
		config: cfg,
		ns:     ns,
	}
}

// Name returns the publisher's name.
func (p *Publisher) Name() string {
	return p.config.Name
}

// IsRunning returns whether the publisher is connected.
func (p *Publisher) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Start connects to the Valkey server and verifies the connection.
func (p *Publisher) Start() error {
	p.mu.RLock()
	if p.running {
		p.mu.RUnlock()
		return nil
	}
	p.mu.RUnlock()

	opts := &redis.Options{
		Addr:         p.config.Address,
		Password:     p.config.Password,
		DB:           p.config.Database,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}

	if p.config.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return err
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		client.Close()
		return nil
	}
	p.client = client
	p.running = true
	p.mu.Unlock()

	logging.DebugLog("valkey", "connected to %s (db %d)", p.config.Address, p.config.Database)
	return nil
}

// Stop disconnects from the server.
func (p *Publisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.client.Close()
	p.client = nil
	p.running = false
}

// PublishBatch stores each changed tag under its key and publishes the whole
// batch to the changes channel.
func (p *Publisher) PublishBatch(batch []stream.TagUpdate) {
	p.mu.RLock()
	client := p.client
	running := p.running
	p.mu.RUnlock()

	if !running || client == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	messages := make([]TagMessage, 0, len(batch))
	for _, update := range batch {
		msg := TagMessage{
			Namespace: p.ns.ValkeyFactory(),
			Tag:       update.TagID,
			Value:     update.Value,
			Timestamp: update.Timestamp,
		}
		messages = append(messages, msg)

		payload, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		if err := client.Set(ctx, p.ns.ValkeyTagKey(update.TagID), payload, p.config.KeyTTL).Err(); err != nil {
			logging.DebugLog("valkey", "SET %s failed: %v", update.TagID, err)
		}
	}

	payload, err := json.Marshal(messages)
	if err != nil {
		return
	}
	if err := client.Publish(ctx, p.ns.ValkeyChangesChannel(), payload).Err(); err != nil {
		logging.DebugLog("valkey", "PUBLISH changes failed: %v", err)
	}
}

// PublishComms stores and announces a liveness transition.
func (p *Publisher) PublishComms(comms stream.Comms) {
	p.mu.RLock()
	client := p.client
	running := p.running
	p.mu.RUnlock()

	if !running || client == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msg := CommsMessage{
		Namespace: p.ns.ValkeyFactory(),
		OK:        comms.OK,
		Tag:       comms.Tag,
		Value:     comms.Value,
		Timestamp: comms.Timestamp,
		TimeoutMs: comms.TimeoutMs,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	if err := client.Set(ctx, p.ns.ValkeyCommsKey(), payload, 0).Err(); err != nil {
		logging.DebugLog("valkey", "SET comms failed: %v", err)
	}
	if err := client.Publish(ctx, p.ns.ValkeyCommsChannel(), payload).Err(); err != nil {
		logging.DebugLog("valkey", "PUBLISH comms failed: %v", err)
	}
}
