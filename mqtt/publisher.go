// Package mqtt republishes tag patches and liveness transitions to an MQTT
// broker.
package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"taglink/config"
	"taglink/logging"
	"taglink/namespace"
	"taglink/stream"
)

// TagMessage is the JSON structure published per changed tag.
type TagMessage struct {
	Topic     string      `json:"topic"`
	Tag       string      `json:"tag"`
	Value     interface{} `json:"value"`
	Timestamp *int64      `json:"timestamp"`
}

// CommsMessage is the JSON structure published on liveness transitions.
type CommsMessage struct {
	Topic     string      `json:"topic"`
	OK        bool        `json:"ok"`
	Tag       string      `json:"tag"`
	Value     interface{} `json:"value"`
	Timestamp int64       `json:"timestamp"`
	TimeoutMs int64       `json:"timeoutMs"`
}

// Publisher handles the MQTT connection and publishes to a single broker.
type Publisher struct {
	config  *config.MQTTConfig
	ns      *namespace.Builder
	client  pahomqtt.Client
	running bool
	mu      sync.RWMutex
}

// NewPublisher creates a new MQTT publisher for a single broker.
func NewPublisher(cfg *config.MQTTConfig, ns *namespace.Builder) *Publisher {
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

// Start connects to the MQTT broker.
func (p *Publisher) Start() error {
	p.mu.RLock()
	if p.running {
		p.mu.RUnlock()
		return nil
	}
	p.mu.RUnlock()

	opts := pahomqtt.NewClientOptions()

	if p.config.UseTLS {
		opts.AddBroker(fmt.Sprintf("ssl://%s:%d", p.config.Broker, p.config.Port))
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	} else {
		opts.AddBroker(fmt.Sprintf("tcp://%s:%d", p.config.Broker, p.config.Port))
	}

	opts.SetClientID(p.config.ClientID)

	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
		opts.SetPassword(p.config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	client := pahomqtt.NewClient(opts)
	logging.DebugLog("mqtt", "connecting to broker %s:%d", p.config.Broker, p.config.Port)

	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("connection timeout")
	}
	if token.Error() != nil {
		return token.Error()
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		client.Disconnect(100)
		return nil
	}
	p.client = client
	p.running = true
	p.mu.Unlock()

	logging.DebugLog("mqtt", "connected to broker %s:%d", p.config.Broker, p.config.Port)
	return nil
}

// Stop disconnects from the broker.
func (p *Publisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.client.Disconnect(250)
	p.client = nil
	p.running = false
}

// PublishBatch publishes every changed tag in a patch batch to its own
// topic. A single failed publish is logged and skipped; the rest of the
// batch still goes out.
func (p *Publisher) PublishBatch(batch []stream.TagUpdate) {
	p.mu.RLock()
	client := p.client
	running := p.running
	p.mu.RUnlock()

	if !running || client == nil {
		return
	}

	for _, update := range batch {
		topic := p.ns.MQTTTagTopic(update.TagID)
		msg := TagMessage{
			Topic:     topic,
			Tag:       update.TagID,
			Value:     update.Value,
			Timestamp: update.Timestamp,
		}

		payload, err := json.Marshal(msg)
		if err != nil {
			continue
		}

		token := client.Publish(topic, 0, true, payload)
		if token.WaitTimeout(2*time.Second) && token.Error() != nil {
			logging.DebugLog("mqtt", "publish %s failed: %v", topic, token.Error())
		}
	}
}

// PublishComms publishes a liveness transition.
func (p *Publisher) PublishComms(comms stream.Comms) {
	p.mu.RLock()
	client := p.client
	running := p.running
	p.mu.RUnlock()

	if !running || client == nil {
		return
	}

	topic := p.ns.MQTTCommsTopic()
	msg := CommsMessage{
		Topic:     topic,
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

	token := client.Publish(topic, 0, true, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		logging.DebugLog("mqtt", "publish %s failed: %v", topic, token.Error())
	}
}
