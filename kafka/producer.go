package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"taglink/logging"
	"taglink/namespace"
	"taglink/stream"
)

// ConnectionStatus represents the state of a Kafka connection.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusError
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "Disconnected"
	case StatusConnecting:
		return "Connecting"
	case StatusConnected:
		return "Connected"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// TagMessage is the JSON value produced per changed tag. The tag name is
// the message key, so per-tag ordering survives partitioning.
type TagMessage struct {
	Namespace string      `json:"namespace"`
	Tag       string      `json:"tag"`
	Value     interface{} `json:"value"`
	Timestamp *int64      `json:"timestamp"`
}

// CommsMessage is the JSON value produced on liveness transitions.
type CommsMessage struct {
	Namespace string      `json:"namespace"`
	OK        bool        `json:"ok"`
	Tag       string      `json:"tag"`
	Value     interface{} `json:"value"`
	Timestamp int64       `json:"timestamp"`
	TimeoutMs int64       `json:"timeoutMs"`
}

// Producer publishes patch batches to a Kafka cluster.
type Producer struct {
	config  *Config
	ns      *namespace.Builder
	writers map[string]*kafka.Writer // topic -> writer
	status  ConnectionStatus
	lastErr error
	mu      sync.RWMutex

	// Stats
	messagesSent  int64
	messagesError int64
	lastSendTime  time.Time
}

// NewProducer creates a new Kafka producer.
func NewProducer(config *Config, ns *namespace.Builder) *Producer {
	return &Producer{
		config:  config,
		ns:      ns,
		writers: make(map[string]*kafka.Writer),
		status:  StatusDisconnected,
	}
}

// Name returns the producer's name.
func (p *Producer) Name() string {
	return p.config.Name
}

// GetStatus returns the current connection status.
func (p *Producer) GetStatus() ConnectionStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// GetError returns the last error.
func (p *Producer) GetError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

// GetStats returns producer statistics.
func (p *Producer) GetStats() (sent, errors int64, lastSend time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.messagesSent, p.messagesError, p.lastSendTime
}

// Connect establishes connection to the Kafka cluster.
func (p *Producer) Connect() error {
	p.mu.Lock()
	p.status = StatusConnecting
	p.lastErr = nil
	name := p.config.Name
	brokers := p.config.Brokers
	p.mu.Unlock()

	logging.DebugLog("kafka", "CONNECT %s: connecting to brokers %v", name, brokers)

	// Test connectivity by dialing the first broker
	dialer := p.createDialer()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := dialer.DialContext(ctx, "tcp", p.config.Brokers[0])
	if err != nil {
		p.mu.Lock()
		p.status = StatusError
		p.lastErr = fmt.Errorf("failed to connect: %w", err)
		p.mu.Unlock()
		logging.DebugLog("kafka", "CONNECT %s: FAILED - %v", name, err)
		return fmt.Errorf("failed to connect: %w", err)
	}
	conn.Close()

	p.mu.Lock()
	p.status = StatusConnected
	p.mu.Unlock()

	logging.DebugLog("kafka", "CONNECT %s: connected", name)
	return nil
}

// Disconnect closes all writers and disconnects.
func (p *Producer) Disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for topic, writer := range p.writers {
		writer.Close()
		delete(p.writers, topic)
	}

	p.status = StatusDisconnected
	p.lastErr = nil
	logging.DebugLog("kafka", "DISCONNECT %s: disconnected", p.config.Name)
}

// tagTopic returns the topic used for tag messages.
func (p *Producer) tagTopic() string {
	if p.config.Topic != "" {
		return p.config.Topic
	}
	return p.ns.KafkaTagTopic()
}

// PublishBatch produces every changed tag in a patch batch as one write,
// keyed by tag name.
func (p *Producer) PublishBatch(batch []stream.TagUpdate) {
	if len(batch) == 0 || p.GetStatus() != StatusConnected {
		return
	}

	messages := make([]kafka.Message, 0, len(batch))
	now := time.Now()
	for _, update := range batch {
		payload, err := json.Marshal(TagMessage{
			Namespace: p.ns.KafkaTagTopic(),
			Tag:       update.TagID,
			Value:     update.Value,
			Timestamp: update.Timestamp,
		})
		if err != nil {
			continue
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(update.TagID),
			Value: payload,
			Time:  now,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.produceBatch(ctx, p.tagTopic(), messages); err != nil {
		logging.DebugLog("kafka", "PUBLISH %s: %v", p.config.Name, err)
	}
}

// PublishComms produces a liveness transition to the comms topic.
func (p *Producer) PublishComms(comms stream.Comms) {
	if p.GetStatus() != StatusConnected {
		return
	}

	payload, err := json.Marshal(CommsMessage{
		Namespace: p.ns.KafkaTagTopic(),
		OK:        comms.OK,
		Tag:       comms.Tag,
		Value:     comms.Value,
		Timestamp: comms.Timestamp,
		TimeoutMs: comms.TimeoutMs,
	})
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := kafka.Message{Key: []byte(comms.Tag), Value: payload, Time: time.Now()}
	if err := p.produceBatch(ctx, p.ns.KafkaCommsTopic(), []kafka.Message{msg}); err != nil {
		logging.DebugLog("kafka", "PUBLISH comms %s: %v", p.config.Name, err)
	}
}

// produceBatch sends messages to the topic in a single synchronous call.
func (p *Producer) produceBatch(ctx context.Context, topic string, messages []kafka.Message) error {
	if len(messages) == 0 {
		return nil
	}

	writer, err := p.getWriter(topic)
	if err != nil {
		return err
	}

	if err := writer.WriteMessages(ctx, messages...); err != nil {
		p.mu.Lock()
		p.messagesError += int64(len(messages))
		p.lastErr = err
		p.mu.Unlock()
		return fmt.Errorf("kafka batch produce failed: %w", err)
	}

	p.mu.Lock()
	p.messagesSent += int64(len(messages))
	p.lastSendTime = time.Now()
	p.lastErr = nil
	p.mu.Unlock()
	return nil
}

// getWriter returns or creates a writer for the given topic.
func (p *Producer) getWriter(topic string) (*kafka.Writer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != StatusConnected {
		return nil, fmt.Errorf("kafka cluster %q not connected", p.config.Name)
	}

	if writer, exists := p.writers[topic]; exists {
		return writer, nil
	}

	writer := &kafka.Writer{
		Addr:      kafka.TCP(p.config.Brokers...),
		Topic:     topic,
		Balancer:  &kafka.LeastBytes{},
		Transport: p.createTransport(),

		RequiredAcks: kafka.RequiredAcks(p.config.RequiredAcks),
		Async:        false,
		MaxAttempts:  p.config.MaxRetries,

		BatchSize:    100,
		BatchBytes:   1048576,
		BatchTimeout: 10 * time.Millisecond,

		AllowAutoTopicCreation: true,
	}

	p.writers[topic] = writer
	return writer, nil
}

func (p *Producer) createDialer() *kafka.Dialer {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	if p.config.UseTLS {
		dialer.TLS = p.config.GetTLSConfig()
	}

	if mechanism := p.getSASLMechanism(); mechanism != nil {
		dialer.SASLMechanism = mechanism
	}

	return dialer
}

func (p *Producer) createTransport() *kafka.Transport {
	transport := &kafka.Transport{
		DialTimeout: 10 * time.Second,
	}

	if p.config.UseTLS {
		transport.TLS = p.config.GetTLSConfig()
	}

	if mechanism := p.getSASLMechanism(); mechanism != nil {
		transport.SASL = mechanism
	}

	return transport
}

func (p *Producer) getSASLMechanism() sasl.Mechanism {
	if p.config.Username == "" {
		return nil
	}

	switch p.config.SASLMechanism {
	case SASLPlain:
		return plain.Mechanism{
			Username: p.config.Username,
			Password: p.config.Password,
		}
	case SASLSCRAMSHA256:
		mechanism, _ := scram.Mechanism(scram.SHA256, p.config.Username, p.config.Password)
		return mechanism
	case SASLSCRAMSHA512:
		mechanism, _ := scram.Mechanism(scram.SHA512, p.config.Username, p.config.Password)
		return mechanism
	default:
		return nil
	}
}
