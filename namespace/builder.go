// Package namespace provides utilities for constructing topic and key paths
// with consistent namespace prefixing across all republishers (MQTT, Valkey,
// Kafka).
package namespace

// Builder constructs namespace-prefixed topics and keys.
type Builder struct {
	namespace string
	selector  string
}

// New creates a new namespace builder.
func New(namespace, selector string) *Builder {
	return &Builder{
		namespace: namespace,
		selector:  selector,
	}
}

// --- MQTT (delimiter: /) ---

// MQTTTagTopic returns the topic for a tag value: {ns}[/{sel}]/tags/{tag}
func (b *Builder) MQTTTagTopic(tag string) string {
	return b.mqttBase() + "/tags/" + tag
}

// MQTTCommsTopic returns the topic for liveness transitions: {ns}[/{sel}]/comms
func (b *Builder) MQTTCommsTopic() string {
	return b.mqttBase() + "/comms"
}

// MQTTBase returns the base topic: {ns}[/{sel}]
func (b *Builder) MQTTBase() string {
	return b.mqttBase()
}

func (b *Builder) mqttBase() string {
	if b.selector != "" {
		return b.namespace + "/" + b.selector
	}
	return b.namespace
}

// --- Valkey (delimiter: :) ---

// ValkeyTagKey returns the key for a tag value: {ns}[:{sel}]:tags:{tag}
func (b *Builder) ValkeyTagKey(tag string) string {
	return b.valkeyBase() + ":tags:" + tag
}

// ValkeyChangesChannel returns the channel for patch batches: {ns}[:{sel}]:changes
func (b *Builder) ValkeyChangesChannel() string {
	return b.valkeyBase() + ":changes"
}

// ValkeyCommsKey returns the key for the liveness state: {ns}[:{sel}]:comms
func (b *Builder) ValkeyCommsKey() string {
	return b.valkeyBase() + ":comms"
}

// ValkeyCommsChannel returns the channel for liveness transitions:
// {ns}[:{sel}]:comms:changes
func (b *Builder) ValkeyCommsChannel() string {
	return b.valkeyBase() + ":comms:changes"
}

// ValkeyFactory returns the namespace identifier embedded in JSON messages:
// {ns}[:{sel}]
func (b *Builder) ValkeyFactory() string {
	return b.valkeyBase()
}

func (b *Builder) valkeyBase() string {
	if b.selector != "" {
		return b.namespace + ":" + b.selector
	}
	return b.namespace
}

// --- Kafka (delimiter: -) ---

// KafkaTagTopic returns the topic for tag values: {ns}[-{sel}]
func (b *Builder) KafkaTagTopic() string {
	return b.kafkaBase()
}

// KafkaCommsTopic returns the topic for liveness transitions: {ns}[-{sel}].comms
func (b *Builder) KafkaCommsTopic() string {
	return b.kafkaBase() + ".comms"
}

func (b *Builder) kafkaBase() string {
	if b.selector != "" {
		return b.namespace + "-" + b.selector
	}
	return b.namespace
}
