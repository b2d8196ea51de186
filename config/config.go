// Package config handles configuration persistence for the taglink gateway.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	Namespace string        `yaml:"namespace"` // Instance namespace for topic/key isolation
	Branding  string        `yaml:"branding,omitempty"`
	Version   string        `yaml:"version,omitempty"`
	PollRate  time.Duration `yaml:"poll_rate"`

	Layout LayoutConfig   `yaml:"layout"`
	Source SourceConfig   `yaml:"source"`
	Engine EngineConfig   `yaml:"engine"`
	Web    WebConfig      `yaml:"web"`
	MQTT   []MQTTConfig   `yaml:"mqtt,omitempty"`
	Valkey []ValkeyConfig `yaml:"valkey,omitempty"`
	Kafka  []KafkaConfig  `yaml:"kafka,omitempty"`
	Notify []NotifyConfig `yaml:"notify,omitempty"`
}

// LayoutConfig locates the static layout and template definitions.
type LayoutConfig struct {
	Path          string   `yaml:"path"`           // Layout JSON file (pages, branding)
	TemplatesPath string   `yaml:"templates_path"` // Tag template table JSON file
	TagPrefixes   []string `yaml:"tag_prefixes,omitempty"`
	TranslateMark string   `yaml:"translate_mark,omitempty"` // Translation-key prefix, skipped during collection
}

// SourceConfig selects and configures the upstream data source.
type SourceConfig struct {
	Kind    string        `yaml:"kind"` // "http" or "sim"
	URL     string        `yaml:"url,omitempty"`
	Token   string        `yaml:"token,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// EngineConfig holds poll loop and liveness tuning.
type EngineConfig struct {
	KeepaliveInterval  time.Duration `yaml:"keepalive_interval,omitempty"`
	LivenessMultiplier int           `yaml:"liveness_multiplier,omitempty"`
}

// WebConfig holds HTTP server configuration.
type WebConfig struct {
	Enabled bool       `yaml:"enabled"`
	Host    string     `yaml:"host"`
	Port    int        `yaml:"port"`
	Auth    AuthConfig `yaml:"auth"`
}

// AuthConfig holds bearer-token authentication settings.
type AuthConfig struct {
	Enabled   bool       `yaml:"enabled"`
	JWTSecret string     `yaml:"jwt_secret,omitempty"`
	Tokens    []APIToken `yaml:"tokens,omitempty"`
}

// APIToken is a named static bearer token. The token value is stored as a
// bcrypt hash; the plaintext is never persisted.
type APIToken struct {
	Name string `yaml:"name"`
	Hash string `yaml:"hash"` // bcrypt
}

// MQTTConfig holds MQTT republisher configuration.
type MQTTConfig struct {
	Name     string `yaml:"name"`
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	ClientID string `yaml:"client_id"`
	Selector string `yaml:"selector,omitempty"` // Optional sub-namespace
	UseTLS   bool   `yaml:"use_tls,omitempty"`
}

// ValkeyConfig holds Valkey/Redis republisher configuration.
type ValkeyConfig struct {
	Name     string        `yaml:"name"`
	Enabled  bool          `yaml:"enabled"`
	Address  string        `yaml:"address"`
	Password string        `yaml:"password,omitempty"`
	Database int           `yaml:"database,omitempty"`
	Selector string        `yaml:"selector,omitempty"`
	UseTLS   bool          `yaml:"use_tls,omitempty"`
	KeyTTL   time.Duration `yaml:"key_ttl,omitempty"`
}

// KafkaConfig holds Kafka republisher configuration.
type KafkaConfig struct {
	Name          string        `yaml:"name"`
	Enabled       bool          `yaml:"enabled"`
	Brokers       []string      `yaml:"brokers"`
	Topic         string        `yaml:"topic,omitempty"` // Overrides namespace-derived topic
	UseTLS        bool          `yaml:"use_tls,omitempty"`
	TLSSkipVerify bool          `yaml:"tls_skip_verify,omitempty"`
	SASLMechanism string        `yaml:"sasl_mechanism,omitempty"` // "", "plain", "scram-sha-256", "scram-sha-512"
	Username      string        `yaml:"username,omitempty"`
	Password      string        `yaml:"password,omitempty"`
	RequiredAcks  int           `yaml:"required_acks,omitempty"`
	MaxRetries    int           `yaml:"max_retries,omitempty"`
	RetryBackoff  time.Duration `yaml:"retry_backoff,omitempty"`
}

// NotifyConfig holds webhook notification configuration for comms transitions.
type NotifyConfig struct {
	Name        string            `yaml:"name"`
	Enabled     bool              `yaml:"enabled"`
	URL         string            `yaml:"url"`
	Method      string            `yaml:"method,omitempty"`
	ContentType string            `yaml:"content_type,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	BearerToken string            `yaml:"bearer_token,omitempty"`
	OnRestore   bool              `yaml:"on_restore,omitempty"` // Also fire when comms recover
	Cooldown    time.Duration     `yaml:"cooldown,omitempty"`
	Timeout     time.Duration     `yaml:"timeout,omitempty"`
}

// Default tag-name prefixes recognized during layout collection.
var DefaultTagPrefixes = []string{"TOHMI_", "Recipe_"}

// DefaultTranslateMark is the prefix marking translation keys, which are
// never tag references.
const DefaultTranslateMark = "$"

// DefaultConfig returns a config populated with sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Namespace: "taglink",
		PollRate:  250 * time.Millisecond,
		Layout: LayoutConfig{
			Path:          "layout.json",
			TemplatesPath: "templates.json",
			TagPrefixes:   append([]string{}, DefaultTagPrefixes...),
			TranslateMark: DefaultTranslateMark,
		},
		Source: SourceConfig{
			Kind:    "sim",
			Timeout: 2 * time.Second,
		},
		Engine: EngineConfig{
			KeepaliveInterval:  3 * time.Second,
			LivenessMultiplier: 6,
		},
		Web: WebConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".taglink", "config.yaml")
}

// Load reads configuration from the given path. A missing file yields
// defaults rather than an error so a fresh install can start cleanly.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults fills zero-valued fields that have non-zero defaults.
// Needed after unmarshal, which overwrites the DefaultConfig seed values.
func (c *Config) applyDefaults() {
	if c.PollRate <= 0 {
		c.PollRate = 250 * time.Millisecond
	}
	if c.Engine.KeepaliveInterval <= 0 {
		c.Engine.KeepaliveInterval = 3 * time.Second
	}
	if c.Engine.LivenessMultiplier <= 0 {
		c.Engine.LivenessMultiplier = 6
	}
	if len(c.Layout.TagPrefixes) == 0 {
		c.Layout.TagPrefixes = append([]string{}, DefaultTagPrefixes...)
	}
	if c.Layout.TranslateMark == "" {
		c.Layout.TranslateMark = DefaultTranslateMark
	}
	if c.Source.Timeout <= 0 {
		c.Source.Timeout = 2 * time.Second
	}
}

// Save writes the configuration to the given path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks configuration invariants that would break the running
// gateway if left uncaught.
func (c *Config) Validate() error {
	if c.Namespace != "" && !IsValidNamespace(c.Namespace) {
		return fmt.Errorf("invalid namespace: must contain only alphanumeric characters, hyphens, underscores, and dots")
	}
	if c.Source.Kind == "http" && c.Source.URL == "" {
		return fmt.Errorf("source: http source requires a url")
	}
	if c.Web.Auth.Enabled && c.Web.Auth.JWTSecret == "" && len(c.Web.Auth.Tokens) == 0 {
		return fmt.Errorf("web: auth enabled but no jwt_secret or tokens configured")
	}
	return nil
}

// IsValidNamespace returns true if the namespace is valid.
// Valid namespaces contain only alphanumeric characters, hyphens,
// underscores, and dots.
func IsValidNamespace(ns string) bool {
	if ns == "" {
		return false
	}
	for _, r := range ns {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.') {
			return false
		}
	}
	return true
}

// FindMQTT returns the MQTT config with the given name, or nil if not found.
func (c *Config) FindMQTT(name string) *MQTTConfig {
	for i := range c.MQTT {
		if c.MQTT[i].Name == name {
			return &c.MQTT[i]
		}
	}
	return nil
}

// FindValkey returns the Valkey config with the given name, or nil if not found.
func (c *Config) FindValkey(name string) *ValkeyConfig {
	for i := range c.Valkey {
		if c.Valkey[i].Name == name {
			return &c.Valkey[i]
		}
	}
	return nil
}

// FindKafka returns the Kafka config with the given name, or nil if not found.
func (c *Config) FindKafka(name string) *KafkaConfig {
	for i := range c.Kafka {
		if c.Kafka[i].Name == name {
			return &c.Kafka[i]
		}
	}
	return nil
}
