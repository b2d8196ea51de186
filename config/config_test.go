package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Namespace != "taglink" {
		t.Errorf("namespace = %q", cfg.Namespace)
	}
	if cfg.PollRate != 250*time.Millisecond {
		t.Errorf("poll rate = %v", cfg.PollRate)
	}
	if cfg.Engine.KeepaliveInterval != 3*time.Second {
		t.Errorf("keepalive = %v", cfg.Engine.KeepaliveInterval)
	}
	if cfg.Engine.LivenessMultiplier != 6 {
		t.Errorf("liveness multiplier = %d", cfg.Engine.LivenessMultiplier)
	}
	if len(cfg.Layout.TagPrefixes) != 2 {
		t.Errorf("tag prefixes = %v", cfg.Layout.TagPrefixes)
	}
	if cfg.Layout.TranslateMark != "$" {
		t.Errorf("translate mark = %q", cfg.Layout.TranslateMark)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Namespace != "taglink" || cfg.PollRate != 250*time.Millisecond {
		t.Errorf("missing file did not yield defaults: %+v", cfg)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Namespace = "plant7"
	cfg.PollRate = 500 * time.Millisecond
	cfg.Source = SourceConfig{Kind: "http", URL: "http://plc:8080/api", Token: "secret"}
	cfg.MQTT = []MQTTConfig{{Name: "local", Enabled: true, Broker: "localhost", Port: 1883, ClientID: "taglink"}}

	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Namespace != "plant7" {
		t.Errorf("namespace = %q", loaded.Namespace)
	}
	if loaded.PollRate != 500*time.Millisecond {
		t.Errorf("poll rate = %v", loaded.PollRate)
	}
	if loaded.Source.URL != "http://plc:8080/api" {
		t.Errorf("source url = %q", loaded.Source.URL)
	}
	if m := loaded.FindMQTT("local"); m == nil || m.Broker != "localhost" {
		t.Errorf("mqtt config not preserved: %+v", m)
	}
}

func TestLoadAppliesDefaultsToSparseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	sparse := "namespace: plant7\nsource:\n  kind: sim\n"
	if err := os.WriteFile(path, []byte(sparse), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PollRate != 250*time.Millisecond {
		t.Errorf("poll rate not defaulted: %v", cfg.PollRate)
	}
	if cfg.Engine.LivenessMultiplier != 6 {
		t.Errorf("liveness multiplier not defaulted: %d", cfg.Engine.LivenessMultiplier)
	}
	if len(cfg.Layout.TagPrefixes) != 2 {
		t.Errorf("tag prefixes not defaulted: %v", cfg.Layout.TagPrefixes)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults ok", func(c *Config) {}, false},
		{"bad namespace", func(c *Config) { c.Namespace = "has space" }, true},
		{"http without url", func(c *Config) { c.Source.Kind = "http" }, true},
		{"http with url", func(c *Config) {
			c.Source.Kind = "http"
			c.Source.URL = "http://plc/api"
		}, false},
		{"auth without credentials", func(c *Config) { c.Web.Auth.Enabled = true }, true},
		{"auth with secret", func(c *Config) {
			c.Web.Auth.Enabled = true
			c.Web.Auth.JWTSecret = "s"
		}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestIsValidNamespace(t *testing.T) {
	valid := []string{"taglink", "plant-7", "line_2", "site.east", "A1"}
	invalid := []string{"", "has space", "slash/ns", "emoji🏭", "colon:ns"}

	for _, ns := range valid {
		if !IsValidNamespace(ns) {
			t.Errorf("IsValidNamespace(%q) = false", ns)
		}
	}
	for _, ns := range invalid {
		if IsValidNamespace(ns) {
			t.Errorf("IsValidNamespace(%q) = true", ns)
		}
	}
}

func TestFindByName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Valkey = []ValkeyConfig{{Name: "cache", Address: "localhost:6379"}}
	cfg.Kafka = []KafkaConfig{{Name: "events", Brokers: []string{"localhost:9092"}}}

	if v := cfg.FindValkey("cache"); v == nil || v.Address != "localhost:6379" {
		t.Errorf("FindValkey = %+v", v)
	}
	if cfg.FindValkey("absent") != nil {
		t.Error("FindValkey found a config that does not exist")
	}
	if k := cfg.FindKafka("events"); k == nil || len(k.Brokers) != 1 {
		t.Errorf("FindKafka = %+v", k)
	}
	if cfg.FindMQTT("absent") != nil {
		t.Error("FindMQTT found a config that does not exist")
	}
}
