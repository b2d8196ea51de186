// Taglink - live-tag HMI distribution gateway
//
// Polls an upstream data provider for tag values, resolves display metadata
// through a template registry, and streams value deltas and liveness events
// to connected clients over SSE, MQTT, Valkey, and Kafka.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"taglink/config"
	"taglink/engine"
	"taglink/kafka"
	"taglink/logging"
	"taglink/metric"
	"taglink/mqtt"
	"taglink/namespace"
	"taglink/notify"
	"taglink/registry"
	"taglink/source"
	"taglink/stream"
	"taglink/valkey"
	"taglink/web"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Path to configuration file")
	logPath := flag.String("log", "", "Path to application log file (empty = stdout only)")
	debugLog := flag.String("debug-log", "", "Path to debug log file (empty = disabled)")
	debugFilter := flag.String("debug-filter", "", "Comma-separated subsystem filter for debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("taglink %s\n", Version)
		os.Exit(0)
	}

	if *debugLog != "" {
		logger, err := logging.NewDebugLogger(*debugLog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening debug log: %v\n", err)
			os.Exit(1)
		}
		logger.SetFilter(*debugFilter)
		logging.SetGlobalDebugLogger(logger)
		defer logger.Close()
	}

	var appLog *logging.FileLogger
	if *logPath != "" {
		fl, err := logging.NewFileLogger(*logPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		appLog = fl
		defer appLog.Close()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Version == "" {
		cfg.Version = Version
	}

	// Build the registry once at startup. A broken layout degrades to an
	// empty registry so the gateway still serves status and auth.
	reg, layout := buildRegistry(cfg)

	src := newSource(cfg, reg)

	metrics := metric.NewMetrics()
	metrics.RegistryTags.Set(float64(len(reg.Tags)))

	eng := engine.New(cfg, reg, src)
	eng.SetMetrics(metrics)

	wireRepublishers(cfg, eng)

	server := web.NewServer(cfg, eng, layout, metrics)

	eng.Start()
	if cfg.Web.Enabled {
		if err := server.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting web server: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("taglink %s serving %d tags on %s\n", Version, len(reg.Tags), server.Address())
	}
	if appLog != nil {
		appLog.Log("taglink %s started: %d tags, poll %v", Version, len(reg.Tags), cfg.PollRate)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	fmt.Println("shutting down")
	server.Stop()
	eng.Stop()
	if appLog != nil {
		appLog.Log("taglink stopped")
	}
}

// buildRegistry loads layout and templates and builds the tag registry.
func buildRegistry(cfg *config.Config) (*registry.Registry, map[string]interface{}) {
	layout, err := registry.LoadLayout(cfg.Layout.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: layout unavailable (%v), starting with empty registry\n", err)
		return registry.Empty(), nil
	}

	templates, err := registry.LoadTemplates(cfg.Layout.TemplatesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: templates unavailable (%v), using fallback metadata\n", err)
		templates = nil
	}

	resolver := registry.NewResolver(templates)
	builder := registry.NewBuilder(resolver, cfg.Layout.TagPrefixes, cfg.Layout.TranslateMark)
	return builder.Build(layout), layout
}

// newSource creates the configured upstream data source.
func newSource(cfg *config.Config, reg *registry.Registry) source.Source {
	switch cfg.Source.Kind {
	case "http":
		return source.NewHTTPSource(&cfg.Source)
	default:
		return source.NewSimSource(reg.Tags, "")
	}
}

// wireRepublishers connects enabled MQTT, Valkey, Kafka, and webhook
// republishers to the engine's change and comms listeners. Each service runs
// its sends in its own goroutine so one slow broker cannot stall the others
// or the poll loop.
func wireRepublishers(cfg *config.Config, eng *engine.Engine) {
	var mqttPubs []*mqtt.Publisher
	var valkeyPubs []*valkey.Publisher
	var kafkaProds []*kafka.Producer
	var webhooks []*notify.Webhook

	for i := range cfg.MQTT {
		mc := &cfg.MQTT[i]
		if !mc.Enabled {
			continue
		}
		pub := mqtt.NewPublisher(mc, namespace.New(cfg.Namespace, mc.Selector))
		if err := pub.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: MQTT %s: %v\n", mc.Name, err)
		}
		mqttPubs = append(mqttPubs, pub)
	}

	for i := range cfg.Valkey {
		vc := &cfg.Valkey[i]
		if !vc.Enabled {
			continue
		}
		pub := valkey.NewPublisher(vc, namespace.New(cfg.Namespace, vc.Selector))
		if err := pub.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Valkey %s: %v\n", vc.Name, err)
		}
		valkeyPubs = append(valkeyPubs, pub)
	}

	for i := range cfg.Kafka {
		kc := &cfg.Kafka[i]
		if !kc.Enabled {
			continue
		}
		retryBackoff := kc.RetryBackoff
		if retryBackoff <= 0 {
			retryBackoff = 100 * time.Millisecond
		}
		prod := kafka.NewProducer(&kafka.Config{
			Name:          kc.Name,
			Enabled:       kc.Enabled,
			Brokers:       kc.Brokers,
			UseTLS:        kc.UseTLS,
			TLSSkipVerify: kc.TLSSkipVerify,
			SASLMechanism: kafka.SASLMechanism(strings.ToUpper(kc.SASLMechanism)),
			Username:      kc.Username,
			Password:      kc.Password,
			RequiredAcks:  kc.RequiredAcks,
			MaxRetries:    kc.MaxRetries,
			RetryBackoff:  retryBackoff,
			Topic:         kc.Topic,
		}, namespace.New(cfg.Namespace, ""))
		if err := prod.Connect(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Kafka %s: %v\n", kc.Name, err)
		}
		kafkaProds = append(kafkaProds, prod)
	}

	for i := range cfg.Notify {
		nc := &cfg.Notify[i]
		if !nc.Enabled {
			continue
		}
		webhooks = append(webhooks, notify.NewWebhook(nc))
	}

	if len(mqttPubs)+len(valkeyPubs)+len(kafkaProds) > 0 {
		eng.AddChangeListener(func(batch []stream.TagUpdate) {
			for _, pub := range mqttPubs {
				go pub.PublishBatch(batch)
			}
			for _, pub := range valkeyPubs {
				go pub.PublishBatch(batch)
			}
			for _, prod := range kafkaProds {
				go prod.PublishBatch(batch)
			}
		})
	}

	eng.AddCommsListener(func(comms stream.Comms) {
		for _, pub := range mqttPubs {
			go pub.PublishComms(comms)
		}
		for _, pub := range valkeyPubs {
			go pub.PublishComms(comms)
		}
		for _, prod := range kafkaProds {
			go prod.PublishComms(comms)
		}
		for _, hook := range webhooks {
			hook.OnComms(comms)
		}
	})
}
