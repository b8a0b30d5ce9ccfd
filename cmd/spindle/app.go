package main

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/spindleai/spindle/pkg/chat"
	"github.com/spindleai/spindle/pkg/completion"
	"github.com/spindleai/spindle/pkg/config"
	"github.com/spindleai/spindle/pkg/dal"
	"github.com/spindleai/spindle/pkg/dal/postgres"
	sqlite "github.com/spindleai/spindle/pkg/dal/sqlite"
	"github.com/spindleai/spindle/pkg/publish"
	"github.com/spindleai/spindle/pkg/sweep"
)

// app holds the wired service for one command invocation.
type app struct {
	cfg          *config.Config
	store        dal.Repository
	orchestrator *chat.Orchestrator
	closers      []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("SPINDLE_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// openStore initializes the configured datastore implementation.
func openStore(ctx context.Context, cfg *config.Config) (dal.Repository, error) {
	switch cfg.Datastore {
	case "sqlite":
		return sqlite.New(cfg.DBPath)
	case "postgres":
		return postgres.Open(ctx, cfg.DatabaseURL)
	default:
		return nil, &config.ConfigurationError{Field: "datastore", Reason: fmt.Sprintf("unsupported datastore %q", cfg.Datastore)}
	}
}

// openPublisher returns a Pub/Sub exporter when a topic is configured and a
// no-op otherwise.
func openPublisher(ctx context.Context, cfg *config.Config) (publish.Publisher, func(), error) {
	if cfg.PubSub.Topic == "" {
		return publish.NoopPublisher{}, func() {}, nil
	}

	// Ensure emulator host is exported for the Pub/Sub client when running locally.
	if cfg.PubSub.EmulatorHost != "" {
		if err := os.Setenv("PUBSUB_EMULATOR_HOST", cfg.PubSub.EmulatorHost); err != nil {
			return nil, nil, fmt.Errorf("set emulator host: %w", err)
		}
	}

	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	topic := client.Topic(cfg.PubSub.Topic)
	exists, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("checking topic %q: %w", cfg.PubSub.Topic, err)
	}
	if !exists {
		client.Close()
		return nil, nil, fmt.Errorf("topic %q not found", cfg.PubSub.Topic)
	}

	pub := publish.NewPubSubPublisher(topic)
	return pub, func() {
		pub.Stop()
		client.Close()
	}, nil
}

// newApp validates cfg and wires storage, discovery, the completion fallback
// and the scan exporter into one Orchestrator.
func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, func() { _ = store.Close() })

	completer, err := completion.New(ctx, cfg.LLM)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("completion client: %w", err)
	}

	pub, stop, err := openPublisher(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, stop)

	adapter := sweep.NewAdapter(
		sweep.NewNmapDiscoverer(cfg.Scan.NmapPath, log.Named("nmap")),
		sweep.WithRangeTimeout(cfg.Scan.Timeout),
	)
	a.orchestrator = chat.NewOrchestrator(
		chat.Config{Ranges: cfg.Subnets, MaxConcurrentSweeps: cfg.Scan.MaxConcurrent},
		adapter,
		store,
		completion.NewFallback(completer, log.Named("completion")),
		pub,
		log.Named("chat"),
	)
	return a, nil
}
