// Package app builds the long-lived services a collection run needs from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/confluence-collector/internal/catalog"
	"github.com/JakeFAU/confluence-collector/internal/catalog/backstage"
	"github.com/JakeFAU/confluence-collector/internal/catalog/postgres"
	"github.com/JakeFAU/confluence-collector/internal/collector"
	"github.com/JakeFAU/confluence-collector/internal/config"
	"github.com/JakeFAU/confluence-collector/internal/id/uuid"
	"github.com/JakeFAU/confluence-collector/internal/sink"
	"github.com/JakeFAU/confluence-collector/internal/sink/elasticsearch"
	"github.com/JakeFAU/confluence-collector/internal/sink/gcs"
	"github.com/JakeFAU/confluence-collector/internal/sink/ndjson"
	sinkpubsub "github.com/JakeFAU/confluence-collector/internal/sink/pubsub"
	"github.com/JakeFAU/confluence-collector/internal/spaces"
	"github.com/JakeFAU/confluence-collector/internal/wiki"
)

// App holds the shared services for one process.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	collector *collector.Collector
	closers   []func()

	// Stdout receives documents when the stdout sink is configured.
	Stdout io.Writer
}

// New wires the wiki client, space resolver and collector described by cfg.
// It fails fast when any of them cannot be built.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger, Stdout: os.Stdout}

	client, err := wiki.New(wiki.Config{
		BaseURL:           cfg.Wiki.BaseURL,
		Username:          cfg.Wiki.Username,
		Password:          cfg.Wiki.Password,
		RequestsPerSecond: cfg.Wiki.RequestsPerSecond,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init wiki client: %w", err)
	}

	catalogClient, err := a.newCatalog(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	resolver := spaces.New(cfg.Wiki.Spaces, catalogClient, cfg.Catalog.Annotation, logger)

	c, err := collector.New(client, resolver, uuid.NewGenerator(), collector.Config{
		BaseURL:          cfg.Wiki.BaseURL,
		Parallelism:      cfg.Collector.Parallelism,
		MaxPagesPerSpace: cfg.Collector.MaxPagesPerSpace,
	}, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init collector: %w", err)
	}
	a.collector = c
	return a, nil
}

// newCatalog returns nil when spaces come from the static list.
func (a *App) newCatalog(ctx context.Context) (catalog.Client, error) {
	cfg := a.cfg.Catalog
	switch cfg.Provider {
	case "", config.CatalogNone:
		a.logger.Info("using static space list", zap.Strings("spaces", a.cfg.Wiki.Spaces))
		return nil, nil
	case config.CatalogBackstage:
		a.logger.Info("resolving spaces from backstage catalog", zap.String("base_url", cfg.BaseURL))
		client, err := backstage.New(backstage.Config{BaseURL: cfg.BaseURL, Token: cfg.Token}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("init backstage catalog: %w", err)
		}
		return client, nil
	case config.CatalogPostgres:
		a.logger.Info("resolving spaces from postgres catalog", zap.String("table", cfg.Table))
		store, err := postgres.New(ctx, postgres.Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, fmt.Errorf("init postgres catalog: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown catalog provider: %s", cfg.Provider)
	}
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Collector returns the configured collector.
func (a *App) Collector() *collector.Collector {
	return a.collector
}

// OpenSink builds the configured sink for one run. Closing the sink also
// releases any client it opened.
func (a *App) OpenSink(ctx context.Context, runID string) (sink.Sink, error) {
	cfg := a.cfg.Sink
	switch cfg.Provider {
	case "", config.SinkStdout:
		return ndjson.New(a.Stdout), nil
	case config.SinkFile:
		a.logger.Info("writing documents to file", zap.String("path", cfg.Path))
		s, err := ndjson.Create(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.SinkGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		s, err := gcs.New(ctx, gcs.StorageOpener(client), gcs.Config{
			Bucket: cfg.GCSBucket,
			Prefix: cfg.Prefix,
			RunID:  runID,
		})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("init gcs sink: %w", err)
		}
		a.logger.Info("uploading documents to gcs", zap.String("uri", s.URI()))
		return withCleanup(s, client.Close), nil
	case config.SinkPubSub:
		client, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("create pubsub client: %w", err)
		}
		s, err := sinkpubsub.New(client.Topic(cfg.Topic), runID)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("init pubsub sink: %w", err)
		}
		a.logger.Info("publishing documents to pubsub", zap.String("topic", cfg.Topic))
		return withCleanup(s, client.Close), nil
	case config.SinkElasticsearch:
		client, err := elasticsearch.NewClient(elasticsearch.Config{
			Addresses: cfg.ESAddresses,
			Username:  cfg.ESUsername,
			Password:  cfg.ESPassword,
		})
		if err != nil {
			return nil, err
		}
		s, err := elasticsearch.New(client, cfg.ESIndex, a.logger)
		if err != nil {
			return nil, fmt.Errorf("init elasticsearch sink: %w", err)
		}
		a.logger.Info("indexing documents into elasticsearch", zap.String("index", cfg.ESIndex))
		return s, nil
	default:
		return nil, fmt.Errorf("unknown sink provider: %s", cfg.Provider)
	}
}

type cleanupSink struct {
	sink.Sink
	cleanup func() error
}

func withCleanup(s sink.Sink, cleanup func() error) sink.Sink {
	return cleanupSink{Sink: s, cleanup: cleanup}
}

func (c cleanupSink) Close(ctx context.Context) error {
	return errors.Join(c.Sink.Close(ctx), c.cleanup())
}

func (c cleanupSink) Abort(ctx context.Context) error {
	var err error
	if a, ok := c.Sink.(sink.Aborter); ok {
		err = a.Abort(ctx)
	} else {
		err = c.Sink.Close(ctx)
	}
	return errors.Join(err, c.cleanup())
}

// Close releases long-lived clients and flushes the logger.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	// Sync fails on non-file stderr; nothing useful to do with that.
	_ = a.logger.Sync()
}
