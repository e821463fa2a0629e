// Package config loads and validates collector configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

// Catalog provider names.
const (
	CatalogNone      = "none"
	CatalogBackstage = "backstage"
	CatalogPostgres  = "postgres"
)

// Sink provider names.
const (
	SinkStdout        = "stdout"
	SinkFile          = "file"
	SinkGCS           = "gcs"
	SinkPubSub        = "pubsub"
	SinkElasticsearch = "elasticsearch"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Wiki      WikiConfig      `mapstructure:"wiki"`
	Collector CollectorConfig `mapstructure:"collector"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Sink      SinkConfig      `mapstructure:"sink"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// WikiConfig points at the Confluence instance.
type WikiConfig struct {
	BaseURL           string   `mapstructure:"base_url"`
	Username          string   `mapstructure:"username"`
	Password          string   `mapstructure:"password"`
	Spaces            []string `mapstructure:"spaces"`
	RequestsPerSecond float64  `mapstructure:"requests_per_second"`
}

// CollectorConfig governs the fetch-and-transform pipeline.
type CollectorConfig struct {
	Parallelism      int `mapstructure:"parallelism"`
	MaxPagesPerSpace int `mapstructure:"max_pages_per_space"`
}

// CatalogConfig selects where dynamic space lists come from.
type CatalogConfig struct {
	Provider   string `mapstructure:"provider"`
	BaseURL    string `mapstructure:"base_url"`
	Token      string `mapstructure:"token"`
	Annotation string `mapstructure:"annotation"`
	DSN        string `mapstructure:"dsn"`
	Table      string `mapstructure:"table"`
}

// SinkConfig selects where the collect command writes documents.
type SinkConfig struct {
	Provider    string   `mapstructure:"provider"`
	Path        string   `mapstructure:"path"`
	GCSBucket   string   `mapstructure:"gcs_bucket"`
	Prefix      string   `mapstructure:"prefix"`
	ProjectID   string   `mapstructure:"project_id"`
	Topic       string   `mapstructure:"topic"`
	ESAddresses []string `mapstructure:"es_addresses"`
	ESIndex     string   `mapstructure:"es_index"`
	ESUsername  string   `mapstructure:"es_username"`
	ESPassword  string   `mapstructure:"es_password"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("COLLECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Wiki.BaseURL = strings.TrimRight(cfg.Wiki.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("wiki.base_url", "")
	v.SetDefault("wiki.username", "")
	v.SetDefault("wiki.password", "")
	v.SetDefault("wiki.spaces", []string{})
	v.SetDefault("wiki.requests_per_second", 0)
	v.SetDefault("collector.parallelism", 15)
	v.SetDefault("collector.max_pages_per_space", 0)
	v.SetDefault("catalog.provider", CatalogNone)
	v.SetDefault("catalog.base_url", "")
	v.SetDefault("catalog.token", "")
	v.SetDefault("catalog.annotation", "confluence.atlassian.com/spaces")
	v.SetDefault("catalog.dsn", "")
	v.SetDefault("catalog.table", "catalog_entities")
	v.SetDefault("sink.provider", SinkStdout)
	v.SetDefault("sink.path", "documents.ndjson")
	v.SetDefault("sink.gcs_bucket", "")
	v.SetDefault("sink.prefix", "confluence")
	v.SetDefault("sink.project_id", "")
	v.SetDefault("sink.topic", "")
	v.SetDefault("sink.es_addresses", []string{})
	v.SetDefault("sink.es_index", "")
	v.SetDefault("sink.es_username", "")
	v.SetDefault("sink.es_password", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Wiki.BaseURL == "" {
		return fmt.Errorf("wiki.base_url is required")
	}
	if u, err := url.Parse(c.Wiki.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("wiki.base_url must be an absolute URL")
	}
	if c.Wiki.RequestsPerSecond < 0 {
		return fmt.Errorf("wiki.requests_per_second must be >= 0")
	}
	if c.Collector.Parallelism <= 0 {
		return fmt.Errorf("collector.parallelism must be > 0")
	}
	if c.Collector.MaxPagesPerSpace < 0 {
		return fmt.Errorf("collector.max_pages_per_space must be >= 0")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if err := c.Catalog.validate(); err != nil {
		return err
	}
	return c.Sink.validate()
}

func (c CatalogConfig) validate() error {
	switch c.Provider {
	case "", CatalogNone:
		return nil
	case CatalogBackstage:
		if c.BaseURL == "" {
			return fmt.Errorf("catalog.base_url is required for the backstage catalog")
		}
	case CatalogPostgres:
		if c.DSN == "" {
			return fmt.Errorf("catalog.dsn is required for the postgres catalog")
		}
	default:
		return fmt.Errorf("unknown catalog.provider %q", c.Provider)
	}
	if c.Annotation == "" {
		return fmt.Errorf("catalog.annotation must be set when a catalog is configured")
	}
	return nil
}

func (c SinkConfig) validate() error {
	switch c.Provider {
	case "", SinkStdout:
	case SinkFile:
		if c.Path == "" {
			return fmt.Errorf("sink.path is required for the file sink")
		}
	case SinkGCS:
		if c.GCSBucket == "" {
			return fmt.Errorf("sink.gcs_bucket is required for the gcs sink")
		}
	case SinkPubSub:
		if c.ProjectID == "" || c.Topic == "" {
			return fmt.Errorf("sink.project_id and sink.topic are required for the pubsub sink")
		}
	case SinkElasticsearch:
		if len(c.ESAddresses) == 0 || c.ESIndex == "" {
			return fmt.Errorf("sink.es_addresses and sink.es_index are required for the elasticsearch sink")
		}
	default:
		return fmt.Errorf("unknown sink.provider %q", c.Provider)
	}
	return nil
}

// UsesCatalog reports whether space resolution should query a catalog.
func (c Config) UsesCatalog() bool {
	return c.Catalog.Provider != "" && c.Catalog.Provider != CatalogNone
}
