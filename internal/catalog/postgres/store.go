// Package postgres serves catalog lookups from a Postgres entity table.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/confluence-collector/internal/catalog"
)

var _ catalog.Client = (*Store)(nil)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for catalog lookups.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type queryCloser interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Store reads entities from a table shaped like
//
//	CREATE TABLE catalog_entities (
//		kind        text  NOT NULL,
//		spec_type   text  NOT NULL,
//		name        text  NOT NULL,
//		annotations jsonb NOT NULL DEFAULT '{}'
//	);
type Store struct {
	pool  queryCloser
	table string
}

// New connects a pool using cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("catalog.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool queryCloser, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = "catalog_entities"
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Entities returns matching entities ordered by name. Only the filtered
// annotation is loaded into each entity's metadata.
func (s *Store) Entities(ctx context.Context, filter catalog.Filter) ([]catalog.Entity, error) {
	if filter.AnnotationKey == "" {
		return nil, fmt.Errorf("annotation key is required")
	}
	query := fmt.Sprintf(`
SELECT name, annotations ->> $3::text
FROM %s
WHERE kind = $1
  AND spec_type = $2
  AND annotations ->> $3::text IS NOT NULL
ORDER BY name`, s.table)

	rows, err := s.pool.Query(ctx, query, filter.Kind, filter.SpecType, filter.AnnotationKey)
	if err != nil {
		return nil, fmt.Errorf("query catalog entities: %w", err)
	}
	defer rows.Close()

	var entities []catalog.Entity
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan catalog entity: %w", err)
		}
		entities = append(entities, catalog.Entity{
			Kind: filter.Kind,
			Metadata: catalog.Metadata{
				Name:        name,
				Annotations: map[string]string{filter.AnnotationKey: value},
			},
			Spec: catalog.Spec{Type: filter.SpecType},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog entities: %w", err)
	}
	return entities, nil
}
