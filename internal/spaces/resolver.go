// Package spaces decides which wiki spaces a collection run crawls.
package spaces

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/confluence-collector/internal/catalog"
)

// Resolver produces the ordered list of space keys to crawl.
type Resolver interface {
	Resolve(ctx context.Context) ([]string, error)
}

// New picks the resolver variant: catalog-derived when client is non-nil,
// otherwise the static list.
func New(static []string, client catalog.Client, annotationKey string, logger *zap.Logger) Resolver {
	if client == nil {
		return Static(static)
	}
	return NewFromCatalog(client, annotationKey, logger)
}

// Static is a fixed list of space keys returned verbatim.
type Static []string

// Resolve returns a copy of the configured keys.
func (s Static) Resolve(context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}

// FromCatalog derives space keys from annotated catalog resources.
type FromCatalog struct {
	client        catalog.Client
	annotationKey string
	logger        *zap.Logger
}

// NewFromCatalog builds a catalog-backed resolver.
func NewFromCatalog(client catalog.Client, annotationKey string, logger *zap.Logger) *FromCatalog {
	return &FromCatalog{client: client, annotationKey: annotationKey, logger: logger}
}

// Resolve splits each matching entity's annotation on commas and concatenates the
// trimmed tokens in entity order. Duplicates are kept.
func (r *FromCatalog) Resolve(ctx context.Context) ([]string, error) {
	logger := r.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	entities, err := r.client.Entities(ctx, catalog.SpacesFilter(r.annotationKey))
	if err != nil {
		return nil, fmt.Errorf("list confluence space resources: %w", err)
	}
	logger.Info("found catalog resources with confluence spaces",
		zap.Int("entities", len(entities)),
		zap.String("annotation", r.annotationKey),
	)

	var keys []string
	for _, entity := range entities {
		value, ok := entity.Metadata.Annotations[r.annotationKey]
		if !ok {
			continue
		}
		keys = append(keys, splitKeys(value)...)
	}
	logger.Debug("resolved spaces from catalog", zap.Strings("spaces", keys))
	return keys, nil
}

func splitKeys(value string) []string {
	var out []string
	for _, token := range strings.Split(value, ",") {
		if token = strings.TrimSpace(token); token != "" {
			out = append(out, token)
		}
	}
	return out
}
