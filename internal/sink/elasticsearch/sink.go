// Package elasticsearch indexes documents into an existing Elasticsearch index.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	es "github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"

	"github.com/JakeFAU/confluence-collector/internal/collector"
	"github.com/JakeFAU/confluence-collector/internal/hash/sha256"
)

// Config holds connection details. The index must already exist.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
}

// Sink indexes each document under the SHA-256 of its location.
type Sink struct {
	client *es.Client
	index  string
	logger *zap.Logger
}

// NewClient builds an Elasticsearch client from cfg.
func NewClient(cfg Config) (*es.Client, error) {
	client, err := es.NewClient(es.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return client, nil
}

// New wraps client.
func New(client *es.Client, index string, logger *zap.Logger) (*Sink, error) {
	if client == nil {
		return nil, errors.New("elasticsearch client is required")
	}
	if index == "" {
		return nil, errors.New("index name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{client: client, index: index, logger: logger.Named("elasticsearch")}, nil
}

// Write indexes doc, replacing any earlier version of the same page.
func (s *Sink) Write(ctx context.Context, doc collector.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	id := sha256.DocumentID(doc.Location)

	res, err := s.client.Index(
		s.index,
		bytes.NewReader(body),
		s.client.Index.WithContext(ctx),
		s.client.Index.WithDocumentID(id),
	)
	if err != nil {
		return fmt.Errorf("index document: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, res.Body)
		if cerr := res.Body.Close(); cerr != nil {
			s.logger.Debug("close response body", zap.Error(cerr))
		}
	}()

	if res.IsError() {
		s.logger.Warn("elasticsearch rejected document",
			zap.String("index", s.index),
			zap.String("doc_id", id),
			zap.String("response", res.String()),
		)
		return fmt.Errorf("elasticsearch error: %s", res.Status())
	}
	return nil
}

// Close is a no-op; the client holds no per-run resources.
func (s *Sink) Close(context.Context) error {
	return nil
}
