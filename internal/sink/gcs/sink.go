// Package gcs uploads a run's documents as one NDJSON object in Google Cloud Storage.
package gcs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/confluence-collector/internal/collector"
	"github.com/JakeFAU/confluence-collector/internal/sink/ndjson"
)

// Config captures the parameters required to place the object.
type Config struct {
	Bucket string
	Prefix string
	RunID  string
}

// Opener starts an object upload. Bytes written become the object once the
// returned writer is closed.
type Opener func(ctx context.Context, bucket, object, contentType string) io.WriteCloser

// StorageOpener uploads through a GCS client.
func StorageOpener(client *storage.Client) Opener {
	return func(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
		w := client.Bucket(bucket).Object(object).NewWriter(ctx)
		w.ContentType = contentType
		return w
	}
}

// Sink streams documents into a single object named {prefix}/{run_id}.ndjson.
type Sink struct {
	mu     sync.Mutex
	writer io.WriteCloser
	cancel context.CancelFunc
	enc    *json.Encoder
	bucket string
	object string
}

// New opens the upload. The ctx bounds the whole upload, not just this call.
func New(ctx context.Context, open Opener, cfg Config) (*Sink, error) {
	if open == nil {
		return nil, fmt.Errorf("object opener is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		return nil, fmt.Errorf("run id is required")
	}
	object := path.Join(cfg.Prefix, cfg.RunID+".ndjson")
	uploadCtx, cancel := context.WithCancel(ctx)
	w := open(uploadCtx, cfg.Bucket, object, ndjson.ContentType)
	return &Sink{
		writer: w,
		cancel: cancel,
		enc:    json.NewEncoder(w),
		bucket: cfg.Bucket,
		object: object,
	}, nil
}

// URI returns the gs:// location of the object.
func (s *Sink) URI() string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, s.object)
}

// Write appends doc to the object.
func (s *Sink) Write(_ context.Context, doc collector.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(doc); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return nil
}

// Close finalizes the upload.
func (s *Sink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.cancel()
	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

// Abort cancels the upload so no object is created. The writer's resulting
// cancellation error is expected and dropped.
func (s *Sink) Abort(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
	_ = s.writer.Close()
	return nil
}
