// Package pubsub publishes one Google Cloud Pub/Sub message per document.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/JakeFAU/confluence-collector/internal/collector"
)

// Message attribute keys.
const (
	AttrSpaceKey = "space_key"
	AttrRunID    = "run_id"
)

// Sink wraps a Pub/Sub topic.
type Sink struct {
	topic *pubsub.Topic
	runID string
}

// New creates a Sink for the provided topic.
func New(topic *pubsub.Topic, runID string) (*Sink, error) {
	if topic == nil {
		return nil, fmt.Errorf("pubsub topic is not configured")
	}
	return &Sink{topic: topic, runID: runID}, nil
}

// Write marshals doc to JSON, publishes it, and waits for the server ack.
func (s *Sink) Write(ctx context.Context, doc collector.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	result := s.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			AttrSpaceKey: doc.SpaceKey,
			AttrRunID:    s.runID,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Close flushes pending publishes and stops the topic's background goroutines.
func (s *Sink) Close(context.Context) error {
	s.topic.Stop()
	return nil
}
