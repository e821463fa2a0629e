// Package memory contains an in-memory sink for tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/confluence-collector/internal/collector"
)

// Sink stores written documents for inspection.
type Sink struct {
	mu     sync.RWMutex
	docs   []collector.Document
	closed bool
	// FailAfter makes Write fail once this many documents are stored. Zero disables it.
	FailAfter int
}

// ErrFull is returned by Write when FailAfter is reached.
type ErrFull struct{ Limit int }

func (e ErrFull) Error() string {
	return fmt.Sprintf("memory sink full after %d documents", e.Limit)
}

// New returns a memory Sink.
func New() *Sink {
	return &Sink{}
}

// Write records the document.
func (s *Sink) Write(_ context.Context, doc collector.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAfter > 0 && len(s.docs) >= s.FailAfter {
		return ErrFull{Limit: s.FailAfter}
	}
	s.docs = append(s.docs, doc)
	return nil
}

// Close marks the sink closed.
func (s *Sink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Documents returns a copy of the recorded documents.
func (s *Sink) Documents() []collector.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]collector.Document, len(s.docs))
	copy(out, s.docs)
	return out
}

// Closed reports whether Close was called.
func (s *Sink) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
