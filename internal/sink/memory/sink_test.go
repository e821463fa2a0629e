package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/JakeFAU/confluence-collector/internal/collector"
)

func TestSinkStoresDocuments(t *testing.T) {
	t.Parallel()

	s := New()
	if err := s.Write(context.Background(), collector.Document{Title: "a"}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := s.Write(context.Background(), collector.Document{Title: "b"}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	docs := s.Documents()
	if len(docs) != 2 || docs[0].Title != "a" || docs[1].Title != "b" {
		t.Fatalf("documents not recorded in order: %+v", docs)
	}
	docs[0].Title = "modified"
	if s.Documents()[0].Title == "modified" {
		t.Fatal("expected Documents() to return a copy")
	}

	if s.Closed() {
		t.Fatal("sink should not be closed yet")
	}
	_ = s.Close(context.Background())
	if !s.Closed() {
		t.Fatal("expected sink to be closed")
	}
}

func TestSinkFailAfter(t *testing.T) {
	t.Parallel()

	s := &Sink{FailAfter: 1}
	if err := s.Write(context.Background(), collector.Document{}); err != nil {
		t.Fatalf("first Write() error = %v", err)
	}
	err := s.Write(context.Background(), collector.Document{})
	var full ErrFull
	if !errors.As(err, &full) || full.Limit != 1 {
		t.Fatalf("expected ErrFull, got %v", err)
	}
}
