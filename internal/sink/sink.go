// Package sink delivers collected documents to their destination.
package sink

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/JakeFAU/confluence-collector/internal/collector"
)

// Sink accepts documents one at a time.
type Sink interface {
	Write(ctx context.Context, doc collector.Document) error
	Close(ctx context.Context) error
}

// Aborter is implemented by sinks that can discard a partial run instead of
// committing it.
type Aborter interface {
	Abort(ctx context.Context) error
}

// Opener opens the sink for one run.
type Opener func(ctx context.Context, runID string) (Sink, error)

// Run pulls the first result from stream before opening the sink, so a run
// that fails up front never touches the destination. The opened sink is then
// drained as Drain does.
func Run(ctx context.Context, stream *collector.Stream, open Opener) (int, error) {
	next, stop := iter.Pull2(stream.Documents())
	defer stop()

	first, err, ok := next()
	if err != nil {
		return 0, err
	}
	s, err := open(ctx, stream.RunID())
	if err != nil {
		return 0, fmt.Errorf("open sink: %w", err)
	}

	rest := func(yield func(collector.Document, error) bool) {
		for doc, derr, more := first, error(nil), ok; more; doc, derr, more = next() {
			if !yield(doc, derr) {
				return
			}
		}
	}
	return drain(ctx, rest, s)
}

// Drain writes every document of stream into s. It stops at the first stream
// or write error and returns how many documents were written. On success s is
// closed; on failure it is aborted when it implements Aborter, and closed
// otherwise.
func Drain(ctx context.Context, stream *collector.Stream, s Sink) (int, error) {
	return drain(ctx, stream.Documents(), s)
}

func drain(ctx context.Context, docs iter.Seq2[collector.Document, error], s Sink) (written int, err error) {
	defer func() {
		if err != nil {
			if aerr := abort(ctx, s); aerr != nil {
				err = errors.Join(err, fmt.Errorf("abort sink: %w", aerr))
			}
			return
		}
		if cerr := s.Close(ctx); cerr != nil {
			err = fmt.Errorf("close sink: %w", cerr)
		}
	}()

	for doc, serr := range docs {
		if serr != nil {
			return written, serr
		}
		if werr := s.Write(ctx, doc); werr != nil {
			return written, fmt.Errorf("write document %s: %w", doc.Location, werr)
		}
		written++
	}
	return written, nil
}

func abort(ctx context.Context, s Sink) error {
	if a, ok := s.(Aborter); ok {
		return a.Abort(ctx)
	}
	return s.Close(ctx)
}
