// Package ndjson writes documents as newline-delimited JSON.
package ndjson

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/JakeFAU/confluence-collector/internal/collector"
)

// ContentType is the media type of the output.
const ContentType = "application/x-ndjson"

// Sink encodes one JSON document per line.
type Sink struct {
	mu     sync.Mutex
	buf    *bufio.Writer
	enc    *json.Encoder
	dst    io.Writer
	file   *os.File
	// path is where the file lands once Close succeeds.
	path string
}

// New writes to w. Close flushes but never closes w.
func New(w io.Writer) *Sink {
	buf := bufio.NewWriter(w)
	return &Sink{buf: buf, enc: json.NewEncoder(buf), dst: w}
}

// Create writes to a temporary file next to path, creating parent directories
// as needed. Close renames it over path; Abort removes it and leaves any
// existing file at path untouched.
func Create(path string) (*Sink, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	if err := f.Chmod(0o644); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("chmod output file: %w", err)
	}
	s := New(f)
	s.file = f
	s.path = path
	return s, nil
}

// Write appends doc as one line. If the destination is an http.Flusher the
// line is flushed through immediately.
func (s *Sink) Write(_ context.Context, doc collector.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(doc); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if f, ok := s.dst.(http.Flusher); ok {
		if err := s.buf.Flush(); err != nil {
			return fmt.Errorf("flush document: %w", err)
		}
		f.Flush()
	}
	return nil
}

// WriteLine encodes an arbitrary value as one line, used for trailers such as
// error records.
func (s *Sink) WriteLine(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(v); err != nil {
		return fmt.Errorf("encode line: %w", err)
	}
	return nil
}

// Close flushes buffered output. For a sink from Create it also moves the
// finished file into place.
func (s *Sink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.buf.Flush(); err != nil {
		s.discard()
		return fmt.Errorf("flush output: %w", err)
	}
	if f, ok := s.dst.(http.Flusher); ok {
		f.Flush()
	}
	if s.file == nil {
		return nil
	}
	if err := s.file.Close(); err != nil {
		_ = os.Remove(s.file.Name())
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(s.file.Name(), s.path); err != nil {
		_ = os.Remove(s.file.Name())
		return fmt.Errorf("move output into place: %w", err)
	}
	return nil
}

// Abort drops a file sink's output. Lines already handed to a plain writer
// cannot be recalled, so those are flushed as Close would.
func (s *Sink) Abort(ctx context.Context) error {
	if s.file == nil {
		return s.Close(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discard()
	return nil
}

func (s *Sink) discard() {
	if s.file == nil {
		return
	}
	_ = s.file.Close()
	_ = os.Remove(s.file.Name())
}
