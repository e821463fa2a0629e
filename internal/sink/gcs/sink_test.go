package gcs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/confluence-collector/internal/collector"
)

// fakeObject behaves like storage.Writer: closing it commits the object
// unless the upload context was canceled first.
type fakeObject struct {
	bytes.Buffer
	ctx                         context.Context
	bucket, object, contentType string
	closed, committed           bool
	closeErr                    error
}

func (o *fakeObject) Close() error {
	o.closed = true
	if err := o.ctx.Err(); err != nil {
		return err
	}
	if o.closeErr != nil {
		return o.closeErr
	}
	o.committed = true
	return nil
}

func fakeOpener(obj *fakeObject) Opener {
	return func(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
		obj.ctx, obj.bucket, obj.object, obj.contentType = ctx, bucket, object, contentType
		return obj
	}
}

func TestSinkUploadsRunObject(t *testing.T) {
	t.Parallel()

	obj := &fakeObject{}
	s, err := New(context.Background(), fakeOpener(obj), Config{Bucket: "docs", Prefix: "confluence", RunID: "run-42"})
	require.NoError(t, err)
	require.Equal(t, "gs://docs/confluence/run-42.ndjson", s.URI())

	require.NoError(t, s.Write(context.Background(), collector.Document{Title: "A"}))
	require.NoError(t, s.Write(context.Background(), collector.Document{Title: "B"}))
	require.NoError(t, s.Close(context.Background()))

	require.True(t, obj.committed)
	require.Equal(t, "docs", obj.bucket)
	require.Equal(t, "confluence/run-42.ndjson", obj.object)
	require.Equal(t, "application/x-ndjson", obj.contentType)
	lines := strings.Split(strings.TrimSpace(obj.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[1], `"title":"B"`)
}

func TestSinkWithoutPrefix(t *testing.T) {
	t.Parallel()

	obj := &fakeObject{}
	_, err := New(context.Background(), fakeOpener(obj), Config{Bucket: "docs", RunID: "r"})
	require.NoError(t, err)
	require.Equal(t, "r.ndjson", obj.object)
}

func TestSinkCloseError(t *testing.T) {
	t.Parallel()

	obj := &fakeObject{closeErr: errors.New("upload rejected")}
	s, err := New(context.Background(), fakeOpener(obj), Config{Bucket: "docs", RunID: "r"})
	require.NoError(t, err)
	require.ErrorContains(t, s.Close(context.Background()), "upload rejected")
	require.False(t, obj.committed)
}

func TestSinkAbortDoesNotCommit(t *testing.T) {
	t.Parallel()

	obj := &fakeObject{}
	s, err := New(context.Background(), fakeOpener(obj), Config{Bucket: "docs", RunID: "r"})
	require.NoError(t, err)
	require.NoError(t, s.Write(context.Background(), collector.Document{Title: "partial"}))

	require.NoError(t, s.Abort(context.Background()))
	require.True(t, obj.closed)
	require.False(t, obj.committed)
	require.ErrorIs(t, obj.ctx.Err(), context.Canceled)
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	open := fakeOpener(&fakeObject{})
	_, err := New(context.Background(), nil, Config{Bucket: "b", RunID: "r"})
	require.Error(t, err)
	_, err = New(context.Background(), open, Config{RunID: "r"})
	require.Error(t, err)
	_, err = New(context.Background(), open, Config{Bucket: "b", RunID: " "})
	require.Error(t, err)
}
