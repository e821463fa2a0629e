package sink_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/confluence-collector/internal/collector"
	"github.com/JakeFAU/confluence-collector/internal/sink"
	"github.com/JakeFAU/confluence-collector/internal/sink/memory"
	"github.com/JakeFAU/confluence-collector/internal/sink/ndjson"
	"github.com/JakeFAU/confluence-collector/internal/spaces"
	"github.com/JakeFAU/confluence-collector/internal/wiki"
)

type staticID string

func (s staticID) NewID() (string, error) { return string(s), nil }

type brokenID struct{}

func (brokenID) NewID() (string, error) { return "", errors.New("entropy exhausted") }

type brokenResolver struct{}

func (brokenResolver) Resolve(context.Context) ([]string, error) {
	return nil, errors.New("no spaces")
}

// newWiki serves a single listing with the given page titles, all current.
func newWiki(t *testing.T, titles ...string) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rest/api/content" {
			results := make([]wiki.PageSummary, 0, len(titles))
			for _, title := range titles {
				results = append(results, wiki.PageSummary{Links: wiki.Links{Self: srv.URL + "/rest/api/content/" + title}})
			}
			_ = json.NewEncoder(w).Encode(wiki.PageList{Results: &results})
			return
		}
		title := strings.TrimPrefix(r.URL.Path, "/rest/api/content/")
		_ = json.NewEncoder(w).Encode(wiki.PageDetail{
			Title:  title,
			Status: wiki.StatusCurrent,
			Links:  wiki.Links{WebUI: "/display/ENG/" + title},
			Space:  wiki.Space{Key: "ENG", Name: "Engineering"},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newStream(t *testing.T, srv *httptest.Server, resolver spaces.Resolver) *collector.Stream {
	t.Helper()
	return newStreamWithIDs(t, srv, resolver, staticID("run"))
}

func newStreamWithIDs(t *testing.T, srv *httptest.Server, resolver spaces.Resolver, ids collector.IDGenerator) *collector.Stream {
	t.Helper()
	client, err := wiki.New(wiki.Config{BaseURL: srv.URL}, nil)
	require.NoError(t, err)
	c, err := collector.New(client, resolver, ids, collector.Config{BaseURL: srv.URL, Parallelism: 2}, nil)
	require.NoError(t, err)
	return c.Collect(context.Background())
}

// abortingSink records whether a run was committed or discarded.
type abortingSink struct {
	memory.Sink
	aborted bool
}

func (s *abortingSink) Abort(context.Context) error {
	s.aborted = true
	return nil
}

func fileOpener(path string, opened *int) sink.Opener {
	return func(context.Context, string) (sink.Sink, error) {
		*opened++
		return ndjson.Create(path)
	}
}

func TestDrainWritesEveryDocument(t *testing.T) {
	t.Parallel()

	srv := newWiki(t, "A", "B", "C")
	mem := memory.New()

	n, err := sink.Drain(context.Background(), newStream(t, srv, spaces.Static{"ENG"}), mem)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.True(t, mem.Closed())

	docs := mem.Documents()
	require.Len(t, docs, 3)
	require.Equal(t, "A", docs[0].Title)
	require.Equal(t, srv.URL+"/display/ENG/C", docs[2].Location)
}

func TestDrainStopsOnStreamError(t *testing.T) {
	t.Parallel()

	srv := newWiki(t, "A")
	mem := memory.New()

	n, err := sink.Drain(context.Background(), newStream(t, srv, brokenResolver{}), mem)
	require.ErrorContains(t, err, "no spaces")
	require.Zero(t, n)
	require.True(t, mem.Closed())
}

func TestDrainStopsOnWriteError(t *testing.T) {
	t.Parallel()

	srv := newWiki(t, "A", "B", "C")
	mem := &memory.Sink{FailAfter: 2}

	n, err := sink.Drain(context.Background(), newStream(t, srv, spaces.Static{"ENG"}), mem)
	var full memory.ErrFull
	require.ErrorAs(t, err, &full)
	require.Equal(t, 2, n)
	require.True(t, mem.Closed())
}

func TestDrainAbortsOnWriteError(t *testing.T) {
	t.Parallel()

	srv := newWiki(t, "A", "B")
	out := &abortingSink{Sink: memory.Sink{FailAfter: 1}}

	_, err := sink.Drain(context.Background(), newStream(t, srv, spaces.Static{"ENG"}), out)
	require.Error(t, err)
	require.True(t, out.aborted)
	require.False(t, out.Closed())
}

func TestRunWritesAndCommits(t *testing.T) {
	t.Parallel()

	srv := newWiki(t, "A", "B")
	path := filepath.Join(t.TempDir(), "docs.ndjson")
	opened := 0

	n, err := sink.Run(context.Background(), newStream(t, srv, spaces.Static{"ENG"}), fileOpener(path, &opened))
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 1, opened)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestRunFailedCollectionKeepsPreviousOutput(t *testing.T) {
	t.Parallel()

	srv := newWiki(t, "A", "B")
	path := filepath.Join(t.TempDir(), "docs.ndjson")
	opened := 0

	_, err := sink.Run(context.Background(), newStream(t, srv, spaces.Static{"ENG"}), fileOpener(path, &opened))
	require.NoError(t, err)
	good, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, good)

	n, err := sink.Run(context.Background(), newStream(t, srv, brokenResolver{}), fileOpener(path, &opened))
	require.ErrorContains(t, err, "resolve spaces: no spaces")
	require.Zero(t, n)
	require.Equal(t, 1, opened, "sink must not be opened for a run that failed up front")

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, good, after)
}

func TestRunReportsRunIDFailure(t *testing.T) {
	t.Parallel()

	srv := newWiki(t, "A")
	opened := 0
	open := func(context.Context, string) (sink.Sink, error) {
		opened++
		return memory.New(), nil
	}

	_, err := sink.Run(context.Background(), newStreamWithIDs(t, srv, spaces.Static{"ENG"}, brokenID{}), open)
	require.ErrorContains(t, err, "entropy exhausted")
	require.Zero(t, opened)
}

func TestRunOpenError(t *testing.T) {
	t.Parallel()

	srv := newWiki(t, "A")
	open := func(context.Context, string) (sink.Sink, error) {
		return nil, errors.New("bucket missing")
	}

	_, err := sink.Run(context.Background(), newStream(t, srv, spaces.Static{"ENG"}), open)
	require.ErrorContains(t, err, "open sink: bucket missing")
}

func TestRunEmptyCollectionStillCommits(t *testing.T) {
	t.Parallel()

	srv := newWiki(t)
	mem := memory.New()

	n, err := sink.Run(context.Background(), newStream(t, srv, spaces.Static{"ENG"}), func(context.Context, string) (sink.Sink, error) {
		return mem, nil
	})
	require.NoError(t, err)
	require.Zero(t, n)
	require.True(t, mem.Closed())
}
