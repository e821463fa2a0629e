package collector

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/confluence-collector/internal/wiki"
)

const contentPath = "/rest/api/content"

// fakeWiki serves content listings and page details from in-memory fixtures.
type fakeWiki struct {
	srv *httptest.Server

	mu sync.Mutex
	// listings maps a space key to its listing pages, each a list of page ids.
	listings map[string][][]string
	pages    map[string]wiki.PageDetail
	// listingRequests records listing request URIs in arrival order.
	listingRequests []string

	detailDelay   time.Duration
	detailFetches atomic.Int32
	inFlight      atomic.Int32
	peakInFlight  atomic.Int32
}

func newFakeWiki(t *testing.T) *fakeWiki {
	t.Helper()
	fw := &fakeWiki{
		listings: map[string][][]string{},
		pages:    map[string]wiki.PageDetail{},
	}
	fw.srv = httptest.NewServer(http.HandlerFunc(fw.serve))
	t.Cleanup(fw.srv.Close)
	return fw
}

func (fw *fakeWiki) client(t *testing.T) *wiki.Client {
	t.Helper()
	c, err := wiki.New(wiki.Config{BaseURL: fw.srv.URL, Username: "bot", Password: "pw"}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func (fw *fakeWiki) selfLink(id string) string {
	return fw.srv.URL + contentPath + "/" + id
}

func (fw *fakeWiki) addListing(space string, pages ...[]string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.listings[space] = pages
}

func (fw *fakeWiki) addPage(id string, page wiki.PageDetail) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.pages[id] = page
}

func (fw *fakeWiki) listingURIs() []string {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return append([]string(nil), fw.listingRequests...)
}

func (fw *fakeWiki) listingCount() int {
	return len(fw.listingURIs())
}

func (fw *fakeWiki) serve(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == contentPath:
		fw.serveListing(w, r)
	case strings.HasPrefix(r.URL.Path, contentPath+"/"):
		fw.serveDetail(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (fw *fakeWiki) serveListing(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	space := q.Get("spaceKey")
	start, _ := strconv.Atoi(q.Get("start"))

	fw.mu.Lock()
	fw.listingRequests = append(fw.listingRequests, r.URL.RequestURI())
	chunks, ok := fw.listings[space]
	fw.mu.Unlock()

	if !ok || start >= len(chunks) {
		writeJSON(w, map[string]any{"_links": map[string]string{}})
		return
	}
	results := make([]wiki.PageSummary, 0, len(chunks[start]))
	for _, id := range chunks[start] {
		results = append(results, wiki.PageSummary{
			Title:  id,
			Status: wiki.StatusCurrent,
			Links:  wiki.Links{Self: fw.selfLink(id)},
		})
	}
	links := wiki.Links{}
	if start+1 < len(chunks) {
		links.Next = fmt.Sprintf("%s?limit=1000&start=%d&status=current&spaceKey=%s", contentPath, start+1, space)
	}
	writeJSON(w, wiki.PageList{Results: &results, Links: links})
}

func (fw *fakeWiki) serveDetail(w http.ResponseWriter, r *http.Request) {
	fw.detailFetches.Add(1)
	n := fw.inFlight.Add(1)
	defer fw.inFlight.Add(-1)
	for {
		peak := fw.peakInFlight.Load()
		if n <= peak || fw.peakInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	if fw.detailDelay > 0 {
		time.Sleep(fw.detailDelay)
	}

	if r.URL.Query().Get("expand") != "body.storage,space,ancestors,version" {
		http.Error(w, "missing expand", http.StatusBadRequest)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, contentPath+"/")
	fw.mu.Lock()
	page, ok := fw.pages[id]
	fw.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, page)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func currentPage(title string, ancestors ...string) wiki.PageDetail {
	page := wiki.PageDetail{
		Title:  title,
		Status: wiki.StatusCurrent,
		Links:  wiki.Links{WebUI: "/display/ENG/" + title},
		Body:   wiki.Body{Storage: wiki.Storage{Value: "<p>" + title + " <b>body</b></p>"}},
		Version: wiki.Version{
			By:           wiki.User{PublicName: "Ada Lovelace"},
			When:         "2024-01-02T03:04:05.000Z",
			FriendlyWhen: "Jan 02, 2024",
		},
		Space: wiki.Space{Key: "ENG", Name: "Engineering", Links: wiki.Links{WebUI: "/spaces/ENG"}},
	}
	for _, a := range ancestors {
		page.Ancestors = append(page.Ancestors, wiki.Ancestor{
			Title: a,
			Links: wiki.Links{WebUI: "/display/ENG/" + a},
		})
	}
	return page
}
