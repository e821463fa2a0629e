package collector

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/JakeFAU/confluence-collector/internal/wiki"
)

const pageListLimit = 1000

// Enumerator lists the self links of every current page in a space.
type Enumerator struct {
	fetcher  Fetcher
	baseURL  string
	maxPages int
	logger   *zap.Logger
}

// NewEnumerator builds an Enumerator. maxPages bounds how many listing pages are
// followed per space; zero means unbounded.
func NewEnumerator(fetcher Fetcher, baseURL string, maxPages int, logger *zap.Logger) *Enumerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enumerator{
		fetcher:  fetcher,
		baseURL:  baseURL,
		maxPages: maxPages,
		logger:   logger,
	}
}

func (e *Enumerator) firstPageURL(spaceKey string) string {
	return fmt.Sprintf("%s/rest/api/content?limit=%d&status=current&spaceKey=%s",
		e.baseURL, pageListLimit, url.QueryEscape(spaceKey))
}

// Space follows the listing's next links until the wiki stops returning
// results, collecting each page's self link in API order.
func (e *Enumerator) Space(ctx context.Context, spaceKey string) ([]string, error) {
	var refs []string
	next := e.firstPageURL(spaceKey)
	for fetched := 0; next != ""; fetched++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("enumerate space %s: %w", spaceKey, err)
		}
		if e.maxPages > 0 && fetched >= e.maxPages {
			e.logger.Warn("page listing bound reached, stopping space early",
				zap.String("space", spaceKey),
				zap.Int("max_pages", e.maxPages),
				zap.Int("pages", len(refs)),
			)
			break
		}

		var list wiki.PageList
		if err := e.fetcher.GetJSON(ctx, next, &list); err != nil {
			return nil, fmt.Errorf("list pages in space %s: %w", spaceKey, err)
		}
		if list.Results == nil {
			break
		}
		for _, page := range *list.Results {
			refs = append(refs, page.Links.Self)
		}

		next = ""
		if list.Links.Next != "" {
			next = e.baseURL + list.Links.Next
		}
	}
	e.logger.Debug("enumerated space", zap.String("space", spaceKey), zap.Int("pages", len(refs)))
	return refs, nil
}

// All enumerates spaces one after another and concatenates their references.
func (e *Enumerator) All(ctx context.Context, spaceKeys []string) ([]string, error) {
	var refs []string
	for _, key := range spaceKeys {
		spaceRefs, err := e.Space(ctx, key)
		if err != nil {
			return nil, err
		}
		refs = append(refs, spaceRefs...)
	}
	return refs, nil
}
