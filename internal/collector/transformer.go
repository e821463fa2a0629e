package collector

import (
	"context"
	"fmt"

	"github.com/JakeFAU/confluence-collector/internal/wiki"
)

const detailExpand = "?expand=body.storage,space,ancestors,version"

// Transformer fetches a single page with its body and metadata and flattens it
// into a Document.
type Transformer struct {
	fetcher Fetcher
	baseURL string
}

// NewTransformer builds a Transformer that resolves relative links against baseURL.
func NewTransformer(fetcher Fetcher, baseURL string) *Transformer {
	return &Transformer{fetcher: fetcher, baseURL: baseURL}
}

// Page returns nil, nil when the page is not current.
func (t *Transformer) Page(ctx context.Context, selfURL string) (*Document, error) {
	var page wiki.PageDetail
	if err := t.fetcher.GetJSON(ctx, selfURL+detailExpand, &page); err != nil {
		return nil, fmt.Errorf("fetch page %s: %w", selfURL, err)
	}
	if page.Status != wiki.StatusCurrent {
		return nil, nil
	}

	ancestors := make([]Ancestor, 0, len(page.Ancestors)+1)
	ancestors = append(ancestors, Ancestor{
		Title:    page.Space.Name,
		Location: t.baseURL + page.Space.Links.WebUI,
	})
	for _, a := range page.Ancestors {
		ancestors = append(ancestors, Ancestor{
			Title:    a.Title,
			Location: t.baseURL + a.Links.WebUI,
		})
	}

	return &Document{
		Title:                page.Title,
		Text:                 StripTags(page.Body.Storage.Value),
		Location:             t.baseURL + page.Links.WebUI,
		SpaceKey:             page.Space.Key,
		SpaceName:            page.Space.Name,
		Ancestors:            ancestors,
		LastModifiedBy:       page.Version.By.PublicName,
		LastModified:         page.Version.When,
		LastModifiedFriendly: page.Version.FriendlyWhen,
	}, nil
}
