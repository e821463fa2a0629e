// Package collector turns wiki spaces into normalized search documents.
//
// A run resolves the target spaces, enumerates every current page in them,
// fetches and flattens each page with bounded parallelism, and hands the
// results to the caller as a lazy, single-pass Stream.
package collector

import (
	"context"
	"regexp"
)

// Ancestor is one step of a document's breadcrumb trail.
type Ancestor struct {
	Title    string `json:"title"`
	Location string `json:"location"`
}

// Document is the normalized record emitted for one wiki page.
type Document struct {
	Title                string     `json:"title"`
	Text                 string     `json:"text"`
	Location             string     `json:"location"`
	SpaceKey             string     `json:"space_key"`
	SpaceName            string     `json:"space_name"`
	Ancestors            []Ancestor `json:"ancestors"`
	LastModifiedBy       string     `json:"last_modified_by"`
	LastModified         string     `json:"last_modified"`
	LastModifiedFriendly string     `json:"last_modified_friendly"`
}

// Fetcher performs an authenticated GET and decodes the JSON body into out.
// *wiki.Client satisfies it.
type Fetcher interface {
	GetJSON(ctx context.Context, rawURL string, out any) error
}

var tagPattern = regexp.MustCompile(`(?i)<[^>]+>`)

// StripTags removes every <...> span from markup. Character entities are left as-is.
func StripTags(markup string) string {
	return tagPattern.ReplaceAllString(markup, "")
}
