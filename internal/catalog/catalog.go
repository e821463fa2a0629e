// Package catalog defines the entity lookup used to derive wiki spaces from a
// software catalog.
package catalog

import "context"

// Entity kinds and types the collector asks for.
const (
	KindResource         = "Resource"
	TypeConfluenceSpaces = "confluence-spaces"
)

// Filter selects entities by kind, spec.type and presence of an annotation key.
type Filter struct {
	Kind          string
	SpecType      string
	AnnotationKey string
}

// Metadata carries the entity fields the collector reads.
type Metadata struct {
	Name        string            `json:"name"`
	Namespace   string            `json:"namespace,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// Spec carries the entity spec fields the collector reads.
type Spec struct {
	Type string `json:"type"`
}

// Entity is a catalog entry.
type Entity struct {
	Kind     string   `json:"kind"`
	Metadata Metadata `json:"metadata"`
	Spec     Spec     `json:"spec"`
}

// Client looks up entities matching a filter.
type Client interface {
	Entities(ctx context.Context, filter Filter) ([]Entity, error)
}

// SpacesFilter returns the filter for confluence-space resources carrying annotationKey.
func SpacesFilter(annotationKey string) Filter {
	return Filter{
		Kind:          KindResource,
		SpecType:      TypeConfluenceSpaces,
		AnnotationKey: annotationKey,
	}
}
