package record

import (
	"fmt"
	"strings"
)

// DefaultSource is used for references given as a bare id.
const DefaultSource = "Solr"

// ReferenceSeparator splits the source from the id in "source|id" strings.
const ReferenceSeparator = "|"

// Reference identifies a record by source and id.
// ExtraFields is only used to build a placeholder when the record cannot be
// resolved.
type Reference struct {
	Source      string         `json:"source"`
	ID          string         `json:"id"`
	ExtraFields map[string]any `json:"extra_fields,omitempty"`
}

// String returns the "source|id" form of the reference.
func (r Reference) String() string {
	return r.Source + ReferenceSeparator + r.ID
}

// ParseReference parses a "source|id" string. Only the first separator is
// significant, so ids may contain pipes. A missing or empty source becomes
// DefaultSource.
func ParseReference(s string) Reference {
	source, id, found := strings.Cut(s, ReferenceSeparator)
	if !found {
		source, id = "", s
	}
	return normalizeReference(Reference{Source: source, ID: id})
}

// NewReferences normalizes a heterogeneous list of identifiers. Accepted
// element types are string ("source|id" or a bare id), Reference,
// *Reference and map[string]any with "source", "id" and optional
// "extra_fields" keys.
func NewReferences(items ...any) ([]Reference, error) {
	refs := make([]Reference, 0, len(items))
	for i, item := range items {
		ref, err := toReference(item)
		if err != nil {
			return nil, fmt.Errorf("identifier %d: %w", i, err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// MustReferences is like NewReferences but panics on unsupported input.
func MustReferences(items ...any) []Reference {
	refs, err := NewReferences(items...)
	if err != nil {
		panic(err)
	}
	return refs
}

func toReference(item any) (Reference, error) {
	switch v := item.(type) {
	case string:
		return ParseReference(v), nil
	case Reference:
		return normalizeReference(v), nil
	case *Reference:
		if v == nil {
			return Reference{}, fmt.Errorf("nil reference")
		}
		return normalizeReference(*v), nil
	case map[string]any:
		return referenceFromMap(v)
	default:
		return Reference{}, fmt.Errorf("unsupported identifier type %T", item)
	}
}

func normalizeReference(r Reference) Reference {
	if r.Source == "" {
		r.Source = DefaultSource
	}
	return r
}

func referenceFromMap(m map[string]any) (Reference, error) {
	id, ok := m["id"]
	if !ok {
		return Reference{}, fmt.Errorf("missing id key")
	}

	ref := Reference{ID: fmt.Sprint(id)}
	if source, ok := m["source"]; ok && source != nil {
		ref.Source = fmt.Sprint(source)
	}

	if extra, ok := m["extra_fields"]; ok && extra != nil {
		fields, ok := extra.(map[string]any)
		if !ok {
			return Reference{}, fmt.Errorf("extra_fields must be map[string]any, got %T", extra)
		}
		ref.ExtraFields = fields
	}

	return normalizeReference(ref), nil
}
