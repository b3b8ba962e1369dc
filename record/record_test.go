package record

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		in       string
		expected Reference
	}{
		{in: "Solr|123", expected: Reference{Source: "Solr", ID: "123"}},
		{in: "EDS|a|b", expected: Reference{Source: "EDS", ID: "a|b"}},
		{in: "bare", expected: Reference{Source: DefaultSource, ID: "bare"}},
		{in: "|x", expected: Reference{Source: DefaultSource, ID: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseReference(tt.in)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("expected %+v, got %+v", tt.expected, got)
			}
		})
	}
}

func TestNewReferences_MixedInput(t *testing.T) {
	refs, err := NewReferences(
		"Solr|1",
		Reference{ID: "2"},
		&Reference{Source: "EDS", ID: "3"},
		map[string]any{"source": "Summon", "id": "4", "extra_fields": map[string]any{"title": "T"}},
		"|5",
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []Reference{
		{Source: "Solr", ID: "1"},
		{Source: DefaultSource, ID: "2"},
		{Source: "EDS", ID: "3"},
		{Source: "Summon", ID: "4", ExtraFields: map[string]any{"title": "T"}},
		{Source: DefaultSource, ID: "5"},
	}
	if !reflect.DeepEqual(refs, expected) {
		t.Errorf("expected %+v, got %+v", expected, refs)
	}
}

func TestNewReferences_Rejects(t *testing.T) {
	inputs := []any{
		42,
		(*Reference)(nil),
		map[string]any{"source": "Solr"},
		map[string]any{"id": "1", "extra_fields": "nope"},
	}
	for _, in := range inputs {
		if _, err := NewReferences(in); err == nil {
			t.Errorf("expected error for %#v", in)
		}
	}
}

func TestRegistry_CreateAndMissing(t *testing.T) {
	reg := NewRegistry()
	reg.Register("Solr", DocumentFactory{})

	rec, err := reg.Create("Solr", []byte(`{"id":"a","title":"x"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.UniqueID() != "a" || rec.SourceIdentifier() != "Solr" {
		t.Errorf("unexpected record %s|%s", rec.SourceIdentifier(), rec.UniqueID())
	}

	if _, err := reg.Create("Unknown", nil); !errors.Is(err, ErrNoFactory) {
		t.Errorf("expected ErrNoFactory, got %v", err)
	}

	ref := Reference{Source: "X", ID: "1", ExtraFields: map[string]any{"title": "Lost"}}
	placeholder := reg.Missing(ref)
	m, ok := placeholder.(*Missing)
	if !ok {
		t.Fatalf("expected *Missing, got %T", placeholder)
	}
	if m.Source != "X" || m.ID != "1" || m.Fields["title"] != "Lost" || m.Fields["id"] != "1" {
		t.Errorf("unexpected placeholder %+v", m)
	}
	if _, ok := ref.ExtraFields["id"]; ok {
		t.Error("expected caller extra fields to be left untouched")
	}

	reg.Register(MissingSource, MissingFactory{})
	viaFactory := reg.Missing(ref)
	if !IsMissing(viaFactory) || viaFactory.SourceIdentifier() != "X" || viaFactory.UniqueID() != "1" {
		t.Errorf("unexpected factory placeholder %+v", viaFactory)
	}
}

func TestClone_DoesNotShareState(t *testing.T) {
	doc := NewDocument("Solr", "a", map[string]any{"title": "x"})
	c := Clone(doc).(*Document)
	c.Fields["title"] = "y"
	c.SetExtraDetail(DetailCachedRecord, true)

	if doc.Fields["title"] != "x" {
		t.Error("expected original fields to be unchanged")
	}
	if _, ok := doc.ExtraDetail(DetailCachedRecord); ok {
		t.Error("expected original details to be unchanged")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	missing := NewRecordMissingError("Solr", "a")
	if !IsRecordMissing(missing) || IsCacheStorage(missing) || IsLiveRetrieval(missing) {
		t.Errorf("unexpected classification for %v", missing)
	}

	storage := NewCacheStorageError(errors.New("disk"), "get")
	if !IsCacheStorage(storage) || IsRecordMissing(storage) {
		t.Errorf("unexpected classification for %v", storage)
	}

	live := fmt.Errorf("outer: %w", NewLiveRetrievalError(errors.New("timeout"), "Solr"))
	if !IsLiveRetrieval(live) {
		t.Errorf("expected wrapped live retrieval error to be detected")
	}

	if IsRecordMissing(errors.New("plain")) || IsRecordMissing(nil) {
		t.Error("expected plain errors not to match")
	}
}
