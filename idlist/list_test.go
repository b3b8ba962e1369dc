package idlist

import (
	"reflect"
	"testing"

	"github.com/goliatone/go-record-loader/record"
)

func TestNew_IndexesDuplicatesAndSources(t *testing.T) {
	refs := record.MustReferences("Solr|a", "Solr|b", "X|a", "Solr|a", "c")
	list := New(refs)

	if list.Len() != 5 {
		t.Fatalf("expected 5 positions, got %d", list.Len())
	}

	expectedSources := []string{"Solr", "X"}
	if got := list.Sources(); !reflect.DeepEqual(got, expectedSources) {
		t.Errorf("expected sources %v, got %v", expectedSources, got)
	}

	bySource := list.IDsBySource()
	if got := bySource["Solr"]; !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("expected distinct Solr ids [a b c], got %v", got)
	}
	if got := bySource["X"]; !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("expected X ids [a], got %v", got)
	}

	if got := list.At(4); got.Source != record.DefaultSource || got.ID != "c" {
		t.Errorf("expected bare id to use default source, got %+v", got)
	}
}

func TestIDsBySource_ReturnsCopies(t *testing.T) {
	list := New(record.MustReferences("Solr|a"))
	ids := list.IDsBySource()
	ids["Solr"][0] = "mutated"

	if got := list.IDsBySource()["Solr"][0]; got != "a" {
		t.Errorf("expected internal state to be unaffected, got %q", got)
	}
}

func TestRecordPositions(t *testing.T) {
	list := New(record.MustReferences("Solr|a", "Solr|b", "X|a", "Solr|a"))

	tests := []struct {
		name     string
		rec      record.Record
		expected []int
	}{
		{
			name:     "direct match with duplicates",
			rec:      record.NewDocument("Solr", "a", nil),
			expected: []int{0, 3},
		},
		{
			name:     "same id other source",
			rec:      record.NewDocument("X", "a", nil),
			expected: []int{2},
		},
		{
			name:     "unknown id",
			rec:      record.NewDocument("Solr", "zzz", nil),
			expected: nil,
		},
		{
			name:     "unknown source",
			rec:      record.NewDocument("Y", "a", nil),
			expected: nil,
		},
		{
			name:     "renamed record found through previous id",
			rec:      record.NewDocument("Solr", "new", map[string]any{"previous_id": "b"}),
			expected: []int{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := list.RecordPositions(tt.rec)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("expected positions %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestRecordPositions_StaleIDPrecedence(t *testing.T) {
	// Both the old and the new id were requested explicitly.
	list := New(record.MustReferences("Solr|new", "Solr|other", "Solr|old"))
	rec := record.NewDocument("Solr", "new", map[string]any{"previous_id": "old"})

	got := list.RecordPositions(rec)
	expected := []int{2, 0}
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected previous-id position first %v, got %v", expected, got)
	}
}

func TestChecklist(t *testing.T) {
	c := NewChecklist([]string{"a", "b", "a", "c"})

	if !c.HasUnchecked() {
		t.Fatal("expected unchecked ids")
	}
	if !c.Check("b") {
		t.Error("expected first check of b to succeed")
	}
	if c.Check("b") {
		t.Error("expected second check of b to fail")
	}
	if c.Check("unknown") {
		t.Error("expected check of unknown id to fail")
	}
	if got := c.Unchecked(); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("expected [a c] unchecked, got %v", got)
	}

	c.Check("a")
	c.Check("c")
	if c.HasUnchecked() {
		t.Error("expected no unchecked ids")
	}
	if got := c.Unchecked(); len(got) != 0 {
		t.Errorf("expected empty unchecked list, got %v", got)
	}
}
