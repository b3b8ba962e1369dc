// Package idlist indexes a list of record references by source and id so
// resolved records can be mapped back to every position they were requested
// at.
package idlist

import "github.com/goliatone/go-record-loader/record"

// List is a request scoped index over a list of references. It is not safe
// for concurrent mutation, but all read methods may be called concurrently
// once New returns.
type List struct {
	refs     []record.Reference
	sources  []string
	bySource map[string]map[string][]int
	idOrder  map[string][]string
}

// New indexes refs. Duplicate references keep one position each.
func New(refs []record.Reference) *List {
	l := &List{
		refs:     append([]record.Reference(nil), refs...),
		bySource: make(map[string]map[string][]int),
		idOrder:  make(map[string][]string),
	}

	for i, ref := range l.refs {
		ids, ok := l.bySource[ref.Source]
		if !ok {
			ids = make(map[string][]int)
			l.bySource[ref.Source] = ids
			l.sources = append(l.sources, ref.Source)
		}
		if _, seen := ids[ref.ID]; !seen {
			l.idOrder[ref.Source] = append(l.idOrder[ref.Source], ref.ID)
		}
		ids[ref.ID] = append(ids[ref.ID], i)
	}

	return l
}

// Len returns the number of positions, duplicates included.
func (l *List) Len() int { return len(l.refs) }

// At returns the reference requested at position i.
func (l *List) At(i int) record.Reference { return l.refs[i] }

// All returns a copy of the normalized references in request order.
func (l *List) All() []record.Reference {
	return append([]record.Reference(nil), l.refs...)
}

// Sources returns the distinct sources in first-seen order.
func (l *List) Sources() []string {
	return append([]string(nil), l.sources...)
}

// IDsBySource returns the distinct ids requested for each source, in
// first-seen order.
func (l *List) IDsBySource() map[string][]string {
	out := make(map[string][]string, len(l.idOrder))
	for source, ids := range l.idOrder {
		out[source] = append([]string(nil), ids...)
	}
	return out
}

// RecordPositions returns every position rec should fill.
//
// Positions requested under the record's previous id come first. Positions
// requested under its current id follow. Checking the current id first would
// let a renamed record claim only the new-id slot and leave an explicit
// old-id request empty.
func (l *List) RecordPositions(rec record.Record) []int {
	ids, ok := l.bySource[rec.SourceIdentifier()]
	if !ok {
		return nil
	}

	var positions []int
	current := rec.UniqueID()
	if prev := record.PreviousID(rec); prev != "" && prev != current {
		positions = append(positions, ids[prev]...)
	}
	positions = append(positions, ids[current]...)

	if len(positions) == 0 {
		return nil
	}
	return positions
}
