package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Factory hydrates raw stored data into a Record for the given source.
type Factory interface {
	Create(source string, data []byte) (Record, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(source string, data []byte) (Record, error)

// Create implements Factory.
func (f FactoryFunc) Create(source string, data []byte) (Record, error) {
	return f(source, data)
}

// Registry maps record sources to factories. It is usually populated at
// startup and read concurrently afterwards.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register associates factory with source, replacing any previous one.
func (r *Registry) Register(source string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[source] = factory
}

// Factory returns the factory registered for source.
func (r *Registry) Factory(source string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[source]
	return f, ok
}

// Sources lists the registered sources in lexical order.
func (r *Registry) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for s := range r.factories {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// ErrNoFactory is returned by Create when no factory is registered for the
// requested source.
var ErrNoFactory = errors.New("no record factory registered")

// Create hydrates data with the factory registered for source.
func (r *Registry) Create(source string, data []byte) (Record, error) {
	f, ok := r.Factory(source)
	if !ok {
		return nil, fmt.Errorf("%w for source %q", ErrNoFactory, source)
	}
	return f.Create(source, data)
}

// Missing builds the placeholder for ref. A factory registered under
// MissingSource is used when present; it receives the requested source and
// the JSON encoded placeholder fields.
func (r *Registry) Missing(ref Reference) Record {
	placeholder := NewMissing(ref)
	f, ok := r.Factory(MissingSource)
	if !ok {
		return placeholder
	}

	data, err := json.Marshal(placeholder.Fields)
	if err != nil {
		return placeholder
	}
	rec, err := f.Create(ref.Source, data)
	if err != nil || rec == nil {
		return placeholder
	}
	return rec
}

// MissingFactory decodes JSON placeholder fields into a *Missing.
type MissingFactory struct{}

// Create implements Factory.
func (MissingFactory) Create(source string, data []byte) (Record, error) {
	fields := map[string]any{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("decode missing record: %w", err)
		}
	}
	id, _ := fields["id"].(string)
	return &Missing{ID: id, Source: source, Fields: fields}, nil
}

// Document is a generic record backed by a JSON object. Its id is read from
// the "id" field and its previous id, if any, from "previous_id".
type Document struct {
	Source string
	Fields map[string]any

	details map[string]any
}

var (
	_ Record             = (*Document)(nil)
	_ PreviousIDProvider = (*Document)(nil)
	_ Cloner             = (*Document)(nil)
	_ ExtraDetailSetter  = (*Document)(nil)
)

// NewDocument builds a document for source with the given id and fields.
func NewDocument(source, id string, fields map[string]any) *Document {
	f := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		f[k] = v
	}
	f["id"] = id
	return &Document{Source: source, Fields: f}
}

func (d *Document) SourceIdentifier() string { return d.Source }

func (d *Document) UniqueID() string {
	id, _ := d.Fields["id"].(string)
	return id
}

func (d *Document) PreviousUniqueID() string {
	id, _ := d.Fields["previous_id"].(string)
	return id
}

// CloneRecord implements Cloner.
func (d *Document) CloneRecord() Record {
	c := &Document{Source: d.Source, Fields: make(map[string]any, len(d.Fields))}
	for k, v := range d.Fields {
		c.Fields[k] = v
	}
	if d.details != nil {
		c.details = make(map[string]any, len(d.details))
		for k, v := range d.details {
			c.details[k] = v
		}
	}
	return c
}

// SetExtraDetail implements ExtraDetailSetter.
func (d *Document) SetExtraDetail(key string, value any) {
	if d.details == nil {
		d.details = make(map[string]any)
	}
	d.details[key] = value
}

// ExtraDetail returns a detail previously set with SetExtraDetail.
func (d *Document) ExtraDetail(key string) (any, bool) {
	v, ok := d.details[key]
	return v, ok
}

// MarshalJSON encodes the document fields.
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Fields)
}

// DocumentFactory decodes JSON objects into *Document values.
type DocumentFactory struct{}

// Create implements Factory.
func (DocumentFactory) Create(source string, data []byte) (Record, error) {
	fields := map[string]any{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode %s record: %w", source, err)
	}
	if _, ok := fields["id"].(string); !ok {
		return nil, fmt.Errorf("decode %s record: missing string id", source)
	}
	return &Document{Source: source, Fields: fields}, nil
}
