package record

// Record is a hydrated record. Once returned by the loader it is owned by
// the caller.
type Record interface {
	SourceIdentifier() string
	UniqueID() string
}

// PreviousIDProvider is implemented by records whose backend may reassign
// ids between harvests.
type PreviousIDProvider interface {
	PreviousUniqueID() string
}

// Cloner is implemented by records that must not share state when placed in
// more than one output position.
type Cloner interface {
	CloneRecord() Record
}

// ExtraDetailSetter lets the loader annotate records, e.g. to flag that a
// record was served from the fallback cache.
type ExtraDetailSetter interface {
	SetExtraDetail(key string, value any)
}

// DetailCachedRecord is set to true on records served by the fallback cache.
const DetailCachedRecord = "cached_record"

// PreviousID returns the previous unique id of r, or "" when r does not
// report one.
func PreviousID(r Record) string {
	if p, ok := r.(PreviousIDProvider); ok {
		return p.PreviousUniqueID()
	}
	return ""
}

// Clone returns a copy of r when it implements Cloner, r itself otherwise.
func Clone(r Record) Record {
	if c, ok := r.(Cloner); ok {
		return c.CloneRecord()
	}
	return r
}

// SetExtraDetail sets an extra detail on r if supported.
func SetExtraDetail(r Record, key string, value any) {
	if s, ok := r.(ExtraDetailSetter); ok {
		s.SetExtraDetail(key, value)
	}
}

// MissingSource is the registry name of the placeholder factory.
const MissingSource = "Missing"

// Missing is the placeholder returned for references that could not be
// resolved.
type Missing struct {
	ID     string
	Source string
	Fields map[string]any

	details map[string]any
}

var (
	_ Record            = (*Missing)(nil)
	_ Cloner            = (*Missing)(nil)
	_ ExtraDetailSetter = (*Missing)(nil)
)

// NewMissing builds a placeholder for ref, keeping its extra fields.
func NewMissing(ref Reference) *Missing {
	fields := make(map[string]any, len(ref.ExtraFields)+1)
	for k, v := range ref.ExtraFields {
		fields[k] = v
	}
	fields["id"] = ref.ID
	return &Missing{ID: ref.ID, Source: ref.Source, Fields: fields}
}

func (m *Missing) SourceIdentifier() string { return m.Source }
func (m *Missing) UniqueID() string         { return m.ID }

// CloneRecord implements Cloner.
func (m *Missing) CloneRecord() Record {
	c := &Missing{ID: m.ID, Source: m.Source}
	if m.Fields != nil {
		c.Fields = make(map[string]any, len(m.Fields))
		for k, v := range m.Fields {
			c.Fields[k] = v
		}
	}
	if m.details != nil {
		c.details = make(map[string]any, len(m.details))
		for k, v := range m.details {
			c.details[k] = v
		}
	}
	return c
}

// SetExtraDetail implements ExtraDetailSetter.
func (m *Missing) SetExtraDetail(key string, value any) {
	if m.details == nil {
		m.details = make(map[string]any)
	}
	m.details[key] = value
}

// ExtraDetail returns a detail previously set with SetExtraDetail.
func (m *Missing) ExtraDetail(key string) (any, bool) {
	v, ok := m.details[key]
	return v, ok
}

// IsMissing reports whether r is a placeholder.
func IsMissing(r Record) bool {
	_, ok := r.(*Missing)
	return ok
}
