package idlist

// Checklist tracks which ids of a batch are still unresolved.
type Checklist struct {
	order     []string
	unchecked map[string]struct{}
}

// NewChecklist returns a checklist with every id in ids unchecked.
// Duplicate ids are collapsed.
func NewChecklist(ids []string) *Checklist {
	c := &Checklist{unchecked: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if _, ok := c.unchecked[id]; ok {
			continue
		}
		c.unchecked[id] = struct{}{}
		c.order = append(c.order, id)
	}
	return c
}

// Check marks id as resolved. It returns false if id was not on the list
// or was already checked.
func (c *Checklist) Check(id string) bool {
	if _, ok := c.unchecked[id]; !ok {
		return false
	}
	delete(c.unchecked, id)
	return true
}

// HasUnchecked reports whether any id is still unresolved.
func (c *Checklist) HasUnchecked() bool { return len(c.unchecked) > 0 }

// Unchecked returns the unresolved ids in their original order.
func (c *Checklist) Unchecked() []string {
	out := make([]string, 0, len(c.unchecked))
	for _, id := range c.order {
		if _, ok := c.unchecked[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
