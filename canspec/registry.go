package canspec

import "fmt"

// Index is the stable position of a message in its Registry. The blackboard,
// scheduler and dispatcher all address messages by Index.
type Index int

// Registry is an immutable, ordered table of message descriptors.
type Registry struct {
	descs []Descriptor
}

// NewRegistry validates descs and freezes them in the given order. Duplicate
// ids are rejected rather than resolved.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	ids := make(map[uint32]string, len(descs))
	names := make(map[string]uint32, len(descs))
	out := make([]Descriptor, len(descs))

	for i, d := range descs {
		if err := d.validate(); err != nil {
			return nil, err
		}
		if prev, ok := ids[d.ID]; ok {
			return nil, fmt.Errorf("id 0x%X used by %s and %s: %w", d.ID, prev, d.Name, ErrDuplicateID)
		}
		ids[d.ID] = d.Name
		if d.Name != "" {
			if prev, ok := names[d.Name]; ok {
				return nil, fmt.Errorf("name %s used by 0x%X and 0x%X: %w", d.Name, prev, d.ID, ErrDuplicateName)
			}
			names[d.Name] = d.ID
		}

		d.Fields = append([]Field(nil), d.Fields...)
		out[i] = d
	}
	return &Registry{descs: out}, nil
}

// MustRegistry is NewRegistry for statically built tables. It panics on a
// table defect.
func MustRegistry(descs ...Descriptor) *Registry {
	r, err := NewRegistry(descs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Len returns the number of messages.
func (r *Registry) Len() int { return len(r.descs) }

// At returns the descriptor at idx. The returned value must not be modified.
func (r *Registry) At(idx Index) *Descriptor {
	return &r.descs[idx]
}

// Descriptors returns a copy of the table in registry order. Field slices
// are copied too.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.descs))
	copy(out, r.descs)
	for i := range out {
		out[i].Fields = append([]Field(nil), out[i].Fields...)
	}
	return out
}

// Lookup finds the index of the message with the given id. The table is
// small and fixed, so this is a linear scan.
func (r *Registry) Lookup(id uint32) (Index, bool) {
	for i := range r.descs {
		if r.descs[i].ID == id {
			return Index(i), true
		}
	}
	return 0, false
}

// ByName finds the index of the named message.
func (r *Registry) ByName(name string) (Index, bool) {
	for i := range r.descs {
		if r.descs[i].Name == name {
			return Index(i), true
		}
	}
	return 0, false
}

// FieldByName returns the named field of the message at idx.
func (r *Registry) FieldByName(idx Index, name string) (Field, bool) {
	for _, f := range r.descs[idx].Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FrameNames lists message names in registry order.
func (r *Registry) FrameNames() []string {
	out := make([]string, 0, len(r.descs))
	for _, d := range r.descs {
		out = append(out, d.Name)
	}
	return out
}
