// Package columnpool deduplicates string column names into small integer
// ids in schema discovery order. Id 0 is reserved for the synthetic global
// aggregate column and is never assigned to a real column name.
package columnpool

import "fmt"

// GlobalColumnID is the reserved id for the synthetic aggregate column that
// unions every real column's keywords.
const GlobalColumnID uint32 = 0

// Pool assigns and resolves column ids. Zero value is not usable; use New.
type Pool struct {
	names []string       // names[id-1] == name for id
	ids   map[string]uint32
}

// New creates an empty Pool.
func New() *Pool {
	return &Pool{ids: make(map[string]uint32)}
}

// Add assigns the next available id to name if not already present, and
// returns the id (existing or newly assigned). Names are assigned in the
// order Add is first called for them, which must be schema discovery order.
func (p *Pool) Add(name string) uint32 {
	if id, ok := p.ids[name]; ok {
		return id
	}
	id := uint32(len(p.names) + 1)
	p.names = append(p.names, name)
	p.ids[name] = id
	return id
}

// ID returns the id for name and whether it is known to the pool.
func (p *Pool) ID(name string) (uint32, bool) {
	id, ok := p.ids[name]
	return id, ok
}

// Name returns the column name for id. Panics if id is 0 or unknown, since
// callers are expected to only resolve ids they obtained from this pool or
// from a container built by it.
func (p *Pool) Name(id uint32) string {
	if id == GlobalColumnID || id == 0 || int(id) > len(p.names) {
		panic(fmt.Sprintf("columnpool: invalid column id %d", id))
	}
	return p.names[id-1]
}

// IDs returns every assigned real column id, in assignment order.
func (p *Pool) IDs() []uint32 {
	ids := make([]uint32, len(p.names))
	for i := range p.names {
		ids[i] = uint32(i + 1)
	}
	return ids
}

// Len returns the number of real columns in the pool.
func (p *Pool) Len() int {
	return len(p.names)
}

// Entry is one (id, name) pair of a real column, the form in which the
// column pool is serialized into the container header.
type Entry struct {
	ID   uint32
	Name string
}

// Entries returns the pool contents in id order, for header serialization.
func (p *Pool) Entries() []Entry {
	out := make([]Entry, len(p.names))
	for i, name := range p.names {
		out[i] = Entry{ID: uint32(i + 1), Name: name}
	}
	return out
}

// FromEntries rebuilds a Pool from header entries read off disk. Entries
// must be sorted by ID ascending and dense starting at 1, matching what
// Entries produces.
func FromEntries(entries []Entry) (*Pool, error) {
	p := New()
	for i, e := range entries {
		wantID := uint32(i + 1)
		if e.ID != wantID {
			return nil, fmt.Errorf("columnpool: non-dense column ids, expected %d got %d", wantID, e.ID)
		}
		p.names = append(p.names, e.Name)
		p.ids[e.Name] = e.ID
	}
	return p, nil
}
