package unit

import (
	"slices"
)

// Flowsheet is the top-level owner of units before they are handed to a
// selector. Members keep insertion order.
type Flowsheet struct {
	name    string
	order   []string
	members map[string]Candidate
}

// NewFlowsheet creates an empty flowsheet.
func NewFlowsheet(name string) *Flowsheet {
	return &Flowsheet{name: name, members: make(map[string]Candidate)}
}

// OwnerName implements Owner.
func (f *Flowsheet) OwnerName() string { return f.name }

// Attach implements Owner.
func (f *Flowsheet) Attach(c Candidate) error {
	if _, ok := f.members[c.Name()]; ok {
		return &CollisionError{Owner: f.name, Name: c.Name()}
	}
	f.members[c.Name()] = c
	f.order = append(f.order, c.Name())
	return nil
}

// Detach implements Owner.
func (f *Flowsheet) Detach(name string) (Candidate, error) {
	c, ok := f.members[name]
	if !ok {
		return nil, &NotOwnedError{Owner: f.name, Name: name}
	}
	delete(f.members, name)
	f.order = slices.DeleteFunc(f.order, func(n string) bool { return n == name })
	return c, nil
}

// Get returns a member by name.
func (f *Flowsheet) Get(name string) (Candidate, bool) {
	c, ok := f.members[name]
	return c, ok
}

// Names returns member names in insertion order.
func (f *Flowsheet) Names() []string {
	return slices.Clone(f.order)
}

// Len returns the number of members.
func (f *Flowsheet) Len() int {
	return len(f.members)
}
