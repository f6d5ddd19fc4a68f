package state

import (
	"fmt"
	"maps"
	"slices"
)

// Layout is the immutable, ordered set of variable names of a Block. The
// leading port variables are what a connection sees; any internal variables
// follow them and stay private to the block.
type Layout struct {
	names []string
	index map[string]int
	ports int
}

// NewLayout creates a layout of port variables in order.
// Duplicate names are rejected.
func NewLayout(names ...string) (*Layout, error) {
	l := &Layout{
		names: slices.Clone(names),
		index: make(map[string]int, len(names)),
		ports: len(names),
	}
	for i, n := range names {
		if n == "" {
			return nil, fmt.Errorf("layout: empty variable name at position %d", i)
		}
		if _, dup := l.index[n]; dup {
			return nil, fmt.Errorf("layout: duplicate variable %q", n)
		}
		l.index[n] = i
	}
	return l, nil
}

// WithInternal returns a layout with the same port variables plus internal
// variables appended after them.
func (l *Layout) WithInternal(names ...string) (*Layout, error) {
	ext, err := NewLayout(append(l.Names(), names...)...)
	if err != nil {
		return nil, err
	}
	ext.ports = l.ports
	return ext, nil
}

// Names returns every variable name in order.
func (l *Layout) Names() []string {
	return slices.Clone(l.names)
}

// PortNames returns the port variables in order.
func (l *Layout) PortNames() []string {
	return slices.Clone(l.names[:l.ports])
}

// Len returns the number of variables.
func (l *Layout) Len() int {
	return len(l.names)
}

// Has reports whether the layout contains the variable.
func (l *Layout) Has(name string) bool {
	_, ok := l.index[name]
	return ok
}

// Equal reports whether two layouts hold the same names in the same order
// with the same port prefix.
func (l *Layout) Equal(other *Layout) bool {
	if l == other {
		return true
	}
	if l == nil || other == nil {
		return false
	}
	return l.ports == other.ports && slices.Equal(l.names, other.names)
}

// PortEqual reports whether two layouts expose the same port variables in
// the same order. Internal variables are ignored.
func (l *Layout) PortEqual(other *Layout) bool {
	if l == other {
		return true
	}
	if l == nil || other == nil {
		return false
	}
	return slices.Equal(l.names[:l.ports], other.names[:other.ports])
}

// Var is a snapshot of one state variable.
type Var struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Fixed bool    `json:"fixed"`
}

// Block is a state container: one value and one fixed flag per layout
// variable, plus the args it was built with.
type Block struct {
	name   string
	doc    string
	layout *Layout
	values []float64
	fixed  []bool
	args   Args
}

// NewBlock creates a block with every variable set to zero and unfixed.
func NewBlock(name, doc string, layout *Layout, args Args) *Block {
	return &Block{
		name:   name,
		doc:    doc,
		layout: layout,
		values: make([]float64, layout.Len()),
		fixed:  make([]bool, layout.Len()),
		args:   maps.Clone(args),
	}
}

// Name returns the block name.
func (b *Block) Name() string { return b.name }

// Doc returns the block description.
func (b *Block) Doc() string { return b.doc }

// Layout returns the variable layout.
func (b *Block) Layout() *Layout { return b.layout }

// Args returns a copy of the args the block was built with.
func (b *Block) Args() Args { return maps.Clone(b.args) }

// Value returns the current value of a variable.
func (b *Block) Value(name string) (float64, bool) {
	i, ok := b.layout.index[name]
	if !ok {
		return 0, false
	}
	return b.values[i], true
}

// Set assigns a value without changing the fixed flag.
func (b *Block) Set(name string, v float64) error {
	i, ok := b.layout.index[name]
	if !ok {
		return fmt.Errorf("block %s: unknown variable %q", b.name, name)
	}
	b.values[i] = v
	return nil
}

// Fix assigns a value and marks the variable fixed.
func (b *Block) Fix(name string, v float64) error {
	i, ok := b.layout.index[name]
	if !ok {
		return fmt.Errorf("block %s: unknown variable %q", b.name, name)
	}
	b.values[i] = v
	b.fixed[i] = true
	return nil
}

// Unfix clears the fixed flag of a variable.
func (b *Block) Unfix(name string) error {
	i, ok := b.layout.index[name]
	if !ok {
		return fmt.Errorf("block %s: unknown variable %q", b.name, name)
	}
	b.fixed[i] = false
	return nil
}

// Fixed reports whether a variable is fixed.
func (b *Block) Fixed(name string) bool {
	i, ok := b.layout.index[name]
	return ok && b.fixed[i]
}

// Vars returns a snapshot of all variables in layout order.
func (b *Block) Vars() []Var {
	out := make([]Var, len(b.values))
	for i, n := range b.layout.names {
		out[i] = Var{Name: n, Value: b.values[i], Fixed: b.fixed[i]}
	}
	return out
}

// Values returns variable values keyed by name.
func (b *Block) Values() map[string]float64 {
	out := make(map[string]float64, len(b.values))
	for i, n := range b.layout.names {
		out[n] = b.values[i]
	}
	return out
}
