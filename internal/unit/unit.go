package unit

import (
	"context"
	"fmt"

	"github.com/roach88/unitsel/internal/state"
)

// Options are caller-supplied initialization options. They are forwarded to
// each candidate unchanged.
type Options map[string]any

// Candidate is an interchangeable processing alternative.
type Candidate interface {
	// Name is the stable identity of the unit.
	Name() string

	// Inlets returns the inlet connection points in declaration order.
	Inlets() []*state.Point

	// Outlets returns the outlet connection points in declaration order.
	Outlets() []*state.Point

	// Initialize runs the unit's own initialization.
	Initialize(ctx context.Context, opts Options) error
}

// Template supplies what is needed to build a state block that looks like the
// unit's streams.
type Template interface {
	// PropertyPackage returns the package that builds the unit's states,
	// or nil when the unit has none.
	PropertyPackage() state.Package

	// PropertyPackageArgs returns the base args for state construction.
	PropertyPackageArgs() state.Args
}

// FindInlet returns the inlet point with the given name.
func FindInlet(c Candidate, name string) (*state.Point, bool) {
	return findPoint(c.Inlets(), name)
}

// FindOutlet returns the outlet point with the given name.
func FindOutlet(c Candidate, name string) (*state.Point, bool) {
	return findPoint(c.Outlets(), name)
}

// HasPoint reports whether p is one of the given points (by identity).
func HasPoint(points []*state.Point, p *state.Point) bool {
	for _, q := range points {
		if q == p {
			return true
		}
	}
	return false
}

func findPoint(points []*state.Point, name string) (*state.Point, bool) {
	for _, p := range points {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Owner holds candidates by name.
type Owner interface {
	// OwnerName identifies the owner in diagnostics.
	OwnerName() string

	// Attach adds a candidate. Returns *CollisionError if the name is taken.
	Attach(c Candidate) error

	// Detach removes and returns the candidate with the given name.
	Detach(name string) (Candidate, error)
}

// CollisionError reports a name already held by an owner.
type CollisionError struct {
	Owner string
	Name  string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("%s already has a member named %q", e.Owner, e.Name)
}

// NotOwnedError reports a candidate that is not held by the owner it was
// expected in.
type NotOwnedError struct {
	Owner string
	Name  string
}

func (e *NotOwnedError) Error() string {
	return fmt.Sprintf("%s does not own %q", e.Owner, e.Name)
}

// Transfer moves c from one owner to another. from may be nil for a
// candidate that has no owner yet.
//
// On failure the candidate is back in from (or still unowned) and the error
// is returned. The candidate itself is never modified.
func Transfer(c Candidate, from, to Owner) error {
	if c == nil {
		return fmt.Errorf("transfer: nil candidate")
	}
	if to == nil {
		return fmt.Errorf("transfer %q: nil destination", c.Name())
	}
	if from != nil {
		got, err := from.Detach(c.Name())
		if err != nil {
			return fmt.Errorf("transfer %q: %w", c.Name(), err)
		}
		if got != c {
			// Same name, different unit: put it back untouched.
			if rerr := from.Attach(got); rerr != nil {
				return fmt.Errorf("transfer %q: restore: %w", c.Name(), rerr)
			}
			return fmt.Errorf("transfer %q: %w", c.Name(), &NotOwnedError{Owner: from.OwnerName(), Name: c.Name()})
		}
	}
	if err := to.Attach(c); err != nil {
		if from != nil {
			if rerr := from.Attach(c); rerr != nil {
				return fmt.Errorf("transfer %q: %w (restore failed: %v)", c.Name(), err, rerr)
			}
		}
		return fmt.Errorf("transfer %q: %w", c.Name(), err)
	}
	return nil
}
