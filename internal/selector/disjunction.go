package selector

import "fmt"

// Disjunction is the selection constraint over branches 1..N: in every
// feasible assignment exactly one branch is active. It carries no priority,
// default or cost.
type Disjunction struct {
	branches []*Branch
}

func newDisjunction(branches []*Branch) *Disjunction {
	return &Disjunction{branches: branches}
}

// Len returns N.
func (d *Disjunction) Len() int {
	return len(d.branches)
}

// Branch returns the branch with the given 1-based index.
func (d *Disjunction) Branch(i int) (*Branch, bool) {
	if i < 1 || i > len(d.branches) {
		return nil, false
	}
	return d.branches[i-1], true
}

// Branches returns the branches in index order.
func (d *Disjunction) Branches() []*Branch {
	out := make([]*Branch, len(d.branches))
	copy(out, d.branches)
	return out
}

// Feasible reports whether the indicator assignment activates exactly one
// branch. active[i] is the indicator of branch i+1.
func (d *Disjunction) Feasible(active []bool) bool {
	return d.Validate(active) == nil
}

// Validate explains why an indicator assignment is infeasible.
func (d *Disjunction) Validate(active []bool) error {
	if len(active) != len(d.branches) {
		return fmt.Errorf("assignment has %d indicators, want %d", len(active), len(d.branches))
	}
	count := 0
	for _, a := range active {
		if a {
			count++
		}
	}
	if count != 1 {
		return fmt.Errorf("exactly one branch must be active, got %d", count)
	}
	return nil
}

// Select returns the indicator assignment that activates branch i only.
func (d *Disjunction) Select(i int) ([]bool, error) {
	if i < 1 || i > len(d.branches) {
		return nil, fmt.Errorf("branch %d out of range 1..%d", i, len(d.branches))
	}
	active := make([]bool, len(d.branches))
	active[i-1] = true
	return active, nil
}
