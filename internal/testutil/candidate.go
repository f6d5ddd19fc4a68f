package testutil

import (
	"context"
	"sync"

	"github.com/roach88/unitsel/internal/state"
	"github.com/roach88/unitsel/internal/unit"
)

// CallLog records calls in order. Safe for concurrent use.
type CallLog struct {
	mu    sync.Mutex
	calls []string
}

// Add appends a call.
func (l *CallLog) Add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

// Calls returns a copy of the recorded calls. Nil when nothing was recorded.
func (l *CallLog) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.calls) == 0 {
		return nil
	}
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

// Reset forgets every recorded call.
func (l *CallLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}

// Candidate is a Passthrough that logs each Initialize call by unit name
// and can be made to fail.
type Candidate struct {
	*unit.Passthrough

	// Log receives the unit name on every Initialize call. May be nil.
	Log *CallLog

	// Err, when set, is returned by Initialize instead of running the
	// passthrough.
	Err error
}

// NewCandidate builds a logging candidate with the given points.
func NewCandidate(name string, pkg state.Package, log *CallLog, inlets, outlets []string) (*Candidate, error) {
	p, err := unit.NewPassthrough(name, pkg, nil, inlets, outlets)
	if err != nil {
		return nil, err
	}
	return &Candidate{Passthrough: p, Log: log}, nil
}

// Initialize implements unit.Candidate.
func (c *Candidate) Initialize(ctx context.Context, opts unit.Options) error {
	if c.Log != nil {
		c.Log.Add(c.Name())
	}
	if c.Err != nil {
		return c.Err
	}
	return c.Passthrough.Initialize(ctx, opts)
}

var _ unit.Candidate = (*Candidate)(nil)
