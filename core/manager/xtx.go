package manager

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.dedis.ch/executor/core/sfx"
	"golang.org/x/xerrors"
)

// Xtx is a cross-chain transaction made of ordered steps of side effects. It
// owns its side effects.
type Xtx struct {
	sync.RWMutex

	ID    string
	Steps [][]*sfx.SideEffect

	sideEffects map[string]*sfx.SideEffect
	completed   bool
}

// NewXtx creates a transaction from the side effects of every step.
func NewXtx(id string, steps [][]*sfx.SideEffect) *Xtx {
	xtx := &Xtx{
		ID:          id,
		Steps:       steps,
		sideEffects: make(map[string]*sfx.SideEffect),
	}

	for _, step := range steps {
		for _, s := range step {
			xtx.sideEffects[s.ID()] = s
		}
	}

	return xtx
}

// Get returns the side effect of the transaction with the identifier.
func (x *Xtx) Get(id string) (*sfx.SideEffect, bool) {
	x.RLock()
	defer x.RUnlock()

	s, found := x.sideEffects[id]
	return s, found
}

// All returns the side effects of the transaction in the order of the steps.
func (x *Xtx) All() []*sfx.SideEffect {
	x.RLock()
	defer x.RUnlock()

	all := make([]*sfx.SideEffect, 0, len(x.sideEffects))
	for _, step := range x.Steps {
		all = append(all, step...)
	}

	return all
}

// Len returns the number of side effects.
func (x *Xtx) Len() int {
	x.RLock()
	defer x.RUnlock()

	return len(x.sideEffects)
}

// Completed returns true when the circuit announced the completion of the
// transaction.
func (x *Xtx) Completed() bool {
	x.RLock()
	defer x.RUnlock()

	return x.completed
}

func (x *Xtx) remove(id string) {
	x.Lock()
	defer x.Unlock()

	delete(x.sideEffects, id)

	for i, step := range x.Steps {
		kept := step[:0]
		for _, s := range step {
			if s.ID() != id {
				kept = append(kept, s)
			}
		}

		x.Steps[i] = kept
	}
}

// BatchError gathers the failures of an operation applied to several side
// effects, indexed by side effect identifier.
type BatchError struct {
	Op       string
	Failures map[string]error
}

func newBatchError(op string) *BatchError {
	return &BatchError{
		Op:       op,
		Failures: make(map[string]error),
	}
}

// Error implements error. It returns the failures sorted by identifier.
func (e *BatchError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	msgs := make([]string, len(ids))
	for i, id := range ids {
		msgs[i] = fmt.Sprintf("%s: %v", id, e.Failures[id])
	}

	return fmt.Sprintf("failed to %s %d side effect(s): %s",
		e.Op, len(ids), strings.Join(msgs, "; "))
}

// Is returns true if any of the failures matches the target.
func (e *BatchError) Is(target error) bool {
	for _, err := range e.Failures {
		if xerrors.Is(err, target) {
			return true
		}
	}

	return false
}

func (e *BatchError) add(id string, err error) {
	e.Failures[id] = err
}

// errOrNil returns nil when there is no failure so that the result can be
// returned directly as an error.
func (e *BatchError) errOrNil() error {
	if len(e.Failures) == 0 {
		return nil
	}

	return e
}
