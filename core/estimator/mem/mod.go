// Package mem implements an in-memory cost estimator where the cost only
// depends on the action of the side effect.
package mem

import (
	"sync"

	"go.dedis.ch/executor/core"
	"go.dedis.ch/executor/core/sfx"
	"golang.org/x/xerrors"
)

// Estimator is an estimator with one cost cell per action.
//
// - implements estimator.Estimator
type Estimator struct {
	sync.Mutex

	costs map[sfx.Action]*core.Cell
}

// NewEstimator creates a new estimator without any known cost.
func NewEstimator() *Estimator {
	return &Estimator{
		costs: make(map[sfx.Action]*core.Cell),
	}
}

// SetCost updates the native cost of the action.
func (e *Estimator) SetCost(action sfx.Action, native float64) {
	e.Lock()

	cell, found := e.costs[action]
	if !found {
		cell = core.NewCell(native)
		e.costs[action] = cell
	}

	e.Unlock()

	if found {
		cell.Set(native)
	}
}

// GetNativeTxCost implements estimator.Estimator. It returns the cell of the
// action of the side effect, or an error if the action has no cost.
func (e *Estimator) GetNativeTxCost(s *sfx.SideEffect) (*core.Cell, error) {
	e.Lock()
	defer e.Unlock()

	cell, found := e.costs[s.Action()]
	if !found {
		return nil, xerrors.Errorf("no cost for action %v", s.Action())
	}

	return cell, nil
}
