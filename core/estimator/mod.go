// Package estimator defines the cost estimator of a target ledger, which
// provides the native cost of executing a side effect on that ledger as a
// continuously-updated cell.
package estimator

import (
	"go.dedis.ch/executor/core"
	"go.dedis.ch/executor/core/sfx"
)

// Estimator provides the cost cells of the side effects of one target ledger.
type Estimator interface {
	// GetNativeTxCost returns the cell of the transaction cost, in the
	// fixed-point units of the native asset of the ledger, to execute the side
	// effect.
	GetNativeTxCost(s *sfx.SideEffect) (*core.Cell, error)
}
