// Package strategy implements the engines that decide whether a side effect is
// worth executing. A strategy is a pure function of the economics of the side
// effect: it returns the minimum profit the executor expects, or an error
// wrapping ErrRejected.
package strategy

import (
	"math"

	"go.dedis.ch/executor/core/sfx"
	"golang.org/x/xerrors"
)

// Strategy is the interface implemented by the strategies. It is declared by
// the side effects that consume it.
type Strategy = sfx.Strategy

// ErrRejected is the error wrapped by the strategies when a side effect is not
// worth executing.
var ErrRejected = xerrors.New("rejected")

// Margin is a strategy that expects a fixed minimum profit, or a yield on the
// reward when it is larger. It rejects the side effects with a transaction
// cost or an insurance above the ceilings, and requires an additional yield on
// the insurance for optimistic side effects as they are slashable.
//
// - implements sfx.Strategy
type Margin struct {
	// MinProfitUsd is the minimum profit in the reference currency.
	MinProfitUsd float64 `yaml:"minProfitUsd"`

	// MinYield is the minimum profit as a ratio of the reward value.
	MinYield float64 `yaml:"minYield"`

	// MaxTxCostUsd is the maximum transaction cost. Zero disables it.
	MaxTxCostUsd float64 `yaml:"maxTxCostUsd"`

	// MaxInsurance is the maximum insurance in the reward asset. Zero
	// disables it.
	MaxInsurance float64 `yaml:"maxInsurance"`

	// OptimisticPremium is the ratio of the insurance value that is added to
	// the minimum profit of optimistic side effects.
	OptimisticPremium float64 `yaml:"optimisticPremium"`
}

// NewMargin returns a margin strategy with the minimum profit and the minimum
// yield, and without ceilings.
func NewMargin(minProfitUsd, minYield float64) Margin {
	return Margin{
		MinProfitUsd: minProfitUsd,
		MinYield:     minYield,
	}
}

// Evaluate implements sfx.Strategy.
func (m Margin) Evaluate(e sfx.Economics) (float64, error) {
	if math.IsNaN(e.MaxProfitUsd) || math.IsInf(e.MaxProfitUsd, 0) {
		return 0, xerrors.Errorf("profit %v is not a number: %w",
			e.MaxProfitUsd, ErrRejected)
	}

	if m.MaxTxCostUsd > 0 && e.TxCostUsd > m.MaxTxCostUsd {
		return 0, xerrors.Errorf("tx cost %.4f above %.4f: %w",
			e.TxCostUsd, m.MaxTxCostUsd, ErrRejected)
	}

	if m.MaxInsurance > 0 && e.Insurance > m.MaxInsurance {
		return 0, xerrors.Errorf("insurance %.4f above %.4f: %w",
			e.Insurance, m.MaxInsurance, ErrRejected)
	}

	minProfit := math.Max(m.MinProfitUsd, m.MinYield*e.RewardUsd)

	if e.SecurityLevel == sfx.Optimistic {
		minProfit += m.OptimisticPremium * e.Insurance * e.RewardAssetPrice
	}

	if e.MaxProfitUsd < minProfit {
		return 0, xerrors.Errorf("profit %.4f below %.4f: %w",
			e.MaxProfitUsd, minProfit, ErrRejected)
	}

	return minProfit, nil
}

// Reject is a strategy that never accepts a side effect. It is the strategy of
// an executor that only observes.
//
// - implements sfx.Strategy
type Reject struct{}

// Evaluate implements sfx.Strategy. It always rejects.
func (Reject) Evaluate(sfx.Economics) (float64, error) {
	return 0, xerrors.Errorf("observer only: %w", ErrRejected)
}
