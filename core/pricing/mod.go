// Package pricing defines the price oracle that provides the price of the
// assets, in the reference currency, as continuously-updated cells.
package pricing

import (
	"context"

	"go.dedis.ch/executor/core"
)

// Oracle provides the price cells of the assets.
type Oracle interface {
	// GetAssetPrice returns the price cell of the ticker. The same cell is
	// returned for every call with the same ticker.
	GetAssetPrice(ticker string) *core.Cell
}

// Source is a provider of prices that can be polled.
type Source interface {
	// Fetch returns the latest price of the ticker.
	Fetch(ctx context.Context, ticker string) (float64, error)
}
