// Package bidding implements the engines that compute the amount of a bid, in
// the reference currency, once the strategy accepted a side effect. The
// amount never exceeds the maximum profit of the side effect.
package bidding

import "go.dedis.ch/executor/core/sfx"

// Engine is the interface implemented by the bidding engines. It is declared
// by the side effects that consume it.
type Engine = sfx.BiddingEngine

// Share bids the minimum profit plus a share of the surplus above it.
//
// - implements sfx.BiddingEngine
type Share struct {
	Ratio float64
}

// NewShare returns a share engine. The ratio is clamped to [0, 1].
func NewShare(ratio float64) Share {
	if ratio < 0 {
		ratio = 0
	}

	if ratio > 1 {
		ratio = 1
	}

	return Share{Ratio: ratio}
}

// ComputeBid implements sfx.BiddingEngine.
func (s Share) ComputeBid(e sfx.Economics) float64 {
	surplus := e.MaxProfitUsd - e.MinProfitUsd
	if surplus < 0 {
		surplus = 0
	}

	return capped(e.MinProfitUsd+s.Ratio*surplus, e)
}

// Undercut bids the maximum profit minus a step, and never less than the
// minimum profit.
//
// - implements sfx.BiddingEngine
type Undercut struct {
	Step float64
}

// NewUndercut returns an undercut engine.
func NewUndercut(step float64) Undercut {
	return Undercut{Step: step}
}

// ComputeBid implements sfx.BiddingEngine.
func (u Undercut) ComputeBid(e sfx.Economics) float64 {
	bid := e.MaxProfitUsd - u.Step
	if bid < e.MinProfitUsd {
		bid = e.MinProfitUsd
	}

	return capped(bid, e)
}

// Greedy bids the whole maximum profit.
//
// - implements sfx.BiddingEngine
type Greedy struct{}

// ComputeBid implements sfx.BiddingEngine.
func (Greedy) ComputeBid(e sfx.Economics) float64 {
	return e.MaxProfitUsd
}

// New returns the engine of the given name, or nil if it is unknown.
func New(name string, param float64) Engine {
	switch name {
	case "share":
		return NewShare(param)
	case "undercut":
		return NewUndercut(param)
	case "greedy":
		return Greedy{}
	default:
		return nil
	}
}

func capped(bid float64, e sfx.Economics) float64 {
	if bid > e.MaxProfitUsd {
		return e.MaxProfitUsd
	}

	return bid
}
