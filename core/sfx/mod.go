// Package sfx implements the side effect, the atomic action of a cross-chain
// transaction that the executor may execute on a target ledger.
//
// A side effect owns its lifecycle and the reactive computation of its
// economics. It subscribes to the cells of the transaction cost, the asset
// prices and its own reward and recomputes the maximum profit every time one
// of them changes. When the profit changes, the strategy decides whether the
// side effect is worth executing and, if it is and no bid is in flight, a bid
// request is notified to the observers.
//
// The lifecycle is the following:
//
//	Bidding -> PendingExecution -> ExecutedOnTarget -> Confirmed
//	   |              |                   |
//	   v              +-----> Reverted <--+
//	Dropped
//
// Entering a terminal state releases every subscription.
package sfx

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
	"go.dedis.ch/executor"
	"golang.org/x/xerrors"
)

var (
	// ErrUnknownAction is returned when a side effect is created with an
	// action that the executor does not support.
	ErrUnknownAction = xerrors.New("unknown action")

	// ErrInvalidTransition is returned when a lifecycle event is not allowed
	// from the current state.
	ErrInvalidTransition = xerrors.New("invalid transition")

	// ErrAlreadyWired is returned when the risk/reward parameters are set
	// more than once.
	ErrAlreadyWired = xerrors.New("risk/reward parameters already set")
)

// defines prometheus metrics
var (
	promBidRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "executor_sfx_bid_requests_total",
		Help: "total number of bid requests emitted by the side effects",
	})

	promRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "executor_sfx_strategy_rejections_total",
		Help: "total number of strategy evaluations that rejected a side effect",
	})

	promRecomputations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "executor_sfx_profit_changes_total",
		Help: "total number of maximum profit changes",
	})
)

func init() {
	executor.PromCollectors = append(executor.PromCollectors, promBidRequests,
		promRejections, promRecomputations)
}

// Status is the lifecycle state of a side effect.
type Status byte

const (
	// Bidding is the initial state where executors compete for the side
	// effect.
	Bidding Status = iota

	// PendingExecution is the state once the auction is concluded and the
	// transaction is ready to be executed.
	PendingExecution

	// ExecutedOnTarget is the state once the action has been performed on the
	// target and the inclusion proof is known.
	ExecutedOnTarget

	// Confirmed is the terminal state once the circuit accepted the proof.
	Confirmed

	// Dropped is the terminal state when the auction timed out.
	Dropped

	// Reverted is the terminal state when the transaction has been aborted.
	Reverted
)

func (s Status) String() string {
	switch s {
	case Bidding:
		return "bidding"
	case PendingExecution:
		return "pending-execution"
	case ExecutedOnTarget:
		return "executed-on-target"
	case Confirmed:
		return "confirmed"
	case Dropped:
		return "dropped"
	case Reverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// IsTerminal returns true when the status does not have any successor.
func (s Status) IsTerminal() bool {
	return s == Confirmed || s == Dropped || s == Reverted
}

// TxStatus is the state of the bid submission mutex.
type TxStatus byte

const (
	// Ready means no bid is in flight.
	Ready TxStatus = iota

	// Pending means a bid has been requested and its outcome is unknown.
	Pending
)

func (s TxStatus) String() string {
	if s == Pending {
		return "pending"
	}

	return "ready"
}

// SecurityLevel is the way the execution is secured by the protocol.
type SecurityLevel byte

const (
	// Optimistic side effects are executed on trust and slashable afterwards.
	Optimistic SecurityLevel = iota

	// Escrow side effects hold the funds in escrow until confirmation.
	Escrow
)

func (l SecurityLevel) String() string {
	if l == Escrow {
		return "escrow"
	}

	return "optimistic"
}

// Action is the closed set of actions the executor knows how to execute.
type Action byte

const (
	// Transfer moves an amount of the native asset of the target to a
	// destination account.
	Transfer Action = iota
)

// encoded names of the actions, as they appear on the circuit.
var actionNames = map[string]Action{
	"tran":       Transfer,
	"0x7472616e": Transfer,
}

func (a Action) String() string {
	switch a {
	case Transfer:
		return "transfer"
	default:
		return "unknown"
	}
}

// ParseAction returns the action of the encoded name.
func ParseAction(encoded string) (Action, error) {
	action, found := actionNames[encoded]
	if !found {
		return 0, xerrors.Errorf("action '%s': %w", encoded, ErrUnknownAction)
	}

	return action, nil
}

// TxOutput is what the execution of a side effect consumes on the target.
type TxOutput struct {
	// Amount in the fixed-point representation of the asset.
	Amount *big.Int

	AmountHuman float64

	Asset string
}

// Inclusion is the proof data gathered once the side effect is executed on
// its target.
type Inclusion struct {
	Proof    []byte
	Executor string
	Height   uint64
}

// Economics is a snapshot of the economic values of a side effect. Reward and
// insurance are expressed in human units of the reward asset and every *Usd
// value in the reference currency.
type Economics struct {
	SfxID            string
	SecurityLevel    SecurityLevel
	Reward           float64
	Insurance        float64
	RewardAssetPrice float64
	TxCostNative     float64
	TxCostUsd        float64
	TxOutputCostUsd  float64
	RewardUsd        float64
	MaxProfitUsd     float64
	MinProfitUsd     float64
	IsBidder         bool
}

// Strategy decides whether a side effect is worth executing. It returns the
// minimum profit the executor expects, or an error when the side effect is
// rejected. An implementation must not keep any state related to a specific
// side effect.
type Strategy interface {
	Evaluate(Economics) (float64, error)
}

// BiddingEngine computes the amount of a bid in the reference currency. The
// result must not exceed the maximum profit of the economics.
type BiddingEngine interface {
	ComputeBid(Economics) float64
}

// Notifier receives the notifications of the side effects. The events are
// either BidRequest or StatusEvent values.
type Notifier interface {
	Notify(event interface{})
}

// BidRequest is the notification emitted when a side effect wants to bid.
// The submitter must eventually answer with an acceptance or a rejection.
type BidRequest struct {
	// ID correlates the request with the logs of the submission.
	ID          string
	SfxID       string
	XtxID       string
	Target      string
	Amount      *big.Int
	AmountHuman float64
}

// StatusEvent is the notification emitted after every lifecycle transition.
type StatusEvent struct {
	SfxID    string
	XtxID    string
	Target   string
	Previous Status
	Status   Status
	// Height is the inclusion height on the target, only set once the side
	// effect is executed.
	Height uint64
}
