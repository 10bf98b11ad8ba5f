package sfx

import "golang.org/x/xerrors"

// Event is a lifecycle event that a side effect can receive.
type Event byte

const (
	// BidEvent is any bid related event: an observed bid, or the outcome of
	// the own submission.
	BidEvent Event = iota

	// ReadyEvent is the conclusion of the auction.
	ReadyEvent

	// ExecutedEvent is the execution on the target ledger.
	ExecutedEvent

	// ConfirmedEvent is the acceptance of the proof by the circuit.
	ConfirmedEvent

	// DroppedEvent is the timeout of the auction.
	DroppedEvent

	// RevertedEvent is the abort of the transaction.
	RevertedEvent
)

func (e Event) String() string {
	switch e {
	case BidEvent:
		return "bid"
	case ReadyEvent:
		return "ready"
	case ExecutedEvent:
		return "executed"
	case ConfirmedEvent:
		return "confirmed"
	case DroppedEvent:
		return "dropped"
	case RevertedEvent:
		return "reverted"
	default:
		return "unknown"
	}
}

// transitions is the complete table of the lifecycle. A pair absent from the
// table is an invalid transition.
var transitions = map[Status]map[Event]Status{
	Bidding: {
		BidEvent:     Bidding,
		ReadyEvent:   PendingExecution,
		DroppedEvent: Dropped,
	},
	PendingExecution: {
		ExecutedEvent: ExecutedOnTarget,
		RevertedEvent: Reverted,
	},
	ExecutedOnTarget: {
		ConfirmedEvent: Confirmed,
		RevertedEvent:  Reverted,
	},
	Confirmed: {},
	Dropped:   {},
	Reverted:  {},
}

// Next returns the status reached after the event, or an error if the event is
// not allowed from the status.
func Next(from Status, evt Event) (Status, error) {
	to, found := transitions[from][evt]
	if !found {
		return from, xerrors.Errorf("cannot apply %v in %v state: %w",
			evt, from, ErrInvalidTransition)
	}

	return to, nil
}
