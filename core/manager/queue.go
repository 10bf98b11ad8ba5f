package manager

import (
	"sort"

	"go.dedis.ch/executor/core/sfx"
)

// Queue is the bookkeeping of the side effects of one target ledger. It is
// only informative and never drives the lifecycle.
type Queue struct {
	// BlockHeight is the latest height of the ledger known by the circuit.
	BlockHeight  uint64
	IsBidding    []string
	IsExecuting  []string
	IsConfirming map[uint64][]string
	Complete     []string
}

func newQueue() *Queue {
	return &Queue{
		IsConfirming: make(map[uint64][]string),
	}
}

// ConfirmRequest is the notification emitted when the circuit knows the
// headers of a ledger up to the inclusion height of executed side effects.
// The side effects are ready for the confirmation of their inclusion proof.
type ConfirmRequest struct {
	Gateway     string
	Height      uint64
	SideEffects []string
}

// apply moves the side effect to the list of its new status.
func (q *Queue) apply(evt sfx.StatusEvent) {
	q.drop(evt.SfxID)

	switch evt.Status {
	case sfx.Bidding:
		q.IsBidding = append(q.IsBidding, evt.SfxID)
	case sfx.PendingExecution:
		q.IsExecuting = append(q.IsExecuting, evt.SfxID)
	case sfx.ExecutedOnTarget:
		q.IsConfirming[evt.Height] = append(q.IsConfirming[evt.Height], evt.SfxID)
	case sfx.Confirmed:
		q.Complete = append(q.Complete, evt.SfxID)
	}
}

// drop removes the side effect from the lists of pending work.
func (q *Queue) drop(id string) {
	q.IsBidding = without(q.IsBidding, id)
	q.IsExecuting = without(q.IsExecuting, id)

	for height, ids := range q.IsConfirming {
		ids = without(ids, id)
		if len(ids) == 0 {
			delete(q.IsConfirming, height)
		} else {
			q.IsConfirming[height] = ids
		}
	}
}

// covered pops the side effects included at a height lower or equal to the
// given one, in the order of the heights.
func (q *Queue) covered(height uint64) []string {
	heights := make([]uint64, 0, len(q.IsConfirming))
	for h := range q.IsConfirming {
		if h <= height {
			heights = append(heights, h)
		}
	}

	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })

	var ids []string
	for _, h := range heights {
		ids = append(ids, q.IsConfirming[h]...)
		delete(q.IsConfirming, h)
	}

	return ids
}

func (q *Queue) clone() Queue {
	confirming := make(map[uint64][]string, len(q.IsConfirming))
	for h, ids := range q.IsConfirming {
		confirming[h] = append([]string{}, ids...)
	}

	return Queue{
		BlockHeight:  q.BlockHeight,
		IsBidding:    append([]string{}, q.IsBidding...),
		IsExecuting:  append([]string{}, q.IsExecuting...),
		IsConfirming: confirming,
		Complete:     append([]string{}, q.Complete...),
	}
}

func without(ids []string, id string) []string {
	for i, other := range ids {
		if other == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}

	return ids
}
