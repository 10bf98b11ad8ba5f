package sfx

import (
	"math"
	"math/big"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/executor/core"
	"go.dedis.ch/executor/core/gateway"
	"go.dedis.ch/executor/testing/fake"
	"golang.org/x/xerrors"
)

const delta = 1e-9

func TestNew(t *testing.T) {
	s, _ := makeSideEffect(t)

	require.Equal(t, "0x0123456789abcdef", s.ID())
	require.Equal(t, "0x012345", s.HumanID())
	require.Equal(t, "xtx", s.XtxID())
	require.Equal(t, 1, s.Step())
	require.Equal(t, "roco", s.Target().ID)
	require.Equal(t, Transfer, s.Action())
	require.Equal(t, Optimistic, s.SecurityLevel())
	require.Equal(t, Bidding, s.Status())
	require.Equal(t, Ready, s.TxStatus())
	require.False(t, s.IsBidder())
	require.False(t, s.WantToBid())
	require.Equal(t, 10.0, s.Reward())
	require.Equal(t, 1.0, s.Insurance())

	out := s.GetTxOutputs()
	require.Equal(t, int64(5), out.Amount.Int64())
	require.Equal(t, 0.05, out.AmountHuman)
	require.Equal(t, "ROC", out.Asset)

	require.Equal(t, []string{"0xdest", "5"}, s.Execute())
}

func TestNew_SecurityLevel(t *testing.T) {
	for _, typ := range []gateway.Type{gateway.ProgrammableExternal, gateway.OnCircuit} {
		gw := &gateway.Gateway{ID: "eth2", Ticker: "ETH", Decimals: 18, Type: typ}

		s, err := New(makeParams(), gw)
		require.NoError(t, err)
		require.Equal(t, Escrow, s.SecurityLevel())
	}

	gw := &gateway.Gateway{ID: "pdot", Ticker: "DOT", Type: gateway.ProgrammableInternal}

	s, err := New(makeParams(), gw)
	require.NoError(t, err)
	require.Equal(t, Optimistic, s.SecurityLevel())
}

func TestNew_UnknownAction(t *testing.T) {
	params := makeParams()
	params.Action = "swap"

	_, err := New(params, makeGateway())
	require.True(t, xerrors.Is(err, ErrUnknownAction))
	require.EqualError(t, err,
		"side effect '0x0123456789abcdef': action 'swap': unknown action")
}

func TestNew_BadArguments(t *testing.T) {
	params := makeParams()
	params.Args = params.Args[:2]

	_, err := New(params, makeGateway())
	require.EqualError(t, err,
		"side effect '0x0123456789abcdef': transfer expects 3 arguments, got 2")

	params = makeParams()
	params.Args[2] = "0xzz"

	_, err = New(params, makeGateway())
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to decode amount")

	_, err = New(makeParams(), nil)
	require.EqualError(t, err, "side effect '0x0123456789abcdef' has no target")
}

func TestSideEffect_ScenarioA(t *testing.T) {
	s, rec := makeSideEffect(t,
		WithStrategy(fakeStrategy{min: 1}),
		WithBidding(fakeBidding{fixed: 4}))

	cells := makeCells()
	require.NoError(t, cells.wire(s))

	e := s.Economics()
	require.InDelta(t, 2.0, e.TxCostUsd, delta)
	require.InDelta(t, 2.5, e.TxOutputCostUsd, delta)
	require.InDelta(t, 10.0, e.RewardUsd, delta)
	require.InDelta(t, 5.5, e.MaxProfitUsd, delta)
	require.Equal(t, 1.0, e.MinProfitUsd)

	require.True(t, s.WantToBid())
	require.Equal(t, Pending, s.TxStatus())
	require.Equal(t, 5, s.Subscriptions())

	bids := rec.getBids()
	require.Len(t, bids, 1)
	require.Equal(t, s.ID(), bids[0].SfxID)
	require.Equal(t, "xtx", bids[0].XtxID)
	require.Equal(t, "roco", bids[0].Target)
	require.NotEmpty(t, bids[0].ID)
	require.Equal(t, 4.0, bids[0].AmountHuman)
	require.Equal(t, "4000000000000", bids[0].Amount.String())
}

func TestSideEffect_AlreadyWired(t *testing.T) {
	s, _ := makeSideEffect(t)

	cells := makeCells()
	require.NoError(t, cells.wire(s))

	err := cells.wire(s)
	require.Equal(t, ErrAlreadyWired, err)
	require.Equal(t, 5, s.Subscriptions())

	err = s.SetRiskRewardParameters(nil, nil, nil, nil)
	require.EqualError(t, err, "missing risk/reward parameter")
}

func TestSideEffect_WireAfterTerminal(t *testing.T) {
	s, _ := makeSideEffect(t)

	require.NoError(t, s.DroppedAtBidding())

	err := makeCells().wire(s)
	require.True(t, xerrors.Is(err, ErrInvalidTransition))
}

func TestSideEffect_RecomputeBeforeWiring(t *testing.T) {
	s, rec := makeSideEffect(t, WithStrategy(fakeStrategy{min: 1}))

	s.RecomputeMaxProfit()

	require.Equal(t, 0.0, s.MaxProfit())
	require.Empty(t, rec.getBids())
}

func TestSideEffect_ScenarioB_Rejection(t *testing.T) {
	logger, check := fake.CheckLog("strategy rejected the side effect")

	s, rec := makeSideEffect(t,
		WithStrategy(fakeStrategy{err: xerrors.New("oops")}),
		WithLogger(logger.Level(zerolog.DebugLevel)))

	cells := makeCells()
	require.NoError(t, cells.wire(s))

	for i := 1; i <= 10; i++ {
		cells.nativePrice.Set(float64(i))
		cells.rewardPrice.Set(float64(i) / 2)
		cells.cost.Set(float64(i * 3))
	}

	require.Empty(t, rec.getBids())
	require.False(t, s.WantToBid())
	require.Equal(t, Ready, s.TxStatus())
	check(t)
}

func TestSideEffect_ScenarioC_CompetingBids(t *testing.T) {
	s, _ := makeSideEffect(t, WithStrategy(fakeStrategy{err: xerrors.New("no")}))

	require.NoError(t, makeCells().wire(s))

	circuit := gateway.NewCircuit()

	require.NoError(t, s.ProcessBid("alice", circuit.FromFloat(8)))
	require.Equal(t, 8.0, s.Reward())
	require.False(t, s.IsBidder())

	require.NoError(t, s.ProcessBid("bob", circuit.FromFloat(6)))
	require.Equal(t, 6.0, s.Reward())
	require.False(t, s.IsBidder())

	require.InDelta(t, 1.5, s.MaxProfit(), delta)
}

func TestSideEffect_OwnBidObserved(t *testing.T) {
	s, rec := makeSideEffect(t,
		WithStrategy(fakeStrategy{min: 1}),
		WithBidding(fakeBidding{fixed: 4}))

	require.NoError(t, makeCells().wire(s))

	circuit := gateway.NewCircuit()
	require.NoError(t, s.BidAccepted(circuit.FromFloat(4)))
	require.True(t, s.IsBidder())

	require.NoError(t, s.ProcessBid("executor", circuit.FromFloat(4)))
	require.True(t, s.IsBidder())
	require.Equal(t, 4.0, s.Reward())
	require.Len(t, rec.getBids(), 1)
}

func TestSideEffect_ScenarioD_LateUpdateAfterDrop(t *testing.T) {
	s, rec := makeSideEffect(t,
		WithStrategy(fakeStrategy{min: 1}),
		WithBidding(fakeBidding{fixed: 4}))

	cells := makeCells()
	require.NoError(t, cells.wire(s))
	require.NoError(t, s.BidRejected())

	require.NoError(t, s.DroppedAtBidding())
	require.Equal(t, 0, s.Subscriptions())
	require.Equal(t, 0, cells.nativePrice.Subscribers())

	cells.nativePrice.Set(1)
	s.RecomputeMaxProfit()

	require.Len(t, rec.getBids(), 1)
	require.InDelta(t, 5.5, s.MaxProfit(), delta)
	require.Equal(t, Ready, s.TxStatus())
}

func TestSideEffect_MutexRoundTrips(t *testing.T) {
	s, rec := makeSideEffect(t,
		WithStrategy(fakeStrategy{min: 0}),
		WithBidding(fakeBidding{share: 0.5}))

	cells := makeCells()
	require.NoError(t, cells.wire(s))

	// Profit 5.5, the first bid is emitted and the mutex is locked.
	require.Len(t, rec.getBids(), 1)
	require.InDelta(t, 2.75, rec.getBids()[0].AmountHuman, delta)
	require.Equal(t, Pending, s.TxStatus())

	// Profit changes while the bid is in flight: no new bid.
	cells.rewardPrice.Set(2)
	require.InDelta(t, 15.5, s.MaxProfit(), delta)
	require.Len(t, rec.getBids(), 1)

	require.NoError(t, s.BidRejected())
	require.Equal(t, Ready, s.TxStatus())
	require.False(t, s.IsBidder())

	// Profit 16.5, a new bid of 8.25 USD at a reward price of 2.
	cells.nativePrice.Set(50)
	require.Len(t, rec.getBids(), 2)
	require.InDelta(t, 4.125, rec.getBids()[1].AmountHuman, delta)
	require.Equal(t, Pending, s.TxStatus())

	require.NoError(t, s.BidAccepted(rec.getBids()[1].Amount))
	require.True(t, s.IsBidder())
	require.Equal(t, Ready, s.TxStatus())
	require.InDelta(t, 4.125, s.Reward(), delta)
	require.InDelta(t, 4.75, s.MaxProfit(), delta)
	require.Len(t, rec.getBids(), 2)

	// Another executor outbids: the executor competes again.
	require.NoError(t, s.ProcessBid("alice", gateway.NewCircuit().FromFloat(3)))
	require.False(t, s.IsBidder())
	require.InDelta(t, 2.5, s.MaxProfit(), delta)
	require.Len(t, rec.getBids(), 3)
	require.InDelta(t, 0.625, rec.getBids()[2].AmountHuman, delta)

	// Leaving the auction releases the mutex.
	require.NoError(t, s.ReadyToExecute())
	require.Equal(t, Ready, s.TxStatus())

	err := s.BidAccepted(big.NewInt(1))
	require.True(t, xerrors.Is(err, ErrInvalidTransition))
	require.Equal(t, Ready, s.TxStatus())
}

func TestSideEffect_NoUnprofitableBid(t *testing.T) {
	s, rec := makeSideEffect(t,
		WithStrategy(fakeStrategy{min: 0}),
		WithBidding(fakeBidding{fixed: 1000}))

	cells := makeCells()
	cells.rewardPrice.Set(2)
	require.NoError(t, cells.wire(s))

	bids := rec.getBids()
	require.Len(t, bids, 1)
	require.LessOrEqual(t, bids[0].AmountHuman*2, s.MaxProfit()+delta)
	require.InDelta(t, 15.5/2, bids[0].AmountHuman, delta)
}

func TestSideEffect_NegativeProfit(t *testing.T) {
	s, rec := makeSideEffect(t,
		WithStrategy(fakeStrategy{min: 0}),
		WithBidding(fakeBidding{fixed: 1}))

	cells := makeCells()
	cells.cost.Set(100000)
	require.NoError(t, cells.wire(s))

	require.Less(t, s.MaxProfit(), 0.0)
	require.Empty(t, rec.getBids())
	require.Equal(t, Ready, s.TxStatus())
}

func TestSideEffect_NoRewardPrice(t *testing.T) {
	s, rec := makeSideEffect(t,
		WithStrategy(fakeStrategy{min: 0}),
		WithBidding(fakeBidding{fixed: 1}))

	cells := makeCells()
	cells.rewardPrice.Set(0)

	require.NoError(t, cells.wire(s))
	require.InDelta(t, -4.5, s.MaxProfit(), delta)
	require.True(t, s.WantToBid())
	require.Empty(t, rec.getBids())
	require.Equal(t, Ready, s.TxStatus())
}

func TestSideEffect_NonFinitePrice(t *testing.T) {
	logger, check := fake.CheckLog("ignoring non-finite profit")

	s, rec := makeSideEffect(t,
		WithStrategy(fakeStrategy{min: 0}),
		WithBidding(fakeBidding{share: 0.5}),
		WithLogger(logger))

	cells := makeCells()
	require.NoError(t, cells.wire(s))
	require.NoError(t, s.BidRejected())

	cells.nativePrice.Set(math.NaN())
	require.InDelta(t, 5.5, s.MaxProfit(), delta)
	require.Equal(t, Ready, s.TxStatus())

	cells.nativePrice.Set(100)
	cells.rewardPrice.Set(math.Inf(1))
	require.InDelta(t, 5.5, s.MaxProfit(), delta)
	require.Equal(t, Ready, s.TxStatus())
	require.Len(t, rec.getBids(), 1)

	// Back to finite values, the executor bids again.
	cells.rewardPrice.Set(1)
	cells.cost.Set(4)
	require.InDelta(t, 3.5, s.MaxProfit(), delta)

	bids := rec.getBids()
	require.Len(t, bids, 2)
	require.InDelta(t, 1.75, bids[1].AmountHuman, delta)
	check(t)
}

func TestSideEffect_NonFiniteBid(t *testing.T) {
	s, rec := makeSideEffect(t,
		WithStrategy(fakeStrategy{min: 0}),
		WithBidding(fakeBidding{fixed: math.NaN()}))

	require.NoError(t, makeCells().wire(s))
	require.True(t, s.WantToBid())
	require.Empty(t, rec.getBids())
	require.Equal(t, Ready, s.TxStatus())
}

func TestSideEffect_NoBidInFlight(t *testing.T) {
	s, rec := makeSideEffect(t, WithStrategy(fakeStrategy{err: xerrors.New("no")}))

	require.NoError(t, makeCells().wire(s))
	require.Empty(t, rec.getBids())

	err := s.BidAccepted(gateway.NewCircuit().FromFloat(1))
	require.True(t, xerrors.Is(err, ErrInvalidTransition))
	require.EqualError(t, err, "no bid in flight: invalid transition")
	require.False(t, s.IsBidder())
	require.Equal(t, 10.0, s.Reward())

	err = s.BidRejected()
	require.True(t, xerrors.Is(err, ErrInvalidTransition))
	require.Equal(t, Ready, s.TxStatus())
}

func TestSideEffect_AnsweredOnce(t *testing.T) {
	s, rec := makeSideEffect(t,
		WithStrategy(fakeStrategy{min: 1}),
		WithBidding(fakeBidding{fixed: 4}))

	require.NoError(t, makeCells().wire(s))
	require.Len(t, rec.getBids(), 1)

	require.NoError(t, s.BidAccepted(rec.getBids()[0].Amount))

	err := s.BidAccepted(rec.getBids()[0].Amount)
	require.True(t, xerrors.Is(err, ErrInvalidTransition))

	err = s.BidRejected()
	require.True(t, xerrors.Is(err, ErrInvalidTransition))
	require.True(t, s.IsBidder())
}

func TestSideEffect_Lifecycle(t *testing.T) {
	s, rec := makeSideEffect(t)

	cells := makeCells()
	require.NoError(t, cells.wire(s))

	require.NoError(t, s.ReadyToExecute())
	require.NoError(t, s.ExecutedOnTarget([]byte{0xaa}, "executor", 42))

	inc := s.Inclusion()
	require.Equal(t, []byte{0xaa}, inc.Proof)
	require.Equal(t, "executor", inc.Executor)
	require.Equal(t, uint64(42), inc.Height)

	require.NoError(t, s.ConfirmedOnCircuit())
	require.Equal(t, Confirmed, s.Status())
	require.Equal(t, 0, s.Subscriptions())
	require.Equal(t, 0, cells.cost.Subscribers())

	events := rec.getStatuses()
	require.Len(t, events, 3)
	require.Equal(t, Bidding, events[0].Previous)
	require.Equal(t, PendingExecution, events[0].Status)
	require.Equal(t, ExecutedOnTarget, events[1].Status)
	require.Equal(t, uint64(42), events[1].Height)
	require.Equal(t, Confirmed, events[2].Status)
	require.Equal(t, "roco", events[2].Target)
}

func TestSideEffect_Reverted(t *testing.T) {
	s, _ := makeSideEffect(t)
	require.NoError(t, makeCells().wire(s))

	err := s.Reverted()
	require.True(t, xerrors.Is(err, ErrInvalidTransition))
	require.EqualError(t, err, "cannot apply reverted in bidding state: invalid transition")

	require.NoError(t, s.ReadyToExecute())
	require.NoError(t, s.Reverted())
	require.Equal(t, Reverted, s.Status())

	s, _ = makeSideEffect(t)
	require.NoError(t, s.ReadyToExecute())
	require.NoError(t, s.ExecutedOnTarget(nil, "executor", 1))
	require.NoError(t, s.Reverted())
	require.Equal(t, Reverted, s.Status())
}

func TestSideEffect_IdempotentCleanup(t *testing.T) {
	s, rec := makeSideEffect(t)

	cells := makeCells()
	require.NoError(t, cells.wire(s))
	require.Equal(t, 1, cells.reward(s))

	require.NoError(t, s.DroppedAtBidding())
	require.Equal(t, 0, s.Subscriptions())

	err := s.DroppedAtBidding()
	require.True(t, xerrors.Is(err, ErrInvalidTransition))

	err = s.Reverted()
	require.True(t, xerrors.Is(err, ErrInvalidTransition))

	require.Equal(t, Dropped, s.Status())
	require.Len(t, rec.getStatuses(), 1)
	require.Equal(t, 0, cells.cost.Subscribers())
	require.Equal(t, 0, cells.reward(s))
}

func TestSideEffect_ConfirmedWhileBidding(t *testing.T) {
	s, _ := makeSideEffect(t)

	err := s.ConfirmedOnCircuit()
	require.True(t, xerrors.Is(err, ErrInvalidTransition))
	require.Equal(t, Bidding, s.Status())

	err = s.ExecutedOnTarget(nil, "", 0)
	require.True(t, xerrors.Is(err, ErrInvalidTransition))
	require.Equal(t, Inclusion{}, s.Inclusion())
}

func TestSideEffect_Convergence(t *testing.T) {
	final := func(c cells) {
		c.cost.Set(3)
		c.nativePrice.Set(80)
		c.outputPrice.Set(40)
		c.rewardPrice.Set(1.2)
	}

	s1, _ := makeSideEffect(t)
	c1 := makeCells()
	require.NoError(t, c1.wire(s1))
	final(c1)

	s2, _ := makeSideEffect(t)
	c2 := makeCells()
	require.NoError(t, c2.wire(s2))
	c2.rewardPrice.Set(7)
	c2.outputPrice.Set(40)
	c2.rewardPrice.Set(1.2)
	c2.nativePrice.Set(80)
	c2.cost.Set(3)

	s3, _ := makeSideEffect(t)
	c3 := makeCells()
	final(c3)
	require.NoError(t, c3.wire(s3))

	require.Equal(t, s1.MaxProfit(), s2.MaxProfit())
	require.Equal(t, s1.MaxProfit(), s3.MaxProfit())
}

func TestSideEffect_ConcurrentUpdates(t *testing.T) {
	s, rec := makeSideEffect(t,
		WithStrategy(fakeStrategy{min: 0}),
		WithBidding(fakeBidding{share: 0.5}))

	cells := makeCells()
	require.NoError(t, cells.wire(s))

	wg := sync.WaitGroup{}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cells.nativePrice.Set(float64(i%5) + 1)
		}(i)
	}

	wg.Wait()

	cells.nativePrice.Set(100)

	// Only the first bid went through as nobody answered it.
	require.Len(t, rec.getBids(), 1)
	require.InDelta(t, 5.5, s.MaxProfit(), delta)
}

func TestSideEffect_ExactComparison(t *testing.T) {
	s, _ := makeSideEffect(t, WithStrategy(fakeStrategy{min: 0}))

	cells := makeCells()
	require.NoError(t, cells.wire(s))

	before := promValue(t)
	cells.cost.Set(2.0000001)
	require.Equal(t, before+1, promValue(t))
}

func TestSideEffect_EpsilonComparison(t *testing.T) {
	s, rec := makeSideEffect(t,
		WithStrategy(fakeStrategy{min: 0}),
		WithBidding(fakeBidding{share: 0.5}),
		WithEpsilon(0.01))

	cells := makeCells()
	require.NoError(t, cells.wire(s))
	require.NoError(t, s.BidRejected())

	// A drift smaller than the tolerance does not trigger a new decision, so
	// no bid is emitted even though the mutex is free.
	cells.cost.Set(2.0000001)
	require.Len(t, rec.getBids(), 1)
	require.InDelta(t, 5.5, s.MaxProfit(), delta)

	cells.cost.Set(4)
	require.Len(t, rec.getBids(), 2)
	require.InDelta(t, 3.5, s.MaxProfit(), delta)
}

func TestNext_Completeness(t *testing.T) {
	valid := map[Status][]Event{
		Bidding:          {BidEvent, ReadyEvent, DroppedEvent},
		PendingExecution: {ExecutedEvent, RevertedEvent},
		ExecutedOnTarget: {ConfirmedEvent, RevertedEvent},
	}

	statuses := []Status{Bidding, PendingExecution, ExecutedOnTarget,
		Confirmed, Dropped, Reverted}
	events := []Event{BidEvent, ReadyEvent, ExecutedEvent, ConfirmedEvent,
		DroppedEvent, RevertedEvent}

	for _, from := range statuses {
		for _, evt := range events {
			_, err := Next(from, evt)

			allowed := false
			for _, e := range valid[from] {
				allowed = allowed || e == evt
			}

			if allowed {
				require.NoError(t, err, "%v/%v", from, evt)
			} else {
				require.True(t, xerrors.Is(err, ErrInvalidTransition), "%v/%v", from, evt)
			}
		}
	}
}

func TestStatus_String(t *testing.T) {
	require.Equal(t, "bidding", Bidding.String())
	require.Equal(t, "pending-execution", PendingExecution.String())
	require.Equal(t, "executed-on-target", ExecutedOnTarget.String())
	require.Equal(t, "confirmed", Confirmed.String())
	require.Equal(t, "dropped", Dropped.String())
	require.Equal(t, "reverted", Reverted.String())
	require.Equal(t, "unknown", Status(99).String())

	require.True(t, Dropped.IsTerminal())
	require.False(t, ExecutedOnTarget.IsTerminal())

	require.Equal(t, "pending", Pending.String())
	require.Equal(t, "ready", Ready.String())
	require.Equal(t, "escrow", Escrow.String())
	require.Equal(t, "optimistic", Optimistic.String())
	require.Equal(t, "transfer", Transfer.String())
	require.Equal(t, "unknown", Event(99).String())
}

func TestParseAction(t *testing.T) {
	action, err := ParseAction("0x7472616e")
	require.NoError(t, err)
	require.Equal(t, Transfer, action)

	_, err = ParseAction("")
	require.True(t, xerrors.Is(err, ErrUnknownAction))
}

// -----------------------------------------------------------------------------
// Utility functions

func makeGateway() *gateway.Gateway {
	return &gateway.Gateway{
		ID:       "roco",
		Ticker:   "ROC",
		Decimals: 2,
		Type:     gateway.TxOnly,
	}
}

func makeParams() Params {
	circuit := gateway.NewCircuit()

	return Params{
		ID:        "0x0123456789abcdef",
		XtxID:     "xtx",
		Step:      1,
		Target:    "roco",
		Action:    "tran",
		Args:      []string{"0xsender", "0xdest", gateway.EncodeLE(big.NewInt(5), 16)},
		MaxReward: circuit.FromFloat(10),
		Insurance: circuit.FromFloat(1),
	}
}

func makeSideEffect(t *testing.T, opts ...Option) (*SideEffect, *recorder) {
	rec := &recorder{}

	watcher := core.NewWatcher()
	watcher.Add(rec)

	opts = append([]Option{
		WithNotifier(watcher),
		WithSigner("executor"),
		WithLogger(zerolog.Nop()),
	}, opts...)

	s, err := New(makeParams(), makeGateway(), opts...)
	require.NoError(t, err)

	return s, rec
}

type cells struct {
	cost        *core.Cell
	nativePrice *core.Cell
	outputPrice *core.Cell
	rewardPrice *core.Cell
}

func makeCells() cells {
	return cells{
		cost:        core.NewCell(2),
		nativePrice: core.NewCell(100),
		outputPrice: core.NewCell(50),
		rewardPrice: core.NewCell(1),
	}
}

func (c cells) wire(s *SideEffect) error {
	return s.SetRiskRewardParameters(c.cost, c.nativePrice, c.outputPrice, c.rewardPrice)
}

func (c cells) reward(s *SideEffect) int {
	return s.reward.Subscribers()
}

type recorder struct {
	sync.Mutex
	bids     []BidRequest
	statuses []StatusEvent
}

func (r *recorder) NotifyCallback(evt interface{}) {
	r.Lock()
	defer r.Unlock()

	switch e := evt.(type) {
	case BidRequest:
		r.bids = append(r.bids, e)
	case StatusEvent:
		r.statuses = append(r.statuses, e)
	}
}

func (r *recorder) getBids() []BidRequest {
	r.Lock()
	defer r.Unlock()

	return append([]BidRequest{}, r.bids...)
}

func (r *recorder) getStatuses() []StatusEvent {
	r.Lock()
	defer r.Unlock()

	return append([]StatusEvent{}, r.statuses...)
}

type fakeStrategy struct {
	min float64
	err error
}

func (s fakeStrategy) Evaluate(Economics) (float64, error) {
	return s.min, s.err
}

type fakeBidding struct {
	fixed float64
	share float64
}

func (b fakeBidding) ComputeBid(e Economics) float64 {
	if b.share > 0 {
		return e.MaxProfitUsd * b.share
	}

	return b.fixed
}

func promValue(t *testing.T) float64 {
	return testutil.ToFloat64(promRecomputations)
}
