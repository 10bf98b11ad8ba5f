package sfx

import (
	"math"
	"math/big"
	"sync"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.dedis.ch/executor"
	"go.dedis.ch/executor/core"
	"go.dedis.ch/executor/core/gateway"
	"golang.org/x/xerrors"
)

const humanIDLength = 8

// Params are the decoded fields of a side effect as it is announced by the
// circuit.
type Params struct {
	ID     string
	XtxID  string
	Step   int
	Target string
	// Action is the encoded name of the action, for instance "tran".
	Action string
	// Args are the encoded arguments of the action. A transfer expects the
	// sender, the destination and the little-endian amount.
	Args      []string
	MaxReward *big.Int
	Insurance *big.Int
}

type template struct {
	circuit  *gateway.Gateway
	strategy Strategy
	bidding  BiddingEngine
	signer   string
	notifier Notifier
	epsilon  float64
	logger   zerolog.Logger
}

// Option is the type of options to create a side effect.
type Option func(*template)

// WithCircuit sets the gateway of the reward asset. It defaults to the
// circuit gateway.
func WithCircuit(gw *gateway.Gateway) Option {
	return func(tmpl *template) {
		tmpl.circuit = gw
	}
}

// WithStrategy sets the strategy engine.
func WithStrategy(s Strategy) Option {
	return func(tmpl *template) {
		tmpl.strategy = s
	}
}

// WithBidding sets the bidding engine.
func WithBidding(b BiddingEngine) Option {
	return func(tmpl *template) {
		tmpl.bidding = b
	}
}

// WithSigner sets the account of the executor on the circuit, used to
// recognize its own bids.
func WithSigner(account string) Option {
	return func(tmpl *template) {
		tmpl.signer = account
	}
}

// WithNotifier sets the notifier that receives the bid requests and the
// status events.
func WithNotifier(n Notifier) Option {
	return func(tmpl *template) {
		tmpl.notifier = n
	}
}

// WithEpsilon sets the tolerance under which a new maximum profit is
// considered unchanged. The default is an exact comparison.
func WithEpsilon(epsilon float64) Option {
	return func(tmpl *template) {
		tmpl.epsilon = epsilon
	}
}

// WithLogger sets the logger of the side effect.
func WithLogger(l zerolog.Logger) Option {
	return func(tmpl *template) {
		tmpl.logger = l
	}
}

// SideEffect is one action to execute on a target ledger.
//
// Every method is safe for concurrent use. The notifications are emitted after
// the internal lock is released so that observers can call back the side
// effect.
type SideEffect struct {
	sync.Mutex

	id      string
	humanID string
	xtxID   string
	step    int
	action  Action
	args    []string
	outputs TxOutput

	target        *gateway.Gateway
	circuit       *gateway.Gateway
	securityLevel SecurityLevel

	status       Status
	txStatus     TxStatus
	isBidder     bool
	wantToBid    bool
	minProfitUsd float64
	signer       string

	insurance float64
	reward    *core.Cell

	txCostNative       *core.Cell
	nativeAssetPrice   *core.Cell
	txOutputAssetPrice *core.Cell
	rewardAssetPrice   *core.Cell
	subscriptions      []*core.Subscription
	wired              bool

	txCostUsd       float64
	txOutputCostUsd float64
	rewardUsd       float64
	maxProfitUsd    float64
	epsilon         float64

	inclusion Inclusion

	strategy Strategy
	bidding  BiddingEngine
	notifier Notifier
	logger   zerolog.Logger
}

// New creates a side effect targeting the gateway. It returns an error if the
// action or its arguments cannot be decoded.
func New(params Params, target *gateway.Gateway, opts ...Option) (*SideEffect, error) {
	if target == nil {
		return nil, xerrors.Errorf("side effect '%s' has no target", params.ID)
	}

	tmpl := template{
		circuit:  gateway.NewCircuit(),
		strategy: rejectAll{},
		bidding:  maxBid{},
		notifier: core.NewWatcher(),
		logger:   executor.Logger,
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	action, err := ParseAction(params.Action)
	if err != nil {
		return nil, xerrors.Errorf("side effect '%s': %w", params.ID, err)
	}

	humanID := params.ID
	if len(humanID) > humanIDLength {
		humanID = humanID[:humanIDLength]
	}

	s := &SideEffect{
		id:            params.ID,
		humanID:       humanID,
		xtxID:         params.XtxID,
		step:          params.Step,
		action:        action,
		args:          params.Args,
		target:        target,
		circuit:       tmpl.circuit,
		securityLevel: evalSecurityLevel(target.Type),
		status:        Bidding,
		txStatus:      Ready,
		signer:        tmpl.signer,
		insurance:     tmpl.circuit.ToFloat(params.Insurance),
		reward:        core.NewCell(tmpl.circuit.ToFloat(params.MaxReward)),
		epsilon:       tmpl.epsilon,
		strategy:      tmpl.strategy,
		bidding:       tmpl.bidding,
		notifier:      tmpl.notifier,
		logger: tmpl.logger.With().
			Str("sfx", humanID).
			Str("target", target.ID).
			Logger(),
	}

	s.outputs, err = s.decodeOutputs()
	if err != nil {
		return nil, xerrors.Errorf("side effect '%s': %v", params.ID, err)
	}

	return s, nil
}

// ID returns the unique identifier of the side effect.
func (s *SideEffect) ID() string {
	return s.id
}

// HumanID returns the short identifier used in the logs.
func (s *SideEffect) HumanID() string {
	return s.humanID
}

// XtxID returns the identifier of the owning transaction.
func (s *SideEffect) XtxID() string {
	return s.xtxID
}

// Step returns the position of the side effect in the transaction.
func (s *SideEffect) Step() int {
	return s.step
}

// Target returns the gateway of the target ledger.
func (s *SideEffect) Target() *gateway.Gateway {
	return s.target
}

// Action returns the action of the side effect.
func (s *SideEffect) Action() Action {
	return s.action
}

// SecurityLevel returns the security level derived from the target.
func (s *SideEffect) SecurityLevel() SecurityLevel {
	return s.securityLevel
}

// Status returns the current lifecycle state.
func (s *SideEffect) Status() Status {
	s.Lock()
	defer s.Unlock()

	return s.status
}

// TxStatus returns the state of the bid submission mutex.
func (s *SideEffect) TxStatus() TxStatus {
	s.Lock()
	defer s.Unlock()

	return s.txStatus
}

// IsBidder returns true if the executor currently holds the winning bid.
func (s *SideEffect) IsBidder() bool {
	s.Lock()
	defer s.Unlock()

	return s.isBidder
}

// WantToBid returns the last verdict of the strategy.
func (s *SideEffect) WantToBid() bool {
	s.Lock()
	defer s.Unlock()

	return s.wantToBid
}

// Reward returns the current reward in human units of the reward asset.
func (s *SideEffect) Reward() float64 {
	return s.reward.Get()
}

// Insurance returns the insurance in human units of the reward asset.
func (s *SideEffect) Insurance() float64 {
	return s.insurance
}

// Inclusion returns the proof data of the execution on the target.
func (s *SideEffect) Inclusion() Inclusion {
	s.Lock()
	defer s.Unlock()

	return s.inclusion
}

// Subscriptions returns the number of subscriptions currently held.
func (s *SideEffect) Subscriptions() int {
	s.Lock()
	defer s.Unlock()

	return len(s.subscriptions)
}

// Economics returns a snapshot of the current economic values.
func (s *SideEffect) Economics() Economics {
	s.Lock()
	defer s.Unlock()

	return s.economics()
}

// GetTxOutputs returns the amount and the asset the execution consumes on the
// target.
func (s *SideEffect) GetTxOutputs() TxOutput {
	return s.outputs
}

// Execute returns the arguments to perform the action on the target. For a
// transfer, it is the destination and the amount.
func (s *SideEffect) Execute() []string {
	switch s.action {
	case Transfer:
		return []string{s.args[1], s.outputs.Amount.String()}
	default:
		return nil
	}
}

// SetRiskRewardParameters attaches the side effect to the cells of the native
// transaction cost, the price of the native asset of the target, the price of
// the output asset and the price of the reward asset. Every update of those
// cells, or of the reward, triggers a recomputation of the maximum profit.
func (s *SideEffect) SetRiskRewardParameters(txCostNative, nativeAssetPrice,
	txOutputAssetPrice, rewardAssetPrice *core.Cell) error {

	if txCostNative == nil || nativeAssetPrice == nil ||
		txOutputAssetPrice == nil || rewardAssetPrice == nil {

		return xerrors.New("missing risk/reward parameter")
	}

	s.Lock()

	if s.wired {
		s.Unlock()
		return ErrAlreadyWired
	}

	if s.status.IsTerminal() {
		s.Unlock()
		return xerrors.Errorf("cannot wire in %v state: %w", s.status, ErrInvalidTransition)
	}

	s.txCostNative = txCostNative
	s.nativeAssetPrice = nativeAssetPrice
	s.txOutputAssetPrice = txOutputAssetPrice
	s.rewardAssetPrice = rewardAssetPrice

	for _, cell := range []*core.Cell{txCostNative, nativeAssetPrice,
		txOutputAssetPrice, rewardAssetPrice, s.reward} {

		s.subscriptions = append(s.subscriptions, cell.Subscribe(s.onUpdate))
	}

	s.wired = true

	req := s.recompute()

	s.Unlock()

	s.emit(req)

	return nil
}

// RecomputeMaxProfit recomputes the economics and runs the bidding decision if
// the maximum profit changed. It does nothing before the parameters are set or
// after the side effect reached a terminal state.
func (s *SideEffect) RecomputeMaxProfit() {
	s.Lock()
	req := s.recompute()
	s.Unlock()

	s.emit(req)
}

// MaxProfit returns the last maximum profit computed.
func (s *SideEffect) MaxProfit() float64 {
	s.Lock()
	defer s.Unlock()

	return s.maxProfitUsd
}

// BidAccepted is called when the own bid has been accepted by the circuit. The
// reward is updated to the amount of the bid.
func (s *SideEffect) BidAccepted(amount *big.Int) error {
	s.Lock()

	err := s.checkInFlight()
	if err != nil {
		s.Unlock()
		return err
	}

	s.isBidder = true
	s.txStatus = Ready

	s.Unlock()

	s.logger.Info().Str("amount", amount.String()).Msg("bid accepted")

	s.reward.Set(s.circuit.ToFloat(amount))

	return nil
}

// BidRejected is called when the own bid has not been accepted.
func (s *SideEffect) BidRejected() error {
	s.Lock()
	defer s.Unlock()

	err := s.checkInFlight()
	if err != nil {
		return err
	}

	s.isBidder = false
	s.txStatus = Ready

	s.logger.Info().Msg("bid rejected")

	return nil
}

// checkInFlight returns an error if the side effect does not accept bid events
// anymore, or if no bid request is waiting for an answer.
func (s *SideEffect) checkInFlight() error {
	_, err := Next(s.status, BidEvent)
	if err != nil {
		return err
	}

	if s.txStatus != Pending {
		return xerrors.Errorf("no bid in flight: %w", ErrInvalidTransition)
	}

	return nil
}

// ProcessBid is called for every bid observed on the side effect. A bid from
// another executor lowers the reward to the amount of the bid.
func (s *SideEffect) ProcessBid(account string, amount *big.Int) error {
	s.Lock()

	_, err := Next(s.status, BidEvent)
	if err != nil {
		s.Unlock()
		return err
	}

	if account == s.signer {
		s.Unlock()
		s.logger.Debug().Msg("own bid observed")
		return nil
	}

	s.isBidder = false

	s.Unlock()

	s.logger.Info().
		Str("bidder", account).
		Str("amount", amount.String()).
		Msg("received competing bid")

	s.reward.Set(s.circuit.ToFloat(amount))

	return nil
}

// ReadyToExecute moves the side effect to the execution once the auction is
// concluded.
func (s *SideEffect) ReadyToExecute() error {
	return s.transition(ReadyEvent, nil)
}

// ExecutedOnTarget records the inclusion data of the execution on the target.
func (s *SideEffect) ExecutedOnTarget(proof []byte, account string, height uint64) error {
	return s.transition(ExecutedEvent, func() {
		s.inclusion = Inclusion{
			Proof:    proof,
			Executor: account,
			Height:   height,
		}
	})
}

// ConfirmedOnCircuit is called when the circuit accepted the proof.
func (s *SideEffect) ConfirmedOnCircuit() error {
	return s.transition(ConfirmedEvent, nil)
}

// DroppedAtBidding is called when the auction timed out.
func (s *SideEffect) DroppedAtBidding() error {
	return s.transition(DroppedEvent, nil)
}

// Reverted is called when the transaction has been aborted.
func (s *SideEffect) Reverted() error {
	return s.transition(RevertedEvent, nil)
}

func (s *SideEffect) transition(evt Event, apply func()) error {
	s.Lock()

	from := s.status

	to, err := Next(from, evt)
	if err != nil {
		s.Unlock()
		return err
	}

	if apply != nil {
		apply()
	}

	s.status = to

	if to != Bidding {
		// The mutex only makes sense during the auction.
		s.txStatus = Ready
	}

	if to.IsTerminal() {
		s.release()
	}

	event := StatusEvent{
		SfxID:    s.id,
		XtxID:    s.xtxID,
		Target:   s.target.ID,
		Previous: from,
		Status:   to,
		Height:   s.inclusion.Height,
	}

	s.Unlock()

	s.logger.Info().Stringer("from", from).Stringer("to", to).Msg("status changed")

	s.notifier.Notify(event)

	return nil
}

// release unsubscribes from every cell. It must be called with the lock held.
func (s *SideEffect) release() {
	for _, sub := range s.subscriptions {
		sub.Unsubscribe()
	}

	s.subscriptions = nil
}

func (s *SideEffect) onUpdate(float64) {
	s.RecomputeMaxProfit()
}

// recompute must be called with the lock held. It returns the bid request to
// emit, if any.
func (s *SideEffect) recompute() *BidRequest {
	if !s.wired || s.status.IsTerminal() {
		return nil
	}

	s.txCostUsd = s.target.ScaleFloat(s.txCostNative.Get()) * s.nativeAssetPrice.Get()
	s.txOutputCostUsd = s.txOutputAssetPrice.Get() * s.outputs.AmountHuman
	s.rewardUsd = s.rewardAssetPrice.Get() * s.reward.Get()

	maxProfit := s.rewardUsd - s.txCostUsd - s.txOutputCostUsd

	if !finite(maxProfit) {
		s.logger.Warn().
			Float64("txCost", s.txCostUsd).
			Float64("outputCost", s.txOutputCostUsd).
			Float64("reward", s.rewardUsd).
			Msg("ignoring non-finite profit")

		return nil
	}

	if s.unchanged(maxProfit) {
		return nil
	}

	s.maxProfitUsd = maxProfit

	promRecomputations.Inc()

	return s.decide()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (s *SideEffect) unchanged(maxProfit float64) bool {
	if s.epsilon > 0 {
		return math.Abs(maxProfit-s.maxProfitUsd) <= s.epsilon
	}

	return maxProfit == s.maxProfitUsd
}

// decide runs the strategy and, when the executor wants to bid and no bid is
// in flight, locks the mutex and returns the bid request.
func (s *SideEffect) decide() *BidRequest {
	minProfit, err := s.strategy.Evaluate(s.economics())
	if err != nil {
		promRejections.Inc()

		s.wantToBid = false
		s.logger.Debug().Err(err).Msg("strategy rejected the side effect")

		return nil
	}

	s.minProfitUsd = minProfit
	s.wantToBid = true

	if s.isBidder || s.txStatus != Ready || s.status != Bidding {
		s.logger.Debug().
			Bool("bidder", s.isBidder).
			Stringer("tx", s.txStatus).
			Stringer("status", s.status).
			Msg("already a bidder or not allowed to bid")

		return nil
	}

	price := s.rewardAssetPrice.Get()
	if !finite(price) || price <= 0 {
		s.logger.Warn().Float64("price", price).Msg("reward asset has no price")
		return nil
	}

	bidUsd := s.bidding.ComputeBid(s.economics())
	if bidUsd > s.maxProfitUsd {
		s.logger.Warn().
			Float64("bid", bidUsd).
			Float64("max", s.maxProfitUsd).
			Msg("bid capped to the maximum profit")

		bidUsd = s.maxProfitUsd
	}

	if !finite(bidUsd) || bidUsd <= 0 {
		s.logger.Debug().Float64("bid", bidUsd).Msg("no positive bid")
		return nil
	}

	bidHuman := bidUsd / price
	if !finite(bidHuman) || bidHuman <= 0 {
		s.logger.Warn().Float64("bid", bidHuman).Msg("bid has no amount")
		return nil
	}

	s.txStatus = Pending

	promBidRequests.Inc()

	return &BidRequest{
		ID:          xid.New().String(),
		SfxID:       s.id,
		XtxID:       s.xtxID,
		Target:      s.target.ID,
		Amount:      s.circuit.FromFloat(bidHuman),
		AmountHuman: bidHuman,
	}
}

func (s *SideEffect) economics() Economics {
	var price float64
	var cost float64
	if s.wired {
		price = s.rewardAssetPrice.Get()
		cost = s.txCostNative.Get()
	}

	return Economics{
		SfxID:            s.id,
		SecurityLevel:    s.securityLevel,
		Reward:           s.reward.Get(),
		Insurance:        s.insurance,
		RewardAssetPrice: price,
		TxCostNative:     cost,
		TxCostUsd:        s.txCostUsd,
		TxOutputCostUsd:  s.txOutputCostUsd,
		RewardUsd:        s.rewardUsd,
		MaxProfitUsd:     s.maxProfitUsd,
		MinProfitUsd:     s.minProfitUsd,
		IsBidder:         s.isBidder,
	}
}

func (s *SideEffect) emit(req *BidRequest) {
	if req == nil {
		return
	}

	s.logger.Info().
		Str("request", req.ID).
		Float64("amount", req.AmountHuman).
		Msg("submitting bid")

	s.notifier.Notify(*req)
}

func (s *SideEffect) decodeOutputs() (TxOutput, error) {
	switch s.action {
	case Transfer:
		if len(s.args) < 3 {
			return TxOutput{}, xerrors.Errorf("transfer expects 3 arguments, got %d", len(s.args))
		}

		amount, err := gateway.ParseLE(s.args[2])
		if err != nil {
			return TxOutput{}, xerrors.Errorf("failed to decode amount: %v", err)
		}

		return TxOutput{
			Amount:      amount,
			AmountHuman: s.target.ToFloat(amount),
			Asset:       s.target.Ticker,
		}, nil
	default:
		return TxOutput{}, xerrors.Errorf("action %v: %w", s.action, ErrUnknownAction)
	}
}

func evalSecurityLevel(t gateway.Type) SecurityLevel {
	if t == gateway.ProgrammableExternal || t == gateway.OnCircuit {
		return Escrow
	}

	return Optimistic
}

// rejectAll is the default strategy when none is provided.
type rejectAll struct{}

func (rejectAll) Evaluate(Economics) (float64, error) {
	return 0, xerrors.New("no strategy")
}

// maxBid is the default bidding engine. It bids the whole profit.
type maxBid struct{}

func (maxBid) ComputeBid(e Economics) float64 {
	return e.MaxProfitUsd
}
