// Package manager implements the execution manager which keeps the registry of
// the cross-chain transactions followed by the executor. It wires the side
// effects to the price and cost cells, maps the events of the circuit to the
// lifecycle of the side effects and keeps the queue of every target ledger.
//
// The notifications of the side effects, and the confirmation requests, are
// delivered to the collaborators through Watch.
package manager

import (
	"context"
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.dedis.ch/executor"
	"go.dedis.ch/executor/core"
	"go.dedis.ch/executor/core/estimator"
	"go.dedis.ch/executor/core/gateway"
	"go.dedis.ch/executor/core/pricing"
	"go.dedis.ch/executor/core/sfx"
	"golang.org/x/xerrors"
)

const watchBufferSize = 100

var (
	// ErrUnknownGateway is returned when a side effect targets a ledger
	// without estimator.
	ErrUnknownGateway = xerrors.New("no estimator for the gateway")

	// ErrUnknownSideEffect is returned when an event refers to a side effect
	// that is not registered.
	ErrUnknownSideEffect = xerrors.New("unknown side effect")

	// ErrUnknownXtx is returned when an event refers to a transaction that is
	// not registered.
	ErrUnknownXtx = xerrors.New("unknown transaction")
)

var (
	promXtxs = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "executor_manager_xtx_total",
		Help: "total number of registered transactions",
	})

	promStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "executor_manager_sfx",
		Help: "number of side effects per status",
	}, []string{"status"})

	promConfirmations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "executor_manager_confirm_requests_total",
		Help: "total number of confirmation batches",
	})
)

func init() {
	executor.PromCollectors = append(executor.PromCollectors,
		promXtxs, promStatus, promConfirmations)
}

type template struct {
	circuit  *gateway.Gateway
	strategy sfx.Strategy
	bidding  sfx.BiddingEngine
	epsilon  float64
	logger   zerolog.Logger
	watcher  *core.Watcher
}

// Option is the type of options to create a manager.
type Option func(*template)

// WithCircuit sets the gateway of the reward asset.
func WithCircuit(gw *gateway.Gateway) Option {
	return func(tmpl *template) {
		tmpl.circuit = gw
	}
}

// WithStrategy sets the strategy engine of the side effects.
func WithStrategy(s sfx.Strategy) Option {
	return func(tmpl *template) {
		tmpl.strategy = s
	}
}

// WithBidding sets the bidding engine of the side effects.
func WithBidding(b sfx.BiddingEngine) Option {
	return func(tmpl *template) {
		tmpl.bidding = b
	}
}

// WithEpsilon sets the tolerance of the profit change detection.
func WithEpsilon(epsilon float64) Option {
	return func(tmpl *template) {
		tmpl.epsilon = epsilon
	}
}

// WithLogger sets the logger of the manager and the side effects.
func WithLogger(l zerolog.Logger) Option {
	return func(tmpl *template) {
		tmpl.logger = l
	}
}

// WithObserver adds an observer that receives every notification, for
// instance a journal.
func WithObserver(obs core.Observer) Option {
	return func(tmpl *template) {
		tmpl.watcher.Add(obs)
	}
}

// Manager is the registry of the transactions, side effects, estimators and
// queues.
type Manager struct {
	sync.RWMutex

	signer   string
	gateways *gateway.Registry
	oracle   pricing.Oracle
	circuit  *gateway.Gateway
	strategy sfx.Strategy
	bidding  sfx.BiddingEngine
	epsilon  float64
	logger   zerolog.Logger
	watcher  *core.Watcher

	xtxs       map[string]*Xtx
	sfxToXtx   map[string]string
	estimators map[string]estimator.Estimator
	queues     map[string]*Queue
}

// NewManager creates a manager for the executor account. The gateways are used
// to decode the side effects and the oracle provides the price cells.
func NewManager(signer string, gateways *gateway.Registry, oracle pricing.Oracle,
	opts ...Option) *Manager {

	tmpl := template{
		circuit: gateway.NewCircuit(),
		logger:  executor.Logger,
		watcher: core.NewWatcher(),
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	return &Manager{
		signer:     signer,
		gateways:   gateways,
		oracle:     oracle,
		circuit:    tmpl.circuit,
		strategy:   tmpl.strategy,
		bidding:    tmpl.bidding,
		epsilon:    tmpl.epsilon,
		logger:     tmpl.logger.With().Str("role", "manager").Logger(),
		watcher:    tmpl.watcher,
		xtxs:       make(map[string]*Xtx),
		sfxToXtx:   make(map[string]string),
		estimators: make(map[string]estimator.Estimator),
		queues:     make(map[string]*Queue),
	}
}

// Watch returns a channel populated with the bid requests, the status events
// and the confirmation requests. The channel is fed until the context is done.
func (m *Manager) Watch(ctx context.Context) <-chan interface{} {
	ch := make(chan interface{}, watchBufferSize)

	obs := observer{ch: ch, done: ctx.Done()}
	m.watcher.Add(obs)

	go func() {
		<-ctx.Done()
		m.watcher.Remove(obs)
	}()

	return ch
}

// AddGateway registers the estimator of a target ledger and creates its queue.
func (m *Manager) AddGateway(id string, est estimator.Estimator) error {
	if est == nil {
		return xerrors.Errorf("gateway '%s' has no estimator", id)
	}

	m.Lock()
	defer m.Unlock()

	m.estimators[id] = est

	_, found := m.queues[id]
	if !found {
		m.queues[id] = newQueue()
	}

	m.logger.Info().Str("gateway", id).Msg("gateway added")

	return nil
}

// NewXtx decodes the parameters of the side effects of every step and creates
// the transaction. It fails if any side effect cannot be decoded.
func (m *Manager) NewXtx(id string, steps [][]sfx.Params) (*Xtx, error) {
	opts := []sfx.Option{
		sfx.WithCircuit(m.circuit),
		sfx.WithSigner(m.signer),
		sfx.WithNotifier(relay{m: m}),
		sfx.WithEpsilon(m.epsilon),
		sfx.WithLogger(m.logger.With().Str("xtx", id).Logger()),
	}

	if m.strategy != nil {
		opts = append(opts, sfx.WithStrategy(m.strategy))
	}

	if m.bidding != nil {
		opts = append(opts, sfx.WithBidding(m.bidding))
	}

	sideEffects := make([][]*sfx.SideEffect, len(steps))

	for i, step := range steps {
		for _, params := range step {
			target, err := m.gateways.Get(params.Target)
			if err != nil {
				return nil, xerrors.Errorf("side effect '%s': %w", params.ID, err)
			}

			params.XtxID = id
			params.Step = i

			s, err := sfx.New(params, target, opts...)
			if err != nil {
				return nil, xerrors.Errorf("failed to create side effect: %w", err)
			}

			sideEffects[i] = append(sideEffects[i], s)
		}
	}

	return NewXtx(id, sideEffects), nil
}

// AddTransaction registers the transaction and wires each of its side effects.
// A side effect that cannot be wired is removed from the transaction while the
// others are registered. The failures are returned together.
func (m *Manager) AddTransaction(xtx *Xtx) error {
	m.Lock()

	_, found := m.xtxs[xtx.ID]
	if found {
		m.Unlock()
		return xerrors.Errorf("transaction '%s' already registered", xtx.ID)
	}

	m.xtxs[xtx.ID] = xtx

	m.Unlock()

	promXtxs.Inc()

	failures := newBatchError("register")

	for _, s := range xtx.All() {
		err := m.register(xtx, s)
		if err != nil {
			m.logger.Warn().Err(err).Str("sfx", s.HumanID()).Msg("side effect ignored")

			xtx.remove(s.ID())
			failures.add(s.ID(), err)
		}
	}

	m.logger.Info().
		Str("xtx", xtx.ID).
		Int("sfx", xtx.Len()).
		Msg("transaction added")

	return failures.errOrNil()
}

// register adds the side effect to the lookup table and its queue before
// wiring it, so that the first bid request can already be answered.
func (m *Manager) register(xtx *Xtx, s *sfx.SideEffect) error {
	target := s.Target().ID

	m.Lock()

	queue, found := m.queues[target]
	if !found {
		m.Unlock()
		return xerrors.Errorf("gateway '%s': %w", target, ErrUnknownGateway)
	}

	m.sfxToXtx[s.ID()] = xtx.ID
	queue.apply(sfx.StatusEvent{SfxID: s.ID(), Status: sfx.Bidding})

	m.Unlock()

	promStatus.WithLabelValues(sfx.Bidding.String()).Inc()

	err := m.AddRiskRewardParameters(s)
	if err != nil {
		m.Lock()
		delete(m.sfxToXtx, s.ID())
		queue.drop(s.ID())
		m.Unlock()

		promStatus.WithLabelValues(sfx.Bidding.String()).Dec()

		return err
	}

	return nil
}

// AddRiskRewardParameters wires the side effect to the cost cell of the
// estimator of its target, to the price cells of the native and the output
// assets, and to the price cell of the reward asset.
func (m *Manager) AddRiskRewardParameters(s *sfx.SideEffect) error {
	m.RLock()
	est, found := m.estimators[s.Target().ID]
	m.RUnlock()

	if !found {
		return xerrors.Errorf("gateway '%s': %w", s.Target().ID, ErrUnknownGateway)
	}

	cost, err := est.GetNativeTxCost(s)
	if err != nil {
		return xerrors.Errorf("failed to get tx cost: %v", err)
	}

	native := m.oracle.GetAssetPrice(s.Target().Ticker)
	output := m.oracle.GetAssetPrice(s.GetTxOutputs().Asset)
	reward := m.oracle.GetAssetPrice(m.circuit.Ticker)

	err = s.SetRiskRewardParameters(cost, native, output, reward)
	if err != nil {
		return xerrors.Errorf("failed to wire: %w", err)
	}

	return nil
}

// ProcessBid applies a bid observed on the circuit.
func (m *Manager) ProcessBid(sfxID, account string, amount *big.Int) error {
	s, err := m.GetSideEffect(sfxID)
	if err != nil {
		return err
	}

	return s.ProcessBid(account, amount)
}

// BidAccepted is the answer of the submission of a bid request that the
// circuit accepted.
func (m *Manager) BidAccepted(sfxID string, amount *big.Int) error {
	s, err := m.GetSideEffect(sfxID)
	if err != nil {
		return err
	}

	return s.BidAccepted(amount)
}

// BidRejected is the answer of the submission of a bid request that failed.
func (m *Manager) BidRejected(sfxID string) error {
	s, err := m.GetSideEffect(sfxID)
	if err != nil {
		return err
	}

	return s.BidRejected()
}

// ReadyForExec concludes the auction of every side effect of the transaction.
func (m *Manager) ReadyForExec(xtxID string) error {
	return m.forEach(xtxID, "execute", func(s *sfx.SideEffect) error {
		return s.ReadyToExecute()
	})
}

// ExecutedOnTarget records the execution of the side effect on its target.
func (m *Manager) ExecutedOnTarget(sfxID string, proof []byte, account string,
	height uint64) error {

	s, err := m.GetSideEffect(sfxID)
	if err != nil {
		return err
	}

	return s.ExecutedOnTarget(proof, account, height)
}

// SideEffectConfirmed is called when the circuit accepted the inclusion proof
// of the side effect.
func (m *Manager) SideEffectConfirmed(sfxID string) error {
	s, err := m.GetSideEffect(sfxID)
	if err != nil {
		return err
	}

	return s.ConfirmedOnCircuit()
}

// XtxCompleted marks the transaction as completed.
func (m *Manager) XtxCompleted(xtxID string) error {
	xtx, err := m.GetTransaction(xtxID)
	if err != nil {
		return err
	}

	xtx.Lock()
	xtx.completed = true
	xtx.Unlock()

	m.logger.Info().Str("xtx", xtxID).Msg("transaction completed")

	return nil
}

// DroppedAtBidding drops every side effect of the transaction whose auction
// timed out.
func (m *Manager) DroppedAtBidding(xtxID string) error {
	return m.forEach(xtxID, "drop", func(s *sfx.SideEffect) error {
		return s.DroppedAtBidding()
	})
}

// RevertTimedOut reverts the side effects of the aborted transaction. The side
// effects still in the auction are dropped and the terminated ones are left
// untouched.
func (m *Manager) RevertTimedOut(xtxID string) error {
	return m.forEach(xtxID, "revert", func(s *sfx.SideEffect) error {
		switch status := s.Status(); {
		case status.IsTerminal():
			return nil
		case status == sfx.Bidding:
			return s.DroppedAtBidding()
		default:
			return s.Reverted()
		}
	})
}

// HeaderSubmitted updates the height of the ledger known by the circuit and
// emits the confirmation request of the side effects that are covered.
func (m *Manager) HeaderSubmitted(gatewayID string, height uint64) error {
	m.Lock()

	queue, found := m.queues[gatewayID]
	if !found {
		m.Unlock()
		return xerrors.Errorf("gateway '%s': %w", gatewayID, ErrUnknownGateway)
	}

	if height > queue.BlockHeight {
		queue.BlockHeight = height
	}

	ids := queue.covered(height)

	m.Unlock()

	m.confirm(gatewayID, height, ids)

	return nil
}

// confirm emits the confirmation request of a batch of side effects.
func (m *Manager) confirm(gatewayID string, height uint64, ids []string) {
	if len(ids) == 0 {
		return
	}

	promConfirmations.Inc()

	m.logger.Info().
		Str("gateway", gatewayID).
		Uint64("height", height).
		Strs("sfx", ids).
		Msg("confirmation batch ready")

	m.watcher.Notify(ConfirmRequest{
		Gateway:     gatewayID,
		Height:      height,
		SideEffects: ids,
	})
}

// GetSideEffect returns the registered side effect.
func (m *Manager) GetSideEffect(id string) (*sfx.SideEffect, error) {
	m.RLock()
	defer m.RUnlock()

	xtxID, found := m.sfxToXtx[id]
	if !found {
		return nil, xerrors.Errorf("side effect '%s': %w", id, ErrUnknownSideEffect)
	}

	s, found := m.xtxs[xtxID].Get(id)
	if !found {
		return nil, xerrors.Errorf("side effect '%s': %w", id, ErrUnknownSideEffect)
	}

	return s, nil
}

// GetTransaction returns the registered transaction.
func (m *Manager) GetTransaction(id string) (*Xtx, error) {
	m.RLock()
	defer m.RUnlock()

	xtx, found := m.xtxs[id]
	if !found {
		return nil, xerrors.Errorf("transaction '%s': %w", id, ErrUnknownXtx)
	}

	return xtx, nil
}

// GetQueue returns a copy of the queue of the gateway.
func (m *Manager) GetQueue(gatewayID string) (Queue, error) {
	m.RLock()
	defer m.RUnlock()

	queue, found := m.queues[gatewayID]
	if !found {
		return Queue{}, xerrors.Errorf("gateway '%s': %w", gatewayID, ErrUnknownGateway)
	}

	return queue.clone(), nil
}

func (m *Manager) forEach(xtxID, op string, fn func(*sfx.SideEffect) error) error {
	xtx, err := m.GetTransaction(xtxID)
	if err != nil {
		return err
	}

	failures := newBatchError(op)

	for _, s := range xtx.All() {
		err := fn(s)
		if err != nil {
			failures.add(s.ID(), err)
		}
	}

	return failures.errOrNil()
}

// onStatus updates the queue of the target of the side effect. A side effect
// executed at a height already covered by a submitted header is popped right
// away and returned as a confirmation batch.
func (m *Manager) onStatus(evt sfx.StatusEvent) *ConfirmRequest {
	var req *ConfirmRequest

	m.Lock()

	queue, found := m.queues[evt.Target]
	if found {
		queue.apply(evt)

		known := queue.BlockHeight > 0 && evt.Height <= queue.BlockHeight

		if evt.Status == sfx.ExecutedOnTarget && known {
			req = &ConfirmRequest{
				Gateway:     evt.Target,
				Height:      queue.BlockHeight,
				SideEffects: queue.covered(queue.BlockHeight),
			}
		}
	}

	m.Unlock()

	promStatus.WithLabelValues(evt.Previous.String()).Dec()
	promStatus.WithLabelValues(evt.Status.String()).Inc()

	return req
}

// relay is the notifier of the side effects created by the manager. It keeps
// the queues up to date before forwarding the notifications to the observers.
type relay struct {
	m *Manager
}

func (r relay) Notify(event interface{}) {
	var req *ConfirmRequest

	evt, ok := event.(sfx.StatusEvent)
	if ok {
		req = r.m.onStatus(evt)
	}

	r.m.watcher.Notify(event)

	if req != nil {
		r.m.confirm(req.Gateway, req.Height, req.SideEffects)
	}
}

// observer forwards the events to the channel of a watcher. The event is
// discarded once the context of the watcher is done.
type observer struct {
	ch   chan interface{}
	done <-chan struct{}
}

func (obs observer) NotifyCallback(event interface{}) {
	select {
	case obs.ch <- event:
	case <-obs.done:
	}
}
