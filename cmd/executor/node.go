package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.dedis.ch/executor"
	"go.dedis.ch/executor/config"
	"go.dedis.ch/executor/core/journal"
	"go.dedis.ch/executor/core/manager"
	"go.dedis.ch/executor/core/pricing"
	pricemem "go.dedis.ch/executor/core/pricing/mem"
	"go.dedis.ch/executor/core/sfx"
	"go.dedis.ch/executor/core/store/kv"
	"go.dedis.ch/executor/proxy"
	proxyhttp "go.dedis.ch/executor/proxy/http"
	"golang.org/x/xerrors"
)

const (
	metricsPath = "/metrics"
	journalPath = "/journal"
)

// node is the assembly of the components of the executor.
type node struct {
	db      kv.DB
	journal *journal.Journal
	oracle  *pricemem.Oracle
	poller  pricemem.Poller
	manager *manager.Manager
	proxy   proxy.Proxy
	logger  zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newNode(cfg config.Config, logger zerolog.Logger) (*node, error) {
	registry, err := cfg.Registry()
	if err != nil {
		return nil, xerrors.Errorf("failed to create registry: %v", err)
	}

	estimators, err := cfg.Estimators()
	if err != nil {
		return nil, xerrors.Errorf("failed to create estimators: %v", err)
	}

	db, err := kv.New(cfg.DB)
	if err != nil {
		return nil, xerrors.Errorf("failed to open journal: %v", err)
	}

	jrnl := journal.New(db)

	oracle := pricemem.NewOracle()
	for ticker, price := range cfg.Prices {
		oracle.SetPrice(ticker, price)
	}

	var source pricing.Source = pricemem.StaticSource(cfg.Prices)
	if cfg.PriceFile != "" {
		source = pricemem.FileSource{Path: cfg.PriceFile}
	}

	mgr := manager.NewManager(cfg.Signer, registry, oracle,
		manager.WithStrategy(cfg.Strategy),
		manager.WithBidding(cfg.BiddingEngine()),
		manager.WithEpsilon(cfg.Epsilon),
		manager.WithObserver(jrnl),
		manager.WithLogger(logger))

	for id, est := range estimators {
		err = mgr.AddGateway(id, est)
		if err != nil {
			db.Close()
			return nil, xerrors.Errorf("failed to add gateway: %v", err)
		}
	}

	n := &node{
		db:      db,
		journal: jrnl,
		oracle:  oracle,
		poller:  pricemem.NewPoller(oracle, source, cfg.PollInterval),
		manager: mgr,
		logger:  logger,
	}

	if cfg.Metrics != "" {
		n.proxy = n.makeProxy(cfg.Metrics)
	}

	return n, nil
}

// Start starts the background routines and the HTTP endpoint.
func (n *node) Start() error {
	ctx, cancel := context.WithCancel(context.Background())

	if n.proxy != nil {
		err := n.proxy.Listen()
		if err != nil {
			cancel()
			return xerrors.Errorf("failed to start proxy: %v", err)
		}
	}

	n.cancel = cancel

	events := n.manager.Watch(ctx)

	n.wg.Add(2)

	go func() {
		defer n.wg.Done()
		n.poller.Start(ctx)
	}()

	go func() {
		defer n.wg.Done()
		n.follow(ctx, events)
	}()

	return nil
}

// Close stops the routines and releases the database.
func (n *node) Close() error {
	if n.cancel != nil {
		n.cancel()
		n.wg.Wait()
	}

	if n.proxy != nil {
		err := n.proxy.Stop()
		if err != nil {
			return xerrors.Errorf("failed to stop proxy: %v", err)
		}
	}

	err := n.db.Close()
	if err != nil {
		return xerrors.Errorf("failed to close journal: %v", err)
	}

	return nil
}

// follow logs the requests of the manager for the submission component that
// runs next to the executor.
func (n *node) follow(ctx context.Context, events <-chan interface{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			switch e := evt.(type) {
			case sfx.BidRequest:
				n.logger.Info().
					Str("request", e.ID).
					Str("sfx", e.SfxID).
					Str("amount", e.Amount.String()).
					Msg("bid request")
			case manager.ConfirmRequest:
				n.logger.Info().
					Str("gateway", e.Gateway).
					Uint64("height", e.Height).
					Strs("sfx", e.SideEffects).
					Msg("confirm request")
			}
		}
	}
}

func (n *node) makeProxy(addr string) proxy.Proxy {
	srv := proxyhttp.NewHTTP(addr)

	reg := prometheus.NewRegistry()

	for _, c := range executor.PromCollectors {
		err := reg.Register(c)
		if err != nil {
			n.logger.Warn().Err(err).Msg("failed to register collector")
		}
	}

	srv.RegisterHandler(metricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP)
	srv.RegisterHandler(journalPath, n.serveJournal)

	return srv
}

func (n *node) serveJournal(w http.ResponseWriter, r *http.Request) {
	records, err := n.journal.All()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	err = json.NewEncoder(w).Encode(records)
	if err != nil {
		n.logger.Warn().Err(err).Msg("failed to write journal")
	}
}
