// Package mem implements an in-memory price oracle and a poller that refreshes
// it from a price source.
package mem

import (
	"context"
	"io/ioutil"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.dedis.ch/executor"
	"go.dedis.ch/executor/core"
	"go.dedis.ch/executor/core/pricing"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// Oracle is an in-memory price oracle. Unknown tickers get a cell initialized
// to zero that will be updated once a price is known.
//
// - implements pricing.Oracle
type Oracle struct {
	sync.Mutex

	cells map[string]*core.Cell
}

// NewOracle creates a new empty oracle.
func NewOracle() *Oracle {
	return &Oracle{
		cells: make(map[string]*core.Cell),
	}
}

// GetAssetPrice implements pricing.Oracle. It returns the price cell of the
// ticker and creates it if necessary.
func (o *Oracle) GetAssetPrice(ticker string) *core.Cell {
	o.Lock()
	defer o.Unlock()

	return o.getOrCreate(ticker)
}

// SetPrice updates the price of the ticker.
func (o *Oracle) SetPrice(ticker string, price float64) {
	o.Lock()
	cell := o.getOrCreate(ticker)
	o.Unlock()

	cell.Set(price)
}

// Tickers returns the sorted list of tickers known by the oracle.
func (o *Oracle) Tickers() []string {
	o.Lock()
	defer o.Unlock()

	tickers := make([]string, 0, len(o.cells))
	for ticker := range o.cells {
		tickers = append(tickers, ticker)
	}

	sort.Strings(tickers)

	return tickers
}

func (o *Oracle) getOrCreate(ticker string) *core.Cell {
	cell, found := o.cells[ticker]
	if !found {
		cell = core.NewCell(0)
		o.cells[ticker] = cell
	}

	return cell
}

// Poller refreshes the prices of an oracle from a source at a regular
// interval.
type Poller struct {
	oracle   *Oracle
	source   pricing.Source
	interval time.Duration
	logger   zerolog.Logger
}

// NewPoller creates a poller for the oracle.
func NewPoller(oracle *Oracle, source pricing.Source, interval time.Duration) Poller {
	return Poller{
		oracle:   oracle,
		source:   source,
		interval: interval,
		logger:   executor.Logger.With().Str("role", "price poller").Logger(),
	}
}

// Poll fetches the price of every ticker of the oracle once. A failure is
// logged and leaves the previous price untouched.
func (p Poller) Poll(ctx context.Context) {
	for _, ticker := range p.oracle.Tickers() {
		price, err := p.source.Fetch(ctx, ticker)
		if err != nil {
			p.logger.Warn().Err(err).Str("ticker", ticker).Msg("failed to fetch price")
			continue
		}

		p.oracle.SetPrice(ticker, price)
	}
}

// Start polls the source until the context is done.
func (p Poller) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// StaticSource is a price source with fixed prices, typically loaded from the
// configuration.
//
// - implements pricing.Source
type StaticSource map[string]float64

// Fetch implements pricing.Source. It returns the configured price, or zero
// when the ticker is unknown.
func (s StaticSource) Fetch(ctx context.Context, ticker string) (float64, error) {
	return s[ticker], nil
}

// FileSource is a price source that reads a YAML file mapping the tickers to
// their price. The file is read at every fetch so that the prices can be
// updated while the executor is running.
//
// - implements pricing.Source
type FileSource struct {
	Path string
}

// Fetch implements pricing.Source.
func (s FileSource) Fetch(ctx context.Context, ticker string) (float64, error) {
	data, err := ioutil.ReadFile(s.Path)
	if err != nil {
		return 0, xerrors.Errorf("failed to read prices: %v", err)
	}

	prices := make(map[string]float64)

	err = yaml.Unmarshal(data, &prices)
	if err != nil {
		return 0, xerrors.Errorf("failed to decode prices: %v", err)
	}

	price, found := prices[ticker]
	if !found {
		return 0, xerrors.Errorf("no price for '%s'", ticker)
	}

	return price, nil
}
