// Package config defines the configuration file of the executor.
//
// 	signer: 0xmyaccount
// 	db: /var/lib/executor/journal.db
// 	metrics: 127.0.0.1:9100
// 	pollInterval: 30s
// 	priceFile: /etc/executor/prices.yaml
// 	epsilon: 0.0001
// 	gateways:
// 	  - id: roco
// 	    ticker: ROC
// 	    decimals: 12
// 	    type: tx-only
// 	    costs:
// 	      tran: 150000000
// 	prices:
// 	  ROC: 4.5
// 	  TRN: 0.8
// 	strategy:
// 	  minProfitUsd: 0.5
// 	  minYield: 0.05
// 	bidding:
// 	  name: share
// 	  param: 0.5
package config

import (
	"io/ioutil"
	"time"

	"go.dedis.ch/executor/core/bidding"
	estmem "go.dedis.ch/executor/core/estimator/mem"
	"go.dedis.ch/executor/core/gateway"
	"go.dedis.ch/executor/core/sfx"
	"go.dedis.ch/executor/core/strategy"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

const (
	defaultDB           = "executor.db"
	defaultPollInterval = time.Minute
	defaultBidding      = "share"
	defaultShare        = 0.5
)

// Gateway is the description of a target ledger.
type Gateway struct {
	ID       string `yaml:"id"`
	Ticker   string `yaml:"ticker"`
	Decimals uint8  `yaml:"decimals"`
	Type     string `yaml:"type"`

	// Costs is the native cost of the actions on the ledger, indexed by the
	// encoded name of the action.
	Costs map[string]float64 `yaml:"costs"`
}

// Bidding selects the bidding engine.
type Bidding struct {
	Name  string  `yaml:"name"`
	Param float64 `yaml:"param"`
}

// Config is the configuration of the executor.
type Config struct {
	Signer       string             `yaml:"signer"`
	DB           string             `yaml:"db"`
	Metrics      string             `yaml:"metrics"`
	PollInterval time.Duration      `yaml:"pollInterval"`
	PriceFile    string             `yaml:"priceFile"`
	Epsilon      float64            `yaml:"epsilon"`
	Gateways     []Gateway          `yaml:"gateways"`
	Prices       map[string]float64 `yaml:"prices"`
	Strategy     strategy.Margin    `yaml:"strategy"`
	Bidding      Bidding            `yaml:"bidding"`
}

// Load reads and parses the configuration file.
func Load(path string) (Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, xerrors.Errorf("failed to read config: %v", err)
	}

	return Parse(data)
}

// Parse decodes the configuration and fills the default values. Unknown fields
// are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Config{
		DB:           defaultDB,
		PollInterval: defaultPollInterval,
		Bidding: Bidding{
			Name:  defaultBidding,
			Param: defaultShare,
		},
	}

	err := yaml.UnmarshalStrict(data, &cfg)
	if err != nil {
		return Config{}, xerrors.Errorf("failed to decode config: %v", err)
	}

	err = cfg.Validate()
	if err != nil {
		return Config{}, xerrors.Errorf("invalid config: %v", err)
	}

	return cfg, nil
}

// Validate returns an error if the configuration is incomplete or
// inconsistent.
func (c Config) Validate() error {
	if c.Signer == "" {
		return xerrors.New("missing signer")
	}

	if c.Epsilon < 0 {
		return xerrors.Errorf("negative epsilon %v", c.Epsilon)
	}

	if c.PollInterval <= 0 {
		return xerrors.Errorf("poll interval must be positive")
	}

	if bidding.New(c.Bidding.Name, c.Bidding.Param) == nil {
		return xerrors.Errorf("unknown bidding engine '%s'", c.Bidding.Name)
	}

	_, err := c.Registry()
	if err != nil {
		return err
	}

	_, err = c.Estimators()
	if err != nil {
		return err
	}

	return nil
}

// Registry returns the registry of the gateways. The circuit is always part of
// it.
func (c Config) Registry() (*gateway.Registry, error) {
	registry := gateway.NewRegistry(gateway.NewCircuit())

	seen := make(map[string]struct{})

	for _, gw := range c.Gateways {
		if gw.ID == "" {
			return nil, xerrors.New("gateway without id")
		}

		_, found := seen[gw.ID]
		if found {
			return nil, xerrors.Errorf("duplicate gateway '%s'", gw.ID)
		}

		seen[gw.ID] = struct{}{}

		typ, err := gateway.ParseType(gw.Type)
		if err != nil {
			return nil, xerrors.Errorf("gateway '%s': %v", gw.ID, err)
		}

		registry.Set(&gateway.Gateway{
			ID:       gw.ID,
			Ticker:   gw.Ticker,
			Decimals: gw.Decimals,
			Type:     typ,
		})
	}

	return registry, nil
}

// Estimators returns the in-memory estimators of the gateways, indexed by
// gateway identifier, initialized with the costs of the configuration.
func (c Config) Estimators() (map[string]*estmem.Estimator, error) {
	estimators := make(map[string]*estmem.Estimator, len(c.Gateways))

	for _, gw := range c.Gateways {
		est := estmem.NewEstimator()

		for name, cost := range gw.Costs {
			action, err := sfx.ParseAction(name)
			if err != nil {
				return nil, xerrors.Errorf("gateway '%s': %v", gw.ID, err)
			}

			if cost < 0 {
				return nil, xerrors.Errorf("gateway '%s': negative cost for '%s'", gw.ID, name)
			}

			est.SetCost(action, cost)
		}

		estimators[gw.ID] = est
	}

	return estimators, nil
}

// BiddingEngine returns the bidding engine of the configuration.
func (c Config) BiddingEngine() sfx.BiddingEngine {
	return bidding.New(c.Bidding.Name, c.Bidding.Param)
}
