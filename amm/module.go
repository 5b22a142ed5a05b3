// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"fmt"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/tradefi/bank"
	"github.com/luxfi/tradefi/contract"
	"github.com/luxfi/tradefi/modules"
	"github.com/luxfi/tradefi/receivables"
)

// ConfigKey is the key used in json config files to specify this precompile
// config.
const ConfigKey = "receivablesMarketConfig"

// Ledger is the suite-wide bank ledger the market settles through.
var Ledger = bank.NewLedger()

// Oracle is the receivable registry backing the market's owner checks.
var Oracle = receivables.NewRegistry(log.NewTestLogger(log.InfoLevel), Ledger)

// MarketPrecompile is the singleton instance registered at PoolAddress.
var MarketPrecompile = NewMarketContract(
	NewEngine(log.NewTestLogger(log.InfoLevel), Oracle, Ledger, nil),
)

// Module is the precompile module for the receivables market.
var Module = modules.Module{
	ConfigKey: ConfigKey,
	Address:   PoolAddress,
	Contract:  MarketPrecompile,
}

func init() {
	if err := modules.RegisterModule(Module); err != nil {
		panic(err)
	}
}

// Config enables and parameterizes the market precompile from chain config
// json.
type Config struct {
	// Owner is granted the owner role at configuration time if the registry
	// has none yet.
	Owner common.Address `json:"owner,omitempty"`
	// MaxPools overrides the pool-count cap when non-zero. May only lower
	// the protocol cap.
	MaxPools uint64 `json:"maxPools,omitempty"`
	// StartPaused configures the market pause flag at activation.
	StartPaused bool `json:"startPaused,omitempty"`
}

// Key returns the config key.
func (c *Config) Key() string {
	return ConfigKey
}

// Verify checks the config is self-consistent.
func (c *Config) Verify() error {
	if c.MaxPools > MaxPools {
		return fmt.Errorf("maxPools %d above protocol cap %d", c.MaxPools, MaxPools)
	}
	return nil
}

// Equal reports whether cfg carries the same parameters.
func (c *Config) Equal(cfg *Config) bool {
	if cfg == nil {
		return false
	}
	return c.Owner == cfg.Owner &&
		c.MaxPools == cfg.MaxPools &&
		c.StartPaused == cfg.StartPaused
}

// Configure applies the config against state at module activation.
func (c *Config) Configure(state contract.StateDB) error {
	if err := c.Verify(); err != nil {
		return err
	}
	if c.Owner != (common.Address{}) && Oracle.Owner(state) == (common.Address{}) {
		if err := Oracle.Initialize(state, c.Owner); err != nil {
			return err
		}
	}
	if c.MaxPools != 0 {
		MarketPrecompile.Engine().setMaxPoolsCap(state, c.MaxPools)
	}
	if c.StartPaused {
		MarketPrecompile.Engine().setPausedFlag(state, true)
	}
	return nil
}
