// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package modules keeps the deterministic registry of tradefi precompile
// modules and the address ranges reserved for them.
package modules

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/tradefi/contract"
)

// Module pairs a precompile contract with its address and config key.
type Module struct {
	// ConfigKey is the key used in json config files to enable this module.
	ConfigKey string
	// Address the module is reachable at.
	Address common.Address
	// Contract executes calls to the module.
	Contract contract.StatefulPrecompiledContract
}

// AddressRange represents a continuous range of addresses.
type AddressRange struct {
	Start common.Address
	End   common.Address
}

// Contains returns true iff addr is contained within the (inclusive)
// range of addresses defined by a.
func (a *AddressRange) Contains(addr common.Address) bool {
	addrBytes := addr.Bytes()
	return bytes.Compare(addrBytes, a.Start[:]) >= 0 && bytes.Compare(addrBytes, a.End[:]) <= 0
}

var (
	// registeredModules is a list of Module to preserve order
	// for deterministic iteration.
	registeredModules = make([]Module, 0)

	// Reserved ranges for the tradefi suite.
	//
	// LP-91xx: Receivables market (AMM core, token ledger, receivable registry)
	// Address format: 0x0000000000000000000000000000000000LPNUM
	reservedRanges = []AddressRange{
		{
			Start: common.HexToAddress("0x0000000000000000000000000000000000009100"),
			End:   common.HexToAddress("0x00000000000000000000000000000000000091ff"),
		},
	}
)

// ReservedAddress returns true if addr is in a reserved range for tradefi
// precompiles.
func ReservedAddress(addr common.Address) bool {
	for _, reservedRange := range reservedRanges {
		if reservedRange.Contains(addr) {
			return true
		}
	}
	return false
}

// RegisterModule registers a stateful precompile module.
func RegisterModule(stm Module) error {
	address := stm.Address
	key := stm.ConfigKey

	if !ReservedAddress(address) {
		return fmt.Errorf("address %s not in a reserved range", address)
	}

	for _, registeredModule := range registeredModules {
		if registeredModule.ConfigKey == key {
			return fmt.Errorf("name %s already used by a stateful precompile", key)
		}
		if registeredModule.Address == address {
			return fmt.Errorf("address %s already used by a stateful precompile", address)
		}
	}
	// sort by address to ensure deterministic iteration
	registeredModules = insertSortedByAddress(registeredModules, stm)
	return nil
}

func GetPrecompileModuleByAddress(address common.Address) (Module, bool) {
	for _, stm := range registeredModules {
		if stm.Address == address {
			return stm, true
		}
	}
	return Module{}, false
}

func GetPrecompileModule(key string) (Module, bool) {
	for _, stm := range registeredModules {
		if stm.ConfigKey == key {
			return stm, true
		}
	}
	return Module{}, false
}

func RegisteredModules() []Module {
	return registeredModules
}

func insertSortedByAddress(data []Module, stm Module) []Module {
	data = append(data, stm)
	sort.Slice(data, func(i, j int) bool {
		return bytes.Compare(data[i].Address[:], data[j].Address[:]) < 0
	})
	return data
}
