// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry documents the precompile address scheme for the tradefi
// suite and resolves precompile metadata by name.
package registry

import (
	"github.com/luxfi/geth/common"
)

// ============================================================================
// PRECOMPILE ADDRESS SCHEME - Aligned with LP Numbering
// ============================================================================
//
// All tradefi precompiles use trailing-significant 20-byte addresses:
//   Format: 0x0000000000000000000000000000000000LPNUM
//
// The address ends with the 16-bit LP number. The receivables market owns the
// LP-91xx page:
//   LP-9110 RFPool        - receivables AMM (pools, swaps, liquidity, flash)
//   LP-9111 RFLedger      - token balance ledger (transfer primitive)
//   LP-9112 RFReceivables - receivable registry + issuer allow-list
const (
	RFPool        = "0x0000000000000000000000000000000000009110" // LP-9110 RFPool
	RFLedger      = "0x0000000000000000000000000000000000009111" // LP-9111 RFLedger
	RFReceivables = "0x0000000000000000000000000000000000009112" // LP-9112 RFReceivables
)

// PrecompileInfo contains metadata about a precompile.
type PrecompileInfo struct {
	Address     string
	Name        string
	Description string
	GasBase     uint64
	LPNumber    string
}

// AllPrecompiles lists all tradefi precompiles with their metadata.
var AllPrecompiles = []PrecompileInfo{
	{RFPool, "RF_POOL", "Receivables AMM (constant product, flash loans)", 10000, "LP-9110"},
	{RFLedger, "RF_LEDGER", "Token balance ledger", 2100, "LP-9111"},
	{RFReceivables, "RF_RECEIVABLES", "Receivable registry and issuer allow-list", 5000, "LP-9112"},
}

// GetPrecompileAddress returns the address for a precompile by name.
func GetPrecompileAddress(name string) common.Address {
	for _, p := range AllPrecompiles {
		if p.Name == name {
			return common.HexToAddress(p.Address)
		}
	}
	return common.Address{}
}
