// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bank implements the token transfer primitive the receivables market
// settles through (LP-9111 RFLedger). Balances are storage slots owned by the
// ledger precompile address, keyed by (token, holder). A transfer either moves
// the full amount or nothing: the balance check precedes both slot writes.
package bank

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"

	"github.com/luxfi/tradefi/contract"
	"github.com/luxfi/tradefi/registry"
)

var ledgerAddr = common.HexToAddress(registry.RFLedger)

var balancePrefix = []byte("bank/bal")

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAmountOutOfRange  = errors.New("amount out of range")
	ErrIdenticalAccounts = errors.New("sender and recipient are identical")
)

// Ledger reads and writes token balances through a StateDB. It holds no state
// of its own, so one instance can serve every module in the suite.
type Ledger struct{}

// NewLedger returns the ledger handle.
func NewLedger() *Ledger {
	return &Ledger{}
}

func balanceKey(token, holder common.Address) common.Hash {
	h := blake3.New()
	h.Write(balancePrefix)
	h.Write(token.Bytes())
	h.Write(holder.Bytes())
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

// Balance returns the holder's balance of token.
func (l *Ledger) Balance(state contract.StateDB, token, holder common.Address) *big.Int {
	val := state.GetState(ledgerAddr, balanceKey(token, holder))
	return new(big.Int).SetBytes(val[:])
}

func (l *Ledger) setBalance(state contract.StateDB, token, holder common.Address, amount *uint256.Int) {
	var val common.Hash
	amount.WriteToSlice(val[:])
	state.SetState(ledgerAddr, balanceKey(token, holder), val)
}

// Transfer moves amount of token from one holder to another. The move is
// atomic: on any error neither balance has changed.
func (l *Ledger) Transfer(state contract.StateDB, token, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if from == to {
		return ErrIdenticalAccounts
	}
	amt, overflow := uint256.FromBig(amount)
	if overflow {
		return ErrAmountOutOfRange
	}

	fromBal, _ := uint256.FromBig(l.Balance(state, token, from))
	if fromBal.Lt(amt) {
		return fmt.Errorf("%w: token %s, have %s, need %s",
			ErrInsufficientFunds, token.Hex(), fromBal, amt)
	}
	toBal, _ := uint256.FromBig(l.Balance(state, token, to))

	l.setBalance(state, token, from, new(uint256.Int).Sub(fromBal, amt))
	l.setBalance(state, token, to, new(uint256.Int).Add(toBal, amt))
	return nil
}

// Mint credits amount of token to the holder. Reserved for genesis seeding
// and the receivable registry's issuance path.
func (l *Ledger) Mint(state contract.StateDB, token, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	amt, overflow := uint256.FromBig(amount)
	if overflow {
		return ErrAmountOutOfRange
	}
	toBal, _ := uint256.FromBig(l.Balance(state, token, to))
	newBal, carry := new(uint256.Int).AddOverflow(toBal, amt)
	if carry {
		return ErrAmountOutOfRange
	}
	l.setBalance(state, token, to, newBal)
	return nil
}

// Burn debits amount of token from the holder.
func (l *Ledger) Burn(state contract.StateDB, token, from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	amt, overflow := uint256.FromBig(amount)
	if overflow {
		return ErrAmountOutOfRange
	}
	fromBal, _ := uint256.FromBig(l.Balance(state, token, from))
	if fromBal.Lt(amt) {
		return fmt.Errorf("%w: token %s, have %s, need %s",
			ErrInsufficientFunds, token.Hex(), fromBal, amt)
	}
	l.setBalance(state, token, from, new(uint256.Int).Sub(fromBal, amt))
	return nil
}
