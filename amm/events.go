// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"
)

// Event is one market occurrence recorded in call order.
type Event interface {
	Type() string
}

// PoolCreated is emitted when a pool is registered.
type PoolCreated struct {
	TokenIn    common.Address
	TokenOut   common.Address
	FeeRateBps uint16
	Creator    common.Address
}

func (PoolCreated) Type() string { return "pool_created" }

// LiquidityAdded is emitted on a successful deposit.
type LiquidityAdded struct {
	TokenIn  common.Address
	TokenOut common.Address
	Provider common.Address
	AmountA  *big.Int
	AmountB  *big.Int
	Shares   *big.Int
}

func (LiquidityAdded) Type() string { return "liquidity_added" }

// LiquidityRemoved is emitted on a successful withdrawal.
type LiquidityRemoved struct {
	TokenIn  common.Address
	TokenOut common.Address
	Provider common.Address
	Shares   *big.Int
	AmountA  *big.Int
	AmountB  *big.Int
}

func (LiquidityRemoved) Type() string { return "liquidity_removed" }

// SwapExecuted is emitted on a successful swap.
type SwapExecuted struct {
	TokenIn   common.Address
	TokenOut  common.Address
	Trader    common.Address
	AmountIn  *big.Int
	AmountOut *big.Int
}

func (SwapExecuted) Type() string { return "swap_executed" }

// FlashLoanExecuted is emitted after a flash loan repays in full.
type FlashLoanExecuted struct {
	Borrower common.Address
	Token    common.Address
	Amount   *big.Int
	Premium  *big.Int
}

func (FlashLoanExecuted) Type() string { return "flash_loan_executed" }

// LoggedEvent pairs an event with its sequence number.
type LoggedEvent struct {
	Seq   uint64
	Event Event
}

// EventLog records events in emission order. Failed operations emit nothing.
type EventLog struct {
	mu     sync.Mutex
	seq    uint64
	events []LoggedEvent
}

// NewEventLog returns an empty event log.
func NewEventLog() *EventLog {
	return &EventLog{}
}

// Emit appends ev and assigns it the next sequence number.
func (l *EventLog) Emit(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, LoggedEvent{Seq: l.seq, Event: ev})
	l.seq++
}

// Events returns a copy of everything emitted so far.
func (l *EventLog) Events() []LoggedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LoggedEvent, len(l.events))
	copy(out, l.events)
	return out
}
