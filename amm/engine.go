// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/tradefi/bank"
	"github.com/luxfi/tradefi/contract"
)

// Engine owns the pool registry and executes all market operations. Each
// exported operation is one atomic unit: every check passes and every mutation
// plus every transfer commits together, or the call aborts with no observable
// state change.
type Engine struct {
	mu sync.Mutex

	log    log.Logger
	auth   AuthOracle
	ledger *bank.Ledger

	// pools caches loaded pool records; dropped wholesale on revert.
	pools map[[32]byte]*Pool

	// flashLoans holds at most one outstanding loan per borrower. In-memory
	// only; a record never survives the call that created it.
	flashLoans map[common.Address]*FlashLoanRecord
	borrowers  map[common.Address]FlashBorrower

	events  *EventLog
	metrics *Metrics
}

// NewEngine creates a market engine. metrics may be nil.
func NewEngine(logger log.Logger, auth AuthOracle, ledger *bank.Ledger, metrics *Metrics) *Engine {
	return &Engine{
		log:        logger,
		auth:       auth,
		ledger:     ledger,
		pools:      make(map[[32]byte]*Pool),
		flashLoans: make(map[common.Address]*FlashLoanRecord),
		borrowers:  make(map[common.Address]FlashBorrower),
		events:     NewEventLog(),
		metrics:    metrics,
	}
}

// Events returns everything emitted so far, in order.
func (e *Engine) Events() []LoggedEvent {
	return e.events.Events()
}

// CreatePool registers a pool for the ordered pair. Owner-only.
func (e *Engine) CreatePool(state contract.StateDB, caller, tokenIn, tokenOut common.Address, feeRateBps uint16) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused(state) {
		return ErrPaused
	}
	if !e.auth.IsOwner(state, caller) {
		return ErrNotAuthorized
	}
	if tokenIn == tokenOut {
		return ErrIdenticalTokens
	}
	return e.createPool(state, caller, tokenIn, tokenOut, feeRateBps)
}

// CreateFundingPool registers the self-pair pool that backs flash loans for
// token and seeds its lending reserve from the caller. Owner-only. The
// funding pool is wholly protocol-owned: no shares are minted against it.
func (e *Engine) CreateFundingPool(state contract.StateDB, caller, token common.Address, feeRateBps uint16, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused(state) {
		return ErrPaused
	}
	if !e.auth.IsOwner(state, caller) {
		return ErrNotAuthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if amount.BitLen() > MaxReserveBits {
		return ErrOverflow
	}
	if feeRateBps > MaxFeeBps {
		return ErrInvalidFee
	}
	if e.loadPool(state, token, token) != nil {
		return ErrPoolExists
	}
	count := e.poolCount(state)
	if count >= e.maxPoolsCap(state) {
		return ErrTooManyPools
	}

	snap := state.Snapshot()
	if err := e.ledger.Transfer(state, token, caller, PoolAddress, amount); err != nil {
		state.RevertToSnapshot(snap)
		return fmt.Errorf("%w: %s", ErrTransfer, err)
	}

	pool := NewPool(token, token, feeRateBps)
	pool.ReserveA = new(big.Int).Set(amount)
	e.storePool(state, pool)
	e.setPoolCount(state, count+1)

	e.events.Emit(PoolCreated{TokenIn: token, TokenOut: token, FeeRateBps: feeRateBps, Creator: caller})
	e.metrics.PoolCreated()
	e.log.Info("funding pool created", "token", token, "feeBps", feeRateBps, "seed", amount)
	return nil
}

func (e *Engine) createPool(state contract.StateDB, caller, tokenIn, tokenOut common.Address, feeRateBps uint16) error {
	if feeRateBps > MaxFeeBps {
		return ErrInvalidFee
	}
	if e.loadPool(state, tokenIn, tokenOut) != nil {
		return ErrPoolExists
	}
	count := e.poolCount(state)
	if count >= e.maxPoolsCap(state) {
		return ErrTooManyPools
	}

	e.storePool(state, NewPool(tokenIn, tokenOut, feeRateBps))
	e.setPoolCount(state, count+1)

	e.events.Emit(PoolCreated{TokenIn: tokenIn, TokenOut: tokenOut, FeeRateBps: feeRateBps, Creator: caller})
	e.metrics.PoolCreated()
	e.log.Info("pool created", "tokenIn", tokenIn, "tokenOut", tokenOut, "feeBps", feeRateBps)
	return nil
}

// AddLiquidity deposits (amountA, amountB) into the pool for the ordered pair
// and mints shares to the caller. Starts the caller's withdrawal cooldown.
func (e *Engine) AddLiquidity(state contract.StateDB, now uint64, caller, tokenIn, tokenOut common.Address, amountA, amountB, minShares *big.Int, deadline uint64) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused(state) {
		return nil, ErrPaused
	}
	if now > deadline {
		return nil, ErrDeadlineExceeded
	}
	pool := e.loadPool(state, tokenIn, tokenOut)
	if pool == nil {
		return nil, ErrPoolNotFound
	}
	if amountA == nil || amountA.Sign() <= 0 || amountB == nil || amountB.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	shares := SharesForDeposit(amountA, amountB, pool.ReserveA, pool.ReserveB, pool.TotalShares)
	if minShares != nil && shares.Cmp(minShares) < 0 {
		return nil, ErrSlippage
	}
	if shares.Sign() <= 0 {
		return nil, ErrSlippage
	}

	newReserveA := new(big.Int).Add(pool.ReserveA, amountA)
	newReserveB := new(big.Int).Add(pool.ReserveB, amountB)
	if newReserveA.BitLen() > MaxReserveBits || newReserveB.BitLen() > MaxReserveBits {
		return nil, ErrOverflow
	}
	newK := new(big.Int).Mul(newReserveA, newReserveB)
	if newK.Cmp(pool.LastK) < 0 {
		return nil, ErrInvariant
	}

	snap := state.Snapshot()
	if err := e.ledger.Transfer(state, tokenIn, caller, PoolAddress, amountA); err != nil {
		state.RevertToSnapshot(snap)
		return nil, fmt.Errorf("%w: %s", ErrTransfer, err)
	}
	if err := e.ledger.Transfer(state, tokenOut, caller, PoolAddress, amountB); err != nil {
		state.RevertToSnapshot(snap)
		return nil, fmt.Errorf("%w: %s", ErrTransfer, err)
	}

	id := PoolID(tokenIn, tokenOut)
	pool.ReserveA = newReserveA
	pool.ReserveB = newReserveB
	pool.TotalShares = new(big.Int).Add(pool.TotalShares, shares)
	pool.LastK = newK
	e.storePool(state, pool)

	userShares := e.shareBalance(state, id, caller)
	e.setShareBalance(state, id, caller, new(big.Int).Add(userShares, shares))
	e.setCooldown(state, caller, id, now+CooldownWindow)

	e.events.Emit(LiquidityAdded{TokenIn: tokenIn, TokenOut: tokenOut, Provider: caller, AmountA: amountA, AmountB: amountB, Shares: shares})
	e.metrics.LiquidityAdded()
	return shares, nil
}

// RemoveLiquidity burns shares and pays out the floor pro-rata reserves.
// Subject to the caller's cooldown; success re-arms it.
func (e *Engine) RemoveLiquidity(state contract.StateDB, now uint64, caller, tokenIn, tokenOut common.Address, shares, minAmountA, minAmountB *big.Int, deadline uint64) (*big.Int, *big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused(state) {
		return nil, nil, ErrPaused
	}
	if now > deadline {
		return nil, nil, ErrDeadlineExceeded
	}
	pool := e.loadPool(state, tokenIn, tokenOut)
	if pool == nil {
		return nil, nil, ErrPoolNotFound
	}
	if shares == nil || shares.Sign() <= 0 {
		return nil, nil, ErrInvalidAmount
	}

	id := PoolID(tokenIn, tokenOut)
	userShares := e.shareBalance(state, id, caller)
	if userShares.Cmp(shares) < 0 {
		return nil, nil, ErrInsufficientBalance
	}
	if until := e.cooldownAt(state, caller, id); now < until {
		return nil, nil, fmt.Errorf("%w: until %d, now %d", ErrCooldownNotMet, until, now)
	}

	amountA, amountB := WithdrawAmounts(shares, pool.ReserveA, pool.ReserveB, pool.TotalShares)
	if minAmountA != nil && amountA.Cmp(minAmountA) < 0 {
		return nil, nil, ErrSlippage
	}
	if minAmountB != nil && amountB.Cmp(minAmountB) < 0 {
		return nil, nil, ErrSlippage
	}

	newReserveA := new(big.Int).Sub(pool.ReserveA, amountA)
	newReserveB := new(big.Int).Sub(pool.ReserveB, amountB)
	newK := new(big.Int).Mul(newReserveA, newReserveB)
	// Floor payouts bound the reserve decrease by the burned-share
	// proportion, so K may fall only to the squared-remaining floor.
	if newK.Cmp(removalFloor(pool.LastK, shares, pool.TotalShares)) < 0 {
		return nil, nil, ErrInvariant
	}

	snap := state.Snapshot()
	pool.ReserveA = newReserveA
	pool.ReserveB = newReserveB
	pool.TotalShares = new(big.Int).Sub(pool.TotalShares, shares)
	pool.LastK = newK
	e.storePool(state, pool)
	e.setShareBalance(state, id, caller, new(big.Int).Sub(userShares, shares))
	e.setCooldown(state, caller, id, now+CooldownWindow)

	if err := e.payOut(state, tokenIn, caller, amountA); err != nil {
		state.RevertToSnapshot(snap)
		e.invalidate()
		return nil, nil, err
	}
	if err := e.payOut(state, tokenOut, caller, amountB); err != nil {
		state.RevertToSnapshot(snap)
		e.invalidate()
		return nil, nil, err
	}

	e.events.Emit(LiquidityRemoved{TokenIn: tokenIn, TokenOut: tokenOut, Provider: caller, Shares: shares, AmountA: amountA, AmountB: amountB})
	e.metrics.LiquidityRemoved()
	return amountA, amountB, nil
}

// payOut moves amount from the pool account to the recipient. Zero payouts
// are dropped silently; floor division makes them legitimate.
func (e *Engine) payOut(state contract.StateDB, token common.Address, to common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if err := e.ledger.Transfer(state, token, PoolAddress, to, amount); err != nil {
		return fmt.Errorf("%w: %s", ErrTransfer, err)
	}
	return nil
}

// Swap exchanges amountIn of tokenIn for tokenOut against the pool keyed by
// the ordered pair exactly as supplied.
func (e *Engine) Swap(state contract.StateDB, now uint64, caller, tokenIn, tokenOut common.Address, amountIn, minAmountOut *big.Int, deadline uint64) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.swap(state, now, caller, tokenIn, tokenOut, amountIn, minAmountOut, deadline)
}

func (e *Engine) swap(state contract.StateDB, now uint64, caller, tokenIn, tokenOut common.Address, amountIn, minAmountOut *big.Int, deadline uint64) (*big.Int, error) {
	if e.paused(state) {
		return nil, ErrPaused
	}
	if now > deadline {
		return nil, ErrDeadlineExceeded
	}
	pool := e.loadPool(state, tokenIn, tokenOut)
	if pool == nil {
		return nil, ErrPoolNotFound
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	amountOut := SwapOutput(amountIn, pool.ReserveA, pool.ReserveB, pool.FeeRateBps)
	if minAmountOut != nil && amountOut.Cmp(minAmountOut) < 0 {
		return nil, ErrSlippage
	}
	if amountOut.Sign() <= 0 {
		return nil, ErrSlippage
	}

	newReserveA := new(big.Int).Add(pool.ReserveA, amountIn)
	if newReserveA.BitLen() > MaxReserveBits {
		return nil, ErrOverflow
	}
	newReserveB := new(big.Int).Sub(pool.ReserveB, amountOut)
	newK := new(big.Int).Mul(newReserveA, newReserveB)
	// Fees are retained in the pool, so K never shrinks on an accepted
	// swap; a decrease here is an arithmetic or ordering bug.
	if newK.Cmp(pool.LastK) < 0 {
		return nil, ErrInvariant
	}

	snap := state.Snapshot()
	if err := e.ledger.Transfer(state, tokenIn, caller, PoolAddress, amountIn); err != nil {
		state.RevertToSnapshot(snap)
		return nil, fmt.Errorf("%w: %s", ErrTransfer, err)
	}

	pool.ReserveA = newReserveA
	pool.ReserveB = newReserveB
	pool.LastK = newK
	e.storePool(state, pool)

	if err := e.ledger.Transfer(state, tokenOut, PoolAddress, caller, amountOut); err != nil {
		state.RevertToSnapshot(snap)
		e.invalidate()
		return nil, fmt.Errorf("%w: %s", ErrTransfer, err)
	}

	e.events.Emit(SwapExecuted{TokenIn: tokenIn, TokenOut: tokenOut, Trader: caller, AmountIn: amountIn, AmountOut: amountOut})
	e.metrics.SwapExecuted()
	return amountOut, nil
}

// SetPaused sets the global pause flag. Owner-only, unconditional.
func (e *Engine) SetPaused(state contract.StateDB, caller common.Address, flag bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.auth.IsOwner(state, caller) {
		return ErrNotAuthorized
	}
	e.setPausedFlag(state, flag)
	e.metrics.PausedSet(flag)
	e.log.Info("pause flag set", "paused", flag, "by", caller)
	return nil
}

// GetPool returns a copy of the pool for the ordered pair.
func (e *Engine) GetPool(state contract.StateDB, tokenIn, tokenOut common.Address) (*Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pool := e.loadPool(state, tokenIn, tokenOut)
	if pool == nil {
		return nil, ErrPoolNotFound
	}
	cp := *pool
	cp.ReserveA = new(big.Int).Set(pool.ReserveA)
	cp.ReserveB = new(big.Int).Set(pool.ReserveB)
	cp.TotalShares = new(big.Int).Set(pool.TotalShares)
	cp.LastK = new(big.Int).Set(pool.LastK)
	return &cp, nil
}

// SharesOf returns the user's share balance for the ordered pair's pool.
func (e *Engine) SharesOf(state contract.StateDB, tokenIn, tokenOut, user common.Address) *big.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shareBalance(state, PoolID(tokenIn, tokenOut), user)
}

// CooldownOf returns the timestamp after which the user may withdraw from the
// ordered pair's pool. Zero means never armed.
func (e *Engine) CooldownOf(state contract.StateDB, user, tokenIn, tokenOut common.Address) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cooldownAt(state, user, PoolID(tokenIn, tokenOut))
}

// IsPaused reports the global pause flag.
func (e *Engine) IsPaused(state contract.StateDB) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused(state)
}

// PoolCount returns the number of registered pools.
func (e *Engine) PoolCount(state contract.StateDB) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.poolCount(state)
}
