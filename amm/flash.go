// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/tradefi/contract"
)

// RegisterBorrower binds a flash-loan callback to a borrower address. A
// borrower without a registered callback cannot take a loan.
func (e *Engine) RegisterBorrower(borrower common.Address, callback FlashBorrower) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.borrowers[borrower] = callback
}

// FlashLoan lends amount of token from the token's funding pool to the
// caller, invokes the caller's registered callback, and verifies repayment of
// amount+premium before returning. Runs as one atomic unit: if repayment
// verification fails after funds left the pool, every mutation including the
// funds-out transfer is rolled back.
func (e *Engine) FlashLoan(state contract.StateDB, caller, token common.Address, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.paused(state) {
		return ErrPaused
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	// Flash loans draw against the token's self-pair funding pool.
	pool := e.loadPool(state, token, token)
	if pool == nil {
		return ErrPoolNotFound
	}
	if pool.ReserveA.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if _, outstanding := e.flashLoans[caller]; outstanding {
		return ErrLoanOutstanding
	}
	callback, ok := e.borrowers[caller]
	if !ok {
		return ErrNoBorrower
	}

	premium := FlashPremium(amount, pool.FeeRateBps)

	// Record the loan before funds move so any reentrant operation the
	// callback performs observes an outstanding loan.
	record := &FlashLoanRecord{
		Amount:  new(big.Int).Set(amount),
		Token:   token,
		Premium: premium,
	}
	e.flashLoans[caller] = record

	snap := state.Snapshot()
	if err := e.ledger.Transfer(state, token, PoolAddress, caller, amount); err != nil {
		delete(e.flashLoans, caller)
		state.RevertToSnapshot(snap)
		return fmt.Errorf("%w: %s", ErrTransfer, err)
	}

	// The callback may reenter the engine (swaps against the same pools),
	// so the lock is released for its duration.
	e.mu.Unlock()
	cbErr := callback.OnFlashLoan(state, token, amount, premium)
	e.mu.Lock()

	fail := func(err error) error {
		delete(e.flashLoans, caller)
		state.RevertToSnapshot(snap)
		e.invalidate()
		return err
	}

	if cbErr != nil {
		return fail(fmt.Errorf("%w: callback: %s", ErrLoanNotRepaid, cbErr))
	}

	got, ok := e.flashLoans[caller]
	if !ok || got.Token != token || got.Amount.Cmp(amount) != 0 {
		return fail(ErrLoanNotRepaid)
	}

	repayment := new(big.Int).Add(amount, premium)
	if err := e.ledger.Transfer(state, token, caller, PoolAddress, repayment); err != nil {
		return fail(fmt.Errorf("%w: %s", ErrLoanNotRepaid, err))
	}
	delete(e.flashLoans, caller)

	// Reentrant operations may have replaced the cached record.
	pool = e.loadPool(state, token, token)
	pool.ReserveA = new(big.Int).Add(pool.ReserveA, premium)
	pool.LastK = new(big.Int).Mul(pool.ReserveA, pool.ReserveB)
	e.storePool(state, pool)

	e.events.Emit(FlashLoanExecuted{Borrower: caller, Token: token, Amount: amount, Premium: premium})
	e.metrics.FlashLoanExecuted()
	e.log.Debug("flash loan repaid", "borrower", caller, "amount", amount, "premium", premium)
	return nil
}
