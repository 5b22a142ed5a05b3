// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package amm implements the receivables market precompile (LP-9110 RFPool):
// a permissioned constant-product market over tokenized trade-finance
// receivables with share-based liquidity ownership, withdrawal cooldowns and
// same-call flash loans.
package amm

import (
	"errors"
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"

	"github.com/luxfi/tradefi/contract"
	"github.com/luxfi/tradefi/registry"
)

// Precompile address (LP-9110 RFPool). The pool account holding all pooled
// token balances on the ledger.
var PoolAddress = common.HexToAddress(registry.RFPool)

// Protocol constants.
const (
	// FeeDenominator is the basis-point denominator for swap and flash fees.
	FeeDenominator = 10_000

	// MaxFeeBps caps a pool's fee rate at 10%.
	MaxFeeBps = 1_000

	// MaxPools caps the global pool count.
	MaxPools = 100

	// CooldownWindow is the mandatory wait in seconds after a withdrawal
	// before the same user may withdraw from the same pool again.
	CooldownWindow = 3_600

	// MaxReserveBits bounds each reserve to 128 bits so the K product always
	// fits a storage slot.
	MaxReserveBits = 128
)

// Gas costs.
const (
	GasCreatePool      uint64 = 50_000
	GasAddLiquidity    uint64 = 20_000
	GasRemoveLiquidity uint64 = 20_000
	GasSwap            uint64 = 10_000
	GasFlashLoan       uint64 = 5_000
	GasSetPaused       uint64 = 5_000
	GasPoolLookup      uint64 = 100
)

// Errors.
var (
	ErrNotAuthorized       = errors.New("not authorized")
	ErrPaused              = errors.New("market is paused")
	ErrDeadlineExceeded    = errors.New("deadline exceeded")
	ErrPoolExists          = errors.New("pool already exists")
	ErrPoolNotFound        = errors.New("pool not found")
	ErrTooManyPools        = errors.New("pool count cap reached")
	ErrInvalidFee          = errors.New("fee rate above protocol maximum")
	ErrIdenticalTokens     = errors.New("identical tokens")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSlippage            = errors.New("slippage bound not met")
	ErrCooldownNotMet      = errors.New("withdrawal cooldown not met")
	ErrInvariant           = errors.New("constant product invariant violated")
	ErrOverflow            = errors.New("reserve overflow")
	ErrLoanOutstanding     = errors.New("flash loan already outstanding")
	ErrLoanNotRepaid       = errors.New("flash loan not repaid")
	ErrNoBorrower          = errors.New("no flash borrower registered")
	ErrTransfer            = errors.New("transfer failed")
)

// Pool is the state of one liquidity pool. Pools are keyed by the ordered
// (TokenIn, TokenOut) pair exactly as supplied at creation; (A,B) and (B,A)
// are distinct pools.
type Pool struct {
	TokenIn  common.Address
	TokenOut common.Address

	ReserveA    *big.Int
	ReserveB    *big.Int
	TotalShares *big.Int

	FeeRateBps uint16

	// IsActive is set at creation and never cleared by any exposed operation.
	IsActive bool

	// LastK is reserveA*reserveB after the most recent accepted mutation.
	LastK *big.Int

	// CooldownEnd is retained for record parity; cooldowns are tracked per
	// (user, pool), not here.
	CooldownEnd uint64
}

// NewPool returns an empty pool for the given ordered pair.
func NewPool(tokenIn, tokenOut common.Address, feeRateBps uint16) *Pool {
	return &Pool{
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		ReserveA:    big.NewInt(0),
		ReserveB:    big.NewInt(0),
		TotalShares: big.NewInt(0),
		FeeRateBps:  feeRateBps,
		IsActive:    true,
		LastK:       big.NewInt(0),
	}
}

// FlashLoanRecord tracks one outstanding same-call loan, keyed by borrower
// identity only. It never persists across calls.
type FlashLoanRecord struct {
	Amount  *big.Int
	Token   common.Address
	Premium *big.Int
}

// FlashBorrower receives borrowed funds mid-call and must arrange repayment
// of amount+premium to the pool account before returning.
type FlashBorrower interface {
	OnFlashLoan(state contract.StateDB, token common.Address, amount, premium *big.Int) error
}

// AuthOracle answers whether a principal holds the owner/governor role. The
// receivable registry implements it; tests supply their own.
type AuthOracle interface {
	IsOwner(state contract.StateDB, principal common.Address) bool
}

// PoolID derives the registry key for the ordered pair. No canonicalization:
// reversing the arguments addresses a different pool.
func PoolID(tokenIn, tokenOut common.Address) [32]byte {
	h := blake3.New()
	h.Write(tokenIn.Bytes())
	h.Write(tokenOut.Bytes())
	var id [32]byte
	h.Digest().Read(id[:])
	return id
}
