// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/tradefi/contract"
)

// Method selectors for the market precompile.
const (
	SelectorCreatePool        uint32 = 0x01000000 // createPool(address,address,uint16)
	SelectorCreateFundingPool uint32 = 0x02000000 // createFundingPool(address,uint16,uint256)
	SelectorAddLiquidity      uint32 = 0x03000000 // addLiquidity(address,address,uint256,uint256,uint256,uint64)
	SelectorRemoveLiquidity   uint32 = 0x04000000 // removeLiquidity(address,address,uint256,uint256,uint256,uint64)
	SelectorSwap              uint32 = 0x05000000 // swap(address,address,uint256,uint256,uint64)
	SelectorFlashLoan         uint32 = 0x06000000 // flashLoan(address,uint256)
	SelectorSetPaused         uint32 = 0x07000000 // setPaused(bool)
	SelectorGetPool           uint32 = 0x08000000 // getPool(address,address)
	SelectorSharesOf          uint32 = 0x09000000 // sharesOf(address,address,address)
)

// Input layouts are fixed-width: 20-byte addresses, 32-byte amounts, 8-byte
// timestamps, 2-byte fee rates, 1-byte flags, in declaration order after the
// 4-byte selector.
const (
	addrLen   = 20
	amountLen = 32

	createPoolInputLen        = 2*addrLen + 2
	createFundingPoolInputLen = addrLen + 2 + amountLen
	addLiquidityInputLen      = 2*addrLen + 3*amountLen + 8
	removeLiquidityInputLen   = 2*addrLen + 3*amountLen + 8
	swapInputLen              = 2*addrLen + 2*amountLen + 8
	flashLoanInputLen         = addrLen + amountLen
	setPausedInputLen         = 1
	getPoolInputLen           = 2 * addrLen
	sharesOfInputLen          = 3 * addrLen
)

var _ contract.StatefulPrecompiledContract = (*MarketContract)(nil)

// MarketContract adapts the engine to the precompile calling convention.
type MarketContract struct {
	engine *Engine
}

// NewMarketContract wraps an engine as a stateful precompile.
func NewMarketContract(engine *Engine) *MarketContract {
	return &MarketContract{engine: engine}
}

// Engine exposes the wrapped engine for in-process callers (borrower
// registration, views in tests).
func (c *MarketContract) Engine() *Engine {
	return c.engine
}

// Run executes the precompile.
func (c *MarketContract) Run(
	accessibleState contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if len(input) < 4 {
		return nil, suppliedGas, fmt.Errorf("input too short")
	}
	selector := binary.BigEndian.Uint32(input[:4])
	data := input[4:]

	switch selector {
	case SelectorCreatePool:
		return c.runCreatePool(accessibleState, caller, data, suppliedGas, readOnly)
	case SelectorCreateFundingPool:
		return c.runCreateFundingPool(accessibleState, caller, data, suppliedGas, readOnly)
	case SelectorAddLiquidity:
		return c.runAddLiquidity(accessibleState, caller, data, suppliedGas, readOnly)
	case SelectorRemoveLiquidity:
		return c.runRemoveLiquidity(accessibleState, caller, data, suppliedGas, readOnly)
	case SelectorSwap:
		return c.runSwap(accessibleState, caller, data, suppliedGas, readOnly)
	case SelectorFlashLoan:
		return c.runFlashLoan(accessibleState, caller, data, suppliedGas, readOnly)
	case SelectorSetPaused:
		return c.runSetPaused(accessibleState, caller, data, suppliedGas, readOnly)
	case SelectorGetPool:
		return c.runGetPool(accessibleState, data, suppliedGas)
	case SelectorSharesOf:
		return c.runSharesOf(accessibleState, data, suppliedGas)
	default:
		return nil, suppliedGas, fmt.Errorf("unknown method selector: %x", selector)
	}
}

func parseAddr(data []byte) common.Address {
	return common.BytesToAddress(data[:addrLen])
}

func parseAmount(data []byte) *big.Int {
	return new(big.Int).SetBytes(data[:amountLen])
}

func encodeAmount(amount *big.Int) []byte {
	out := make([]byte, amountLen)
	amount.FillBytes(out)
	return out
}

func (c *MarketContract) runCreatePool(
	accessibleState contract.AccessibleState,
	caller common.Address,
	data []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}
	if suppliedGas < GasCreatePool {
		return nil, 0, fmt.Errorf("out of gas")
	}
	remaining := suppliedGas - GasCreatePool
	if len(data) < createPoolInputLen {
		return nil, remaining, fmt.Errorf("input too short")
	}

	tokenIn := parseAddr(data)
	tokenOut := parseAddr(data[addrLen:])
	feeBps := binary.BigEndian.Uint16(data[2*addrLen:])

	state := accessibleState.GetStateDB()
	if err := c.engine.CreatePool(state, caller, tokenIn, tokenOut, feeBps); err != nil {
		return nil, remaining, err
	}
	return nil, remaining, nil
}

func (c *MarketContract) runCreateFundingPool(
	accessibleState contract.AccessibleState,
	caller common.Address,
	data []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}
	if suppliedGas < GasCreatePool {
		return nil, 0, fmt.Errorf("out of gas")
	}
	remaining := suppliedGas - GasCreatePool
	if len(data) < createFundingPoolInputLen {
		return nil, remaining, fmt.Errorf("input too short")
	}

	token := parseAddr(data)
	feeBps := binary.BigEndian.Uint16(data[addrLen:])
	amount := parseAmount(data[addrLen+2:])

	state := accessibleState.GetStateDB()
	if err := c.engine.CreateFundingPool(state, caller, token, feeBps, amount); err != nil {
		return nil, remaining, err
	}
	return nil, remaining, nil
}

func (c *MarketContract) runAddLiquidity(
	accessibleState contract.AccessibleState,
	caller common.Address,
	data []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}
	if suppliedGas < GasAddLiquidity {
		return nil, 0, fmt.Errorf("out of gas")
	}
	remaining := suppliedGas - GasAddLiquidity
	if len(data) < addLiquidityInputLen {
		return nil, remaining, fmt.Errorf("input too short")
	}

	tokenIn := parseAddr(data)
	tokenOut := parseAddr(data[addrLen:])
	amountA := parseAmount(data[2*addrLen:])
	amountB := parseAmount(data[2*addrLen+amountLen:])
	minShares := parseAmount(data[2*addrLen+2*amountLen:])
	deadline := binary.BigEndian.Uint64(data[2*addrLen+3*amountLen:])

	state := accessibleState.GetStateDB()
	now := accessibleState.GetBlockContext().Timestamp()
	shares, err := c.engine.AddLiquidity(state, now, caller, tokenIn, tokenOut, amountA, amountB, minShares, deadline)
	if err != nil {
		return nil, remaining, err
	}
	return encodeAmount(shares), remaining, nil
}

func (c *MarketContract) runRemoveLiquidity(
	accessibleState contract.AccessibleState,
	caller common.Address,
	data []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}
	if suppliedGas < GasRemoveLiquidity {
		return nil, 0, fmt.Errorf("out of gas")
	}
	remaining := suppliedGas - GasRemoveLiquidity
	if len(data) < removeLiquidityInputLen {
		return nil, remaining, fmt.Errorf("input too short")
	}

	tokenIn := parseAddr(data)
	tokenOut := parseAddr(data[addrLen:])
	shares := parseAmount(data[2*addrLen:])
	minAmountA := parseAmount(data[2*addrLen+amountLen:])
	minAmountB := parseAmount(data[2*addrLen+2*amountLen:])
	deadline := binary.BigEndian.Uint64(data[2*addrLen+3*amountLen:])

	state := accessibleState.GetStateDB()
	now := accessibleState.GetBlockContext().Timestamp()
	amountA, amountB, err := c.engine.RemoveLiquidity(state, now, caller, tokenIn, tokenOut, shares, minAmountA, minAmountB, deadline)
	if err != nil {
		return nil, remaining, err
	}
	return append(encodeAmount(amountA), encodeAmount(amountB)...), remaining, nil
}

func (c *MarketContract) runSwap(
	accessibleState contract.AccessibleState,
	caller common.Address,
	data []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}
	if suppliedGas < GasSwap {
		return nil, 0, fmt.Errorf("out of gas")
	}
	remaining := suppliedGas - GasSwap
	if len(data) < swapInputLen {
		return nil, remaining, fmt.Errorf("input too short")
	}

	tokenIn := parseAddr(data)
	tokenOut := parseAddr(data[addrLen:])
	amountIn := parseAmount(data[2*addrLen:])
	minAmountOut := parseAmount(data[2*addrLen+amountLen:])
	deadline := binary.BigEndian.Uint64(data[2*addrLen+2*amountLen:])

	state := accessibleState.GetStateDB()
	now := accessibleState.GetBlockContext().Timestamp()
	amountOut, err := c.engine.Swap(state, now, caller, tokenIn, tokenOut, amountIn, minAmountOut, deadline)
	if err != nil {
		return nil, remaining, err
	}
	return encodeAmount(amountOut), remaining, nil
}

func (c *MarketContract) runFlashLoan(
	accessibleState contract.AccessibleState,
	caller common.Address,
	data []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}
	if suppliedGas < GasFlashLoan {
		return nil, 0, fmt.Errorf("out of gas")
	}
	remaining := suppliedGas - GasFlashLoan
	if len(data) < flashLoanInputLen {
		return nil, remaining, fmt.Errorf("input too short")
	}

	token := parseAddr(data)
	amount := parseAmount(data[addrLen:])

	state := accessibleState.GetStateDB()
	if err := c.engine.FlashLoan(state, caller, token, amount); err != nil {
		return nil, remaining, err
	}
	return nil, remaining, nil
}

func (c *MarketContract) runSetPaused(
	accessibleState contract.AccessibleState,
	caller common.Address,
	data []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}
	if suppliedGas < GasSetPaused {
		return nil, 0, fmt.Errorf("out of gas")
	}
	remaining := suppliedGas - GasSetPaused
	if len(data) < setPausedInputLen {
		return nil, remaining, fmt.Errorf("input too short")
	}

	state := accessibleState.GetStateDB()
	if err := c.engine.SetPaused(state, caller, data[0] != 0); err != nil {
		return nil, remaining, err
	}
	return nil, remaining, nil
}

// runGetPool returns reserveA || reserveB || totalShares || lastK || feeBps || isActive.
func (c *MarketContract) runGetPool(
	accessibleState contract.AccessibleState,
	data []byte,
	suppliedGas uint64,
) ([]byte, uint64, error) {
	if suppliedGas < GasPoolLookup {
		return nil, 0, fmt.Errorf("out of gas")
	}
	remaining := suppliedGas - GasPoolLookup
	if len(data) < getPoolInputLen {
		return nil, remaining, fmt.Errorf("input too short")
	}

	tokenIn := parseAddr(data)
	tokenOut := parseAddr(data[addrLen:])

	pool, err := c.engine.GetPool(accessibleState.GetStateDB(), tokenIn, tokenOut)
	if err != nil {
		return nil, remaining, err
	}

	out := make([]byte, 0, 4*amountLen+3)
	out = append(out, encodeAmount(pool.ReserveA)...)
	out = append(out, encodeAmount(pool.ReserveB)...)
	out = append(out, encodeAmount(pool.TotalShares)...)
	out = append(out, encodeAmount(pool.LastK)...)
	var fee [2]byte
	binary.BigEndian.PutUint16(fee[:], pool.FeeRateBps)
	out = append(out, fee[:]...)
	if pool.IsActive {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	return out, remaining, nil
}

func (c *MarketContract) runSharesOf(
	accessibleState contract.AccessibleState,
	data []byte,
	suppliedGas uint64,
) ([]byte, uint64, error) {
	if suppliedGas < GasPoolLookup {
		return nil, 0, fmt.Errorf("out of gas")
	}
	remaining := suppliedGas - GasPoolLookup
	if len(data) < sharesOfInputLen {
		return nil, remaining, fmt.Errorf("input too short")
	}

	tokenIn := parseAddr(data)
	tokenOut := parseAddr(data[addrLen:])
	user := parseAddr(data[2*addrLen:])

	shares := c.engine.SharesOf(accessibleState.GetStateDB(), tokenIn, tokenOut, user)
	return encodeAmount(shares), remaining, nil
}
