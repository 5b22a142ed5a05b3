// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import "math/big"

// Stateless integer pricing math. All division is floor division; rounding
// direction decides which side absorbs dust and must not change.

// isqrt returns the integer square root of n (floor).
func isqrt(n *big.Int) *big.Int {
	if n.Sign() <= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Sqrt(n)
}

// SharesForDeposit computes the shares minted for a deposit of
// (amountA, amountB) against the current pool state.
//
// First deposit: isqrt(amountA*amountB); the first depositor sets the pool's
// price ratio. Later deposits: the minimum of the two ratio-implied share
// counts, penalizing imbalanced deposits so existing holders are not diluted.
func SharesForDeposit(amountA, amountB, reserveA, reserveB, totalShares *big.Int) *big.Int {
	if totalShares.Sign() == 0 {
		return isqrt(new(big.Int).Mul(amountA, amountB))
	}
	byA := new(big.Int).Mul(amountA, totalShares)
	byA.Div(byA, reserveA)
	byB := new(big.Int).Mul(amountB, totalShares)
	byB.Div(byB, reserveB)
	if byA.Cmp(byB) < 0 {
		return byA
	}
	return byB
}

// WithdrawAmounts computes the floor pro-rata payout for burning shares.
func WithdrawAmounts(shares, reserveA, reserveB, totalShares *big.Int) (amountA, amountB *big.Int) {
	amountA = new(big.Int).Mul(shares, reserveA)
	amountA.Div(amountA, totalShares)
	amountB = new(big.Int).Mul(shares, reserveB)
	amountB.Div(amountB, totalShares)
	return amountA, amountB
}

// SwapOutput prices amountIn against the reserves with the fee subtracted
// from the input, so the fee is retained in the pool:
//
//	net = amountIn * (FeeDenominator - feeBps)
//	out = net * reserveOut / (reserveIn * FeeDenominator + net)
func SwapOutput(amountIn, reserveIn, reserveOut *big.Int, feeBps uint16) *big.Int {
	net := new(big.Int).Mul(amountIn, big.NewInt(FeeDenominator-int64(feeBps)))
	num := new(big.Int).Mul(net, reserveOut)
	den := new(big.Int).Mul(reserveIn, big.NewInt(FeeDenominator))
	den.Add(den, net)
	if den.Sign() == 0 {
		return big.NewInt(0)
	}
	return num.Div(num, den)
}

// FlashPremium computes the flash loan fee: amount * feeBps / FeeDenominator.
func FlashPremium(amount *big.Int, feeBps uint16) *big.Int {
	premium := new(big.Int).Mul(amount, big.NewInt(int64(feeBps)))
	return premium.Div(premium, big.NewInt(FeeDenominator))
}

// removalFloor is the lowest K the pool may hold after burning shares:
// lastK scaled by the squared remaining-share proportion, floored. Floor
// payouts keep the real K at or above this bound; anything below signals an
// arithmetic or ordering bug.
func removalFloor(lastK, burned, totalShares *big.Int) *big.Int {
	remaining := new(big.Int).Sub(totalShares, burned)
	bound := new(big.Int).Mul(lastK, remaining)
	bound.Mul(bound, remaining)
	den := new(big.Int).Mul(totalShares, totalShares)
	return bound.Div(bound, den)
}
