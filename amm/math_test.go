// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"math/big"
	"testing"
)

func TestSharesForDepositFirstDeposit(t *testing.T) {
	tests := []struct {
		name    string
		amountA int64
		amountB int64
		want    int64
	}{
		{"square amounts", 10000, 10000, 10000},
		{"asymmetric", 4, 9, 6},
		{"floor of non-square", 10, 10, 10},
		{"one by one", 1, 1, 1},
		{"floors down", 2, 3, 2}, // sqrt(6) = 2.449
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SharesForDeposit(
				big.NewInt(tt.amountA), big.NewInt(tt.amountB),
				big.NewInt(0), big.NewInt(0), big.NewInt(0),
			)
			if got.Int64() != tt.want {
				t.Errorf("shares = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSharesForDepositProportional(t *testing.T) {
	reserveA := big.NewInt(10000)
	reserveB := big.NewInt(40000)
	total := big.NewInt(20000)

	// Balanced deposit mints proportionally.
	got := SharesForDeposit(big.NewInt(1000), big.NewInt(4000), reserveA, reserveB, total)
	if got.Int64() != 2000 {
		t.Errorf("balanced deposit shares = %v, want 2000", got)
	}

	// Imbalanced deposit is penalized to the smaller ratio.
	got = SharesForDeposit(big.NewInt(1000), big.NewInt(1000), reserveA, reserveB, total)
	if got.Int64() != 500 {
		t.Errorf("imbalanced deposit shares = %v, want 500", got)
	}
}

func TestWithdrawAmountsFloors(t *testing.T) {
	amountA, amountB := WithdrawAmounts(
		big.NewInt(3), big.NewInt(100), big.NewInt(200), big.NewInt(7),
	)
	// 3*100/7 = 42.86 -> 42, 3*200/7 = 85.7 -> 85
	if amountA.Int64() != 42 || amountB.Int64() != 85 {
		t.Errorf("payout = (%v, %v), want (42, 85)", amountA, amountB)
	}
}

func TestSwapOutputReferenceVector(t *testing.T) {
	// floor(100*9970*10000 / (10000*10000 + 100*9970)) = 98
	got := SwapOutput(big.NewInt(100), big.NewInt(10000), big.NewInt(10000), 30)
	if got.Int64() != 98 {
		t.Errorf("amountOut = %v, want 98", got)
	}
}

func TestSwapOutputZeroFee(t *testing.T) {
	// floor(100*10000*10000 / (10000*10000 + 100*10000)) = 99
	got := SwapOutput(big.NewInt(100), big.NewInt(10000), big.NewInt(10000), 0)
	if got.Int64() != 99 {
		t.Errorf("amountOut = %v, want 99", got)
	}
}

func TestSwapOutputEmptyPool(t *testing.T) {
	got := SwapOutput(big.NewInt(100), big.NewInt(0), big.NewInt(0), 30)
	if got.Sign() != 0 {
		t.Errorf("amountOut = %v, want 0", got)
	}
}

func TestFlashPremium(t *testing.T) {
	tests := []struct {
		amount int64
		feeBps uint16
		want   int64
	}{
		{10000, 30, 30},
		{100, 30, 0}, // floors to zero below 1/feeBps
		{1000000, 100, 10000},
		{333, 1000, 33},
	}
	for _, tt := range tests {
		got := FlashPremium(big.NewInt(tt.amount), tt.feeBps)
		if got.Int64() != tt.want {
			t.Errorf("FlashPremium(%d, %d) = %v, want %d", tt.amount, tt.feeBps, got, tt.want)
		}
	}
}

func TestRemovalFloor(t *testing.T) {
	// Burning half the shares floors K at a quarter of lastK.
	got := removalFloor(big.NewInt(100000000), big.NewInt(5000), big.NewInt(10000))
	if got.Int64() != 25000000 {
		t.Errorf("floor = %v, want 25000000", got)
	}

	// Burning everything floors K at zero.
	got = removalFloor(big.NewInt(100000000), big.NewInt(10000), big.NewInt(10000))
	if got.Sign() != 0 {
		t.Errorf("floor = %v, want 0", got)
	}
}

func FuzzSwapOutput(f *testing.F) {
	f.Add(int64(100), int64(10000), int64(10000), uint16(30))
	f.Add(int64(1), int64(1), int64(1), uint16(0))
	f.Add(int64(1<<62), int64(1<<62), int64(1<<62), uint16(1000))
	f.Fuzz(func(t *testing.T, amountIn, reserveIn, reserveOut int64, feeBps uint16) {
		if amountIn <= 0 || reserveIn <= 0 || reserveOut <= 0 || feeBps > MaxFeeBps {
			t.Skip()
		}
		in := big.NewInt(amountIn)
		rIn := big.NewInt(reserveIn)
		rOut := big.NewInt(reserveOut)

		out := SwapOutput(in, rIn, rOut, feeBps)

		// Output never drains the pool.
		if out.Cmp(rOut) >= 0 {
			t.Fatalf("out %v >= reserveOut %v", out, rOut)
		}
		if out.Sign() < 0 {
			t.Fatalf("negative output %v", out)
		}

		// K never decreases across the implied reserve update.
		oldK := new(big.Int).Mul(rIn, rOut)
		newK := new(big.Int).Mul(
			new(big.Int).Add(rIn, in),
			new(big.Int).Sub(rOut, out),
		)
		if newK.Cmp(oldK) < 0 {
			t.Fatalf("K shrank: %v -> %v", oldK, newK)
		}
	})
}
