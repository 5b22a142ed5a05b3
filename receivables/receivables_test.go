// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package receivables

import (
	"errors"
	"math/big"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	"github.com/luxfi/tradefi/bank"
	"github.com/luxfi/tradefi/contract"
)

var (
	owner  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	issuer = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	debtor = common.HexToAddress("0x00000000000000000000000000000000000000dd")
	rando  = common.HexToAddress("0x00000000000000000000000000000000000000ee")
)

func newTestRegistry(t *testing.T) (*Registry, *contract.MemStateDB) {
	t.Helper()
	r := NewRegistry(log.NewTestLogger(log.InfoLevel), bank.NewLedger())
	state := contract.NewMemStateDB()
	if err := r.Initialize(state, owner); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return r, state
}

func TestInitializeOnce(t *testing.T) {
	r, state := newTestRegistry(t)

	if err := r.Initialize(state, rando); !errors.Is(err, ErrOwnerAlreadySet) {
		t.Fatalf("second initialize: got %v", err)
	}
	if !r.IsOwner(state, owner) {
		t.Fatal("owner role not granted")
	}
	if r.IsOwner(state, rando) {
		t.Fatal("non-owner reported as owner")
	}
}

func TestIsOwnerWithNoOwnerSet(t *testing.T) {
	r := NewRegistry(log.NewTestLogger(log.InfoLevel), bank.NewLedger())
	state := contract.NewMemStateDB()

	// The zero address must never pass the oracle by default.
	if r.IsOwner(state, common.Address{}) {
		t.Fatal("zero principal passed with no owner set")
	}
}

func TestTransferOwnership(t *testing.T) {
	r, state := newTestRegistry(t)

	if err := r.TransferOwnership(state, rando, rando); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("non-owner transfer: got %v", err)
	}
	if err := r.TransferOwnership(state, owner, rando); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if !r.IsOwner(state, rando) || r.IsOwner(state, owner) {
		t.Fatal("ownership did not move")
	}
}

func TestIssuerAllowList(t *testing.T) {
	r, state := newTestRegistry(t)

	if err := r.AddIssuer(state, rando, issuer); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("non-owner add: got %v", err)
	}
	if err := r.AddIssuer(state, owner, issuer); err != nil {
		t.Fatalf("add issuer: %v", err)
	}
	if !r.IsIssuer(state, issuer) {
		t.Fatal("issuer not allow-listed")
	}
	if err := r.RemoveIssuer(state, owner, issuer); err != nil {
		t.Fatalf("remove issuer: %v", err)
	}
	if r.IsIssuer(state, issuer) {
		t.Fatal("issuer still allow-listed after removal")
	}
}

func TestCreateReceivable(t *testing.T) {
	r, state := newTestRegistry(t)
	if err := r.AddIssuer(state, owner, issuer); err != nil {
		t.Fatal(err)
	}

	rec, err := r.Create(state, 1000, issuer, debtor, big.NewInt(50000), 2000)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Status != StatusActive {
		t.Fatalf("status = %d, want active", rec.Status)
	}

	// Face value is minted to the issuer in the receivable's own token.
	if bal := r.ledger.Balance(state, rec.Token, issuer); bal.Int64() != 50000 {
		t.Fatalf("issuer balance = %v, want 50000", bal)
	}

	got, err := r.Get(state, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Issuer != issuer || got.Debtor != debtor || got.FaceValue.Int64() != 50000 || got.DueDate != 2000 {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	// Two records by the same issuer get distinct IDs and tokens.
	rec2, err := r.Create(state, 1000, issuer, debtor, big.NewInt(50000), 2000)
	if err != nil {
		t.Fatal(err)
	}
	if rec2.ID == rec.ID {
		t.Fatal("duplicate record ID")
	}
}

func TestCreateValidation(t *testing.T) {
	r, state := newTestRegistry(t)
	if err := r.AddIssuer(state, owner, issuer); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Create(state, 1000, rando, debtor, big.NewInt(1), 2000); !errors.Is(err, ErrNotIssuer) {
		t.Fatalf("non-issuer create: got %v", err)
	}
	if _, err := r.Create(state, 1000, issuer, common.Address{}, big.NewInt(1), 2000); !errors.Is(err, ErrInvalidField) {
		t.Fatalf("zero debtor: got %v", err)
	}
	if _, err := r.Create(state, 1000, issuer, debtor, big.NewInt(0), 2000); !errors.Is(err, ErrInvalidField) {
		t.Fatalf("zero face value: got %v", err)
	}
	if _, err := r.Create(state, 1000, issuer, debtor, big.NewInt(1), 1000); !errors.Is(err, ErrInvalidField) {
		t.Fatalf("due date not in future: got %v", err)
	}
}

func TestStatusTransitions(t *testing.T) {
	r, state := newTestRegistry(t)
	if err := r.AddIssuer(state, owner, issuer); err != nil {
		t.Fatal(err)
	}
	rec, err := r.Create(state, 1000, issuer, debtor, big.NewInt(50000), 2000)
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Settle(state, rando, rec.ID); !errors.Is(err, ErrNotParty) {
		t.Fatalf("outsider settle: got %v", err)
	}
	if err := r.Settle(state, debtor, rec.ID); err != nil {
		t.Fatalf("settle: %v", err)
	}
	got, _ := r.Get(state, rec.ID)
	if got.Status != StatusSettled {
		t.Fatalf("status = %d, want settled", got.Status)
	}

	// Settled is terminal.
	if err := r.Settle(state, issuer, rec.ID); !errors.Is(err, ErrBadStatus) {
		t.Fatalf("double settle: got %v", err)
	}
	if err := r.Burn(state, issuer, rec.ID); !errors.Is(err, ErrBadStatus) {
		t.Fatalf("burn settled: got %v", err)
	}
	if err := r.Update(state, issuer, rec.ID, 3000); !errors.Is(err, ErrBadStatus) {
		t.Fatalf("update settled: got %v", err)
	}
}

func TestBurnReceivable(t *testing.T) {
	r, state := newTestRegistry(t)
	if err := r.AddIssuer(state, owner, issuer); err != nil {
		t.Fatal(err)
	}
	rec, err := r.Create(state, 1000, issuer, debtor, big.NewInt(50000), 2000)
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Burn(state, debtor, rec.ID); !errors.Is(err, ErrNotIssuer) {
		t.Fatalf("debtor burn: got %v", err)
	}
	if err := r.Burn(state, issuer, rec.ID); err != nil {
		t.Fatalf("burn: %v", err)
	}
	got, _ := r.Get(state, rec.ID)
	if got.Status != StatusBurned {
		t.Fatalf("status = %d, want burned", got.Status)
	}
	if bal := r.ledger.Balance(state, rec.Token, issuer); bal.Sign() != 0 {
		t.Fatalf("issuer balance = %v, want 0 after burn", bal)
	}
}

func TestBurnFailsIfTokensMoved(t *testing.T) {
	r, state := newTestRegistry(t)
	if err := r.AddIssuer(state, owner, issuer); err != nil {
		t.Fatal(err)
	}
	rec, err := r.Create(state, 1000, issuer, debtor, big.NewInt(50000), 2000)
	if err != nil {
		t.Fatal(err)
	}
	// Issuer sold part of the face value; the record can no longer be burned
	// and its status stays active.
	if err := r.ledger.Transfer(state, rec.Token, issuer, rando, big.NewInt(1)); err != nil {
		t.Fatal(err)
	}

	if err := r.Burn(state, issuer, rec.ID); err == nil {
		t.Fatal("burn succeeded with missing tokens")
	}
	got, _ := r.Get(state, rec.ID)
	if got.Status != StatusActive {
		t.Fatalf("status = %d, want active after failed burn", got.Status)
	}
}

func TestUpdateDueDate(t *testing.T) {
	r, state := newTestRegistry(t)
	if err := r.AddIssuer(state, owner, issuer); err != nil {
		t.Fatal(err)
	}
	rec, err := r.Create(state, 1000, issuer, debtor, big.NewInt(50000), 2000)
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Update(state, debtor, rec.ID, 3000); !errors.Is(err, ErrNotIssuer) {
		t.Fatalf("debtor update: got %v", err)
	}
	if err := r.Update(state, issuer, rec.ID, 500); !errors.Is(err, ErrInvalidField) {
		t.Fatalf("due date before creation: got %v", err)
	}
	if err := r.Update(state, issuer, rec.ID, 3000); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := r.Get(state, rec.ID)
	if got.DueDate != 3000 {
		t.Fatalf("dueDate = %d, want 3000", got.DueDate)
	}

	if err := r.Update(state, issuer, [32]byte{1, 2, 3}, 3000); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing record: got %v", err)
	}
}

func TestEventsRecorded(t *testing.T) {
	r, state := newTestRegistry(t)
	if err := r.AddIssuer(state, owner, issuer); err != nil {
		t.Fatal(err)
	}
	rec, err := r.Create(state, 1000, issuer, debtor, big.NewInt(50000), 2000)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Settle(state, debtor, rec.ID); err != nil {
		t.Fatal(err)
	}

	events := r.Events()
	if len(events) != 2 {
		t.Fatalf("event count = %d, want 2", len(events))
	}
	if events[0].Type() != "receivable_created" || events[1].Type() != "receivable_settled" {
		t.Fatalf("events = %q, %q", events[0].Type(), events[1].Type())
	}
}
