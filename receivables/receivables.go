// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package receivables keeps the registry of tokenized trade-finance
// receivables (LP-9112 RFReceivables): field-checked create/update/settle/burn
// records, the owner role, and the issuer allow-list. The owner role backs the
// authorization oracle the market consults for privileged operations.
package receivables

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/zeebo/blake3"

	"github.com/luxfi/tradefi/bank"
	"github.com/luxfi/tradefi/contract"
	"github.com/luxfi/tradefi/registry"
)

var registryAddr = common.HexToAddress(registry.RFReceivables)

// Receivable status values.
const (
	StatusActive  uint8 = 1
	StatusSettled uint8 = 2
	StatusBurned  uint8 = 3
)

var (
	ErrNotOwner        = errors.New("caller is not the owner")
	ErrOwnerAlreadySet = errors.New("owner already set")
	ErrNotIssuer       = errors.New("caller is not an allowed issuer")
	ErrNotParty        = errors.New("caller is neither issuer nor debtor")
	ErrNotFound        = errors.New("receivable not found")
	ErrBadStatus       = errors.New("illegal status transition")
	ErrInvalidField    = errors.New("invalid field")
)

// Receivable is one tokenized trade-finance claim. Token is the ledger token
// the face value was minted in, derived from the record ID.
type Receivable struct {
	ID        [32]byte
	Issuer    common.Address
	Debtor    common.Address
	Token     common.Address
	FaceValue *big.Int
	DueDate   uint64
	CreatedAt uint64
	Status    uint8
}

// Storage key prefixes. All slots live at the registry precompile address.
var (
	ownerPrefix   = []byte("rcv/own")
	issuerPrefix  = []byte("rcv/iss")
	counterPrefix = []byte("rcv/cnt")
	metaPrefix    = []byte("rcv/meta")
	partiesPrefix = []byte("rcv/part")
	valuePrefix   = []byte("rcv/val")
)

func makeStorageKey(prefix []byte, id []byte) common.Hash {
	h := blake3.New()
	h.Write(prefix)
	h.Write(id)
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

// Registry reads and writes receivable records through a StateDB and mints or
// burns the backing tokens on the bank ledger.
type Registry struct {
	mu     sync.Mutex
	log    log.Logger
	ledger *bank.Ledger
	events []Event
}

// NewRegistry creates a receivable registry over the given ledger.
func NewRegistry(logger log.Logger, ledger *bank.Ledger) *Registry {
	return &Registry{log: logger, ledger: ledger}
}

// Event is one registry occurrence, recorded in call order.
type Event interface {
	Type() string
}

type ReceivableCreated struct {
	ID        [32]byte
	Issuer    common.Address
	Debtor    common.Address
	FaceValue *big.Int
	DueDate   uint64
}

func (ReceivableCreated) Type() string { return "receivable_created" }

type ReceivableUpdated struct {
	ID      [32]byte
	DueDate uint64
}

func (ReceivableUpdated) Type() string { return "receivable_updated" }

type ReceivableSettled struct {
	ID [32]byte
	By common.Address
}

func (ReceivableSettled) Type() string { return "receivable_settled" }

type ReceivableBurned struct {
	ID [32]byte
}

func (ReceivableBurned) Type() string { return "receivable_burned" }

func (r *Registry) emit(ev Event) {
	r.events = append(r.events, ev)
}

// Events returns everything emitted so far, in order.
func (r *Registry) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Owner returns the registered owner, or the zero address if never set.
func (r *Registry) Owner(state contract.StateDB) common.Address {
	val := state.GetState(registryAddr, makeStorageKey(ownerPrefix, nil))
	return common.BytesToAddress(val[12:])
}

// Initialize sets the owner once, at genesis or module configuration time.
func (r *Registry) Initialize(state contract.StateDB, owner common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Owner(state) != (common.Address{}) {
		return ErrOwnerAlreadySet
	}
	if owner == (common.Address{}) {
		return fmt.Errorf("%w: zero owner", ErrInvalidField)
	}
	r.setOwner(state, owner)
	return nil
}

// TransferOwnership hands the owner role to a new principal. Owner-only.
func (r *Registry) TransferOwnership(state contract.StateDB, caller, newOwner common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Owner(state) != caller {
		return ErrNotOwner
	}
	if newOwner == (common.Address{}) {
		return fmt.Errorf("%w: zero owner", ErrInvalidField)
	}
	r.setOwner(state, newOwner)
	r.log.Info("ownership transferred", "from", caller, "to", newOwner)
	return nil
}

func (r *Registry) setOwner(state contract.StateDB, owner common.Address) {
	var val common.Hash
	copy(val[12:], owner.Bytes())
	state.SetState(registryAddr, makeStorageKey(ownerPrefix, nil), val)
}

// IsOwner reports whether principal holds the owner role. Satisfies the
// market's authorization oracle.
func (r *Registry) IsOwner(state contract.StateDB, principal common.Address) bool {
	owner := r.Owner(state)
	return owner != (common.Address{}) && owner == principal
}

// AddIssuer allow-lists an issuer. Owner-only.
func (r *Registry) AddIssuer(state contract.StateDB, caller, issuer common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Owner(state) != caller {
		return ErrNotOwner
	}
	if issuer == (common.Address{}) {
		return fmt.Errorf("%w: zero issuer", ErrInvalidField)
	}
	var val common.Hash
	val[0] = 1
	state.SetState(registryAddr, makeStorageKey(issuerPrefix, issuer.Bytes()), val)
	return nil
}

// RemoveIssuer drops an issuer from the allow-list. Owner-only. Existing
// records issued by it are unaffected.
func (r *Registry) RemoveIssuer(state contract.StateDB, caller, issuer common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Owner(state) != caller {
		return ErrNotOwner
	}
	state.SetState(registryAddr, makeStorageKey(issuerPrefix, issuer.Bytes()), common.Hash{})
	return nil
}

// IsIssuer reports whether addr is on the issuer allow-list.
func (r *Registry) IsIssuer(state contract.StateDB, addr common.Address) bool {
	val := state.GetState(registryAddr, makeStorageKey(issuerPrefix, addr.Bytes()))
	return val[0] != 0
}

func (r *Registry) nextNonce(state contract.StateDB, issuer common.Address) uint64 {
	key := makeStorageKey(counterPrefix, issuer.Bytes())
	val := state.GetState(registryAddr, key)
	nonce := binary.BigEndian.Uint64(val[24:32])
	binary.BigEndian.PutUint64(val[24:32], nonce+1)
	state.SetState(registryAddr, key, val)
	return nonce
}

func recordID(issuer, debtor common.Address, nonce uint64) [32]byte {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	h := blake3.New()
	h.Write(issuer.Bytes())
	h.Write(debtor.Bytes())
	h.Write(n[:])
	var id [32]byte
	h.Digest().Read(id[:])
	return id
}

// TokenFor derives the ledger token address for a receivable ID.
func TokenFor(id [32]byte) common.Address {
	return common.BytesToAddress(id[:20])
}

// Create registers a receivable and mints its face value to the issuer on the
// bank ledger. Issuer-only.
func (r *Registry) Create(state contract.StateDB, now uint64, caller, debtor common.Address, faceValue *big.Int, dueDate uint64) (*Receivable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isIssuerLocked(state, caller) {
		return nil, ErrNotIssuer
	}
	if debtor == (common.Address{}) {
		return nil, fmt.Errorf("%w: zero debtor", ErrInvalidField)
	}
	if faceValue == nil || faceValue.Sign() <= 0 {
		return nil, fmt.Errorf("%w: non-positive face value", ErrInvalidField)
	}
	if dueDate <= now {
		return nil, fmt.Errorf("%w: due date %d not after %d", ErrInvalidField, dueDate, now)
	}

	snap := state.Snapshot()
	id := recordID(caller, debtor, r.nextNonce(state, caller))
	rec := &Receivable{
		ID:        id,
		Issuer:    caller,
		Debtor:    debtor,
		Token:     TokenFor(id),
		FaceValue: new(big.Int).Set(faceValue),
		DueDate:   dueDate,
		CreatedAt: now,
		Status:    StatusActive,
	}
	r.storeRecord(state, rec)

	if err := r.ledger.Mint(state, rec.Token, caller, faceValue); err != nil {
		state.RevertToSnapshot(snap)
		return nil, err
	}

	r.emit(ReceivableCreated{ID: id, Issuer: caller, Debtor: debtor, FaceValue: rec.FaceValue, DueDate: dueDate})
	r.log.Info("receivable created", "id", common.Hash(id), "issuer", caller, "faceValue", faceValue)
	return rec, nil
}

// Get returns the receivable for id.
func (r *Registry) Get(state contract.StateDB, id [32]byte) (*Receivable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadRecord(state, id)
}

// Update changes the due date of an active receivable. Issuer-only.
func (r *Registry) Update(state contract.StateDB, caller common.Address, id [32]byte, dueDate uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.loadRecord(state, id)
	if err != nil {
		return err
	}
	if rec.Issuer != caller {
		return ErrNotIssuer
	}
	if rec.Status != StatusActive {
		return fmt.Errorf("%w: status %d", ErrBadStatus, rec.Status)
	}
	if dueDate <= rec.CreatedAt {
		return fmt.Errorf("%w: due date %d not after creation %d", ErrInvalidField, dueDate, rec.CreatedAt)
	}

	rec.DueDate = dueDate
	r.storeRecord(state, rec)
	r.emit(ReceivableUpdated{ID: id, DueDate: dueDate})
	return nil
}

// Settle marks an active receivable as paid. Issuer or debtor only.
func (r *Registry) Settle(state contract.StateDB, caller common.Address, id [32]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.loadRecord(state, id)
	if err != nil {
		return err
	}
	if caller != rec.Issuer && caller != rec.Debtor {
		return ErrNotParty
	}
	if rec.Status != StatusActive {
		return fmt.Errorf("%w: status %d", ErrBadStatus, rec.Status)
	}

	rec.Status = StatusSettled
	r.storeRecord(state, rec)
	r.emit(ReceivableSettled{ID: id, By: caller})
	return nil
}

// Burn cancels an active receivable and burns its face value from the
// issuer's balance. Issuer-only; fails if the issuer no longer holds the full
// face value.
func (r *Registry) Burn(state contract.StateDB, caller common.Address, id [32]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.loadRecord(state, id)
	if err != nil {
		return err
	}
	if rec.Issuer != caller {
		return ErrNotIssuer
	}
	if rec.Status != StatusActive {
		return fmt.Errorf("%w: status %d", ErrBadStatus, rec.Status)
	}

	snap := state.Snapshot()
	rec.Status = StatusBurned
	r.storeRecord(state, rec)
	if err := r.ledger.Burn(state, rec.Token, caller, rec.FaceValue); err != nil {
		state.RevertToSnapshot(snap)
		return err
	}
	r.emit(ReceivableBurned{ID: id})
	return nil
}

// isIssuerLocked is IsIssuer without re-taking the mutex.
func (r *Registry) isIssuerLocked(state contract.StateDB, addr common.Address) bool {
	val := state.GetState(registryAddr, makeStorageKey(issuerPrefix, addr.Bytes()))
	return val[0] != 0
}

// Record layout: meta slot carries marker, status, createdAt, dueDate; one
// slot each for issuer, debtor and face value.
func (r *Registry) storeRecord(state contract.StateDB, rec *Receivable) {
	var meta common.Hash
	meta[0] = 1
	meta[1] = rec.Status
	binary.BigEndian.PutUint64(meta[8:16], rec.CreatedAt)
	binary.BigEndian.PutUint64(meta[16:24], rec.DueDate)
	state.SetState(registryAddr, makeStorageKey(metaPrefix, rec.ID[:]), meta)

	var issuer common.Hash
	copy(issuer[12:], rec.Issuer.Bytes())
	state.SetState(registryAddr, makeStorageKey(partiesPrefix, append(rec.ID[:], 'i')), issuer)

	var debtor common.Hash
	copy(debtor[12:], rec.Debtor.Bytes())
	state.SetState(registryAddr, makeStorageKey(partiesPrefix, append(rec.ID[:], 'd')), debtor)

	var val common.Hash
	rec.FaceValue.FillBytes(val[:])
	state.SetState(registryAddr, makeStorageKey(valuePrefix, rec.ID[:]), val)
}

func (r *Registry) loadRecord(state contract.StateDB, id [32]byte) (*Receivable, error) {
	meta := state.GetState(registryAddr, makeStorageKey(metaPrefix, id[:]))
	if meta[0] == 0 {
		return nil, ErrNotFound
	}

	rec := &Receivable{
		ID:        id,
		Token:     TokenFor(id),
		Status:    meta[1],
		CreatedAt: binary.BigEndian.Uint64(meta[8:16]),
		DueDate:   binary.BigEndian.Uint64(meta[16:24]),
	}

	issuer := state.GetState(registryAddr, makeStorageKey(partiesPrefix, append(id[:], 'i')))
	rec.Issuer = common.BytesToAddress(issuer[12:])
	debtor := state.GetState(registryAddr, makeStorageKey(partiesPrefix, append(id[:], 'd')))
	rec.Debtor = common.BytesToAddress(debtor[12:])

	val := state.GetState(registryAddr, makeStorageKey(valuePrefix, id[:]))
	rec.FaceValue = new(big.Int).SetBytes(val[:])
	return rec, nil
}
