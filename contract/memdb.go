// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package contract

import (
	"maps"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// MemStateDB is an in-memory StateDB used by tests and by hosts that run the
// precompiles outside a full EVM. Snapshots are whole-state copies; the state
// held per call is small enough that this stays cheap.
type MemStateDB struct {
	storage  map[common.Address]map[common.Hash]common.Hash
	balances map[common.Address]*uint256.Int
	accounts map[common.Address]struct{}

	snapshots []memSnapshot
}

type memSnapshot struct {
	storage  map[common.Address]map[common.Hash]common.Hash
	balances map[common.Address]*uint256.Int
	accounts map[common.Address]struct{}
}

// NewMemStateDB returns an empty in-memory state.
func NewMemStateDB() *MemStateDB {
	return &MemStateDB{
		storage:  make(map[common.Address]map[common.Hash]common.Hash),
		balances: make(map[common.Address]*uint256.Int),
		accounts: make(map[common.Address]struct{}),
	}
}

func (m *MemStateDB) GetState(addr common.Address, key common.Hash) common.Hash {
	return m.storage[addr][key]
}

func (m *MemStateDB) SetState(addr common.Address, key common.Hash, value common.Hash) {
	slots, ok := m.storage[addr]
	if !ok {
		slots = make(map[common.Hash]common.Hash)
		m.storage[addr] = slots
	}
	slots[key] = value
}

func (m *MemStateDB) GetBalance(addr common.Address) *uint256.Int {
	if bal, ok := m.balances[addr]; ok {
		return new(uint256.Int).Set(bal)
	}
	return uint256.NewInt(0)
}

func (m *MemStateDB) AddBalance(addr common.Address, amount *uint256.Int) {
	m.balances[addr] = new(uint256.Int).Add(m.GetBalance(addr), amount)
}

func (m *MemStateDB) SubBalance(addr common.Address, amount *uint256.Int) {
	m.balances[addr] = new(uint256.Int).Sub(m.GetBalance(addr), amount)
}

func (m *MemStateDB) Exist(addr common.Address) bool {
	_, ok := m.accounts[addr]
	return ok
}

func (m *MemStateDB) CreateAccount(addr common.Address) {
	m.accounts[addr] = struct{}{}
}

func (m *MemStateDB) Snapshot() int {
	snap := memSnapshot{
		storage:  make(map[common.Address]map[common.Hash]common.Hash, len(m.storage)),
		balances: make(map[common.Address]*uint256.Int, len(m.balances)),
		accounts: maps.Clone(m.accounts),
	}
	for addr, slots := range m.storage {
		snap.storage[addr] = maps.Clone(slots)
	}
	for addr, bal := range m.balances {
		snap.balances[addr] = new(uint256.Int).Set(bal)
	}
	m.snapshots = append(m.snapshots, snap)
	return len(m.snapshots) - 1
}

func (m *MemStateDB) RevertToSnapshot(id int) {
	if id < 0 || id >= len(m.snapshots) {
		return
	}
	snap := m.snapshots[id]
	m.storage = snap.storage
	m.balances = snap.balances
	m.accounts = snap.accounts
	m.snapshots = m.snapshots[:id]
}

// BlockCtx is a fixed BlockContext for tests and embedded hosts.
type BlockCtx struct {
	BlockNumber uint64
	BlockTime   uint64
}

func (b BlockCtx) Number() uint64 { return b.BlockNumber }

func (b BlockCtx) Timestamp() uint64 { return b.BlockTime }

// State bundles a StateDB with a block context to satisfy AccessibleState.
type State struct {
	DB    StateDB
	Block BlockCtx
}

func (s State) GetStateDB() StateDB { return s.DB }

func (s State) GetBlockContext() BlockContext { return s.Block }
