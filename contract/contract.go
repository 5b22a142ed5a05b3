// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package contract defines the interfaces a host execution environment must
// provide to the tradefi precompiles. The host serializes calls; a precompile
// is invoked as one atomic operation and must leave no partial state behind
// when it fails.
package contract

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// StateDB is the subset of EVM state access the tradefi precompiles need.
// Snapshot/RevertToSnapshot bound the only mid-call rollback point in the
// suite (the flash loan coordinator).
type StateDB interface {
	GetState(addr common.Address, key common.Hash) common.Hash
	SetState(addr common.Address, key common.Hash, value common.Hash)

	GetBalance(addr common.Address) *uint256.Int
	AddBalance(addr common.Address, amount *uint256.Int)
	SubBalance(addr common.Address, amount *uint256.Int)

	Exist(addr common.Address) bool
	CreateAccount(addr common.Address)

	Snapshot() int
	RevertToSnapshot(id int)
}

// BlockContext exposes the host block the call executes in. Deadlines and
// cooldowns are measured against Timestamp, checked once at call entry.
type BlockContext interface {
	Number() uint64
	Timestamp() uint64
}

// AccessibleState is the per-call view handed to a precompile's Run.
type AccessibleState interface {
	GetStateDB() StateDB
	GetBlockContext() BlockContext
}

// StatefulPrecompiledContract is the execution interface for a tradefi
// precompile module.
type StatefulPrecompiledContract interface {
	Run(
		accessibleState AccessibleState,
		caller common.Address,
		addr common.Address,
		input []byte,
		suppliedGas uint64,
		readOnly bool,
	) (ret []byte, remainingGas uint64, err error)
}
