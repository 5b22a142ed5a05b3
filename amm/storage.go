// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"encoding/binary"
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"

	"github.com/luxfi/tradefi/contract"
)

// Storage key prefixes for market state. All slots live at PoolAddress.
var (
	poolMetaPrefix     = []byte("amm/meta")
	poolReserveAPrefix = []byte("amm/resa")
	poolReserveBPrefix = []byte("amm/resb")
	poolSharesPrefix   = []byte("amm/tshr")
	poolLastKPrefix    = []byte("amm/lstk")
	poolCooldownPrefix = []byte("amm/pcde")
	userSharePrefix    = []byte("amm/ushr")
	userCooldownPrefix = []byte("amm/ucde")
	pausedKeyPrefix    = []byte("amm/paus")
	poolCountPrefix    = []byte("amm/pcnt")
	poolCapPrefix      = []byte("amm/pcap")
)

// makeStorageKey creates a storage key from prefix and identifier.
func makeStorageKey(prefix []byte, id []byte) common.Hash {
	h := blake3.New()
	h.Write(prefix)
	h.Write(id)
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

func shareKey(poolID [32]byte, user common.Address) common.Hash {
	return makeStorageKey(userSharePrefix, append(poolID[:], user.Bytes()...))
}

func cooldownKey(user common.Address, poolID [32]byte) common.Hash {
	return makeStorageKey(userCooldownPrefix, append(user.Bytes(), poolID[:]...))
}

// loadPool reads pool state from storage, going through the in-memory cache
// first. Returns nil if no pool is registered under the ordered pair.
func (e *Engine) loadPool(state contract.StateDB, tokenIn, tokenOut common.Address) *Pool {
	id := PoolID(tokenIn, tokenOut)
	if pool, ok := e.pools[id]; ok {
		return pool
	}

	meta := state.GetState(PoolAddress, makeStorageKey(poolMetaPrefix, id[:]))
	if meta[0] == 0 {
		return nil
	}

	pool := NewPool(tokenIn, tokenOut, binary.BigEndian.Uint16(meta[1:3]))
	pool.IsActive = meta[3] != 0

	resA := state.GetState(PoolAddress, makeStorageKey(poolReserveAPrefix, id[:]))
	pool.ReserveA = new(big.Int).SetBytes(resA[:])
	resB := state.GetState(PoolAddress, makeStorageKey(poolReserveBPrefix, id[:]))
	pool.ReserveB = new(big.Int).SetBytes(resB[:])
	shares := state.GetState(PoolAddress, makeStorageKey(poolSharesPrefix, id[:]))
	pool.TotalShares = new(big.Int).SetBytes(shares[:])
	lastK := state.GetState(PoolAddress, makeStorageKey(poolLastKPrefix, id[:]))
	pool.LastK = new(big.Int).SetBytes(lastK[:])
	cde := state.GetState(PoolAddress, makeStorageKey(poolCooldownPrefix, id[:]))
	pool.CooldownEnd = binary.BigEndian.Uint64(cde[24:32])

	e.pools[id] = pool
	return pool
}

// storePool saves pool state write-through to storage and the cache.
func (e *Engine) storePool(state contract.StateDB, pool *Pool) {
	id := PoolID(pool.TokenIn, pool.TokenOut)
	e.pools[id] = pool

	var meta common.Hash
	meta[0] = 1 // registered marker
	binary.BigEndian.PutUint16(meta[1:3], pool.FeeRateBps)
	if pool.IsActive {
		meta[3] = 1
	}
	state.SetState(PoolAddress, makeStorageKey(poolMetaPrefix, id[:]), meta)

	var resA, resB, shares, lastK, cde common.Hash
	pool.ReserveA.FillBytes(resA[:])
	state.SetState(PoolAddress, makeStorageKey(poolReserveAPrefix, id[:]), resA)
	pool.ReserveB.FillBytes(resB[:])
	state.SetState(PoolAddress, makeStorageKey(poolReserveBPrefix, id[:]), resB)
	pool.TotalShares.FillBytes(shares[:])
	state.SetState(PoolAddress, makeStorageKey(poolSharesPrefix, id[:]), shares)
	pool.LastK.FillBytes(lastK[:])
	state.SetState(PoolAddress, makeStorageKey(poolLastKPrefix, id[:]), lastK)
	binary.BigEndian.PutUint64(cde[24:32], pool.CooldownEnd)
	state.SetState(PoolAddress, makeStorageKey(poolCooldownPrefix, id[:]), cde)
}

// invalidate drops the pool cache. Called after a StateDB revert so later
// reads reload the restored slots.
func (e *Engine) invalidate() {
	e.pools = make(map[[32]byte]*Pool)
}

// shareBalance reads a user's share balance for a pool.
func (e *Engine) shareBalance(state contract.StateDB, poolID [32]byte, user common.Address) *big.Int {
	val := state.GetState(PoolAddress, shareKey(poolID, user))
	return new(big.Int).SetBytes(val[:])
}

func (e *Engine) setShareBalance(state contract.StateDB, poolID [32]byte, user common.Address, shares *big.Int) {
	var val common.Hash
	shares.FillBytes(val[:])
	state.SetState(PoolAddress, shareKey(poolID, user), val)
}

// cooldownAt reads the timestamp after which the user may withdraw from the
// pool again. Zero means no cooldown has been recorded.
func (e *Engine) cooldownAt(state contract.StateDB, user common.Address, poolID [32]byte) uint64 {
	val := state.GetState(PoolAddress, cooldownKey(user, poolID))
	return binary.BigEndian.Uint64(val[24:32])
}

func (e *Engine) setCooldown(state contract.StateDB, user common.Address, poolID [32]byte, until uint64) {
	var val common.Hash
	binary.BigEndian.PutUint64(val[24:32], until)
	state.SetState(PoolAddress, cooldownKey(user, poolID), val)
}

// paused reads the global pause flag. Explicit-set marker in byte 0 so the
// unset default reads as unpaused.
func (e *Engine) paused(state contract.StateDB) bool {
	val := state.GetState(PoolAddress, makeStorageKey(pausedKeyPrefix, nil))
	return val[0] != 0 && val[31] != 0
}

func (e *Engine) setPausedFlag(state contract.StateDB, flag bool) {
	var val common.Hash
	val[0] = 1
	if flag {
		val[31] = 1
	}
	state.SetState(PoolAddress, makeStorageKey(pausedKeyPrefix, nil), val)
}

// maxPoolsCap reads the configured pool-count cap. Explicit-set marker in
// byte 0; unset falls back to the protocol constant.
func (e *Engine) maxPoolsCap(state contract.StateDB) uint64 {
	val := state.GetState(PoolAddress, makeStorageKey(poolCapPrefix, nil))
	if val[0] == 0 {
		return MaxPools
	}
	return binary.BigEndian.Uint64(val[24:32])
}

func (e *Engine) setMaxPoolsCap(state contract.StateDB, limit uint64) {
	var val common.Hash
	val[0] = 1
	binary.BigEndian.PutUint64(val[24:32], limit)
	state.SetState(PoolAddress, makeStorageKey(poolCapPrefix, nil), val)
}

// poolCount reads the global pool counter.
func (e *Engine) poolCount(state contract.StateDB) uint64 {
	val := state.GetState(PoolAddress, makeStorageKey(poolCountPrefix, nil))
	return binary.BigEndian.Uint64(val[24:32])
}

func (e *Engine) setPoolCount(state contract.StateDB, count uint64) {
	var val common.Hash
	binary.BigEndian.PutUint64(val[24:32], count)
	state.SetState(PoolAddress, makeStorageKey(poolCountPrefix, nil), val)
}
