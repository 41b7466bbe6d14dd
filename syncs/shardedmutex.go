// Copyright (c) rcell.dev AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package syncs contains additional sync types.
package syncs

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// ShardedMutex is a fixed pool of mutexes shared by many small values that
// each want their own lock without paying for one. A value picks a shard
// once, with Next, and uses it for its whole lifetime.
//
// Values sharing a shard contend with each other and must not hold their
// shard while locking another one.
//
// The zero value is not safe for use; use NewShardedMutex.
type ShardedMutex struct {
	shards []mutexShard
	next   atomic.Uint32
}

type mutexShard struct {
	mu Mutex
	_  cpu.CacheLinePad // avoid false sharing of neighboring shards' mutexes
}

// NewShardedMutex returns a new ShardedMutex with the given number of
// shards. It panics if shards is not positive.
func NewShardedMutex(shards int) *ShardedMutex {
	if shards <= 0 {
		panic("syncs: NewShardedMutex with non-positive shard count")
	}
	return &ShardedMutex{shards: make([]mutexShard, shards)}
}

// Len returns the number of shards.
func (m *ShardedMutex) Len() int { return len(m.shards) }

// Next returns a shard index, handing them out round-robin.
func (m *ShardedMutex) Next() uint32 {
	return (m.next.Add(1) - 1) % uint32(len(m.shards))
}

// Shard returns the mutex for shard i, wrapping i into range.
func (m *ShardedMutex) Shard(i uint32) *Mutex {
	return &m.shards[i%uint32(len(m.shards))].mu
}

// Lock locks shard i.
func (m *ShardedMutex) Lock(i uint32) { m.Shard(i).Lock() }

// Unlock unlocks shard i.
func (m *ShardedMutex) Unlock(i uint32) { m.Shard(i).Unlock() }
