// Copyright (c) rcell.dev AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

//go:build !rc_nonatomic

package rc

import "sync/atomic"

// Atomic reports whether reference counts are maintained with atomic
// operations, making handles safe to share between goroutines.
//
// It is only false when built with the rc_nonatomic build tag.
const Atomic = true

// count is an atomic reference count.
type count struct {
	n atomic.Int64
}

func (c *count) add(delta int64) int64 { return c.n.Add(delta) }

func (c *count) load() int64 { return c.n.Load() }

func (c *count) incNonZero() bool {
	for {
		n := c.n.Load()
		if n <= 0 {
			return false
		}
		if c.n.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// slot is the atomically swappable box pointer of a handle.
type slot[T any] struct {
	p atomic.Pointer[box[T]]
}

func (s *slot[T]) load() *box[T] { return s.p.Load() }

func (s *slot[T]) store(b *box[T]) { s.p.Store(b) }

func (s *slot[T]) take() *box[T] { return s.p.Swap(nil) }
