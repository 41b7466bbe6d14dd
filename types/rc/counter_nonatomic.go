// Copyright (c) rcell.dev AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

//go:build rc_nonatomic

package rc

// Atomic reports whether reference counts are maintained with atomic
// operations, making handles safe to share between goroutines.
//
// It is only false when built with the rc_nonatomic build tag.
const Atomic = false

// count is a plain reference count. Handles using it must stay on one
// goroutine.
type count struct {
	n int64
}

func (c *count) add(delta int64) int64 {
	c.n += delta
	return c.n
}

func (c *count) load() int64 { return c.n }

func (c *count) incNonZero() bool {
	if c.n <= 0 {
		return false
	}
	c.n++
	return true
}

// slot is the box pointer of a handle.
type slot[T any] struct {
	p *box[T]
}

func (s *slot[T]) load() *box[T] { return s.p }

func (s *slot[T]) store(b *box[T]) { s.p = b }

func (s *slot[T]) take() *box[T] {
	b := s.p
	s.p = nil
	return b
}
