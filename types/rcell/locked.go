// Copyright (c) rcell.dev AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package rcell

import (
	"runtime"

	"rcell.dev/syncs"
	"rcell.dev/types/rc"
)

// locks is shared by every Locked cell in the process, regardless of T.
var locks = syncs.NewShardedMutex(max(8, 4*runtime.GOMAXPROCS(0)))

// Locked is a Cell that is safe for concurrent use. Instead of carrying its
// own mutex it uses one of a fixed pool of shared mutexes, picked when the
// Locked is constructed. The zero value is an Empty cell using the first
// shard.
//
// Handles displaced by a mutation, including those inside Do, are released
// after the lock is dropped, so a release func (see [rc.NewWithRelease]) may
// use other Locked cells. Code run by Do itself must not touch other Locked
// cells.
//
// A Locked must not be copied after first use.
type Locked[T any] struct {
	shard uint32
	c     Cell[T]
}

// NewLocked returns a Strong Locked cell holding a new reference-counted v.
func NewLocked[T any](v T) *Locked[T] {
	return LockedFromStrong(rc.New(v))
}

// LockedFromStrong is like FromStrong, but returns a Locked cell.
func LockedFromStrong[T any](s *rc.Strong[T]) *Locked[T] {
	l := &Locked[T]{shard: locks.Next()}
	l.c.Set(s)
	return l
}

// LockedFromWeak is like FromWeak, but returns a Locked cell.
func LockedFromWeak[T any](w *rc.Weak[T]) *Locked[T] {
	l := &Locked[T]{shard: locks.Next()}
	l.c.SetWeak(w)
	return l
}

func (l *Locked[T]) lock()   { locks.Lock(l.shard) }
func (l *Locked[T]) unlock() { locks.Unlock(l.shard) }

// mutate runs f under the lock and releases what it displaced afterwards.
func (l *Locked[T]) mutate(f func(c *Cell[T]) Cell[T]) {
	l.lock()
	old := f(&l.c)
	l.unlock()
	old.release()
}

// State returns the variant l holds.
func (l *Locked[T]) State() State {
	l.lock()
	defer l.unlock()
	return l.c.state
}

// IsStrong reports whether l holds a Strong reference.
func (l *Locked[T]) IsStrong() bool { return l.State() == Strong }

// IsWeak reports whether l holds a Weak reference.
func (l *Locked[T]) IsWeak() bool { return l.State() == Weak }

// IsEmpty reports whether l holds no reference.
func (l *Locked[T]) IsEmpty() bool { return l.State() == Empty }

// AsStrong is like Cell.AsStrong.
func (l *Locked[T]) AsStrong() (*rc.Strong[T], bool) {
	l.lock()
	defer l.unlock()
	return l.c.AsStrong()
}

// AsWeak is like Cell.AsWeak.
func (l *Locked[T]) AsWeak() (*rc.Weak[T], bool) {
	l.lock()
	defer l.unlock()
	return l.c.AsWeak()
}

// Get is like Cell.Get.
func (l *Locked[T]) Get() (v T, ok bool) {
	s, ok := l.AsStrong()
	if !ok {
		return v, false
	}
	defer s.Release()
	return s.Get(), true
}

// ToStrong is like Cell.ToStrong.
func (l *Locked[T]) ToStrong() bool {
	var ok bool
	l.mutate(func(c *Cell[T]) Cell[T] {
		old := c.toStrong()
		ok = c.state == Strong
		return old
	})
	return ok
}

// ToWeak is like Cell.ToWeak.
func (l *Locked[T]) ToWeak() {
	l.mutate((*Cell[T]).toWeak)
	// The displaced Strong handle has now been released.
	l.mutate((*Cell[T]).dropDeadWeak)
}

// ToEmpty is like Cell.ToEmpty.
func (l *Locked[T]) ToEmpty() {
	l.mutate(func(c *Cell[T]) Cell[T] { return c.swap(Cell[T]{}) })
}

// Set is like Cell.Set.
func (l *Locked[T]) Set(s *rc.Strong[T]) {
	n := strongCell(s)
	l.mutate(func(c *Cell[T]) Cell[T] { return c.swap(n) })
}

// SetWeak is like Cell.SetWeak.
func (l *Locked[T]) SetWeak(w *rc.Weak[T]) {
	n := weakCell(w)
	l.mutate(func(c *Cell[T]) Cell[T] { return c.swap(n) })
}

// Retain is like Cell.Retain.
func (l *Locked[T]) Retain() (*rc.Strong[T], bool) {
	var s *rc.Strong[T]
	l.mutate(func(c *Cell[T]) Cell[T] {
		old := c.toStrong()
		if c.state == Strong {
			s = c.strong.Clone()
		}
		return old
	})
	return s, s != nil
}

// Clone returns a new Locked cell in the same state as l with its own
// handle.
func (l *Locked[T]) Clone() *Locked[T] {
	l.lock()
	n := l.c.clone()
	l.unlock()
	return &Locked[T]{shard: locks.Next(), c: n}
}

// StrongCount is like Cell.StrongCount.
func (l *Locked[T]) StrongCount() int {
	l.lock()
	defer l.unlock()
	return l.c.StrongCount()
}

// Do calls f with l's Cell while holding l's lock. f must not retain c or
// use any other Locked cell. Handles f displaces from c are released once
// the lock has been dropped.
func (l *Locked[T]) Do(f func(c *Cell[T])) {
	displaced := l.do(f)
	if len(displaced) == 0 {
		return
	}
	for i := range displaced {
		displaced[i].release()
	}
	// A Strong handle released above may have been the last one.
	l.mutate((*Cell[T]).dropDeadWeak)
}

func (l *Locked[T]) do(f func(c *Cell[T])) (displaced []Cell[T]) {
	l.lock()
	defer l.unlock()
	l.c.pending = &displaced
	defer func() { l.c.pending = nil }()
	f(&l.c)
	return displaced
}

// String implements [fmt.Stringer].
func (l *Locked[T]) String() string {
	c := l.snapshot()
	defer c.release()
	return c.String()
}

// snapshot returns a clone of l's cell taken under the lock.
func (l *Locked[T]) snapshot() Cell[T] {
	l.lock()
	defer l.unlock()
	return l.c.clone()
}
