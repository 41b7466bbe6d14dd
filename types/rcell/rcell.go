// Copyright (c) rcell.dev AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package rcell provides Cell, which holds a strong reference to an
// [rc] value, a weak reference to one, or nothing. Whether the referenced
// value is kept alive is decided at runtime by moving the cell between those
// states.
//
// A Cell is not safe for concurrent mutation; use Locked for that. Whether
// the handles inside a cell may cross goroutines at all is decided by the rc
// package's build configuration (see [rc.Atomic]), not by this package.
//
// Mutating transitions never leave a cell holding a weak reference to a
// value already known to be dropped. Such a cell becomes Empty instead:
// ToStrong on a dead weak reference and ToWeak on a cell that was the last
// strong owner both leave the cell Empty.
package rcell

import (
	"fmt"

	"rcell.dev/types/rc"
)

// State is the variant a Cell currently holds.
type State uint8

const (
	Empty  State = iota // no reference
	Strong              // an owning *rc.Strong
	Weak                // a non-owning *rc.Weak
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Strong:
		return "strong"
	case Weak:
		return "weak"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Cell holds a Strong handle, a Weak handle, or nothing.
//
// The zero value is an Empty cell. A Cell owns the handle it holds; it must
// not be copied after first use, and it should be emptied with ToEmpty when
// no longer needed so a held Strong reference is released.
type Cell[T any] struct {
	state  State
	strong *rc.Strong[T] // non-nil iff state == Strong
	weak   *rc.Weak[T]   // non-nil iff state == Weak

	// pending, if non-nil, collects displaced content instead of it being
	// released immediately. Set by Locked.Do for the duration of its func.
	pending *[]Cell[T]
}

// New returns a Strong cell holding a new reference-counted v.
func New[T any](v T) *Cell[T] {
	return FromStrong(rc.New(v))
}

// FromStrong returns a Strong cell that takes ownership of s. The caller
// must not release s afterwards. A nil or released s yields an Empty cell.
func FromStrong[T any](s *rc.Strong[T]) *Cell[T] {
	c := new(Cell[T])
	c.Set(s)
	return c
}

// FromWeak returns a Weak cell that takes ownership of w. The caller must
// not release w afterwards. A nil or released w yields an Empty cell.
func FromWeak[T any](w *rc.Weak[T]) *Cell[T] {
	c := new(Cell[T])
	c.SetWeak(w)
	return c
}

// State returns the variant c holds.
func (c *Cell[T]) State() State { return c.state }

// IsStrong reports whether c holds a Strong reference.
func (c *Cell[T]) IsStrong() bool { return c.state == Strong }

// IsWeak reports whether c holds a Weak reference. The referenced value may
// already have been dropped.
func (c *Cell[T]) IsWeak() bool { return c.state == Weak }

// IsEmpty reports whether c holds no reference.
func (c *Cell[T]) IsEmpty() bool { return c.state == Empty }

// AsStrong returns a new Strong handle to c's value, upgrading c's Weak
// reference if needed. It returns nil, false if c is Empty or its value has
// been dropped. c itself is unchanged.
//
// The caller owns the returned handle and must release it.
func (c *Cell[T]) AsStrong() (*rc.Strong[T], bool) {
	switch c.state {
	case Strong:
		return c.strong.Clone(), true
	case Weak:
		return c.weak.Upgrade()
	case Empty:
		return nil, false
	}
	panic(badState(c.state))
}

// AsWeak returns a new Weak handle to c's value. It returns nil, false if c
// is Empty. c itself is unchanged.
//
// The caller owns the returned handle and should release it.
func (c *Cell[T]) AsWeak() (*rc.Weak[T], bool) {
	switch c.state {
	case Strong:
		return c.strong.Downgrade(), true
	case Weak:
		return c.weak.Clone(), true
	case Empty:
		return nil, false
	}
	panic(badState(c.state))
}

// Get returns c's value. It reports false under the same conditions as
// AsStrong.
func (c *Cell[T]) Get() (v T, ok bool) {
	if c.state == Strong {
		return c.strong.Get(), true
	}
	s, ok := c.AsStrong()
	if !ok {
		return v, false
	}
	v = s.Get()
	c.discard(strongCell(s))
	return v, true
}

// ToStrong makes c hold a Strong reference, upgrading its Weak reference if
// needed, and reports whether c is now Strong.
//
// If c is Weak and its value has been dropped, c becomes Empty and ToStrong
// reports false. An Empty cell stays Empty.
func (c *Cell[T]) ToStrong() bool {
	c.discard(c.toStrong())
	return c.state == Strong
}

// ToWeak makes c hold a Weak reference, giving up c's own strong ownership.
// Other Strong handles keep the value alive.
//
// If c was the last strong owner, the value is dropped and c becomes Empty.
// A Weak cell whose value has been dropped becomes Empty. An Empty cell
// stays Empty.
//
// Other goroutines may upgrade or release handles to the same value while
// ToWeak runs. c ends Empty only if the value was dropped.
func (c *Cell[T]) ToWeak() {
	c.discard(c.toWeak())
	c.discard(c.dropDeadWeak())
}

// ToEmpty empties c, releasing whatever handle it held.
func (c *Cell[T]) ToEmpty() {
	c.discard(c.swap(Cell[T]{}))
}

// Set replaces c's content with a Strong reference, taking ownership of s
// and releasing the previously held handle. A nil or released s empties c.
func (c *Cell[T]) Set(s *rc.Strong[T]) {
	c.discard(c.swap(strongCell(s)))
}

// SetWeak replaces c's content with a Weak reference, taking ownership of w
// and releasing the previously held handle. A nil or released w empties c.
func (c *Cell[T]) SetWeak(w *rc.Weak[T]) {
	c.discard(c.swap(weakCell(w)))
}

// Retain is ToStrong followed by AsStrong: on success c keeps the value
// alive and the caller gets its own Strong handle to it.
func (c *Cell[T]) Retain() (*rc.Strong[T], bool) {
	if !c.ToStrong() {
		return nil, false
	}
	return c.strong.Clone(), true
}

// Clone returns a new cell in the same state as c with its own handle.
func (c *Cell[T]) Clone() *Cell[T] {
	n := c.clone()
	return &n
}

// StrongCount returns the number of Strong handles keeping c's value alive,
// including c's own. It is 0 for an Empty cell or a dead Weak one.
func (c *Cell[T]) StrongCount() int {
	switch c.state {
	case Strong:
		return c.strong.StrongCount()
	case Weak:
		return c.weak.StrongCount()
	}
	return 0
}

// String implements [fmt.Stringer].
func (c *Cell[T]) String() string {
	switch c.state {
	case Strong:
		return fmt.Sprintf("Strong(%v)", c.strong.Get())
	case Weak:
		if s, ok := c.weak.Upgrade(); ok {
			str := fmt.Sprintf("Weak(%v)", s.Get())
			c.discard(strongCell(s))
			return str
		}
		return "Weak(<released>)"
	}
	return "Empty"
}

func strongCell[T any](s *rc.Strong[T]) Cell[T] {
	if s.Released() {
		return Cell[T]{}
	}
	return Cell[T]{state: Strong, strong: s}
}

func weakCell[T any](w *rc.Weak[T]) Cell[T] {
	if w.Released() {
		return Cell[T]{}
	}
	return Cell[T]{state: Weak, weak: w}
}

// swap replaces c's content with n and returns the old content, which the
// caller must release.
func (c *Cell[T]) swap(n Cell[T]) (old Cell[T]) {
	old = *c
	old.pending = nil
	n.pending = c.pending
	*c = n
	return old
}

// discard releases old, or queues it on c.pending if set.
func (c *Cell[T]) discard(old Cell[T]) {
	if old.strong == nil && old.weak == nil {
		return
	}
	if c.pending != nil {
		*c.pending = append(*c.pending, old)
		return
	}
	old.release()
}

// toStrong performs ToStrong and returns the displaced content, which the
// caller must release.
func (c *Cell[T]) toStrong() (old Cell[T]) {
	switch c.state {
	case Strong, Empty:
		return Cell[T]{}
	case Weak:
		s, _ := c.weak.Upgrade()
		return c.swap(strongCell(s))
	}
	panic(badState(c.state))
}

// toWeak downgrades a Strong c and returns the displaced Strong handle,
// which the caller must release before calling dropDeadWeak.
//
// Whether c's reference was the last one can't be known until it has been
// released: a goroutine holding an outside Weak handle may upgrade it at any
// point before then.
func (c *Cell[T]) toWeak() (old Cell[T]) {
	switch c.state {
	case Strong:
		return c.swap(weakCell(c.strong.Downgrade()))
	case Weak, Empty:
		return Cell[T]{}
	}
	panic(badState(c.state))
}

// dropDeadWeak empties c if it holds a Weak reference to a dropped value and
// returns the displaced Weak handle, which the caller must release. A strong
// count of zero is final, so a cell emptied here was truly dead.
func (c *Cell[T]) dropDeadWeak() (old Cell[T]) {
	if c.state == Weak && c.weak.StrongCount() == 0 {
		return c.swap(Cell[T]{})
	}
	return Cell[T]{}
}

func (c *Cell[T]) clone() Cell[T] {
	switch c.state {
	case Strong:
		return strongCell(c.strong.Clone())
	case Weak:
		return weakCell(c.weak.Clone())
	case Empty:
		return Cell[T]{}
	}
	panic(badState(c.state))
}

// release releases the handle held by c without changing c's state.
// c must not be used afterwards.
func (c *Cell[T]) release() {
	c.strong.Release()
	c.weak.Release()
}

func badState(s State) string {
	return fmt.Sprintf("rcell: invalid %v", s)
}
