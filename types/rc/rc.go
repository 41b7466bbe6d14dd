// Copyright (c) rcell.dev AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package rc provides a reference-counted strong/weak handle pair.
//
// A value created with New is owned by one or more Strong handles. Weak
// handles observe it without owning it and can be upgraded back to a Strong
// handle until the last Strong handle is released. Once that happens the
// value is dropped: its release func (see NewWithRelease) runs exactly once
// and the stored value is zeroed so the garbage collector can reclaim what it
// referenced.
//
// Counting is atomic by default, and handles may be cloned, upgraded and
// released from any goroutine. Building with the rc_nonatomic build tag
// switches every handle in the binary to plain integer counting, which is
// cheaper but confines handles to a single goroutine. The choice is made once
// per build; see Atomic.
//
// Each handle is its own object. Copying a *Strong does not add a
// reference; use Clone. Release on a handle is idempotent.
package rc

// refCounter is the capability both counting implementations provide.
type refCounter interface {
	add(delta int64) int64
	load() int64
	// incNonZero increments the count unless it is zero, reporting
	// whether it did.
	incNonZero() bool
}

// boxSlot is the handle slot capability both implementations provide.
type boxSlot[T any] interface {
	load() *box[T]
	store(*box[T])
	// take clears the slot and returns what it held.
	take() *box[T]
}

var (
	_ refCounter    = (*count)(nil)
	_ boxSlot[bool] = (*slot[bool])(nil)
)

// box is the shared allocation behind a set of handles.
type box[T any] struct {
	strong  count
	weak    count
	value   T
	release func(T) // or nil
}

func (b *box[T]) decStrong() {
	n := b.strong.add(-1)
	switch {
	case n > 0:
	case n == 0:
		v := b.value
		var zero T
		b.value = zero
		if b.release != nil {
			b.release(v)
		}
	default:
		panic("rc: negative strong count")
	}
}

func (b *box[T]) decWeak() {
	if b.weak.add(-1) < 0 {
		panic("rc: negative weak count")
	}
}

// Strong is an owning handle. The value it refers to stays alive at least
// until the handle is released.
//
// A nil *Strong behaves like a released one.
type Strong[T any] struct {
	b    slot[T]
	leak *leakMark // non-nil only when RC_DEBUG_LEAKS is set
}

// New returns the sole Strong handle to a new reference-counted v.
func New[T any](v T) *Strong[T] {
	return NewWithRelease(v, nil)
}

// NewWithRelease is like New, but release is called with v once the last
// Strong handle to it is released. release may be nil.
//
// release runs on the goroutine that released the last Strong handle.
func NewWithRelease[T any](v T, release func(T)) *Strong[T] {
	b := &box[T]{value: v, release: release}
	b.strong.add(1)
	return newStrong(b)
}

func newStrong[T any](b *box[T]) *Strong[T] {
	s := new(Strong[T])
	s.b.store(b)
	trackLeak(s)
	return s
}

func (s *Strong[T]) box() *box[T] {
	if s == nil {
		return nil
	}
	return s.b.load()
}

func (s *Strong[T]) mustBox() *box[T] {
	b := s.box()
	if b == nil {
		panic("rc: use of released Strong handle")
	}
	return b
}

// Get returns the referenced value.
//
// It panics if s has been released.
func (s *Strong[T]) Get() T {
	return s.mustBox().value
}

// Clone returns a new Strong handle to the same value, incrementing the
// strong count.
//
// It panics if s has been released.
func (s *Strong[T]) Clone() *Strong[T] {
	b := s.mustBox()
	b.strong.add(1)
	return newStrong(b)
}

// Downgrade returns a new Weak handle to the same value. s stays valid.
//
// It panics if s has been released.
func (s *Strong[T]) Downgrade() *Weak[T] {
	b := s.mustBox()
	b.weak.add(1)
	return newWeak(b)
}

// Release drops the reference held by s. If it was the last Strong handle,
// the value is dropped before Release returns.
//
// Releasing a nil or already released handle does nothing.
func (s *Strong[T]) Release() {
	if s == nil {
		return
	}
	b := s.b.take()
	if b == nil {
		return
	}
	s.leak.markReleased()
	b.decStrong()
}

// Released reports whether s is nil or has been released.
func (s *Strong[T]) Released() bool {
	return s.box() == nil
}

// StrongCount returns the number of Strong handles to the value, or 0 if s
// has been released. With atomic counting the result may be stale by the
// time it is returned.
func (s *Strong[T]) StrongCount() int {
	if b := s.box(); b != nil {
		return int(b.strong.load())
	}
	return 0
}

// WeakCount returns the number of Weak handles to the value, or 0 if s has
// been released.
func (s *Strong[T]) WeakCount() int {
	if b := s.box(); b != nil {
		return int(b.weak.load())
	}
	return 0
}

// Same reports whether s and o are both live and refer to the same value.
func (s *Strong[T]) Same(o *Strong[T]) bool {
	b := s.box()
	return b != nil && b == o.box()
}

// Weak is a non-owning handle. It never extends the lifetime of the value
// it refers to.
//
// A nil *Weak behaves like a released one.
type Weak[T any] struct {
	b slot[T]
}

func newWeak[T any](b *box[T]) *Weak[T] {
	w := new(Weak[T])
	w.b.store(b)
	return w
}

func (w *Weak[T]) box() *box[T] {
	if w == nil {
		return nil
	}
	return w.b.load()
}

// Upgrade returns a new Strong handle to the value if at least one other
// Strong handle still keeps it alive. Otherwise it returns nil, false.
func (w *Weak[T]) Upgrade() (*Strong[T], bool) {
	b := w.box()
	if b == nil || !b.strong.incNonZero() {
		return nil, false
	}
	return newStrong(b), true
}

// Clone returns a new Weak handle to the same value. Cloning a released
// handle returns a handle that never upgrades.
func (w *Weak[T]) Clone() *Weak[T] {
	b := w.box()
	if b == nil {
		return new(Weak[T])
	}
	b.weak.add(1)
	return newWeak(b)
}

// Release drops w. It has no effect on the lifetime of the value.
//
// Releasing a nil or already released handle does nothing.
func (w *Weak[T]) Release() {
	if w == nil {
		return
	}
	if b := w.b.take(); b != nil {
		b.decWeak()
	}
}

// Released reports whether w is nil or has been released.
func (w *Weak[T]) Released() bool {
	return w.box() == nil
}

// StrongCount returns the number of Strong handles keeping the value alive.
// Zero means Upgrade will fail.
func (w *Weak[T]) StrongCount() int {
	if b := w.box(); b != nil {
		return int(b.strong.load())
	}
	return 0
}

// WeakCount returns the number of Weak handles to the value, or 0 if w has
// been released.
func (w *Weak[T]) WeakCount() int {
	if b := w.box(); b != nil {
		return int(b.weak.load())
	}
	return 0
}

// Refers reports whether w is live and refers to the same value as s.
func (w *Weak[T]) Refers(s *Strong[T]) bool {
	b := w.box()
	return b != nil && b == s.box()
}
