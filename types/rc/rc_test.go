// Copyright (c) rcell.dev AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package rc

import (
	"sync"
	"sync/atomic"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestStrongClone(t *testing.T) {
	c := qt.New(t)

	s := New("foobar")
	c.Check(s.Get(), qt.Equals, "foobar")
	c.Check(s.StrongCount(), qt.Equals, 1)

	s2 := s.Clone()
	c.Check(s2.Same(s), qt.IsTrue)
	c.Check(s.StrongCount(), qt.Equals, 2)

	s2.Release()
	c.Check(s2.Released(), qt.IsTrue)
	c.Check(s2.Same(s), qt.IsFalse)
	c.Check(s.StrongCount(), qt.Equals, 1)

	s2.Release() // no-op
	c.Check(s.StrongCount(), qt.Equals, 1)
	c.Check(s.Get(), qt.Equals, "foobar")

	other := New("foobar")
	c.Check(other.Same(s), qt.IsFalse)
}

func TestReleaseFuncRunsOnce(t *testing.T) {
	c := qt.New(t)

	type payload struct{ name string }
	var calls int
	var got *payload
	p := &payload{"x"}
	s := NewWithRelease(p, func(v *payload) {
		calls++
		got = v
	})
	s2 := s.Clone()
	w := s.Downgrade()
	c.Check(w.WeakCount(), qt.Equals, 1)
	c.Check(w.Refers(s), qt.IsTrue)

	s.Release()
	c.Check(calls, qt.Equals, 0)
	c.Check(w.StrongCount(), qt.Equals, 1)

	s2.Release()
	c.Check(calls, qt.Equals, 1)
	c.Check(got, qt.Equals, p)
	c.Check(w.StrongCount(), qt.Equals, 0)

	_, ok := w.Upgrade()
	c.Check(ok, qt.IsFalse)
	s2.Release()
	w.Release()
	c.Check(calls, qt.Equals, 1)
}

func TestValueZeroedOnDrop(t *testing.T) {
	c := qt.New(t)

	v := new(int)
	s := New(v)
	b := s.box()
	w := s.Downgrade()
	s.Release()
	c.Check(b.value, qt.IsNil)
	c.Check(w.StrongCount(), qt.Equals, 0)
	c.Check(w.WeakCount(), qt.Equals, 1)
	w.Release()
	c.Check(b.weak.load(), qt.Equals, int64(0))
}

func TestUpgrade(t *testing.T) {
	c := qt.New(t)

	s := New(42)
	w := s.Downgrade()
	c.Check(s.WeakCount(), qt.Equals, 1)

	up, ok := w.Upgrade()
	c.Assert(ok, qt.IsTrue)
	c.Check(up.Get(), qt.Equals, 42)
	c.Check(up.Same(s), qt.IsTrue)
	c.Check(s.StrongCount(), qt.Equals, 2)
	up.Release()

	w2 := w.Clone()
	c.Check(s.WeakCount(), qt.Equals, 2)
	w.Release()
	c.Check(w.Released(), qt.IsTrue)
	_, ok = w.Upgrade()
	c.Check(ok, qt.IsFalse)
	c.Check(s.WeakCount(), qt.Equals, 1)

	s.Release()
	up, ok = w2.Upgrade()
	c.Check(ok, qt.IsFalse)
	c.Check(up, qt.IsNil)
}

func TestNilAndReleasedHandles(t *testing.T) {
	c := qt.New(t)

	var s *Strong[int]
	s.Release()
	c.Check(s.Released(), qt.IsTrue)
	c.Check(s.StrongCount(), qt.Equals, 0)
	c.Check(s.WeakCount(), qt.Equals, 0)
	c.Check(s.Same(nil), qt.IsFalse)

	var w *Weak[int]
	w.Release()
	c.Check(w.Released(), qt.IsTrue)
	_, ok := w.Upgrade()
	c.Check(ok, qt.IsFalse)

	wc := w.Clone()
	c.Check(wc, qt.IsNotNil)
	_, ok = wc.Upgrade()
	c.Check(ok, qt.IsFalse)
}

func TestUseAfterReleasePanics(t *testing.T) {
	c := qt.New(t)

	s := New(1)
	s.Release()
	const msg = "rc: use of released Strong handle"
	c.Check(func() { s.Get() }, qt.PanicMatches, msg)
	c.Check(func() { s.Clone() }, qt.PanicMatches, msg)
	c.Check(func() { s.Downgrade() }, qt.PanicMatches, msg)
}

func TestNegativeCountPanics(t *testing.T) {
	c := qt.New(t)

	c.Check(func() { new(box[int]).decStrong() }, qt.PanicMatches, "rc: negative strong count")
	c.Check(func() { new(box[int]).decWeak() }, qt.PanicMatches, "rc: negative weak count")
}

func TestCountNonZero(t *testing.T) {
	c := qt.New(t)

	var n count
	c.Check(n.incNonZero(), qt.IsFalse)
	c.Check(n.load(), qt.Equals, int64(0))
	n.add(1)
	c.Check(n.incNonZero(), qt.IsTrue)
	c.Check(n.load(), qt.Equals, int64(2))
}

func TestConcurrentUpgradeRelease(t *testing.T) {
	if !Atomic {
		t.Skip("handles are not goroutine-safe with rc_nonatomic")
	}
	c := qt.New(t)

	var released atomic.Int32
	s := NewWithRelease(42, func(int) { released.Add(1) })
	w := s.Downgrade()

	const goroutines = 8
	var wg sync.WaitGroup
	var bad atomic.Int32
	start := make(chan struct{})
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mine := w.Clone()
			defer mine.Release()
			<-start
			for range 1000 {
				up, ok := mine.Upgrade()
				if !ok {
					continue
				}
				if up.Get() != 42 {
					bad.Add(1)
				}
				up.Clone().Release()
				up.Release()
			}
		}()
	}
	close(start)
	s.Release()
	wg.Wait()

	c.Check(bad.Load(), qt.Equals, int32(0))
	c.Check(released.Load(), qt.Equals, int32(1))
	c.Check(w.StrongCount(), qt.Equals, 0)
	c.Check(w.WeakCount(), qt.Equals, 1)
	_, ok := w.Upgrade()
	c.Check(ok, qt.IsFalse)
}

func BenchmarkCloneRelease(b *testing.B) {
	s := New(1)
	b.ReportAllocs()
	for range b.N {
		s.Clone().Release()
	}
}
