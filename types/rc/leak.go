// Copyright (c) rcell.dev AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package rc

import (
	"log"
	"reflect"
	"runtime"
	"sync/atomic"

	"rcell.dev/envknob"
	"rcell.dev/types/logger"
)

// debugLeaks reports whether Strong handles are tracked so that ones
// garbage collected without a Release call get logged.
var debugLeaks = envknob.RegisterBool("RC_DEBUG_LEAKS")

var leakLogf atomic.Pointer[logger.Logf]

// SetLeakLogf sets where leaked Strong handles are reported when the
// RC_DEBUG_LEAKS knob is set. A nil logf restores the default, log.Printf.
func SetLeakLogf(logf logger.Logf) {
	if logf == nil {
		leakLogf.Store(nil)
		return
	}
	leakLogf.Store(&logf)
}

func currentLeakLogf() logger.Logf {
	if p := leakLogf.Load(); p != nil {
		return *p
	}
	return log.Printf
}

// leakMark records whether its Strong handle was released. It is kept
// apart from the handle so a cleanup can read it after the handle is gone.
type leakMark struct {
	released atomic.Bool
}

func (m *leakMark) markReleased() {
	if m != nil {
		m.released.Store(true)
	}
}

func trackLeak[T any](s *Strong[T]) {
	if !debugLeaks() {
		return
	}
	m := new(leakMark)
	s.leak = m
	typ := reflect.TypeFor[T]().String()
	runtime.AddCleanup(s, func(m *leakMark) {
		if !m.released.Load() {
			currentLeakLogf()("rc: Strong[%s] handle garbage collected without Release; its value can never be dropped", typ)
		}
	}, m)
}
