// Copyright (c) rcell.dev AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

//go:build rcell_mutex_debug

package syncs

import "sync"

// Mutex is a sync.Mutex that panics on unlock of an unlocked mutex with a
// message naming this package, so misuse is easy to find in traces.
type Mutex struct {
	sync.Mutex
	held bool
}

func (m *Mutex) Lock() {
	m.Mutex.Lock()
	m.held = true
}

func (m *Mutex) TryLock() bool {
	if !m.Mutex.TryLock() {
		return false
	}
	m.held = true
	return true
}

func (m *Mutex) Unlock() {
	if !m.held {
		panic("syncs: unlock of unlocked Mutex")
	}
	m.held = false
	m.Mutex.Unlock()
}

