// Copyright (c) rcell.dev AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

//go:build !rcell_mutex_debug

package syncs

import "sync"

// Mutex is an alias for sync.Mutex.
//
// It's only not a sync.Mutex when built with the rcell_mutex_debug build tag.
type Mutex = sync.Mutex
