// Copyright (c) rcell.dev AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package rc

import (
	"fmt"
	"runtime"
	"strings"
	"testing"
	"time"

	"rcell.dev/envknob"
)

type leakedPayload struct{ _ [2]*int }

type releasedPayload struct{ _ [2]*int }

//go:noinline
func leakOne() {
	New(leakedPayload{})
}

//go:noinline
func releaseOne() {
	New(releasedPayload{}).Release()
}

func TestLeakTracking(t *testing.T) {
	envknob.Setenv("RC_DEBUG_LEAKS", "true")
	defer envknob.Setenv("RC_DEBUG_LEAKS", "")

	msgs := make(chan string, 16)
	SetLeakLogf(func(format string, args ...any) {
		select {
		case msgs <- fmt.Sprintf(format, args...):
		default:
		}
	})
	defer SetLeakLogf(nil)

	releaseOne()
	leakOne()

	deadline := time.After(10 * time.Second)
	var seen []string
	for {
		runtime.GC()
		select {
		case m := <-msgs:
			seen = append(seen, m)
		case <-time.After(10 * time.Millisecond):
			continue
		case <-deadline:
			t.Fatalf("leaked handle never reported; got %q", seen)
		}
		if strings.Contains(seen[len(seen)-1], "Strong[rc.leakedPayload]") {
			break
		}
	}
	for _, m := range seen {
		if strings.Contains(m, "releasedPayload") {
			t.Errorf("released handle reported as leaked: %q", m)
		}
	}
}
