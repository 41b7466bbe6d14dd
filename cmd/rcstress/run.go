// Copyright (c) rcell.dev AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"rcell.dev/envknob"
	"rcell.dev/types/logger"
	"rcell.dev/types/rc"
	"rcell.dev/types/rcell"
)

type config struct {
	workers int
	rounds  int
	seed    uint64
	drop    bool // release the anchor halfway through
	verbose bool
}

func (c config) validate() error {
	switch {
	case c.workers < 1:
		return fmt.Errorf("-workers must be at least 1, got %d", c.workers)
	case c.rounds < 0:
		return fmt.Errorf("-rounds must not be negative, got %d", c.rounds)
	case c.workers > 1 && !rc.Atomic:
		return errors.New("built with rc_nonatomic; handles cannot be shared, so -workers must be 1")
	}
	return nil
}

// stats summarizes a run.
type stats struct {
	Ops            int // operations performed by all workers
	Upgrades       int // successful ToStrong calls on a weak cell
	FailedUpgrades int // ToStrong calls that emptied a dead weak cell
	BadReads       int // Get calls that returned a value other than the payload
	EarlyReleases  int // drops observed while the anchor was still held
	Releases       int // times the payload's release func ran
	StrongLeft     int // strong references alive after every cell was emptied
}

func (s stats) String() string {
	return fmt.Sprintf("ops=%d upgrades=%d failed-upgrades=%d bad-reads=%d early-releases=%d releases=%d strong-left=%d",
		s.Ops, s.Upgrades, s.FailedUpgrades, s.BadReads, s.EarlyReleases, s.Releases, s.StrongLeft)
}

type payload struct {
	seed uint64
}

// counters are the live tallies behind stats.
type counters struct {
	ops, upgrades, failedUpgrades, badReads atomic.Int64
}

func run(ctx context.Context, cfg config, logf logger.Logf) (stats, error) {
	if err := cfg.validate(); err != nil {
		return stats{}, err
	}
	if cfg.verbose {
		envknob.LogCurrent(logf)
	}
	progress := logger.RateLimitedFn(logf, time.Second, 1, 64)
	if !cfg.verbose {
		progress = logger.Discard
	}

	var (
		releases   atomic.Int64
		anchorHeld atomic.Bool
		early      atomic.Int64
	)
	p := &payload{seed: cfg.seed}
	anchor := rc.NewWithRelease(p, func(*payload) {
		if anchorHeld.Load() {
			early.Add(1)
		}
		releases.Add(1)
	})
	anchorHeld.Store(true)
	watch := anchor.Downgrade()
	defer watch.Release()

	shared := rcell.LockedFromWeak(anchor.Downgrade())
	cells := make([]*rcell.Locked[*payload], cfg.workers)
	for i := range cells {
		cells[i] = rcell.LockedFromStrong(anchor.Clone())
	}

	var dropOnce sync.Once
	dropAnchor := func() {
		dropOnce.Do(func() {
			anchorHeld.Store(false)
			anchor.Release()
		})
	}
	half := int64(cfg.workers*cfg.rounds) / 2

	var c counters
	g, ctx := errgroup.WithContext(ctx)
	for i, own := range cells {
		g.Go(func() error {
			r := rand.New(rand.NewPCG(cfg.seed, uint64(i)))
			for n := range cfg.rounds {
				if n%1024 == 0 {
					if err := ctx.Err(); err != nil {
						return fmt.Errorf("worker %d: %w", i, err)
					}
					progress("worker %d: %d/%d rounds", i, n, cfg.rounds)
				}
				step(r, own, shared, p, &c)
				if c.ops.Add(1) == half && cfg.drop {
					dropAnchor()
				}
			}
			return nil
		})
	}
	err := g.Wait()

	dropAnchor()
	for _, own := range cells {
		own.ToEmpty()
	}
	shared.ToEmpty()

	st := stats{
		Ops:            int(c.ops.Load()),
		Upgrades:       int(c.upgrades.Load()),
		FailedUpgrades: int(c.failedUpgrades.Load()),
		BadReads:       int(c.badReads.Load()),
		EarlyReleases:  int(early.Load()),
		Releases:       int(releases.Load()),
		StrongLeft:     watch.StrongCount(),
	}
	logf("done: %v", st)
	if err != nil {
		return st, err
	}
	return st, st.check()
}

func (s stats) check() error {
	var errs []error
	if s.BadReads != 0 {
		errs = append(errs, fmt.Errorf("%d reads returned the wrong value", s.BadReads))
	}
	if s.EarlyReleases != 0 {
		errs = append(errs, fmt.Errorf("payload dropped %d times while still anchored", s.EarlyReleases))
	}
	if s.Releases != 1 {
		errs = append(errs, fmt.Errorf("payload dropped %d times; want 1", s.Releases))
	}
	if s.StrongLeft != 0 {
		errs = append(errs, fmt.Errorf("%d strong references survived", s.StrongLeft))
	}
	return errors.Join(errs...)
}

// step performs one random operation on a worker's own cell or the shared
// cell.
func step(r *rand.Rand, own, shared *rcell.Locked[*payload], p *payload, c *counters) {
	switch r.IntN(8) {
	case 0:
		own.ToWeak()
	case 1:
		wasWeak := own.IsWeak()
		if own.ToStrong() {
			if wasWeak {
				c.upgrades.Add(1)
			}
		} else if wasWeak {
			c.failedUpgrades.Add(1)
		}
	case 2:
		own.ToEmpty()
	case 3:
		if s, ok := shared.AsStrong(); ok {
			own.Set(s)
		}
	case 4:
		if v, ok := own.Get(); ok && v != p {
			c.badReads.Add(1)
		}
	case 5:
		if w, ok := own.AsWeak(); ok {
			shared.SetWeak(w)
		}
	case 6:
		shared.ToStrong()
	case 7:
		shared.ToWeak()
	}
}
