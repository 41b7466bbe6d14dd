// Copyright (c) rcell.dev AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// The rcstress command hammers a shared reference-counted value through many
// rcell.Locked cells from concurrent workers, then checks that the value
// was dropped exactly once and that no strong reference survived.
//
// Flags may also be given as RCSTRESS_* environment variables.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"rcell.dev/types/logger"
	"rcell.dev/types/rc"
)

var args struct {
	cfg config
}

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("rcstress", flag.ExitOnError)
	fs.IntVar(&args.cfg.workers, "workers", runtime.GOMAXPROCS(0), "number of concurrent workers")
	fs.IntVar(&args.cfg.rounds, "rounds", 10000, "operations per worker")
	fs.Uint64Var(&args.cfg.seed, "seed", 1, "random seed; each worker derives its own stream from it")
	fs.BoolVar(&args.cfg.drop, "drop", true, "release the anchor reference halfway through the run")
	fs.BoolVar(&args.cfg.verbose, "v", false, "log per-worker progress")
	return fs
}

func main() {
	root := &ffcli.Command{
		Name:       "rcstress",
		ShortUsage: "rcstress [flags]",
		ShortHelp:  "Stress test rcell.Locked and rc handles",
		LongHelp: strings.TrimSpace(fmt.Sprintf(`
Runs -workers goroutines that each move their own cell, and one cell shared
by all of them, between the strong, weak and empty states.

This binary was built with atomic reference counting: %v.
Without it (the rc_nonatomic build tag), only -workers=1 is allowed.
`, rc.Atomic)),
		FlagSet: newFlagSet(),
		Options: []ff.Option{ff.WithEnvVarPrefix("RCSTRESS")},
		Exec: func(ctx context.Context, rest []string) error {
			if len(rest) > 0 {
				return fmt.Errorf("unexpected arguments: %q", rest)
			}
			st, err := run(ctx, args.cfg, logger.WithPrefix(logf, "rcstress: "))
			if err != nil {
				return err
			}
			fmt.Println(st)
			return nil
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := root.ParseAndRun(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func logf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
