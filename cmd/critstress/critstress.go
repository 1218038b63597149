// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// The critstress command hammers a syncs.Critical from many threads and
// verifies that it provides mutual exclusion and never stalls.
//
// Flags may also be set with CRITSTRESS_-prefixed environment variables,
// e.g. CRITSTRESS_WORKERS=32.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"vmhost.dev/envknob"
	"vmhost.dev/syncs"
	"vmhost.dev/types/logger"
	"vmhost.dev/util/event"
	"vmhost.dev/util/goroutines"
	"vmhost.dev/util/threadid"
)

var args struct {
	workers     int
	iters       int
	depth       int
	osEvent     bool
	osThreads   bool
	metricsAddr string
	stall       time.Duration
	seed        uint64
	verbose     bool
}

func main() {
	fs := flag.NewFlagSet("critstress", flag.ExitOnError)
	fs.IntVar(&args.workers, "workers", runtime.GOMAXPROCS(0)*2, "number of contending threads")
	fs.IntVar(&args.iters, "iters", 10000, "critical section entries per thread")
	fs.IntVar(&args.depth, "depth", 3, "maximum recursive nesting per entry")
	fs.BoolVar(&args.osEvent, "os-event", false, "wait on the OS event object instead of a channel")
	fs.BoolVar(&args.osThreads, "os-threads", false, "lock each worker to an OS thread and identify owners by OS thread id")
	fs.StringVar(&args.metricsAddr, "metrics-addr", "", "if non-empty, serve Prometheus metrics on this address")
	fs.DurationVar(&args.stall, "stall", 30*time.Second, "fail if no thread makes progress for this long")
	fs.Uint64Var(&args.seed, "seed", 0, "random seed for nesting depths; 0 means time-based")
	fs.BoolVar(&args.verbose, "verbose", false, "log critical section debug messages")

	root := &ffcli.Command{
		Name:       "critstress",
		ShortUsage: "critstress [flags]",
		ShortHelp:  "Stress test the recursive critical section",
		FlagSet:    fs,
		Options:    []ff.Option{ff.WithEnvVarPrefix("CRITSTRESS")},
		Exec:       run,
	}
	if err := root.ParseAndRun(context.Background(), os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("critstress: %v", err)
	}
}

func run(ctx context.Context, rest []string) error {
	if len(rest) > 0 {
		return fmt.Errorf("unexpected arguments: %q", rest)
	}
	if err := envknob.ApplyDiskConfig(); err != nil {
		return err
	}
	logf := logger.Logf(log.Printf)
	envknob.LogCurrent(logf)

	cfg := config{
		Workers:   args.workers,
		Iters:     args.iters,
		MaxDepth:  args.depth,
		OSEvent:   args.osEvent,
		OSThreads: args.osThreads,
		Stall:     args.stall,
		Seed:      args.seed,
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}
	if args.verbose {
		cfg.Logf = logger.WithPrefix(logf, "critstress: ")
	}
	if args.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			logf("serving metrics on http://%s/metrics", args.metricsAddr)
			if err := http.ListenAndServe(args.metricsAddr, mux); err != nil {
				logf("metrics server: %v", err)
			}
		}()
	}

	logf("seed %d: %d workers x %d entries, depth <= %d", cfg.Seed, cfg.Workers, cfg.Iters, cfg.MaxDepth)
	res, err := stress(ctx, cfg)
	if err != nil {
		return err
	}
	logf("ok: %d entries (%d nested) in %v (%.0f entries/s)",
		res.Entries, res.NestedEntries, res.Elapsed.Round(time.Millisecond),
		float64(res.Entries)/res.Elapsed.Seconds())
	return nil
}

// config describes one stress run.
type config struct {
	Workers   int
	Iters     int
	MaxDepth  int
	OSEvent   bool
	OSThreads bool
	Stall     time.Duration // zero means no watchdog
	Seed      uint64
	Logf      logger.Logf // nil means discard
}

type result struct {
	Entries       int64 // outermost entries
	NestedEntries int64 // recursive entries
	Elapsed       time.Duration
}

// errStalled is returned when the watchdog sees no progress for Stall.
var errStalled = errors.New("no progress; critical section appears deadlocked")

func stress(ctx context.Context, cfg config) (result, error) {
	if cfg.Workers < 1 || cfg.Iters < 1 || cfg.MaxDepth < 1 {
		return result{}, fmt.Errorf("workers, iters and depth must be positive")
	}
	opts := syncs.CriticalOptions{Logf: cfg.Logf}
	if opts.Logf == nil {
		opts.Logf = logger.Discard
	}
	if cfg.OSEvent {
		opts.NewEvent = event.NewOS
	}
	if cfg.OSThreads {
		opts.ThreadID = threadid.OSThread
	}
	cs := syncs.NewCritical(opts)

	var (
		s = &stresser{
			cs:  cs,
			cfg: cfg,
		}
		start = time.Now()
		done  = make(chan struct{})
	)
	stalled := make(chan error, 1)
	if cfg.Stall > 0 {
		go func() { stalled <- s.watchdog(done) }()
	}

	g, ctx := errgroup.WithContext(ctx)
	for w := range cfg.Workers {
		g.Go(func() error { return s.worker(ctx, w) })
	}
	finished := make(chan error, 1)
	go func() { finished <- g.Wait() }()

	var err error
	select {
	case err = <-finished:
	case err = <-stalled:
		// Blocked workers can't be cancelled; report and let the
		// caller exit.
		return result{}, err
	}
	close(done)
	if err != nil {
		return result{}, err
	}
	cs.Shutdown()
	return result{
		Entries:       s.entries.Load(),
		NestedEntries: s.nested.Load(),
		Elapsed:       time.Since(start),
	}, nil
}

type stresser struct {
	cs  *syncs.Critical
	cfg config

	occupancy atomic.Int32 // threads inside cs; must stay <= 1
	entries   atomic.Int64
	nested    atomic.Int64
}

func (s *stresser) worker(ctx context.Context, w int) error {
	if s.cfg.OSThreads {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}
	rnd := rand.New(rand.NewPCG(s.cfg.Seed, uint64(w)))
	for range s.cfg.Iters {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.enter(1 + rnd.IntN(s.cfg.MaxDepth)); err != nil {
			return fmt.Errorf("worker %d: %w", w, err)
		}
	}
	return nil
}

// enter takes the critical section depth times, recursively.
func (s *stresser) enter(depth int) error {
	defer s.cs.Enter().Exit()
	if depth > 1 {
		s.nested.Add(1)
		return s.enter(depth - 1)
	}
	n := s.occupancy.Add(1)
	defer s.occupancy.Add(-1)
	if n != 1 {
		return fmt.Errorf("%d threads inside the critical section", n)
	}
	if !s.cs.HeldByCurrent() {
		return fmt.Errorf("critical section held by %v, not the current thread", s.cs.Owner())
	}
	s.entries.Add(1)
	return nil
}

// watchdog returns errStalled, after dumping all goroutines to stderr, if
// the entry count stops moving for cfg.Stall. It returns nil once done is
// closed.
func (s *stresser) watchdog(done <-chan struct{}) error {
	t := time.NewTicker(max(s.cfg.Stall/4, time.Millisecond))
	defer t.Stop()
	last, lastMove := s.entries.Load(), time.Now()
	for {
		select {
		case <-done:
			return nil
		case now := <-t.C:
			if n := s.entries.Load(); n != last {
				last, lastMove = n, now
				continue
			}
			if now.Sub(lastMove) >= s.cfg.Stall {
				fmt.Fprintf(os.Stderr, "critstress: stalled; owner=%v recursion=%d\n%s\n",
					s.cs.Owner(), s.cs.RecursionCount(), goroutines.ScrubbedGoroutineDump(true))
				return errStalled
			}
		}
	}
}
