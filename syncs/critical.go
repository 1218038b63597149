// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package syncs

import (
	"fmt"
	"log"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sys/cpu"
	"vmhost.dev/envknob"
	"vmhost.dev/types/logger"
	"vmhost.dev/util/event"
	"vmhost.dev/util/threadid"
)

var (
	debugCritical = envknob.RegisterBool("VMHOST_DEBUG_CRITICAL")
	useOSEvent    = envknob.RegisterBool("VMHOST_CRITICAL_OS_EVENT")
)

// Critical is a recursive mutual exclusion lock for short critical
// sections. The thread holding it may lock it again without blocking;
// it is released when every Lock has been matched by an Unlock.
//
// It is built from a single atomic compare-and-swap word and an
// auto-reset [event.Event]. The event is created by the first thread to
// acquire the lock, so the zero value is ready to use, including from
// package initialization. Until the event exists, contending threads
// spin instead of blocking.
//
// Waiters are not served in any particular order. There is no timeout
// and no cancellation: hold a Critical only around code that cannot
// block for an unbounded time.
//
// A Critical must not be copied after first use.
type Critical struct {
	// held is the recursion count plus one: 0 when unlocked, 1 when
	// held once, n+1 when re-entered n times. Only the 0 → 1
	// transition is contended; every other write is by the owner.
	held atomic.Int64
	_    cpu.CacheLinePad

	owner atomic.Int64 // threadid.ID of the holder, or threadid.None

	// st is published by the first lock holder and never replaced.
	st       atomic.Pointer[criticalState]
	shutdown atomic.Bool

	opts CriticalOptions
}

// CriticalOptions configures a [Critical] created with [NewCritical].
// The zero value selects the defaults.
type CriticalOptions struct {
	// ThreadID identifies the calling thread. The default is
	// threadid.Current (the calling goroutine). Use threadid.OSThread
	// only if every caller is locked to its OS thread.
	ThreadID threadid.Func

	// NewEvent creates the wait object on first acquisition. The default
	// is event.NewChan, or event.NewOS if VMHOST_CRITICAL_OS_EVENT is set.
	NewEvent func() (event.Event, error)

	// Logf, if non-nil, receives debug logs. The default logs via the
	// standard log package if VMHOST_DEBUG_CRITICAL is set, and discards
	// otherwise.
	Logf logger.Logf
}

// criticalState is the lazily created part of a Critical.
type criticalState struct {
	ev       event.Event
	logf     logger.Logf
	waitLogf logger.Logf // rate limited; used by contending threads
}

// NewCritical returns a new unlocked Critical configured by opts.
func NewCritical(opts CriticalOptions) *Critical {
	return &Critical{opts: opts}
}

func (c *Critical) threadID() threadid.ID {
	if f := c.opts.ThreadID; f != nil {
		return f()
	}
	return threadid.Current()
}

// CriticalScope is a held [Critical], returned by [Critical.Enter].
type CriticalScope struct {
	c *Critical
}

// Enter locks c and returns a scope whose Exit unlocks it.
// The usual form is:
//
//	defer c.Enter().Exit()
func (c *Critical) Enter() CriticalScope {
	c.Lock()
	return CriticalScope{c}
}

// Exit releases the lock taken by the Enter that returned s.
func (s CriticalScope) Exit() {
	s.c.Unlock()
}

// Lock locks c. If c is held by another thread, Lock blocks until it is
// available. If c is already held by the calling thread, Lock only
// increments the recursion count.
func (c *Critical) Lock() {
	if criticalChecks && c.shutdown.Load() {
		panic("syncs: use of critical section after shutdown")
	}
	me := c.threadID()
	if threadid.ID(c.owner.Load()) == me {
		// Only the owner writes held while it is non-zero.
		c.held.Add(1)
		criticalReentries.Inc()
		return
	}
	if !c.held.CompareAndSwap(0, 1) {
		c.lockSlow()
	}

	st := c.st.Load()
	if st == nil {
		st = c.initLocked()
	}
	if criticalChecks && c.owner.Load() != int64(threadid.None) {
		panic("syncs: critical section acquired illegally")
	}
	c.owner.Store(int64(me))
}

// lockSlow loops until it moves held from 0 to 1.
func (c *Critical) lockSlow() {
	criticalContended.Inc()
	start := time.Now()
	logged := false
	for !c.held.CompareAndSwap(0, 1) {
		st := c.st.Load()
		if st == nil {
			// The first holder has not created the event yet.
			runtime.Gosched()
			continue
		}
		if !logged {
			st.waitLogf("critical: waiting; owner=%v", threadid.ID(c.owner.Load()))
			logged = true
		}
		// A wakeup only means the lock was released; it still has to
		// be won by the CAS above.
		if err := st.ev.Wait(); err != nil {
			panic(fmt.Errorf("syncs: critical section wait: %w", err))
		}
	}
	criticalWaitSeconds.Observe(time.Since(start).Seconds())
}

// initLocked creates and publishes c's event. The caller holds c, so it
// runs at most once.
func (c *Critical) initLocked() *criticalState {
	newEvent := c.opts.NewEvent
	if newEvent == nil {
		newEvent = defaultNewEvent
	}
	ev, err := newEvent()
	if err != nil {
		panic(fmt.Errorf("syncs: creating critical section event: %w", err))
	}
	logf := c.opts.Logf
	if logf == nil {
		logf = defaultCriticalLogf()
	}
	st := &criticalState{
		ev:       ev,
		logf:     logf,
		waitLogf: logger.RateLimitedFn(logf, time.Second, 10, 4),
	}
	c.st.Store(st)
	criticalEventsCreated.Inc()
	logf("critical: created wait event %T", ev)
	return st
}

func defaultNewEvent() (event.Event, error) {
	if useOSEvent() {
		return event.NewOS()
	}
	return event.NewChan(), nil
}

func defaultCriticalLogf() logger.Logf {
	if debugCritical() {
		return log.Printf
	}
	return logger.Discard
}

// Unlock releases one level of c. When the outermost level is released,
// one thread waiting in Lock, if any, is woken.
//
// It is a run-time error to call Unlock from a thread that does not
// hold c.
func (c *Critical) Unlock() {
	n := c.held.Load()
	if criticalChecks {
		if threadid.ID(c.owner.Load()) != c.threadID() {
			panic("syncs: unlock attempt by wrong thread")
		}
		if n < 1 {
			panic("syncs: attempt to unlock when already unlocked")
		}
	}
	if n > 1 {
		c.held.Store(n - 1)
		return
	}
	// Clear the owner before held: once held is 0 another thread may
	// take the lock and set its own id.
	c.owner.Store(int64(threadid.None))
	c.held.Store(0)
	// The event stays signaled until a waiter consumes it, so a thread
	// that failed its CAS but hasn't blocked yet won't miss this.
	if st := c.st.Load(); st != nil {
		if err := st.ev.Set(); err != nil {
			panic(fmt.Errorf("syncs: critical section signal: %w", err))
		}
	}
}

// Shutdown closes c's wait object. It must be called at most once, while
// c is unlocked, after all users of c are done with it. c must not be
// used afterwards.
func (c *Critical) Shutdown() {
	st := c.st.Load()
	if criticalChecks {
		switch {
		case c.owner.Load() != int64(threadid.None):
			panic("syncs: critical section being shut down while owned")
		case c.held.Load() != 0:
			panic("syncs: critical section being shut down while recursively locked")
		case st == nil:
			panic("syncs: critical section shut down before first use")
		case c.shutdown.Load():
			panic("syncs: critical section shut down twice")
		}
	}
	c.shutdown.Store(true)
	if st == nil {
		return
	}
	if err := st.ev.Close(); err != nil {
		panic(fmt.Errorf("syncs: closing critical section event: %w", err))
	}
	st.logf("critical: shut down")
}

// RecursionCount reports the recursion count of c: -1 when unlocked, 0
// when held once, and n when re-entered n times by its owner.
// Unless the caller holds c, the result may be stale by the time it
// is returned.
func (c *Critical) RecursionCount() int64 {
	return c.held.Load() - 1
}

// Owner returns the ID of the thread holding c, or threadid.None.
func (c *Critical) Owner() threadid.ID {
	return threadid.ID(c.owner.Load())
}

// HeldByCurrent reports whether the calling thread holds c.
func (c *Critical) HeldByCurrent() bool {
	return c.Owner() == c.threadID()
}

// AssertHeld panics if the calling thread does not hold c.
func (c *Critical) AssertHeld() {
	if !c.HeldByCurrent() {
		panic("syncs: critical section not held by current thread")
	}
}
