// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package event provides auto-reset wait/signal objects.
//
// An auto-reset event is either signaled or unsignaled. [Event.Set]
// signals it. [Event.Wait] blocks until it is signaled and then resets it,
// so each Set releases at most one waiter. A Set with nobody waiting is
// remembered until the next Wait, and repeated Sets before that Wait
// collapse into one.
package event

import (
	"errors"
	"sync/atomic"
)

// ErrClosed is returned by operations on an Event after Close.
var ErrClosed = errors.New("event: closed")

// Event is an auto-reset wait/signal object. Implementations are safe for
// concurrent use.
type Event interface {
	// Wait blocks without a timeout until the event is signaled, then
	// resets it.
	Wait() error
	// Set signals the event, waking at most one waiter.
	Set() error
	// Close releases the event. Close must not race with Wait or Set.
	Close() error
}

// chanEvent is an Event built on a channel with a buffer of one. The
// buffered element is the signaled state.
type chanEvent struct {
	c      chan struct{}
	done   chan struct{} // closed by Close
	closed atomic.Bool
}

// NewChan returns an Event backed by a Go channel. Waiting on it parks
// the goroutine rather than blocking an OS thread.
func NewChan() Event {
	return &chanEvent{
		c:    make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (e *chanEvent) Wait() error {
	select {
	case <-e.c:
		return nil
	case <-e.done:
		return ErrClosed
	}
}

func (e *chanEvent) Set() error {
	if e.closed.Load() {
		return ErrClosed
	}
	select {
	case e.c <- struct{}{}:
	default:
		// Already signaled.
	}
	return nil
}

func (e *chanEvent) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	close(e.done)
	return nil
}

// NewOS returns an Event backed by the operating system's own wait/signal
// object: an eventfd on Linux and an auto-reset event object on Windows.
// Waiting on it blocks an OS thread in a system call.
//
// On other platforms it returns the result of [NewChan].
func NewOS() (Event, error) {
	return newOS()
}
