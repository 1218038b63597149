// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package syncs contains additional sync types, most notably [Critical],
// the host runtime's recursive critical section.
package syncs

import "sync/atomic"

// WaitGroupChan is like a sync.WaitGroup, but has a chan that closes
// on completion that you can wait on. (This, you can only use the
// value once)
// Also, its zero value is not usable. Use the constructor.
type WaitGroupChan struct {
	n    atomic.Int64
	done chan struct{} // closed on transition to zero
}

// NewWaitGroupChan returns a new single-use WaitGroupChan.
func NewWaitGroupChan() *WaitGroupChan {
	return &WaitGroupChan{done: make(chan struct{})}
}

// DoneChan returns a channel that's closed on completion.
func (wg *WaitGroupChan) DoneChan() <-chan struct{} { return wg.done }

// Add adds delta, which may be negative, to the WaitGroupChan
// counter. If the counter becomes zero, the Done chan is closed and
// Wait returns. If the counter goes negative, Add panics.
//
// Calls with a positive delta that occur when the counter is zero must
// happen before a Wait.
func (wg *WaitGroupChan) Add(delta int) {
	switch n := wg.n.Add(int64(delta)); {
	case n == 0:
		close(wg.done)
	case n < 0:
		panic("syncs: negative WaitGroupChan counter")
	}
}

// Decr decrements the WaitGroupChan counter by one.
//
// (It is like sync.WaitGroup's Done method, but Done would be ambiguous
// with Context.Done, so this type uses DoneChan and Decr instead.)
func (wg *WaitGroupChan) Decr() {
	wg.Add(-1)
}

// Wait blocks until the WaitGroupChan counter is zero.
func (wg *WaitGroupChan) Wait() { <-wg.done }
