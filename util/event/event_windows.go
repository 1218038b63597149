// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package event

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/windows"
)

// winEvent is an Event backed by a Win32 auto-reset event object.
type winEvent struct {
	h      windows.Handle
	closed atomic.Bool
}

func newOS() (Event, error) {
	h, err := windows.CreateEvent(nil, 0 /* auto reset */, 0 /* unsignaled */, nil /* no name */)
	if err != nil {
		return nil, fmt.Errorf("windows.CreateEvent: %w", err)
	}
	return &winEvent{h: h}, nil
}

func (e *winEvent) Wait() error {
	if e.closed.Load() {
		return ErrClosed
	}
	s, err := windows.WaitForSingleObject(e.h, windows.INFINITE)
	if err != nil {
		return fmt.Errorf("windows.WaitForSingleObject: %w", err)
	}
	if s != windows.WAIT_OBJECT_0 {
		return fmt.Errorf("windows.WaitForSingleObject: unexpected status %#x", s)
	}
	return nil
}

func (e *winEvent) Set() error {
	if e.closed.Load() {
		return ErrClosed
	}
	if err := windows.SetEvent(e.h); err != nil {
		return fmt.Errorf("windows.SetEvent: %w", err)
	}
	return nil
}

func (e *winEvent) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if err := windows.CloseHandle(e.h); err != nil {
		return fmt.Errorf("windows.CloseHandle: %w", err)
	}
	return nil
}
