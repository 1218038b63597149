// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package event

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// eventfd is an Event backed by a blocking Linux eventfd. A read returns
// the counter and resets it to zero, which gives auto-reset semantics:
// of several blocked readers only one observes a given write.
type eventfd struct {
	fd     int
	closed atomic.Bool
}

func newOS() (Event, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	return &eventfd{fd: fd}, nil
}

func (e *eventfd) Wait() error {
	if e.closed.Load() {
		return ErrClosed
	}
	var buf [8]byte
	for {
		n, err := unix.Read(e.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("eventfd read: %w", err)
		}
		if n != len(buf) {
			return fmt.Errorf("eventfd read: short read of %d bytes", n)
		}
		return nil
	}
}

func (e *eventfd) Set() error {
	if e.closed.Load() {
		return ErrClosed
	}
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	for {
		_, err := unix.Write(e.fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("eventfd write: %w", err)
		}
		return nil
	}
}

func (e *eventfd) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if err := unix.Close(e.fd); err != nil {
		return fmt.Errorf("eventfd close: %w", err)
	}
	return nil
}
