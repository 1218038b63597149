// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package threadid identifies the thread of execution that is calling.
//
// Two notions of identity are offered. [Current] identifies the calling
// goroutine, which is what Go code almost always means by "thread".
// [OSThread] identifies the operating system thread and is only stable
// for goroutines that called [runtime.LockOSThread].
package threadid

import (
	"strconv"

	"vmhost.dev/util/goroutines"
)

// ID identifies a thread of execution. IDs are comparable with ==.
type ID int64

// None is the ID of no thread. It never equals the ID of a real thread.
const None ID = 0

// Func returns the ID of the calling thread.
type Func func() ID

// Current returns the ID of the calling goroutine.
func Current() ID {
	return ID(goroutines.ID())
}

// OSThread returns the ID of the operating system thread running the
// caller. The result is only meaningful across calls if the calling
// goroutine is locked to its thread with runtime.LockOSThread.
//
// On platforms without a thread id syscall it falls back to [Current].
func OSThread() ID {
	return osThread()
}

func (id ID) String() string {
	if id == None {
		return "none"
	}
	return strconv.FormatInt(int64(id), 10)
}
