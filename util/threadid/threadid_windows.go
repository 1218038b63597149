// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package threadid

import "golang.org/x/sys/windows"

func osThread() ID {
	// Thread ids are never zero on Windows, so they cannot collide with None.
	return ID(windows.GetCurrentThreadId())
}
