// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package threadid

import "golang.org/x/sys/unix"

func osThread() ID {
	return ID(unix.Gettid())
}
