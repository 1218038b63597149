// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

//go:build !linux && !windows

package event

func newOS() (Event, error) {
	return NewChan(), nil
}
