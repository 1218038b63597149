// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package syncs

// processCritical is the process-wide critical section. Being a zero
// value, it is usable before any initialization code has run.
var processCritical Critical

// EnterCritical enters the process-wide critical section.
//
//	defer syncs.EnterCritical().Exit()
func EnterCritical() CriticalScope {
	return processCritical.Enter()
}

// ShutdownCritical closes the process-wide critical section's wait
// object. It must be called at most once, when no thread holds the
// critical section, and the section must not be entered again.
func ShutdownCritical() {
	processCritical.Shutdown()
}
