// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

//go:build !vmhost_omit_critical_checks

package syncs

// criticalChecks is whether Critical panics on misuse: unlocking from
// the wrong thread or while unlocked, or shutting down while held.
// Builds with the vmhost_omit_critical_checks tag skip these checks.
const criticalChecks = true
