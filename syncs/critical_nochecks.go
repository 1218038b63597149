// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

//go:build vmhost_omit_critical_checks

package syncs

const criticalChecks = false
