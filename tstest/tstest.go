// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package tstest

import (
	"strconv"
	"testing"
	"time"

	"vmhost.dev/envknob"
)

// Replace replaces the value of target with val.
// The old value is restored when the test ends.
func Replace[T any](t testing.TB, target *T, val T) {
	t.Helper()
	if target == nil {
		t.Fatalf("Replace: nil pointer")
	}
	old := *target
	t.Cleanup(func() {
		*target = old
	})
	*target = val
}

// GetSeed gets the seed for randomized tests, from VMHOST_TEST_SEED if
// set, or else the current time. The seed is logged so failures can be
// reproduced.
func GetSeed(t testing.TB) int64 {
	t.Helper()
	if v := envknob.String("VMHOST_TEST_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			t.Fatalf("invalid VMHOST_TEST_SEED %q: %v", v, err)
		}
		t.Logf("using VMHOST_TEST_SEED=%d", seed)
		return seed
	}
	seed := time.Now().UnixNano()
	t.Logf("using seed %d; set VMHOST_TEST_SEED to reproduce", seed)
	return seed
}
