// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package goroutines

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"testing"
)

func TestID(t *testing.T) {
	id := ID()
	if id <= 0 {
		t.Fatalf("ID = %d, want > 0", id)
	}
	if again := ID(); again != id {
		t.Fatalf("ID changed within one goroutine: %d then %d", id, again)
	}

	const n = 16
	ids := make(chan int64, n)
	var (
		wg      sync.WaitGroup
		release = make(chan struct{})
	)
	for range n {
		wg.Go(func() {
			ids <- ID()
			<-release // keep every goroutine alive until all ids are collected
		})
	}
	seen := map[int64]bool{id: true}
	for range n {
		got := <-ids
		if seen[got] {
			t.Errorf("duplicate goroutine id %d among live goroutines", got)
		}
		seen[got] = true
	}
	close(release)
	wg.Wait()
}

// stackID extracts N from the "goroutine N [" header of runtime.Stack.
func stackID(t *testing.T) int64 {
	t.Helper()
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b, ok := bytes.CutPrefix(b, []byte("goroutine "))
	if !ok {
		t.Fatalf("malformed stack header %q", buf[:])
	}
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		t.Fatalf("malformed goroutine id in %q: %v", buf[:], err)
	}
	return id
}

func TestIDMatchesStack(t *testing.T) {
	if got, want := ID(), stackID(t); got != want {
		t.Errorf("ID = %d, stack header says %d", got, want)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if got, want := ID(), stackID(t); got != want {
			t.Errorf("in new goroutine: ID = %d, stack header says %d", got, want)
		}
	}()
	<-done
}

func BenchmarkID(b *testing.B) {
	for b.Loop() {
		ID()
	}
}

func TestScrubbedGoroutineDump(t *testing.T) {
	t.Logf("Got:\n%s\n", ScrubbedGoroutineDump(true))
}

func TestScrubHex(t *testing.T) {
	in := []byte(`foo(0x1, 0xa, 0x0, 0x1)`)
	got := scrubHex(bytes.Clone(in))
	const want = `foo(v1%, v2%, 0x0, v1%)`
	if string(got) != want {
		t.Errorf("scrubHex(%q) = %q, want %q", in, got, want)
	}
}

func TestScrubbedGoroutineDumpCurrent(t *testing.T) {
	got := ScrubbedGoroutineDump(false)
	if !bytes.HasPrefix(got, []byte("goroutine ")) {
		t.Errorf("dump does not start with a goroutine header: %q", got)
	}
}
