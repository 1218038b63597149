// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package logger defines a type for writing to logs. It's just a
// convenience type so that we don't have to pass verbose func(...)
// types around.
package logger

import (
	"container/list"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Logf is the basic logger type: a printf-like func.
// Like log.Printf, the format need not end in a newline.
// Logf functions must be safe for concurrent use.
//
// Functions that wrap logger functions must pass through the original
// format and args, possibly augmented. Rate limiting is keyed by format.
type Logf func(format string, args ...any)

// WithPrefix wraps f, prefixing each format with the provided prefix.
func WithPrefix(f Logf, prefix string) Logf {
	return func(format string, args ...any) {
		f(prefix+format, args...)
	}
}

// Discard is a Logf that throws away the logs given to it.
func Discard(string, ...any) {}

// TestLogger returns a Logf that writes to tb.Logf.
// The returned logger is no longer usable once the test completes.
func TestLogger(tb interface {
	Helper()
	Logf(string, ...any)
}) Logf {
	return func(format string, args ...any) {
		tb.Helper()
		tb.Logf("    ... "+format, args...)
	}
}

// limitData is the rate-limiting state of one format string.
type limitData struct {
	lim        *rate.Limiter
	msgBlocked bool          // whether the "rate limited" notice was already logged
	ele        *list.Element // position in the LRU
}

// RateLimitedFn returns a rate-limiting Logf wrapping the given logf.
// Messages sharing a format string are allowed through at most once every
// f, in bursts of up to burst messages. Up to maxCache format strings are
// tracked at a time; the least recently used is forgotten first.
//
// The first suppressed message of a burst is replaced by a single notice.
func RateLimitedFn(logf Logf, f time.Duration, burst int, maxCache int) Logf {
	r := rate.Every(f)
	var (
		mu       sync.Mutex
		msgLim   = make(map[string]*limitData) // keyed by logf format
		msgCache = list.New()
	)

	type verdict int
	const (
		allow verdict = iota
		warn
		block
	)

	judge := func(format string) verdict {
		mu.Lock()
		defer mu.Unlock()
		rl, ok := msgLim[format]
		if ok {
			msgCache.MoveToFront(rl.ele)
		} else {
			rl = &limitData{
				lim: rate.NewLimiter(r, burst),
				ele: msgCache.PushFront(format),
			}
			msgLim[format] = rl
			if msgCache.Len() > maxCache {
				delete(msgLim, msgCache.Back().Value.(string))
				msgCache.Remove(msgCache.Back())
			}
		}
		if rl.lim.Allow() {
			rl.msgBlocked = false
			return allow
		}
		if !rl.msgBlocked {
			rl.msgBlocked = true
			return warn
		}
		return block
	}

	return func(format string, args ...any) {
		switch judge(format) {
		case allow:
			logf(format, args...)
		case warn:
			logf("[RATE LIMITED] format string %q (example: %q)", format, strings.TrimSpace(fmt.Sprintf(format, args...)))
		}
	}
}
