// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// Production code accepts a Clock interface parameter instead of calling
// time.Now or time.After directly. In production, Real() provides the
// standard library behavior. In tests, Fake() provides a deterministic
// clock that advances only when Advance is called.
//
// Everything in this module that waits — retry backoff delays, the
// streaming coordinator's per-attempt timeout — waits on a Clock, so
// tests exercise those paths without real sleeps.
//
// # Wiring Pattern
//
// Add a Clock field to structs that use time:
//
//	type Engine struct {
//	    clock clock.Clock
//	    // ...
//	}
//
// In production:
//
//	engine := &Engine{clock: clock.Real()}
//
// In tests:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	engine := &Engine{clock: c}
//	// ... start goroutines ...
//	c.WaitForTimers(1) // wait for a goroutine to register a timer
//	c.Advance(5 * time.Second) // fire it deterministically
//
// When a goroutine calls After on a FakeClock, it registers a pending
// timer. Use WaitForTimers to block until a specific number of timers
// are registered before calling Advance. This eliminates the race
// between timer registration and time advancement that plagues tests
// using time.Sleep for synchronization.
package clock
