package testutil

import (
	"sync"

	"github.com/roach88/instrumentd/internal/ir"
)

// FakeTime is a settable ir.TimeSource for tests.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeTime struct {
	mu  sync.Mutex
	now ir.Timestamp
}

// NewFakeTime creates a fake time source reading start.
func NewFakeTime(start ir.Timestamp) *FakeTime {
	return &FakeTime{now: start}
}

// Now implements ir.TimeSource.
func (f *FakeTime) Now() ir.Timestamp {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set moves the time to t. Moving backwards is allowed; the ledger never
// relies on wall time being monotonic.
func (f *FakeTime) Set(t ir.Timestamp) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// Advance moves the time forward by d seconds and returns the new time.
func (f *FakeTime) Advance(d ir.Timestamp) ir.Timestamp {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now += d
	return f.now
}

// AdvanceDays moves the time forward by n days.
func (f *FakeTime) AdvanceDays(n int) ir.Timestamp {
	return f.Advance(ir.Timestamp(n) * ir.Day)
}
