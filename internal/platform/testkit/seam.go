package testkit

import (
	"sync"
	"testing"
)

var seamMu sync.Mutex

// Swap swaps a package-level variable for the duration of the test and restores it after
func Swap[T any](t *testing.T, target *T, replacement T) {
	t.Helper()
	orig := *target
	*target = replacement
	t.Cleanup(func() { *target = orig })
}

// Serial runs the whole test under a global lock so tests that mutate
// package-level seams cannot interleave
func Serial(t *testing.T) {
	t.Helper()
	seamMu.Lock()
	t.Cleanup(func() { seamMu.Unlock() })
}
