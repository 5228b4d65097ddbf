package testutil

import (
	"testing"
	"time"
)

// Eventually polls fn every tick until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}
