// Package utils holds test helpers shared by the connection packages.
package utils

import (
	"runtime"
	"testing"
	"time"
)

// LeakReporter is the subset of testing.TB the leak detector reports to
type LeakReporter interface {
	Helper()
	Errorf(format string, args ...interface{})
	Logf(format string, args ...interface{})
}

// GoroutineLeakDetector fails a test when goroutines started during it are
// still running once it ends. Connections own a reader, a watcher and a
// writer goroutine each, so tests of Start/Stop use it to prove all three exit.
type GoroutineLeakDetector struct {
	t             LeakReporter
	baseline      int
	allowedGrowth int
	timeout       time.Duration
	poll          time.Duration
}

// NewGoroutineLeakDetector creates a detector reporting to t
func NewGoroutineLeakDetector(t LeakReporter) *GoroutineLeakDetector {
	return &GoroutineLeakDetector{
		t:       t,
		timeout: 2 * time.Second,
		poll:    20 * time.Millisecond,
	}
}

// Start records the baseline goroutine count
func (d *GoroutineLeakDetector) Start() *GoroutineLeakDetector {
	d.baseline = runtime.NumGoroutine()
	return d
}

// Check waits up to the timeout for the goroutine count to fall back to the
// baseline and reports a leak, with all stacks, if it does not
func (d *GoroutineLeakDetector) Check() {
	d.t.Helper()

	deadline := time.Now().Add(d.timeout)
	count := runtime.NumGoroutine()
	for count-d.baseline > d.allowedGrowth && time.Now().Before(deadline) {
		time.Sleep(d.poll)
		count = runtime.NumGoroutine()
	}

	if leaked := count - d.baseline; leaked > d.allowedGrowth {
		buf := make([]byte, 1<<20)
		n := runtime.Stack(buf, true)
		d.t.Errorf("goroutine leak: started with %d, ended with %d (allowed growth %d)\n%s",
			d.baseline, count, d.allowedGrowth, buf[:n])
	}
}

// SetAllowedGrowth sets how many extra goroutines are tolerated
func (d *GoroutineLeakDetector) SetAllowedGrowth(n int) *GoroutineLeakDetector {
	d.allowedGrowth = n
	return d
}

// SetTimeout sets how long Check waits for goroutines to exit
func (d *GoroutineLeakDetector) SetTimeout(timeout time.Duration) *GoroutineLeakDetector {
	d.timeout = timeout
	return d
}

// VerifyNoLeaks runs fn and checks that every goroutine it started has exited
func VerifyNoLeaks(t testing.TB, fn func()) {
	t.Helper()
	d := NewGoroutineLeakDetector(t).Start()
	fn()
	d.Check()
}
