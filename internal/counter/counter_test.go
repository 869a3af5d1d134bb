package counter

import (
	"runtime"
	"sync"
	"testing"
)

func hammer(c *Counter, goroutines, iterations int) {
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				c.Increment()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				c.Decrement()
			}
		}()
	}
	wg.Wait()
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		initial int64
		locked  bool
	}{
		{"unlocked zero", 0, false},
		{"locked zero", 0, true},
		{"locked negative", -42, true},
		{"unlocked positive", 7, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.initial, tt.locked)
			if got := c.Value(); got != tt.initial {
				t.Errorf("Value() = %d, want %d", got, tt.initial)
			}
			if c.Locked() != tt.locked {
				t.Errorf("Locked() = %v, want %v", c.Locked(), tt.locked)
			}
		})
	}
}

func TestSequentialUpdates(t *testing.T) {
	for _, locked := range []bool{false, true} {
		c := New(10, locked)
		c.Increment()
		c.Increment()
		c.Decrement()
		if got := c.Value(); got != 11 {
			t.Errorf("locked=%v: Value() = %d, want 11", locked, got)
		}
		c.Reset(0)
		if got := c.Value(); got != 0 {
			t.Errorf("locked=%v: after Reset Value() = %d, want 0", locked, got)
		}
	}
}

func TestLockedCounterIsExact(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 10, 1000, 20000} {
		c := New(0, true)
		hammer(c, 4, n)
		if got := c.Value(); got != 0 {
			t.Errorf("n=%d: Value() = %d, want 0", n, got)
		}
	}
}

func TestSharedLocker(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	a := NewWithLocker(0, &mu)
	b := NewWithLocker(100, &mu)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				a.Increment()
				b.Decrement()
			}
		}()
	}
	wg.Wait()

	if a.Value() != 2000 || b.Value() != -1900 {
		t.Errorf("a=%d b=%d, want 2000 and -1900", a.Value(), b.Value())
	}
}

func TestUnlockedCounterLosesUpdates(t *testing.T) {
	t.Parallel()

	// Yielding inside the read-modify-write guarantees interleaving even
	// with GOMAXPROCS=1, so at least one of the trials must diverge.
	diverged := 0
	for trial := 0; trial < 5; trial++ {
		c := New(0, false).WithRaceWindow(runtime.Gosched)
		hammer(c, 1, 2000)
		if c.Value() != 0 {
			diverged++
		}
	}
	if diverged == 0 {
		t.Error("expected at least one unlocked trial with a nonzero final value")
	}
}

func TestRaceWindowIgnoredWhenLocked(t *testing.T) {
	calls := 0
	c := New(0, true).WithRaceWindow(func() { calls++ })
	c.Increment()
	c.Decrement()
	if calls != 0 {
		t.Errorf("race window ran %d times in locked mode", calls)
	}
}
