package repository

import (
	"sync"
	"testing"
	"time"
)

func TestClock_StrictlyIncreasing(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := &Clock{now: func() time.Time { return fixed }}

	a := c.Next()
	b := c.Next()
	if !a.Equal(fixed) {
		t.Errorf("first = %v, want %v", a, fixed)
	}
	if !b.After(a) {
		t.Errorf("second %v should be after first %v", b, a)
	}
}

func TestClock_NeverGoesBackwards(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{base.Add(time.Second), base, base.Add(2 * time.Second)}
	i := 0
	c := &Clock{now: func() time.Time { t := times[i]; i++; return t }}

	first := c.Next()
	second := c.Next()
	third := c.Next()
	if !second.After(first) {
		t.Errorf("second %v should be after first %v after a backwards wall clock", second, first)
	}
	if !third.Equal(base.Add(2 * time.Second)) {
		t.Errorf("third = %v, want wall clock once it catches up", third)
	}
}

func TestClock_Concurrent(t *testing.T) {
	c := NewClock()
	const n = 200
	out := make(chan time.Time, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out <- c.Next()
		}()
	}
	wg.Wait()
	close(out)
	seen := make(map[time.Time]bool, n)
	for ts := range out {
		if seen[ts] {
			t.Fatalf("duplicate timestamp %v", ts)
		}
		seen[ts] = true
	}
}
