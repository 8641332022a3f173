package timeutil

import (
	"testing"
	"time"
)

func TestRealClockNow(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	got := c.Now()
	after := time.Now()
	if got.Before(before) || got.After(after) {
		t.Errorf("Now() = %v, outside [%v, %v]", got, before, after)
	}
}

func TestRealClockTicker(t *testing.T) {
	c := RealClock{}
	tk := c.NewTicker(time.Millisecond)
	defer tk.Stop()
	select {
	case <-tk.C():
	case <-time.After(time.Second):
		t.Fatal("ticker never fired")
	}
}

func TestMockClockAdvance(t *testing.T) {
	start := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	if got := c.Now(); !got.Equal(start) {
		t.Errorf("Now() = %v, want %v", got, start)
	}

	c.Advance(90 * time.Second)
	if got := c.Since(start); got != 90*time.Second {
		t.Errorf("Since(start) = %v, want 90s", got)
	}
}

func TestMockTickerFiresOnAdvance(t *testing.T) {
	c := NewMockClock(time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC))
	tk := c.NewTicker(50 * time.Millisecond)

	select {
	case <-tk.C():
		t.Fatal("ticker fired before any time passed")
	default:
	}

	c.Advance(50 * time.Millisecond)
	select {
	case <-tk.C():
	default:
		t.Fatal("ticker did not fire after one period")
	}
}

func TestMockTickerStopped(t *testing.T) {
	c := NewMockClock(time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC))
	tk := c.NewTicker(time.Millisecond)
	tk.Stop()
	c.Advance(time.Second)
	select {
	case <-tk.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}
