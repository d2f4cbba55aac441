package timer

import (
	"testing"
	"time"
)

func TestStartStop(t *testing.T) {
	tm := New()
	tm.Start("phase")
	time.Sleep(10 * time.Millisecond)
	d, err := tm.Stop("phase")
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if d < 10*time.Millisecond {
		t.Errorf("duration %v too short", d)
	}
	got, ok := tm.Duration("phase")
	if !ok || got != d {
		t.Errorf("Duration = %v, %v; want %v, true", got, ok, d)
	}
}

func TestStopWithoutStart(t *testing.T) {
	tm := New()
	if _, err := tm.Stop("never-started"); err == nil {
		t.Error("Stop without Start should return an error")
	}
}

func TestAllCopies(t *testing.T) {
	tm := New()
	tm.Start("a")
	if _, err := tm.Stop("a"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	all := tm.All()
	all["a"] = 0
	if d, _ := tm.Duration("a"); d == 0 {
		t.Error("All should return a copy, not the internal map")
	}
}
