package clock

import (
	"testing"
	"time"
)

func TestFake_AfterRecordsDelaysAndAdvances(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)

	<-f.After(2 * time.Second)
	<-f.After(500 * time.Millisecond)

	delays := f.Delays()
	if len(delays) != 2 || delays[0] != 2*time.Second || delays[1] != 500*time.Millisecond {
		t.Fatalf("Delays() = %v, want [2s 500ms]", delays)
	}
	if got := f.Now(); !got.Equal(start.Add(2500 * time.Millisecond)) {
		t.Errorf("Now() = %v, want %v", got, start.Add(2500*time.Millisecond))
	}
}

func TestReal_AfterFires(t *testing.T) {
	select {
	case <-Real{}.After(time.Millisecond):
	case <-time.After(time.Second):
		t.Fatal("Real.After did not fire")
	}
}
