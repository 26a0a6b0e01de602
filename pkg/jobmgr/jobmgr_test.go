package jobmgr

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestScheduleRuns(t *testing.T) {
	m := NewManager(nil)
	var ran atomic.Int32

	m.Schedule("a", 10*time.Millisecond, func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})

	waitFor(t, func() bool { return ran.Load() == 1 })
	waitFor(t, func() bool { return !m.Pending("a") })
}

func TestScheduleSupersedes(t *testing.T) {
	m := NewManager(nil)
	var first, second atomic.Int32

	m.Schedule("g", 50*time.Millisecond, func(ctx context.Context) error {
		first.Add(1)
		return nil
	})
	m.Schedule("g", 10*time.Millisecond, func(ctx context.Context) error {
		second.Add(1)
		return nil
	})

	waitFor(t, func() bool { return second.Load() == 1 })
	time.Sleep(80 * time.Millisecond)

	if first.Load() != 0 {
		t.Error("superseded job still fired")
	}
	if len(m.List()) != 0 {
		t.Errorf("List() = %v after completion", m.List())
	}
}

func TestCancel(t *testing.T) {
	var events []string
	m := NewManager(func(s string) { events = append(events, s) })
	var ran atomic.Int32

	m.Schedule("g", 30*time.Millisecond, func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})
	if !m.Cancel("g") {
		t.Fatal("Cancel() = false for a pending job")
	}
	if m.Cancel("g") {
		t.Error("second Cancel() = true")
	}

	time.Sleep(60 * time.Millisecond)
	if ran.Load() != 0 {
		t.Error("cancelled job fired")
	}
	if len(events) != 2 || events[0] != "scheduled:g" || events[1] != "cancelled:g" {
		t.Errorf("events = %v", events)
	}
}

func TestStatus(t *testing.T) {
	m := NewManager(nil)
	if got := m.Status(); got != "No jobs are pending." {
		t.Errorf("Status() = %q", got)
	}

	block := func(ctx context.Context) error { return nil }
	m.Schedule("b", time.Hour, block)
	m.Schedule("a", time.Hour, block)
	defer m.CancelAll()

	if got := m.Status(); got != "Pending jobs: a, b" {
		t.Errorf("Status() = %q", got)
	}
}
