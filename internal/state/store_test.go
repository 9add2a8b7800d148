package state

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestStore_BeginResetsSnapshot(t *testing.T) {
	var s Store

	s.Begin("r1", "Packing compute", "submitted")
	s.RecordPoll()
	s.RecordLines([]string{"a", "b"})
	s.Transition("failed", errors.New("boom"))

	before := time.Now()
	s.Begin("r2", "Power on", "submitted")

	snap := s.Snapshot()
	if snap.RequestID != "r2" || snap.Label != "Power on" || snap.State != "submitted" {
		t.Fatalf("snapshot = %#v, want fresh r2", snap)
	}
	if snap.Polls != 0 || snap.Messages != 0 || snap.LastMessage != "" {
		t.Fatalf("counters not reset: %#v", snap)
	}
	if snap.LastError != nil {
		t.Fatalf("LastError = %v, want nil", snap.LastError)
	}
	if snap.StartedAt.Before(before) {
		t.Fatalf("StartedAt = %v, want >= %v", snap.StartedAt, before)
	}
}

func TestStore_RecordPollAndLines(t *testing.T) {
	var s Store
	s.Begin("r1", "Packing", "polling")

	s.RecordPoll()
	s.RecordPoll()
	s.RecordLines([]string{"copying", "compressing"})
	s.RecordPoll()
	s.RecordLines([]string{"compressing"})
	s.RecordLines(nil)

	snap := s.Snapshot()
	if snap.Polls != 3 {
		t.Fatalf("Polls = %d, want 3", snap.Polls)
	}
	if snap.Messages != 3 {
		t.Fatalf("Messages = %d, want 3", snap.Messages)
	}
	if snap.LastMessage != "compressing" {
		t.Fatalf("LastMessage = %q, want compressing", snap.LastMessage)
	}
}

func TestStore_TransitionKeepsErrorCopy(t *testing.T) {
	var s Store
	s.Begin("r1", "Packing", "polling")

	origErr := errors.New("boom")
	s.Transition("failed", origErr)
	s.Transition("failed", nil)

	snap := s.Snapshot()
	if snap.State != "failed" {
		t.Fatalf("State = %q, want failed", snap.State)
	}
	if snap.LastError == nil || snap.LastError.Error() != "boom" {
		t.Fatalf("LastError = %v, want boom", snap.LastError)
	}
	if !errors.Is(snap.LastError, origErr) {
		t.Fatalf("LastError should wrap the original")
	}
	if reflect.ValueOf(snap.LastError).Pointer() == reflect.ValueOf(origErr).Pointer() {
		t.Fatalf("Snapshot should clone error instance")
	}
}

func TestSnapshot_Elapsed(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := start
	s := Store{now: func() time.Time { return clock }}

	s.Begin("r1", "Packing", "submitted")
	clock = start.Add(90 * time.Second)
	s.RecordPoll()

	if got := s.Snapshot().Elapsed(); got != 90*time.Second {
		t.Fatalf("Elapsed = %v, want 1m30s", got)
	}
	if got := (Snapshot{}).Elapsed(); got != 0 {
		t.Fatalf("zero Elapsed = %v, want 0", got)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	var s Store
	s.Begin("r1", "Packing", "polling")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s.RecordPoll()
			s.RecordLines([]string{"line"})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = s.Snapshot()
		}
	}()
	wg.Wait()

	if got := s.Snapshot().Polls; got != 200 {
		t.Fatalf("Polls = %d, want 200", got)
	}
}
