package state

import (
	"fmt"
	"sync"
	"time"
)

// Snapshot is the latest view of a tracked request.
type Snapshot struct {
	RequestID   string
	Label       string
	State       string
	Polls       int
	Messages    int
	LastMessage string
	StartedAt   time.Time
	LastUpdated time.Time
	LastError   error
}

// Elapsed returns the time since Begin, measured at LastUpdated.
func (s Snapshot) Elapsed() time.Duration {
	if s.StartedAt.IsZero() || s.LastUpdated.Before(s.StartedAt) {
		return 0
	}
	return s.LastUpdated.Sub(s.StartedAt)
}

// Store coordinates concurrent updates to the snapshot. The tracker writes
// it; the progress view reads it.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	now      func() time.Time
}

// Begin resets the snapshot for a new request.
func (s *Store) Begin(requestID, label, state string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	s.snapshot = Snapshot{
		RequestID:   requestID,
		Label:       label,
		State:       state,
		StartedAt:   now,
		LastUpdated: now,
	}
}

// Transition records a state change. A non-nil err is kept for visibility.
func (s *Store) Transition(state string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.State = state
	if err != nil {
		s.snapshot.LastError = err
	}
	s.snapshot.LastUpdated = s.clock()
}

// RecordPoll counts one status poll, whatever its answer.
func (s *Store) RecordPoll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Polls++
	s.snapshot.LastUpdated = s.clock()
}

// RecordLines counts the progress lines one poll produced and keeps the last.
func (s *Store) RecordLines(lines []string) {
	if len(lines) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Messages += len(lines)
	s.snapshot.LastMessage = lines[len(lines)-1]
	s.snapshot.LastUpdated = s.clock()
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func (s *Store) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}
