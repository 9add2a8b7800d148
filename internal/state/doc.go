// Package state holds the shared view of the request being tracked.
//
// # Overview
//
// The tracker loop and the progress spinner run on different goroutines. The
// tracker writes into a Store on every transition and every poll; the spinner
// reads a Snapshot each time it redraws to show the poll count.
//
//	Producer (tracker):            Consumer (spinner):
//	┌────────────────────┐        ┌────────────────────┐
//	│ store.Begin()      │        │                    │
//	│ Fetch(status/<id>) │        │                    │
//	│ store.RecordPoll() │───────→│ store.Snapshot()   │
//	│ store.RecordLines()│        │                    │
//	│ store.Transition() │ (mutex)│ render "(poll N)"  │
//	└────────────────────┘        └────────────────────┘
//
// # Concurrency Model
//
// Store uses a readers-writer lock. Writers take the exclusive lock only
// while updating counters; Snapshot takes the read lock and returns a copy,
// cloning the recorded error so callers never share it with the writer.
//
// The zero Store is ready to use.
package state
