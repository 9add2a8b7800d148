// Package tracker follows asynchronous Luna requests to completion.
//
// # Overview
//
// Some daemon actions (packing an OS image, updating its kernel, cloning it,
// bulk power control) answer with a request_id instead of a result. Track
// takes that id and polls config/status/<id> until the daemon drops the job.
//
// # States
//
//	Submitted ──→ Polling ──┬──→ TerminalSuccess   (404: job cleaned up)
//	                 ↑  │   └──→ TerminalFailure   (any other code, transport error)
//	                 └──┘ 200: print lines, poll again
//
// Nothing leaves a terminal state. The loop is iterative; long jobs do not
// grow the stack.
//
// # Pacing
//
// Every poll is preceded by one interval (2s by default) of sleep. When a
// single answer carries several messages, consecutive lines are also printed
// one interval apart. Lines are printed exactly as received; the client does
// not deduplicate across polls.
//
// # Progress indicator
//
// Each Track call creates one progress.Indicator, starts it before the first
// poll and stops it exactly once when the loop ends, whichever way it ends.
// The tracker writes the shared state.Store so the indicator can show the poll
// count. A second Track on the same Tracker while one is running gets ErrBusy.
package tracker
