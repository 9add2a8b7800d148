// Package progress renders the "still working" indicator shown while a
// request is tracked.
//
// On a terminal, Spinner runs a small bubbletea program with a bubbles
// spinner, the request label and the poll counter. Progress lines from the
// daemon are printed above it. Elsewhere (pipes, files, CI logs) Lines
// prints the label once and the progress lines as plain text.
package progress
