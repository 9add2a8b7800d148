// Package ui renders daemon results for the luna command line.
//
// # Presenter
//
// Presenter writes to two streams. Results and confirmations go to Out;
// errors go to Err prefixed with "ERROR :: ". The format is one of:
//
//   - table: lipgloss tables with the active theme's colors
//   - json:  indented JSON of the raw daemon records
//   - yaml:  the same records as YAML
//
// List renders a collection sorted by name with a per-resource column set.
// Show renders one record as a field/value table. Nested values are printed
// as compact JSON in both.
//
// # Themes
//
// Themes map semantic roles (text, muted, accent, success, warning, danger)
// to colors. Cells whose value names a known state, such as "on", "off" or
// "failed", are colored by StatusColor. The theme is stored in the user's
// preferences and cycled with `luna prefs set theme next`.
package ui
