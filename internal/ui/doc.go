// Package ui implements interactive terminal interfaces using bubbletea's Elm architecture.
//
// [Model] drives a single acquisition run:
//  1. [ConfirmView] : Review the reference, mode and target playlist before starting
//  2. [RunView] : Follow the stage list, a progress bar and the latest messages
//  3. [ResultView] : Display the outcome and the tracks that were not found
//
// [HistoryModel] browses stored runs ([RunListView]) and the per-track outcome of one ([RunDetailView]).
//
// Both models receive their asynchronous results via the Msg union type. Progress updates flow through a
// channel from the [tasks.Runner], which never blocks on a slow terminal.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
