package ui

import (
	"github.com/aarriolsal/spotify-nextcloud/internal/models"
	"github.com/aarriolsal/spotify-nextcloud/internal/tasks"
	tea "github.com/charmbracelet/bubbletea"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgProgressUpdate MsgKind = iota
	MsgRunComplete
	MsgRunLoaded
)

type runOutcome struct {
	result *tasks.RunResult
	err    error
}

type runLoaded struct {
	run *models.Run
	err error
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// runCompleteMsg is the constructor for [MsgRunComplete]
func runCompleteMsg(result *tasks.RunResult, err error) Msg {
	return Msg{kind: MsgRunComplete, data: runOutcome{result: result, err: err}}
}

// runLoadedMsg is the constructor for [MsgRunLoaded]
func runLoadedMsg(run *models.Run, err error) Msg {
	return Msg{kind: MsgRunLoaded, data: runLoaded{run: run, err: err}}
}
