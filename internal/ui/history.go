package ui

import (
	"fmt"
	"strings"

	"github.com/aarriolsal/spotify-nextcloud/internal/formatter"
	"github.com/aarriolsal/spotify-nextcloud/internal/models"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

// RunLoader loads a stored run with its tracks.
type RunLoader interface {
	Get(id string) (*models.Run, error)
}

const (
	RunListView View = iota + ResultView + 1
	RunDetailView
)

// HistoryModel browses past runs and their per-track outcomes.
type HistoryModel struct {
	loader      RunLoader
	currentView View
	keys        keyMap
	help        help.Model
	runs        list.Model
	tracks      list.Model
	selected    *models.Run
	err         error
}

// NewHistoryModel lists runs, newest first as given.
func NewHistoryModel(runs []*models.Run, loader RunLoader) *HistoryModel {
	items := make([]list.Item, len(runs))
	for i, run := range runs {
		items[i] = runItem{run: run}
	}

	runList := list.New(items, list.NewDefaultDelegate(), 0, 0)
	runList.Title = "Runs"

	trackList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	trackList.SetShowHelp(false)

	return &HistoryModel{
		loader:      loader,
		currentView: RunListView,
		keys:        newKeyMap(),
		help:        help.New(),
		runs:        runList,
		tracks:      trackList,
	}
}

func (m *HistoryModel) Init() tea.Cmd {
	return nil
}

func (m *HistoryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.runs.SetSize(msg.Width, msg.Height-2)
		m.tracks.SetSize(msg.Width, max(msg.Height-6, 4))
		return m, nil
	case Msg:
		if msg.kind == MsgRunLoaded {
			loaded := msg.data.(runLoaded)
			m.err = loaded.err
			if loaded.err == nil {
				m.selected = loaded.run
				m.tracks.Title = fmt.Sprintf("Run #%d", loaded.run.Sequence)
				m.tracks.SetItems(trackItems(loaded.run.Tracks))
				m.currentView = RunDetailView
			}
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}
	return m, nil
}

func (m *HistoryModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.currentView {
	case RunListView:
		if m.runs.FilterState() == list.Filtering {
			m.runs, cmd = m.runs.Update(msg)
			return m, cmd
		}
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.enter):
			if item, ok := m.runs.SelectedItem().(runItem); ok {
				return m, loadRun(m.loader, item.run.RunID)
			}
			return m, nil
		}
		m.runs, cmd = m.runs.Update(msg)
	case RunDetailView:
		switch {
		case key.Matches(msg, m.keys.back):
			m.currentView = RunListView
			m.selected = nil
			return m, nil
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		}
		m.tracks, cmd = m.tracks.Update(msg)
	}
	return m, cmd
}

func loadRun(loader RunLoader, id string) tea.Cmd {
	return func() tea.Msg {
		run, err := loader.Get(id)
		return runLoadedMsg(run, err)
	}
}

func (m *HistoryModel) View() string {
	var b strings.Builder
	switch m.currentView {
	case RunListView:
		b.WriteString(m.runs.View())
		if m.err != nil {
			b.WriteString("\n")
			b.WriteString(styles.error.Render(m.err.Error()))
		}
	case RunDetailView:
		run := m.selected
		style := styles.success
		if run.Failed() {
			style = styles.error
		}
		b.WriteString(styles.title.Render(run.Reference))
		b.WriteString("\n")
		b.WriteString(style.Render(formatter.Outcome(run)))
		b.WriteString("\n")
		if d := run.Duration(); d > 0 {
			fmt.Fprintf(&b, "Duration: %s\n", formatter.FormatDuration(d))
		}
		b.WriteString("\n")
		b.WriteString(m.tracks.View())
		b.WriteString("\n")
		b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.up, m.keys.down, m.keys.back, m.keys.quit}))
	}
	return b.String()
}
