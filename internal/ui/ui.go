package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/aarriolsal/spotify-nextcloud/internal/models"
	"github.com/aarriolsal/spotify-nextcloud/internal/tasks"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// View represents the current view state
type View int

const (
	ConfirmView View = iota
	RunView
	ResultView
)

// maxLogLines bounds the scrolling message log in [RunView].
const maxLogLines = 8

// Model is the bubbletea model for monitoring a single acquisition run.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	runner tasks.Runner
	req    tasks.Request

	currentView View
	keys        keyMap
	help        help.Model
	spinner     spinner.Model
	bar         progress.Model
	tracks      list.Model

	progressChan chan tasks.ProgressUpdate
	doneChan     chan runOutcome

	current tasks.ProgressUpdate
	log     []string
	result  *tasks.RunResult
	err     error

	width  int
	height int
}

// NewModel creates a model that asks for confirmation before starting req.
func NewModel(ctx context.Context, runner tasks.Runner, req tasks.Request) *Model {
	ctx, cancel := context.WithCancel(ctx)

	tracks := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	tracks.Title = "Not Found"
	tracks.SetShowHelp(false)

	return &Model{
		ctx:         ctx,
		cancel:      cancel,
		runner:      runner,
		req:         req,
		currentView: ConfirmView,
		keys:        newKeyMap(),
		help:        help.New(),
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.active)),
		bar:         progress.New(progress.WithDefaultGradient()),
		tracks:      tracks,
	}
}

// Result returns the finished run, or nil while it is still going.
func (m *Model) Result() (*tasks.RunResult, error) {
	return m.result, m.err
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(msg.Width-4, 10)
		m.tracks.SetSize(msg.Width, max(msg.Height-8, 4))
		return m, nil
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case spinner.TickMsg:
		if m.currentView != RunView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case Msg:
		return m.handleMsg(msg)
	}
	return m, nil
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.currentView {
	case ConfirmView:
		switch {
		case key.Matches(msg, m.keys.yes), key.Matches(msg, m.keys.enter):
			m.currentView = RunView
			return m, m.startRun()
		case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.quit), key.Matches(msg, m.keys.back):
			m.cancel()
			return m, tea.Quit
		}
	case RunView:
		if key.Matches(msg, m.keys.quit) {
			m.cancel()
			return m, tea.Quit
		}
	case ResultView:
		if key.Matches(msg, m.keys.quit) || key.Matches(msg, m.keys.back) {
			m.cancel()
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.tracks, cmd = m.tracks.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.current = update
		if update.Message != "" {
			m.log = append(m.log, update.Message)
			if len(m.log) > maxLogLines {
				m.log = m.log[len(m.log)-maxLogLines:]
			}
		}
		return m, waitForProgress(m.progressChan, m.doneChan)
	case MsgRunComplete:
		out := msg.data.(runOutcome)
		m.result = out.result
		m.err = out.err
		if m.result != nil {
			m.tracks.SetItems(trackItems(m.result.Unresolved()))
		}
		m.currentView = ResultView
		return m, nil
	}
	return m, nil
}

// startRun launches the run in a goroutine.
//
// The result is handed over on doneChan before the progress channel is closed, so
// [waitForProgress] always finds it once progress drains.
func (m *Model) startRun() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 64)
	m.doneChan = make(chan runOutcome, 1)

	go func(progress chan tasks.ProgressUpdate, done chan<- runOutcome) {
		result, err := m.runner.Run(m.ctx, m.req, progress)
		done <- runOutcome{result: result, err: err}
		close(progress)
	}(m.progressChan, m.doneChan)

	return tea.Batch(m.spinner.Tick, waitForProgress(m.progressChan, m.doneChan))
}

// waitForProgress listens for the next progress update, or the final outcome once the channel closes
func waitForProgress(progress <-chan tasks.ProgressUpdate, done <-chan runOutcome) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-progress
		if !ok {
			out := <-done
			return runCompleteMsg(out.result, out.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) View() string {
	switch m.currentView {
	case ConfirmView:
		return m.renderConfirm()
	case RunView:
		return m.renderRun()
	case ResultView:
		return m.renderResult()
	}
	return ""
}

func (m *Model) renderConfirm() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Start run?"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Reference: %s\n", m.req.Reference)
	fmt.Fprintf(&b, "Mode:      %s\n", m.req.Mode)
	if target := playlistTarget(m.req.Playlist); target != "" {
		fmt.Fprintf(&b, "Playlist:  %s\n", target)
	}
	b.WriteString("\nStages:\n")
	for _, stage := range m.req.Mode.Stages() {
		fmt.Fprintf(&b, "  • %s\n", stage)
	}
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no}))
	return b.String()
}

func (m *Model) renderRun() string {
	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("%s %s", m.req.Mode, m.req.Reference)))
	b.WriteString("\n")
	b.WriteString(m.renderStages())
	b.WriteString("\n")

	if m.current.Total > 0 {
		b.WriteString(m.bar.ViewAs(float64(m.current.Step) / float64(m.current.Total)))
		b.WriteString("\n\n")
	}

	for _, line := range m.log {
		b.WriteString(styles.help.Render(line))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	return b.String()
}

// renderStages lists the mode's stages, marking finished ones and spinning on the active one.
func (m *Model) renderStages() string {
	var b strings.Builder
	for _, stage := range m.req.Mode.Stages() {
		switch {
		case stage < m.current.Stage:
			b.WriteString(styles.success.Render("✓ " + stage.String()))
		case stage == m.current.Stage:
			b.WriteString(m.spinner.View() + " " + styles.active.Render(stage.String()))
		default:
			b.WriteString(styles.help.Render("  " + stage.String()))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderResult() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Run finished"))
	b.WriteString("\n")

	switch {
	case m.result == nil && m.err != nil:
		b.WriteString(styles.error.Render(m.err.Error()))
		b.WriteString("\n")
	case m.result.Stage == tasks.Failed:
		b.WriteString(styles.error.Render(m.result.Summary()))
		b.WriteString("\n")
	default:
		b.WriteString(styles.success.Render(m.result.Summary()))
		b.WriteString("\n")
		if p := m.result.Playlist; p != nil {
			fmt.Fprintf(&b, "Playlist ID: %s\n", p.PlaylistID)
		}
	}

	if m.result != nil && len(m.result.Unresolved()) > 0 {
		b.WriteString("\n")
		b.WriteString(styles.warning.Render(fmt.Sprintf("%d tracks not found", len(m.result.Unresolved()))))
		b.WriteString("\n")
		b.WriteString(m.tracks.View())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.up, m.keys.down, m.keys.quit}))
	return b.String()
}

func playlistTarget(p models.Playlist) string {
	switch {
	case p.ID != "" && p.Name != "":
		return fmt.Sprintf("%s (ID: %s)", p.Name, p.ID)
	case p.ID != "":
		return "ID " + p.ID
	}
	return p.Name
}
