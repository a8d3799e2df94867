package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/aarriolsal/spotify-nextcloud/internal/formatter"
	"github.com/aarriolsal/spotify-nextcloud/internal/models"
	"github.com/aarriolsal/spotify-nextcloud/internal/shared"
	"github.com/aarriolsal/spotify-nextcloud/internal/tasks"
	"github.com/aarriolsal/spotify-nextcloud/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"
)

// Download fetches a reference into the library and rescans it.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	return r.runMode(ctx, cmd, tasks.ModeDownload)
}

// Complete downloads a playlist and recreates it on the catalog server.
func (r *Runner) Complete(ctx context.Context, cmd *cli.Command) error {
	return r.runMode(ctx, cmd, tasks.ModeComplete)
}

// Playlist recreates a playlist from music already in the library.
func (r *Runner) Playlist(ctx context.Context, cmd *cli.Command) error {
	return r.runMode(ctx, cmd, tasks.ModePlaylist)
}

func (r *Runner) runMode(ctx context.Context, cmd *cli.Command, mode tasks.Mode) error {
	req := tasks.Request{
		Reference: strings.TrimSpace(cmd.StringArg("ref")),
		Mode:      mode,
	}
	if req.Reference == "" {
		return fmt.Errorf("%w: a Spotify reference is required", shared.ErrMissingArgument)
	}
	if mode != tasks.ModeDownload {
		req.Playlist = models.Playlist{Name: cmd.String("name"), ID: cmd.String("playlist-id")}
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	if cmd.Bool("tui") {
		fileLogger, err := shared.NewFileLogger("./tmp/spotcloud-tui.log")
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		r.SetLogger(fileLogger)
	}

	acq, err := r.acquisition(ctx, cmd.Bool("replace"))
	if err != nil {
		return err
	}

	var result *tasks.RunResult
	var runErr error
	if cmd.Bool("tui") {
		result, runErr = r.runTUI(ctx, acq, req)
	} else {
		result, runErr = r.runConsole(ctx, acq, req)
	}

	if result != nil && cmd.IsSet("report") {
		path, err := formatter.WriteReport(r.storedRun(result), cmd.String("report"), format)
		if err != nil {
			r.logger.Warn("failed to write report", "error", err)
		} else {
			r.writePlain("Report written to %s\n", path)
		}
	}
	return runErr
}

// storedRun prefers the recorded run, which carries the history sequence number.
func (r *Runner) storedRun(result *tasks.RunResult) *models.Run {
	if r.runs != nil {
		if run, err := r.runs.Get(result.RunID); err == nil {
			return run
		}
	}
	return result.Record()
}

// runConsole prints progress lines while the run is going, then a summary.
func (r *Runner) runConsole(ctx context.Context, runner tasks.Runner, req tasks.Request) (*tasks.RunResult, error) {
	r.logger.Info("starting run", "mode", req.Mode, "reference", req.Reference)
	r.writePlain("Starting %s run for %s\n\n", req.Mode, req.Reference)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for update := range progressCh {
			r.printProgress(update)
		}
	}()

	result, err := runner.Run(ctx, req, progressCh)
	close(progressCh)
	<-printed

	if result == nil {
		return nil, err
	}
	r.printSummary(result)
	return result, err
}

func (r *Runner) printProgress(update tasks.ProgressUpdate) {
	switch update.Stage {
	case tasks.Downloading:
		r.writePlain("⬇ %s\n", update.Message)
	case tasks.Transferring:
		r.writePlain("📦 %s\n", update.Message)
	case tasks.Rescanning:
		r.writePlain("🔄 %s\n", update.Message)
	case tasks.Resolving:
		if update.Step == 0 {
			r.writePlain("\n🔍 %s\n", update.Message)
		} else {
			r.writePlain("   %s\n", update.Message)
		}
	case tasks.PlaylistCreating:
		r.writePlain("\n📝 %s\n", update.Message)
	case tasks.Completed, tasks.Failed:
	default:
		r.writePlain("%s\n", update.Message)
	}
}

func (r *Runner) printSummary(result *tasks.RunResult) {
	r.writePlain("\n")
	r.writePlainHeader(result.Summary())
	if result.RunID != "" {
		r.writePlain("Run: %s\n", result.RunID)
	}
	if p := result.Playlist; p != nil {
		r.writePlain("Playlist: %s (ID: %s)\n", p.Name, p.PlaylistID)
	}
	if n := len(result.Files); n > 0 {
		r.writePlain("Files: %d\n", n)
	}

	if missing := result.Unresolved(); len(missing) > 0 {
		r.writePlain("\nNot found (%d):\n", len(missing))
		for _, track := range missing {
			r.writePlain("  - %s (%s)\n", track.Name, track.Reason)
		}
	}
}

// runTUI hands the run to the progress TUI.
func (r *Runner) runTUI(ctx context.Context, runner tasks.Runner, req tasks.Request) (*tasks.RunResult, error) {
	model := ui.NewModel(ctx, runner, req)
	if _, err := tea.NewProgram(model, tea.WithContext(ctx)).Run(); err != nil {
		return nil, fmt.Errorf("error running TUI: %w", err)
	}

	result, err := model.Result()
	if result == nil && err == nil {
		r.writePlain("Cancelled\n")
	}
	return result, err
}
