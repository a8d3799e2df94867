package main

import (
	"context"
	"fmt"

	"github.com/aarriolsal/spotify-nextcloud/internal/formatter"
	"github.com/aarriolsal/spotify-nextcloud/internal/shared"
	"github.com/aarriolsal/spotify-nextcloud/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"
)

// HistoryList prints recorded runs, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	runs, err := r.runRepository()
	if err != nil {
		return err
	}

	criteria := map[string]any{"limit": cmd.Int("limit")}
	if cmd.Bool("failed") {
		criteria["failed"] = true
	}
	if ref := cmd.String("reference"); ref != "" {
		criteria["reference"] = ref
	}

	list, err := runs.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("tui") {
		if _, err := tea.NewProgram(ui.NewHistoryModel(list, runs), tea.WithContext(ctx)).Run(); err != nil {
			return fmt.Errorf("error running TUI: %w", err)
		}
		return nil
	}
	if cmd.Bool("json") {
		return r.writeJSON(list, cmd.Bool("pretty"))
	}

	if len(list) == 0 {
		return r.writePlain("No runs recorded yet\n")
	}
	for _, run := range list {
		r.writePlain("#%-4d %s  %-8s %s\n", run.Sequence, run.StartedAt.Format("2006-01-02 15:04"), run.Mode, run.Reference)
		r.writePlain("      %s\n", formatter.Outcome(run))
	}
	return nil
}

// HistoryShow renders one run in the requested report format.
//
// The run may be named by id, unique id prefix or sequence number.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	key := cmd.StringArg("run")
	if key == "" {
		return fmt.Errorf("%w: run id or number is required", shared.ErrMissingArgument)
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	runs, err := r.runRepository()
	if err != nil {
		return err
	}
	run, err := runs.Find(key)
	if err != nil {
		return err
	}

	if cmd.IsSet("output") {
		path, err := formatter.WriteReport(run, cmd.String("output"), format)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Report written to %s\n", path)
	}

	data, err := formatter.Render(run, format)
	if err != nil {
		return err
	}
	_, err = r.output.Write(data)
	return err
}
