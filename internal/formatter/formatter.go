// package formatter renders run reports in various formats (plain text, Markdown, CSV, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aarriolsal/spotify-nextcloud/internal/models"
	"github.com/aarriolsal/spotify-nextcloud/internal/shared"
)

// Format is a report output format.
type Format string

const (
	Text     Format = "txt"
	Markdown Format = "md"
	CSV      Format = "csv"
	JSON     Format = "json"
)

// ParseFormat accepts a format name or a file extension. Empty means [Text].
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "txt", "text":
		return Text, nil
	case "md", "markdown":
		return Markdown, nil
	case "csv":
		return CSV, nil
	case "json":
		return JSON, nil
	}
	return "", &shared.ValidationError{Field: "format", Reason: fmt.Sprintf("unsupported format %q (txt, md, csv, json)", s)}
}

// Render converts run to the given format.
func Render(run *models.Run, format Format) ([]byte, error) {
	switch format {
	case Text, "":
		return ExportToText(run)
	case Markdown:
		return ExportToMarkdown(run)
	case CSV:
		return ExportToCSV(run)
	case JSON:
		return ExportToJSON(run)
	}
	return nil, &shared.ValidationError{Field: "format", Reason: fmt.Sprintf("unsupported format %q", format)}
}

// Outcome is the one-line result of a run as shown in reports.
func Outcome(run *models.Run) string {
	switch {
	case run.Failed():
		if run.Error != "" {
			return fmt.Sprintf("Failed at %s: %s", run.FailedStage, run.Error)
		}
		return fmt.Sprintf("Failed at %s", run.FailedStage)
	case run.Stage == "completed" && run.Mode == "download":
		return fmt.Sprintf("Completed: %d files transferred", run.Files)
	case run.Stage == "completed":
		return fmt.Sprintf("Completed: %d/%d tracks added", run.Resolved, run.Total)
	}
	return "In progress: " + run.Stage
}

// ExportToCSV converts the run's tracks to CSV with columns: Position, Name, CatalogID, Status, Reason
func ExportToCSV(run *models.Run) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Name", "CatalogID", "Status", "Reason"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, track := range run.Tracks {
		record := []string{
			strconv.Itoa(i + 1),
			track.Name,
			track.CatalogID,
			trackStatus(track),
			track.Reason,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a run to a Markdown report with a section listing the unresolved tracks
func ExportToMarkdown(run *models.Run) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Run #%d\n\n", run.Sequence)
	fmt.Fprintf(&buf, "**Reference**: %s\n", run.Reference)
	fmt.Fprintf(&buf, "**Mode**: %s\n", run.Mode)
	fmt.Fprintf(&buf, "**Outcome**: %s\n", Outcome(run))
	if run.PlaylistName != "" || run.PlaylistID != "" {
		fmt.Fprintf(&buf, "**Playlist**: %s\n", playlistLabel(run))
	}
	if run.Files > 0 {
		fmt.Fprintf(&buf, "**Files**: %d\n", run.Files)
	}
	fmt.Fprintf(&buf, "**Started**: %s\n", run.StartedAt.Format(time.RFC3339))
	if d := run.Duration(); d > 0 {
		fmt.Fprintf(&buf, "**Duration**: %s\n", FormatDuration(d))
	}
	buf.WriteString("\n")

	if len(run.Tracks) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("## Tracks\n\n")
	for i, track := range run.Tracks {
		mark := "x"
		if !track.Resolved() {
			mark = " "
		}
		fmt.Fprintf(&buf, "%d. [%s] %s\n", i+1, mark, track.Name)
	}

	if missing := models.Unresolved(run.Tracks); len(missing) > 0 {
		buf.WriteString("\n## Not Found\n\n")
		for _, track := range missing {
			fmt.Fprintf(&buf, "- %s", track.Name)
			if track.Reason != "" {
				fmt.Fprintf(&buf, " (%s)", track.Reason)
			}
			buf.WriteString("\n")
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts a run to plain text format
func ExportToText(run *models.Run) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Run: #%d (%s)\n", run.Sequence, run.RunID)
	fmt.Fprintf(&buf, "Reference: %s\n", run.Reference)
	fmt.Fprintf(&buf, "Mode: %s\n", run.Mode)
	if run.PlaylistName != "" || run.PlaylistID != "" {
		fmt.Fprintf(&buf, "Playlist: %s\n", playlistLabel(run))
	}
	fmt.Fprintf(&buf, "%s\n", Outcome(run))

	if missing := models.Unresolved(run.Tracks); len(missing) > 0 {
		fmt.Fprintf(&buf, "\nNot found (%d):\n", len(missing))
		for i, track := range missing {
			fmt.Fprintf(&buf, "%d. %s\n", i+1, track.Name)
		}
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts a run to indented JSON
func ExportToJSON(run *models.Run) ([]byte, error) {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteReport renders run and writes it to path.
//
// Defaults to run-{sequence}.{format} as the filename.
func WriteReport(run *models.Run, path string, format Format) (string, error) {
	if format == "" {
		format = Text
	}
	if path == "" {
		path = fmt.Sprintf("run-%d.%s", run.Sequence, format)
	}

	data, err := Render(run, format)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	return path, nil
}

// FormatDuration renders d as m:ss, or h:mm:ss past an hour.
func FormatDuration(d time.Duration) string {
	total := int(d.Round(time.Second) / time.Second)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func trackStatus(t models.ResolvedTrack) string {
	if t.Resolved() {
		return "resolved"
	}
	return "unresolved"
}

func playlistLabel(run *models.Run) string {
	switch {
	case run.PlaylistName != "" && run.PlaylistID != "":
		return fmt.Sprintf("%s (ID: %s)", run.PlaylistName, run.PlaylistID)
	case run.PlaylistName != "":
		return run.PlaylistName
	}
	return "ID " + run.PlaylistID
}
