package ui

import (
	"fmt"

	"github.com/aarriolsal/spotify-nextcloud/internal/formatter"
	"github.com/aarriolsal/spotify-nextcloud/internal/models"
	"github.com/charmbracelet/bubbles/list"
)

var (
	_ list.Item = runItem{}
	_ list.Item = trackItem{}
)

// runItem wraps [models.Run] to implement [list.Item].
type runItem struct {
	run *models.Run
}

func (i runItem) FilterValue() string { return i.run.Reference }
func (i runItem) Title() string {
	return fmt.Sprintf("#%d %s %s", i.run.Sequence, i.run.Mode, i.run.Reference)
}
func (i runItem) Description() string {
	desc := formatter.Outcome(i.run)
	if !i.run.StartedAt.IsZero() {
		desc = fmt.Sprintf("%s • %s", i.run.StartedAt.Format("2006-01-02 15:04"), desc)
	}
	return desc
}

// trackItem wraps [models.ResolvedTrack] to implement [list.Item].
type trackItem struct {
	track models.ResolvedTrack
}

func (i trackItem) FilterValue() string { return i.track.Name }
func (i trackItem) Title() string {
	if i.track.Resolved() {
		return "✓ " + i.track.Name
	}
	return "✗ " + i.track.Name
}
func (i trackItem) Description() string {
	if i.track.Resolved() {
		return "catalog id " + i.track.CatalogID
	}
	return i.track.Reason
}

func trackItems(tracks []models.ResolvedTrack) []list.Item {
	items := make([]list.Item, len(tracks))
	for i, t := range tracks {
		items[i] = trackItem{track: t}
	}
	return items
}
