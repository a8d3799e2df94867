package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/aarriolsal/spotify-nextcloud/internal/catalog"
	"github.com/aarriolsal/spotify-nextcloud/internal/models"
	"github.com/aarriolsal/spotify-nextcloud/internal/shared"
	"github.com/charmbracelet/log"
)

// PlaylistWriter is the catalog surface the materializer needs.
type PlaylistWriter interface {
	CreatePlaylist(ctx context.Context, req catalog.PlaylistRequest) (*catalog.PlaylistDetail, error)
	FindPlaylistByName(ctx context.Context, name string) (*catalog.PlaylistSummary, error)
}

// MaterializeResult describes the playlist that now exists in the catalog.
type MaterializeResult struct {
	PlaylistID string `json:"playlist_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Replaced   bool   `json:"replaced"`
	TrackCount int    `json:"track_count"`
}

// Materializer creates or fully replaces catalog playlists.
type Materializer struct {
	writer          PlaylistWriter
	replaceExisting bool
	logger          *log.Logger
}

// NewMaterializer creates a materializer. With replaceExisting, creating by name replaces the
// contents of an existing playlist of that name instead of adding a duplicate.
func NewMaterializer(writer PlaylistWriter, replaceExisting bool, logger *log.Logger) *Materializer {
	if logger == nil {
		logger = shared.NopLogger()
	}
	return &Materializer{writer: writer, replaceExisting: replaceExisting, logger: logger}
}

// Materialize writes p.TrackIDs, in order, to the playlist named by p.
//
// p is validated before any call is made. Remote failures carry the catalog's error detail.
func (m *Materializer) Materialize(ctx context.Context, p models.Playlist) (*MaterializeResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	req := catalog.PlaylistRequest{
		PlaylistID: strings.TrimSpace(p.ID),
		Name:       strings.TrimSpace(p.Name),
		SongIDs:    p.TrackIDs,
	}
	res := &MaterializeResult{PlaylistID: req.PlaylistID, Name: req.Name, Replaced: p.Replaces(), TrackCount: len(p.TrackIDs)}

	if req.Name != "" && m.replaceExisting {
		existing, err := m.writer.FindPlaylistByName(ctx, req.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to look up playlist %q: %w", req.Name, err)
		}
		if existing != nil {
			m.logger.Info("replacing existing playlist", "name", req.Name, "id", existing.ID)
			req = catalog.PlaylistRequest{PlaylistID: existing.ID, SongIDs: p.TrackIDs}
			res.PlaylistID = existing.ID
			res.Replaced = true
		}
	}

	detail, err := m.writer.CreatePlaylist(ctx, req)
	if err != nil {
		target := req.Name
		if target == "" {
			target = req.PlaylistID
		}
		return nil, fmt.Errorf("failed to write playlist %q: %w", target, err)
	}

	if detail != nil {
		if detail.ID != "" {
			res.PlaylistID = detail.ID
		}
		if detail.Name != "" {
			res.Name = detail.Name
		}
	}

	m.logger.Info("playlist written", "id", res.PlaylistID, "name", res.Name, "tracks", res.TrackCount, "replaced", res.Replaced)
	return res, nil
}
