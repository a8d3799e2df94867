package models

import (
	"strings"
	"time"

	"github.com/aarriolsal/spotify-nextcloud/internal/shared"
)

// Model defines the base interface for persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the data access operations for a model type.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// Track is a source-playlist entry. Only the display title survives reading.
type Track struct {
	Title string `json:"title"`
}

// SourcePlaylist is a streaming-service playlist with its tracks in playlist order.
type SourcePlaylist struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Tracks []Track `json:"tracks"`
}

// Titles returns the track titles in order.
func (p *SourcePlaylist) Titles() []string {
	titles := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		titles[i] = t.Title
	}
	return titles
}

// ResolvedTrack pairs a source title with the catalog song found for it.
//
// An empty CatalogID means unresolved; Reason then says why.
type ResolvedTrack struct {
	Name      string `json:"name"`
	CatalogID string `json:"catalog_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Resolved reports whether a catalog song was found.
func (r ResolvedTrack) Resolved() bool {
	return r.CatalogID != ""
}

// ResolvedIDs returns the catalog ids of the resolved tracks, in order, skipping gaps.
func ResolvedIDs(tracks []ResolvedTrack) []string {
	ids := make([]string, 0, len(tracks))
	for _, t := range tracks {
		if t.Resolved() {
			ids = append(ids, t.CatalogID)
		}
	}
	return ids
}

// Unresolved returns the tracks without a catalog id.
func Unresolved(tracks []ResolvedTrack) []ResolvedTrack {
	var out []ResolvedTrack
	for _, t := range tracks {
		if !t.Resolved() {
			out = append(out, t)
		}
	}
	return out
}

// Playlist is a target-catalog playlist to materialize.
//
// Exactly one of ID and Name is set: ID replaces that playlist's contents, Name creates a new one.
type Playlist struct {
	ID       string   `json:"id,omitempty"`
	Name     string   `json:"name,omitempty"`
	TrackIDs []string `json:"track_ids"`
}

// Validate enforces that exactly one of ID and Name is present.
func (p Playlist) Validate() error {
	id, name := strings.TrimSpace(p.ID), strings.TrimSpace(p.Name)
	switch {
	case id != "" && name != "":
		return &shared.ValidationError{Field: "playlistId", Reason: "cannot be combined with name"}
	case id == "" && name == "":
		return &shared.ValidationError{Field: "name", Reason: "either a name or a playlistId is required"}
	}
	return nil
}

// Replaces reports whether materializing p overwrites an existing playlist.
func (p Playlist) Replaces() bool {
	return strings.TrimSpace(p.ID) != ""
}
