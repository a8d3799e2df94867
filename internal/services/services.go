// package services defines the source playlist readers (Spotify)
package services

import (
	"context"
	"net/url"
	"strings"

	"github.com/aarriolsal/spotify-nextcloud/internal/models"
	"github.com/aarriolsal/spotify-nextcloud/internal/shared"
)

// SourceReader reads the ordered tracks of a streaming-service playlist.
type SourceReader interface {
	// ReadPlaylist resolves ref (a share URL, URI or bare id) and returns every track, following pagination.
	ReadPlaylist(ctx context.Context, ref string) (*models.SourcePlaylist, error)
}

// PlaylistID extracts the playlist id from a share link, a spotify:playlist:<id> URI or a bare id.
//
// For links the id is the final path segment with any query or fragment removed.
func PlaylistID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", &shared.ValidationError{Field: "reference", Reason: "playlist reference is empty"}
	}

	if rest, ok := strings.CutPrefix(ref, "spotify:"); ok {
		parts := strings.Split(rest, ":")
		if len(parts) == 2 && parts[0] == "playlist" && parts[1] != "" {
			return parts[1], nil
		}
		return "", &shared.ValidationError{Field: "reference", Reason: "not a playlist URI: " + ref}
	}

	path := ref
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" {
		path = u.Path
	} else if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	path = strings.TrimRight(path, "/")
	id := path[strings.LastIndex(path, "/")+1:]
	if id == "" {
		return "", &shared.ValidationError{Field: "reference", Reason: "no playlist id in " + ref}
	}
	return id, nil
}
