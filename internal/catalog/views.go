package catalog

import (
	"context"
	"strings"

	"github.com/aarriolsal/spotify-nextcloud/internal/shared"
)

// PlaylistRequest describes a createPlaylist call: PlaylistID replaces, Name creates.
type PlaylistRequest struct {
	PlaylistID string
	Name       string
	SongIDs    []string
}

// Validate enforces that exactly one of PlaylistID and Name is set.
func (r PlaylistRequest) Validate() error {
	id, name := strings.TrimSpace(r.PlaylistID), strings.TrimSpace(r.Name)
	switch {
	case id != "" && name != "":
		return &shared.ValidationError{Field: "playlistId", Reason: "cannot be combined with name"}
	case id == "" && name == "":
		return &shared.ValidationError{Field: "name", Reason: "either a name or a playlistId is required"}
	}
	return nil
}

// SearchQuery holds the search2 parameters. Zero counts fall back to [DefaultSearchCounts].
type SearchQuery struct {
	Query         string
	ArtistCount   int
	ArtistOffset  int
	AlbumCount    int
	AlbumOffset   int
	SongCount     int
	SongOffset    int
	MusicFolderID string
}

// Default search2 bounds used for track resolution.
const (
	DefaultArtistCount = 1
	DefaultAlbumCount  = 1
	DefaultSongCount   = 5
)

func (q SearchQuery) params() Params {
	orDefault := func(v, d int) int {
		if v <= 0 {
			return d
		}
		return v
	}
	return Params{
		"query":         q.Query,
		"artistCount":   orDefault(q.ArtistCount, DefaultArtistCount),
		"artistOffset":  q.ArtistOffset,
		"albumCount":    orDefault(q.AlbumCount, DefaultAlbumCount),
		"albumOffset":   q.AlbumOffset,
		"songCount":     orDefault(q.SongCount, DefaultSongCount),
		"songOffset":    q.SongOffset,
		"musicFolderId": q.MusicFolderID,
	}
}

// GetPlaylists lists saved playlists. An empty username lists the authenticated user's playlists.
func (c *Client) GetPlaylists(ctx context.Context, username string) ([]PlaylistSummary, error) {
	resp, err := c.do(ctx, "getPlaylists", Params{"username": username}, nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Playlist List[PlaylistSummary] `json:"playlist"`
	}
	if err := resp.Decode("playlists", &payload); err != nil {
		return nil, err
	}
	return payload.Playlist, nil
}

// FindPlaylistByName returns the first playlist named name, or nil when there is none.
func (c *Client) FindPlaylistByName(ctx context.Context, name string) (*PlaylistSummary, error) {
	playlists, err := c.GetPlaylists(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range playlists {
		if playlists[i].Name == name {
			return &playlists[i], nil
		}
	}
	return nil, nil
}

// GetPlaylist returns a playlist with its entries.
func (c *Client) GetPlaylist(ctx context.Context, id string) (*PlaylistDetail, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &shared.ValidationError{Field: "id", Reason: "playlist id is required"}
	}

	resp, err := c.do(ctx, "getPlaylist", Params{"id": id}, nil)
	if err != nil {
		return nil, err
	}

	var detail PlaylistDetail
	if err := resp.Decode("playlist", &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// CreatePlaylist creates a playlist (Name) or replaces the songs of an existing one (PlaylistID).
//
// The request is validated before any network traffic. The returned detail is nil on servers that
// do not echo the playlist back.
func (c *Client) CreatePlaylist(ctx context.Context, req PlaylistRequest) (*PlaylistDetail, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	params := Params{"playlistId": strings.TrimSpace(req.PlaylistID), "name": strings.TrimSpace(req.Name)}
	resp, err := c.do(ctx, "createPlaylist", params, &Repeated{Key: "songId", Values: req.SongIDs})
	if err != nil {
		return nil, err
	}

	if !resp.Has("playlist") {
		return nil, nil
	}
	var detail PlaylistDetail
	if err := resp.Decode("playlist", &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// DeletePlaylist removes a saved playlist.
func (c *Client) DeletePlaylist(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return &shared.ValidationError{Field: "id", Reason: "playlist id is required"}
	}
	_, err := c.do(ctx, "deletePlaylist", Params{"id": id}, nil)
	return err
}

// Search2 searches artists, albums and songs.
func (c *Client) Search2(ctx context.Context, q SearchQuery) (*SearchResult2, error) {
	if strings.TrimSpace(q.Query) == "" {
		return nil, &shared.ValidationError{Field: "query", Reason: "search query is required"}
	}

	resp, err := c.do(ctx, "search2", q.params(), nil)
	if err != nil {
		return nil, err
	}

	var result SearchResult2
	if !resp.Has("searchResult2") {
		return &result, nil
	}
	if err := resp.Decode("searchResult2", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StartScan asks the server to re-index its libraries.
//
// The returned status is zero-valued when the server does not report one.
func (c *Client) StartScan(ctx context.Context) (*ScanStatus, error) {
	resp, err := c.do(ctx, "startScan", nil, nil)
	if err != nil {
		return nil, err
	}

	var status ScanStatus
	if key := scanStatusKey(resp); key != "" {
		if err := resp.Decode(key, &status); err != nil {
			return nil, err
		}
	}
	return &status, nil
}

// GetScanStatus reports whether an index run is in progress.
func (c *Client) GetScanStatus(ctx context.Context) (*ScanStatus, error) {
	resp, err := c.do(ctx, "getScanStatus", nil, nil)
	if err != nil {
		return nil, err
	}

	key := scanStatusKey(resp)
	if key == "" {
		key = "scanStatus"
	}
	var status ScanStatus
	if err := resp.Decode(key, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func scanStatusKey(resp *Response) string {
	for _, key := range []string{"scanStatus", "scanstatus"} {
		if resp.Has(key) {
			return key
		}
	}
	return ""
}
