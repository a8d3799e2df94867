package catalog

import (
	"bytes"
	"encoding/json"
)

// List decodes a JSON array, or a bare object standing for a one-element array, or null.
//
// Some servers collapse single-element lists into the element itself.
type List[T any] []T

func (l *List[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*l = nil
		return nil
	case data[0] == '[':
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}

	var item T
	if err := json.Unmarshal(data, &item); err != nil {
		return err
	}
	*l = List[T]{item}
	return nil
}

// PlaylistSummary is an entry of getPlaylists.
type PlaylistSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Owner     string `json:"owner,omitempty"`
	Public    bool   `json:"public,omitempty"`
	SongCount int    `json:"songCount"`
	Duration  int    `json:"duration"`
	Created   string `json:"created,omitempty"`
	Changed   string `json:"changed,omitempty"`
}

// PlaylistDetail is the payload of getPlaylist, and of createPlaylist on servers that echo the result.
type PlaylistDetail struct {
	PlaylistSummary
	Entry List[Song] `json:"entry"`
}

// SongIDs returns the ids of the playlist entries in order.
func (p *PlaylistDetail) SongIDs() []string {
	ids := make([]string, len(p.Entry))
	for i, s := range p.Entry {
		ids[i] = s.ID
	}
	return ids
}

// Song is a child entry as returned by search2 and getPlaylist.
type Song struct {
	ID          string `json:"id"`
	Parent      string `json:"parent,omitempty"`
	Title       string `json:"title"`
	Album       string `json:"album,omitempty"`
	Artist      string `json:"artist,omitempty"`
	Track       int    `json:"track,omitempty"`
	Year        int    `json:"year,omitempty"`
	Genre       string `json:"genre,omitempty"`
	Size        int64  `json:"size,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Suffix      string `json:"suffix,omitempty"`
	Duration    int    `json:"duration,omitempty"`
	BitRate     int    `json:"bitRate,omitempty"`
	Path        string `json:"path,omitempty"`
}

// Artist is an artist hit of search2.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Album is an album hit of search2. Older servers report the album name in Title.
type Album struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
}

// SearchResult2 is the payload of search2.
type SearchResult2 struct {
	Artist List[Artist] `json:"artist"`
	Album  List[Album]  `json:"album"`
	Song   List[Song]   `json:"song"`
}

// ScanStatus is the library indexing state reported by startScan and getScanStatus.
type ScanStatus struct {
	Scanning bool `json:"scanning"`
	Count    int  `json:"count"`
}
