package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/aarriolsal/spotify-nextcloud/internal/shared"
)

var testCredentials = map[string]string{
	"client_id":     "test_client_id",
	"client_secret": "test_client_secret",
}

// fakeSpotify serves a token endpoint and one playlist whose tracks are split into pages of the given sizes.
type fakeSpotify struct {
	t          *testing.T
	server     *httptest.Server
	playlistID string
	name       string
	pages      []int
	nullAt     map[int]bool
	tokenHits  atomic.Int32
	pageHits   atomic.Int32
	rejectAuth bool
	lastAuth   atomic.Value
}

func newFakeSpotify(t *testing.T, playlistID, name string, pages ...int) *fakeSpotify {
	t.Helper()
	f := &fakeSpotify{t: t, playlistID: playlistID, name: name, pages: pages, nullAt: map[int]bool{}}
	f.server = httptest.NewUnstartedServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

// service starts the server, so the fake must be fully configured before it is called.
func (f *fakeSpotify) service(t *testing.T) *SpotifyService {
	t.Helper()
	if f.server.URL == "" {
		f.server.Start()
	}
	srv, err := NewSpotifyService(testCredentials, WithSpotifyEndpoints(f.server.URL+"/v1", f.server.URL+"/api/token"))
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return srv
}

func (f *fakeSpotify) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.URL.Path == "/api/token":
		f.tokenHits.Add(1)
		if f.rejectAuth {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		w.Write([]byte(`{"access_token":"cc-token","token_type":"bearer","expires_in":3600}`))
		return
	case r.URL.Path == "/v1/playlists/"+f.playlistID:
		f.lastAuth.Store(r.Header.Get("Authorization"))
		if got := r.URL.Query().Get("fields"); got != "id,name" {
			f.t.Errorf("expected fields=id,name, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"id": f.playlistID, "name": f.name})
		return
	case r.URL.Path == "/v1/playlists/"+f.playlistID+"/tracks":
		f.pageHits.Add(1)
		f.lastAuth.Store(r.Header.Get("Authorization"))
		f.writePage(w, r)
		return
	}

	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"error":{"status":404,"message":"Resource not found"}}`))
}

func (f *fakeSpotify) writePage(w http.ResponseWriter, r *http.Request) {
	if got := r.URL.Query().Get("limit"); got != "100" {
		f.t.Errorf("expected limit=100, got %q", got)
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	offset := 0
	for i := 0; i < page; i++ {
		offset += f.pages[i]
	}

	items := make([]map[string]any, 0, f.pages[page])
	for i := 0; i < f.pages[page]; i++ {
		n := offset + i
		if f.nullAt[n] {
			items = append(items, map[string]any{"track": nil})
			continue
		}
		items = append(items, map[string]any{"track": map[string]any{"id": fmt.Sprintf("t%d", n), "name": fmt.Sprintf("Song %d", n)}})
	}

	var next any
	if page+1 < len(f.pages) {
		next = fmt.Sprintf("%s/v1/playlists/%s/tracks?limit=100&page=%d", f.server.URL, f.playlistID, page+1)
	}
	json.NewEncoder(w).Encode(map[string]any{"items": items, "next": next, "offset": offset, "limit": 100})
}

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			srv, err := NewSpotifyService(map[string]string{
				"client_id":     "test_client_id",
				"client_secret": "test_client_secret",
				"redirect_uri":  "http://localhost:9999/callback",
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.Name() != "Spotify" {
				t.Errorf("expected service name 'Spotify', got %s", srv.Name())
			}
			if srv.config.RedirectURL != "http://localhost:9999/callback" {
				t.Errorf("unexpected redirect %s", srv.config.RedirectURL)
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_secret": "test_client_secret"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_id": "test_client_id"})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Default Redirect URI", func(t *testing.T) {
			srv, err := NewSpotifyService(testCredentials)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if srv.config.RedirectURL != "http://127.0.0.1:3000/callback" {
				t.Errorf("expected default redirect URI, got %s", srv.config.RedirectURL)
			}
		})
	})

	t.Run("Get AuthURL", func(t *testing.T) {
		srv, err := NewSpotifyService(testCredentials)
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		authURL := srv.GetAuthURL("test_state")
		for _, want := range []string{"accounts.spotify.com", "test_client_id", "test_state", "playlist-read-private"} {
			if !strings.Contains(authURL, want) {
				t.Errorf("auth URL %q should contain %q", authURL, want)
			}
		}
	})

	t.Run("Exchange Auth Code", func(t *testing.T) {
		fake := newFakeSpotify(t, "pl1", "Mix", 1)
		srv := fake.service(t)

		token, err := srv.Exchange(context.Background(), "auth-code")
		if err != nil {
			t.Fatalf("Exchange() error = %v", err)
		}
		if token.AccessToken != "cc-token" {
			t.Errorf("unexpected access token %q", token.AccessToken)
		}
		if _, err := srv.ReadPlaylist(context.Background(), "pl1"); err != nil {
			t.Fatalf("ReadPlaylist() error = %v", err)
		}
		if got := fake.lastAuth.Load(); got != "Bearer cc-token" {
			t.Errorf("expected exchanged token on requests, got %v", got)
		}
	})

	t.Run("Exchange Rejected", func(t *testing.T) {
		fake := newFakeSpotify(t, "pl1", "Mix", 1)
		fake.rejectAuth = true
		srv := fake.service(t)

		if _, err := srv.Exchange(context.Background(), "auth-code"); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("Token Before Authenticate", func(t *testing.T) {
		srv, _ := NewSpotifyService(testCredentials)
		if _, err := srv.Token(); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestReadPlaylist(t *testing.T) {
	t.Run("Follows Pagination", func(t *testing.T) {
		fake := newFakeSpotify(t, "37i9dQZF1DX", "Road Trip", 100, 100, 37)
		srv := fake.service(t)

		playlist, err := srv.ReadPlaylist(context.Background(), "https://open.spotify.com/playlist/37i9dQZF1DX?si=abc123")
		if err != nil {
			t.Fatalf("ReadPlaylist() error = %v", err)
		}

		if len(playlist.Tracks) != 237 {
			t.Fatalf("expected 237 tracks, got %d", len(playlist.Tracks))
		}
		if playlist.Name != "Road Trip" || playlist.ID != "37i9dQZF1DX" {
			t.Errorf("unexpected playlist metadata %+v", playlist)
		}
		for i, want := range map[int]string{0: "Song 0", 99: "Song 99", 100: "Song 100", 236: "Song 236"} {
			if playlist.Tracks[i].Title != want {
				t.Errorf("track %d = %q, want %q", i, playlist.Tracks[i].Title, want)
			}
		}
		if fake.pageHits.Load() != 3 {
			t.Errorf("expected 3 page requests, got %d", fake.pageHits.Load())
		}
		if fake.tokenHits.Load() != 1 {
			t.Errorf("expected the client-credentials token to be fetched once, got %d", fake.tokenHits.Load())
		}
		if got := fake.lastAuth.Load(); got != "Bearer cc-token" {
			t.Errorf("expected bearer cc-token, got %v", got)
		}
	})

	t.Run("Skips Null Tracks", func(t *testing.T) {
		fake := newFakeSpotify(t, "pl", "Gaps", 3)
		fake.nullAt[1] = true
		srv := fake.service(t)

		playlist, err := srv.ReadPlaylist(context.Background(), "spotify:playlist:pl")
		if err != nil {
			t.Fatalf("ReadPlaylist() error = %v", err)
		}
		titles := playlist.Titles()
		if len(titles) != 2 || titles[0] != "Song 0" || titles[1] != "Song 2" {
			t.Errorf("unexpected titles %v", titles)
		}
	})

	t.Run("Empty Playlist", func(t *testing.T) {
		fake := newFakeSpotify(t, "empty", "Nothing", 0)
		playlist, err := fake.service(t).ReadPlaylist(context.Background(), "empty")
		if err != nil {
			t.Fatalf("ReadPlaylist() error = %v", err)
		}
		if len(playlist.Tracks) != 0 {
			t.Errorf("expected no tracks, got %d", len(playlist.Tracks))
		}
	})

	t.Run("Not Found", func(t *testing.T) {
		fake := newFakeSpotify(t, "pl", "Exists", 1)
		_, err := fake.service(t).ReadPlaylist(context.Background(), "https://open.spotify.com/playlist/missing")

		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Message != "Resource not found" {
			t.Errorf("expected API error detail, got %v", err)
		}
	})

	t.Run("Token Rejected", func(t *testing.T) {
		fake := newFakeSpotify(t, "pl", "Locked", 1)
		fake.rejectAuth = true

		_, err := fake.service(t).ReadPlaylist(context.Background(), "pl")
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("Stored User Token", func(t *testing.T) {
		fake := newFakeSpotify(t, "pl", "Private", 1)
		srv := fake.service(t)
		if err := srv.Authenticate(context.Background(), map[string]string{"access_token": "user-token"}); err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}

		if _, err := srv.ReadPlaylist(context.Background(), "pl"); err != nil {
			t.Fatalf("ReadPlaylist() error = %v", err)
		}
		if got := fake.lastAuth.Load(); got != "Bearer user-token" {
			t.Errorf("expected user token, got %v", got)
		}
		if fake.tokenHits.Load() != 0 {
			t.Errorf("token endpoint should not be called, got %d hits", fake.tokenHits.Load())
		}
	})

	t.Run("Invalid Reference", func(t *testing.T) {
		srv, _ := NewSpotifyService(testCredentials)
		if _, err := srv.ReadPlaylist(context.Background(), "  "); !shared.IsValidation(err) {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}

func TestPlaylistID(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr bool
	}{
		{name: "share link with query", ref: "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=1a2b3c", want: "37i9dQZF1DXcBWIGoYBM5M"},
		{name: "share link", ref: "https://open.spotify.com/playlist/abc", want: "abc"},
		{name: "trailing slash", ref: "https://open.spotify.com/playlist/abc/", want: "abc"},
		{name: "no scheme", ref: "open.spotify.com/playlist/abc?si=x", want: "abc"},
		{name: "uri", ref: "spotify:playlist:abc", want: "abc"},
		{name: "bare id", ref: "abc", want: "abc"},
		{name: "surrounding space", ref: "  abc\n", want: "abc"},
		{name: "track uri", ref: "spotify:track:abc", wantErr: true},
		{name: "empty", ref: "", wantErr: true},
		{name: "only slash", ref: "https://open.spotify.com/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PlaylistID(tt.ref)
			if (err != nil) != tt.wantErr {
				t.Fatalf("PlaylistID(%q) error = %v, wantErr %v", tt.ref, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
			if got != tt.want {
				t.Errorf("PlaylistID(%q) = %q, want %q", tt.ref, got, tt.want)
			}
		})
	}
}
