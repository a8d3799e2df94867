// Spotify Web API implementation of [SourceReader]
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/aarriolsal/spotify-nextcloud/internal/models"
	"github.com/aarriolsal/spotify-nextcloud/internal/shared"
	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// Spotify caps playlist item pages at 100.
	tracksPageSize = 100
)

// APIError is a non-2xx answer from a streaming-service API.
type APIError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s API error: status %d: %s", e.Service, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s API error: status %d", e.Service, e.StatusCode)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case shared.ErrTransport:
		return true
	case shared.ErrAuthFailed:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case shared.ErrPlaylistNotFound:
		return e.StatusCode == http.StatusNotFound
	case shared.ErrServiceUnavailable:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// SpotifyTrack is the subset of a track object the reader keeps.
type SpotifyTrack struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyPlaylistItem is one entry of a playlist's tracks page. Track is nil for removed items.
type SpotifyPlaylistItem struct {
	AddedAt string        `json:"added_at"`
	IsLocal bool          `json:"is_local"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyTracksPage is a page of playlist items.
type SpotifyTracksPage struct {
	Items  []SpotifyPlaylistItem `json:"items"`
	Total  int                   `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
	Next   *string               `json:"next"`
}

// SpotifyPlaylist holds the playlist metadata requested with fields=id,name.
type SpotifyPlaylist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type spotifyErrorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// SpotifyService reads playlists from the Spotify Web API.
//
// Uses the client-credentials grant unless a user token is supplied through [SpotifyService.Authenticate].
type SpotifyService struct {
	config   *oauth2.Config
	cc       *clientcredentials.Config
	baseURL  string
	logger   *log.Logger
	base     *http.Client
	mu       sync.Mutex
	client   *http.Client
	tokenSrc oauth2.TokenSource
}

// SpotifyOption configures a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithSpotifyEndpoints overrides the API base URL and the token endpoint.
func WithSpotifyEndpoints(apiBase, tokenURL string) SpotifyOption {
	return func(s *SpotifyService) {
		if apiBase != "" {
			s.baseURL = strings.TrimRight(apiBase, "/")
		}
		if tokenURL != "" {
			s.config.Endpoint.TokenURL = tokenURL
			s.cc.TokenURL = tokenURL
		}
	}
}

// WithSpotifyHTTPClient sets the HTTP client used for API and token requests.
func WithSpotifyHTTPClient(hc *http.Client) SpotifyOption {
	return func(s *SpotifyService) {
		if hc != nil {
			s.base = hc
		}
	}
}

// WithSpotifyLogger sets the logger.
func WithSpotifyLogger(l *log.Logger) SpotifyOption {
	return func(s *SpotifyService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSpotifyService creates a Spotify reader from client_id, client_secret and redirect_uri credentials.
func NewSpotifyService(credentials map[string]string, opts ...SpotifyOption) (*SpotifyService, error) {
	clientID := credentials["client_id"]
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret := credentials["client_secret"]
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := credentials["redirect_uri"]
	if redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/callback"
	}

	s := &SpotifyService{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       []string{"playlist-read-private", "playlist-read-collaborative"},
			Endpoint:     oauth2.Endpoint{AuthURL: spotifyAuthURL, TokenURL: spotifyTokenURL},
		},
		cc: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     spotifyTokenURL,
		},
		baseURL: spotifyBaseURL,
		logger:  shared.NopLogger(),
		base:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the authorization URL the user visits to grant playlist read access.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Authenticate selects how requests are authorized.
//
// Recognized keys: "access_token" (with optional "refresh_token") for a stored user token, or
// "auth_code" to exchange a code from the OAuth callback. With neither, the client-credentials
// grant is used.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.base)

	switch {
	case credentials["auth_code"] != "":
		if _, err := s.Exchange(ctx, credentials["auth_code"]); err != nil {
			return err
		}
	case credentials["access_token"] != "" || credentials["refresh_token"] != "":
		token := &oauth2.Token{
			AccessToken:  credentials["access_token"],
			RefreshToken: credentials["refresh_token"],
			TokenType:    credentials["token_type"],
		}
		s.useTokenSource(ctx, s.config.TokenSource(ctx, token))
	default:
		s.useTokenSource(ctx, s.cc.TokenSource(ctx))
	}
	return nil
}

// Exchange trades an authorization code from the OAuth callback for a user token and starts using it.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.base)
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	// the callback request context ends before the token needs refreshing
	bg := context.WithoutCancel(ctx)
	s.useTokenSource(bg, s.config.TokenSource(bg, token))
	return token, nil
}

// UseToken authorizes requests with a previously stored user token, refreshing it when it expires.
func (s *SpotifyService) UseToken(ctx context.Context, token *oauth2.Token) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.base)
	s.useTokenSource(ctx, s.config.TokenSource(ctx, token))
}

func (s *SpotifyService) useTokenSource(ctx context.Context, src oauth2.TokenSource) {
	src = oauth2.ReuseTokenSource(nil, src)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenSrc = src
	s.client = oauth2.NewClient(ctx, src)
}

// Token returns the current token, fetching or refreshing it if needed.
func (s *SpotifyService) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	src := s.tokenSrc
	s.mu.Unlock()
	if src == nil {
		return nil, fmt.Errorf("%w: call Authenticate first", shared.ErrMissingCredentials)
	}
	return src.Token()
}

// httpClient returns the authorized client, defaulting to the client-credentials grant.
func (s *SpotifyService) httpClient() *http.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, s.base)
		s.tokenSrc = oauth2.ReuseTokenSource(nil, s.cc.TokenSource(ctx))
		s.client = oauth2.NewClient(ctx, s.tokenSrc)
	}
	return s.client
}

// get fetches endpoint (relative to the API base, or an absolute "next" link) into result.
func (s *SpotifyService) get(ctx context.Context, endpoint string, result any) error {
	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		apiURL = s.baseURL + endpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient().Do(req)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return fmt.Errorf("%w: token request rejected: %v", shared.ErrAuthFailed, re)
		}
		return fmt.Errorf("%w: spotify request failed: %v", shared.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", shared.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Service: s.Name(), StatusCode: resp.StatusCode}
		var eb spotifyErrorBody
		if json.Unmarshal(body, &eb) == nil {
			apiErr.Message = eb.Error.Message
		}
		return apiErr
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrProtocol, err)
	}
	return nil
}

// Playlist retrieves the id and name of a playlist.
func (s *SpotifyService) Playlist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error) {
	var playlist SpotifyPlaylist
	endpoint := fmt.Sprintf("/playlists/%s?fields=id,name", url.PathEscape(playlistID))
	if err := s.get(ctx, endpoint, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// PlaylistTracks returns every track of a playlist in order, following "next" links until exhausted.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string) ([]SpotifyTrack, error) {
	var tracks []SpotifyTrack
	next := fmt.Sprintf("/playlists/%s/tracks?limit=%d", url.PathEscape(playlistID), tracksPageSize)

	for page := 1; next != ""; page++ {
		var resp SpotifyTracksPage
		if err := s.get(ctx, next, &resp); err != nil {
			return nil, fmt.Errorf("tracks page %d: %w", page, err)
		}

		for i, item := range resp.Items {
			if item.Track == nil || item.Track.Name == "" {
				s.logger.Debug("skipping playlist item without track", "playlist", playlistID, "page", page, "index", i)
				continue
			}
			tracks = append(tracks, *item.Track)
		}

		next = ""
		if resp.Next != nil {
			next = *resp.Next
		}
	}
	return tracks, nil
}

// ReadPlaylist implements [SourceReader].
func (s *SpotifyService) ReadPlaylist(ctx context.Context, ref string) (*models.SourcePlaylist, error) {
	id, err := PlaylistID(ref)
	if err != nil {
		return nil, err
	}

	meta, err := s.Playlist(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read playlist %s: %w", id, err)
	}

	tracks, err := s.PlaylistTracks(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read tracks of playlist %s: %w", id, err)
	}

	out := &models.SourcePlaylist{ID: id, Name: meta.Name, Tracks: make([]models.Track, len(tracks))}
	for i, t := range tracks {
		out.Tracks[i] = models.Track{Title: t.Name}
	}

	s.logger.Info("read source playlist", "id", id, "name", meta.Name, "tracks", len(out.Tracks))
	return out, nil
}
