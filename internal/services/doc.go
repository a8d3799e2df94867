// Package services reads playlists from streaming services.
//
// # Source Reader
//
// [SourceReader] is the only contract the sync pipeline depends on: given a playlist reference it
// returns the track titles in playlist order. [PlaylistID] normalizes references (share links,
// spotify: URIs, bare ids) before any request is made.
//
// # Spotify Implementation
//
// [SpotifyService] talks to the Spotify Web API. Without a stored user token it authenticates
// with the client-credentials grant, which is enough for public playlists. After `spotcloud
// spotify auth` the user token is used instead; the [oauth2.Client] refreshes it automatically
// and [SpotifyService.Token] exposes the refreshed token so it can be saved.
//
// Track pages are requested with limit=100 and followed through their "next" link until it is
// null. Items whose track is null (removed or local tracks) are skipped.
//
// # Error Handling
//
// HTTP failures are reported as [*APIError], which matches:
//   - [shared.ErrTransport] : always
//   - [shared.ErrAuthFailed] : 401 and 403
//   - [shared.ErrPlaylistNotFound] : 404
//   - [shared.ErrServiceUnavailable] : 429 and 5xx
package services
