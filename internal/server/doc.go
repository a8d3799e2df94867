// Package server provides HTTP routing, middleware, and the OAuth callback used to authorize Spotify user access.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [RequestLogger] is the only middleware the callback server installs.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback flow.
//
// The handler validates the state parameter (CSRF protection), hands the code to a [CodeExchanger],
// and sends the result through a channel.
//
// It only processes one callback to prevent replay attacks.
//
// # Callback Server
//
// `spotify auth` starts a [CallbackServer] on the configured host and port (127.0.0.1:3000 by default),
// opens the browser on the authorization URL, and waits for the redirect. The server shuts down after
// the first callback or after [DefaultAuthTimeout].
//
// Without a stored user token the Spotify reader falls back to the client-credentials grant, which can only
// read public playlists.
package server
