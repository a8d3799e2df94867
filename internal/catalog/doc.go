// Package catalog is a client for the Subsonic REST API spoken by Nextcloud Music, Navidrome and Airsonic.
//
// # Requests
//
// Every call goes to {baseUrl}:{port}/{basePath}/{view}.view and carries the fixed parameters
// apiKey, v, c and f=json from [Credentials]. Caller parameters are passed as [Params]; a nil value,
// a nil pointer or an empty string is left out of the query entirely. A [Repeated] list is encoded
// as one key=value pair per element, in caller order (songId on createPlaylist).
//
// # Responses
//
// The body is a single-key JSON object wrapping the envelope:
//
//	{"subsonic-response": {"status": "ok", "version": "1.16.1", "playlists": {...}}}
//
// [Client.Call] returns the unwrapped [Response] regardless of its status; use [CheckStatus] to
// decide whether its payload can be trusted. The typed views ([Client.GetPlaylists],
// [Client.Search2], ...) decode their payload at the boundary and turn a failed status into a
// [*RemoteStatusError].
//
// # Errors
//
//   - [*TransportError] : connection failure, timeout or HTTP status >= 400
//   - [*ProtocolError] : body is not a well-formed envelope, or a payload is missing/malformed
//   - [*RemoteStatusError] : envelope status is "failed"
//
// Each matches its sentinel in the shared package with [errors.Is].
package catalog
