package main

import (
	"context"
	"fmt"

	"github.com/aarriolsal/spotify-nextcloud/internal/server"
	"github.com/aarriolsal/spotify-nextcloud/internal/shared"
	"github.com/urfave/cli/v3"
)

// SpotifyAuth performs the OAuth2 authorization code flow so private playlists can be read.
//
// Starts a local HTTP server, opens browser for user authorization, and stores the exchanged tokens in the config file.
func (r *Runner) SpotifyAuth(ctx context.Context, cmd *cli.Command) error {
	spotify, err := r.spotifyService(ctx)
	if err != nil {
		return err
	}

	state, err := shared.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate state token: %w", err)
	}

	handler := server.NewOAuthHandler(spotify, state)
	callback := server.NewCallbackServer(r.config.Server, handler, shared.WithLogger(r.logger, "component", "oauth"))
	if err := callback.Start(); err != nil {
		return err
	}

	authURL := spotify.GetAuthURL(state)
	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	timeout := cmd.Duration("timeout")
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	token, err := callback.Wait(ctx, timeout)
	if err != nil {
		return err
	}
	if err := r.saveTokens(token); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n", r.configPath)
	return nil
}

// SpotifyTracks prints the track titles of a playlist as the resolver will see them.
func (r *Runner) SpotifyTracks(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.StringArg("ref")
	if ref == "" {
		return fmt.Errorf("%w: a Spotify reference is required", shared.ErrMissingArgument)
	}
	source, err := r.sourceReader(ctx)
	if err != nil {
		return err
	}

	playlist, err := source.ReadPlaylist(ctx, ref)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(playlist, cmd.Bool("pretty"))
	}

	r.writePlain("Playlist: %s\n", playlist.Name)
	r.writePlain("Tracks: %d\n\n", len(playlist.Tracks))
	for i, track := range playlist.Tracks {
		r.writePlain("%d. %s\n", i+1, track.Title)
	}
	return nil
}
