package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aarriolsal/spotify-nextcloud/internal/catalog"
	"github.com/aarriolsal/spotify-nextcloud/internal/formatter"
	"github.com/aarriolsal/spotify-nextcloud/internal/shared"
	"github.com/urfave/cli/v3"
)

// CatalogPing checks that the server answers with status ok.
func (r *Runner) CatalogPing(ctx context.Context, cmd *cli.Command) error {
	client, err := r.catalogClient()
	if err != nil {
		return err
	}
	if !client.Ping(ctx) {
		return fmt.Errorf("%w: catalog server did not answer ping", shared.ErrServiceUnavailable)
	}
	return r.writePlain("✓ Catalog server is reachable\n")
}

// CatalogPlaylists lists the playlists visible to the API key.
func (r *Runner) CatalogPlaylists(ctx context.Context, cmd *cli.Command) error {
	client, err := r.catalogClient()
	if err != nil {
		return err
	}

	playlists, err := client.GetPlaylists(ctx, cmd.String("user"))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, p := range playlists {
		r.writePlain("%d. %s\n", i+1, p.Name)
		r.writePlain("   ID: %s\n", p.ID)
		r.writePlain("   Songs: %d (%s)\n", p.SongCount, formatter.FormatDuration(time.Duration(p.Duration)*time.Second))
		if p.Owner != "" {
			r.writePlain("   Owner: %s\n", p.Owner)
		}
		r.writePlain("\n")
	}
	return nil
}

// CatalogShow prints one playlist with its entries.
func (r *Runner) CatalogShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist id is required", shared.ErrMissingArgument)
	}
	client, err := r.catalogClient()
	if err != nil {
		return err
	}

	playlist, err := client.GetPlaylist(ctx, id)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(playlist, cmd.Bool("pretty"))
	}

	r.writePlainHeader(playlist.Name)
	r.writePlain("ID: %s\nSongs: %d\n\n", playlist.ID, len(playlist.Entry))
	for i, song := range playlist.Entry {
		r.writePlain("%d. %s\n", i+1, songLabel(song))
	}
	return nil
}

// CatalogSearch runs search2 with the resolver's bounds and prints the song hits.
func (r *Runner) CatalogSearch(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: search query is required", shared.ErrMissingArgument)
	}
	client, err := r.catalogClient()
	if err != nil {
		return err
	}

	result, err := client.Search2(ctx, catalog.SearchQuery{
		Query:       query,
		ArtistCount: r.config.Resolver.ArtistCount,
		AlbumCount:  r.config.Resolver.AlbumCount,
		SongCount:   int(cmd.Int("songs")),
	})
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}

	if len(result.Song) == 0 {
		return r.writePlain("No songs found for %q\n", query)
	}
	r.writePlain("Songs matching %q:\n\n", query)
	for i, song := range result.Song {
		r.writePlain("%d. %s\n   ID: %s\n", i+1, songLabel(song), song.ID)
	}
	return nil
}

// CatalogDelete removes a playlist from the server.
func (r *Runner) CatalogDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist id is required", shared.ErrMissingArgument)
	}
	client, err := r.catalogClient()
	if err != nil {
		return err
	}
	if err := client.DeletePlaylist(ctx, id); err != nil {
		return err
	}
	r.logger.Info("deleted playlist", "id", id)
	return r.writePlain("✓ Deleted playlist %s\n", id)
}

// CatalogScan starts a library rescan and optionally waits for it to finish.
func (r *Runner) CatalogScan(ctx context.Context, cmd *cli.Command) error {
	client, err := r.catalogClient()
	if err != nil {
		return err
	}

	status, err := client.StartScan(ctx)
	if err != nil {
		return err
	}
	r.writePlain("→ Scan started\n")
	if !cmd.Bool("wait") {
		return nil
	}

	interval := r.config.Rescan.PollInterval.Duration
	if interval <= 0 {
		interval = 2 * time.Second
	}
	timeout := r.config.Rescan.Timeout.Duration
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for status == nil || status.Scanning {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: scan still running after %s", shared.ErrTimeout, timeout)
		case <-ticker.C:
		}
		if status, err = client.GetScanStatus(ctx); err != nil {
			return err
		}
		if status != nil {
			r.logger.Debug("scan status", "scanning", status.Scanning, "count", status.Count)
		}
	}
	return r.writePlain("✓ Scan finished (%d items)\n", status.Count)
}

func songLabel(s catalog.Song) string {
	label := s.Title
	if s.Artist != "" {
		label = s.Artist + " - " + label
	}
	if s.Album != "" {
		label += " (" + s.Album + ")"
	}
	return label
}
