// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

// globalFlags are inherited by every subcommand.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable debug logging",
		},
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
			Value: true,
		},
	}
}

// runFlags are shared by download, complete and playlist.
func runFlags(withPlaylist bool) []cli.Flag {
	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:  "tui",
			Usage: "Follow the run in the interactive terminal UI",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write a run report to FILE (default run-{n}.{format})",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Report format: txt, md, csv or json",
			Value:   "txt",
		},
	}
	if !withPlaylist {
		return flags
	}
	return append(flags,
		&cli.StringFlag{
			Name:  "name",
			Usage: "Name of the playlist to create (default: the Spotify playlist name)",
		},
		&cli.StringFlag{
			Name:  "playlist-id",
			Usage: "Replace the contents of an existing catalog playlist",
		},
		&cli.BoolFlag{
			Name:  "replace",
			Usage: "Replace a catalog playlist with the same name instead of adding another",
		},
	)
}

func refArgument() []cli.Argument {
	return []cli.Argument{&cli.StringArg{Name: "ref", UsageText: "Spotify URL, URI or id"}}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file and initialize the run history database",
		Action: r.Setup,
	}
}

func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "download",
		Aliases:   []string{"dl"},
		Usage:     "Download a track, album or playlist into the library and rescan it",
		ArgsUsage: "<ref>",
		Arguments: refArgument(),
		Flags:     runFlags(false),
		Action:    r.Download,
	}
}

func completeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "complete",
		Usage:     "Download a playlist, rescan the library and recreate the playlist on the catalog server",
		ArgsUsage: "<ref>",
		Arguments: refArgument(),
		Flags:     runFlags(true),
		Action:    r.Complete,
	}
}

func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "playlist",
		Aliases:   []string{"pl"},
		Usage:     "Recreate a Spotify playlist from songs already in the library",
		ArgsUsage: "<ref>",
		Arguments: refArgument(),
		Flags:     runFlags(true),
		Action:    r.Playlist,
	}
}

// catalogCommand handles direct catalog server operations
func catalogCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Subsonic-compatible catalog server operations",
		Commands: []*cli.Command{
			{
				Name:   "ping",
				Usage:  "Check that the server is reachable and the API key is accepted",
				Action: r.CatalogPing,
			},
			{
				Name:  "playlists",
				Usage: "List playlists",
				Flags: append(outputFlags(), &cli.StringFlag{
					Name:  "user",
					Usage: "List another user's playlists (admin only)",
				}),
				Action: r.CatalogPlaylists,
			},
			{
				Name:      "show",
				Usage:     "Show a playlist and its songs",
				ArgsUsage: "<id>",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     outputFlags(),
				Action:    r.CatalogShow,
			},
			{
				Name:      "search",
				Usage:     "Search songs the way track resolution does",
				ArgsUsage: "<query>",
				Arguments: []cli.Argument{&cli.StringArg{Name: "query"}},
				Flags: append(outputFlags(), &cli.IntFlag{
					Name:  "songs",
					Usage: "Maximum number of songs to return",
					Value: 5,
				}),
				Action: r.CatalogSearch,
			},
			{
				Name:      "delete",
				Usage:     "Delete a playlist",
				ArgsUsage: "<id>",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.CatalogDelete,
			},
			{
				Name:  "scan",
				Usage: "Start a library rescan",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "wait",
						Usage: "Wait until the scan finishes",
					},
				},
				Action: r.CatalogScan,
			},
		},
	}
}

// spotifyCommand handles Spotify operations
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify source operations",
		Commands: []*cli.Command{
			{
				Name:  "auth",
				Usage: "Authorize access to private playlists using OAuth2",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser redirect",
						Value: 2 * time.Minute,
					},
				},
				Action: r.SpotifyAuth,
			},
			{
				Name:      "tracks",
				Usage:     "List the tracks of a playlist",
				ArgsUsage: "<ref>",
				Arguments: refArgument(),
				Flags:     outputFlags(),
				Action:    r.SpotifyTracks,
			},
		},
	}
}

// historyCommand lists and shows recorded runs
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded runs",
		Flags: append(outputFlags(),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to list",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "failed",
				Usage: "Only list failed runs",
			},
			&cli.StringFlag{
				Name:  "reference",
				Usage: "Only list runs for this reference",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Browse runs in the interactive terminal UI",
			},
		),
		Action: r.HistoryList,
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Show a run with its per-track outcome",
				ArgsUsage: "<run>",
				Arguments: []cli.Argument{&cli.StringArg{Name: "run", UsageText: "run id, id prefix or number"}},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: txt, md, csv or json",
						Value:   "txt",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the report to a file instead of stdout",
					},
				},
				Action: r.HistoryShow,
			},
		},
	}
}
