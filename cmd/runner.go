package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aarriolsal/spotify-nextcloud/internal/catalog"
	"github.com/aarriolsal/spotify-nextcloud/internal/repositories"
	"github.com/aarriolsal/spotify-nextcloud/internal/services"
	"github.com/aarriolsal/spotify-nextcloud/internal/shared"
	"github.com/aarriolsal/spotify-nextcloud/internal/tasks"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Services are built on first use so that commands like `setup` work before the config is complete.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer

	catalog  *catalog.Client
	source   services.SourceReader
	spotify  *services.SpotifyService
	executor tasks.Executor
	runs     *repositories.RunRepository
	db       *sql.DB
	locks    *tasks.KeyedLock
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Catalog    *catalog.Client
	Source     services.SourceReader
	Executor   tasks.Executor
	Runs       *repositories.RunRepository
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		catalog:    opts.Catalog,
		source:     opts.Source,
		executor:   opts.Executor,
		runs:       opts.Runs,
		locks:      tasks.NewKeyedLock(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, downloadCommand, completeCommand, playlistCommand,
		catalogCommand, spotifyCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Load reads the config file named by --config (defaults when it does not exist) and applies --verbose.
//
// Used as the root command's Before hook.
func (r *Runner) Load(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	r.configPath = cmd.String("config")
	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}
	r.config.ApplyEnv()
	return ctx, nil
}

// SetLogger replaces the logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// Close releases the history database.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Runner) catalogClient() (*catalog.Client, error) {
	if r.catalog != nil {
		return r.catalog, nil
	}
	if err := r.config.Validate(); err != nil {
		return nil, err
	}
	r.catalog = catalog.NewClientFromConfig(r.config.Catalog, shared.WithLogger(r.logger, "component", "catalog"))
	return r.catalog, nil
}

// spotifyService builds the Spotify reader, authorized with the stored user token when there is one.
func (r *Runner) spotifyService(ctx context.Context) (*services.SpotifyService, error) {
	if r.spotify != nil {
		return r.spotify, nil
	}
	creds := r.config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: credentials.spotify client_id and client_secret must be set", shared.ErrMissingCredentials)
	}

	svc, err := services.NewSpotifyService(creds.Map(), services.WithSpotifyLogger(shared.WithLogger(r.logger, "component", "spotify")))
	if err != nil {
		return nil, fmt.Errorf("failed to create Spotify service: %w", err)
	}
	if token := creds.Token(); token != nil {
		svc.UseToken(ctx, token)
	}
	r.spotify = svc
	return svc, nil
}

func (r *Runner) sourceReader(ctx context.Context) (services.SourceReader, error) {
	if r.source != nil {
		return r.source, nil
	}
	svc, err := r.spotifyService(ctx)
	if err != nil {
		return nil, err
	}
	r.source = svc
	return svc, nil
}

// runRepository opens the history database, running migrations on first use.
func (r *Runner) runRepository() (*repositories.RunRepository, error) {
	if r.runs != nil {
		return r.runs, nil
	}
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, err
	}
	r.db = db
	r.runs = repositories.NewRunRepository(db)
	return r.runs, nil
}

// acquisition wires the orchestrator from the config.
//
// A history database that cannot be opened only disables run recording.
func (r *Runner) acquisition(ctx context.Context, replace bool) (*tasks.Acquisition, error) {
	client, err := r.catalogClient()
	if err != nil {
		return nil, err
	}
	source, err := r.sourceReader(ctx)
	if err != nil {
		return nil, err
	}
	policy, err := tasks.PolicyByName(r.config.Resolver.Policy)
	if err != nil {
		return nil, err
	}

	executor := r.executor
	if executor == nil {
		executor = tasks.NewCommandExecutor(r.config.Acquisition.CommandTimeout.Duration, shared.WithLogger(r.logger, "component", "exec"))
	}

	counts := tasks.SearchCounts{
		Artist: r.config.Resolver.ArtistCount,
		Album:  r.config.Resolver.AlbumCount,
		Song:   r.config.Resolver.SongCount,
	}
	logger := shared.WithLogger(r.logger, "component", "acquisition")

	opts := []tasks.AcquisitionOption{
		tasks.WithResolver(tasks.NewResolver(client, counts, policy, logger)),
		tasks.WithMaterializer(tasks.NewMaterializer(client, replace || r.config.Acquisition.ReplacePlaylist, logger)),
		tasks.WithLocks(r.locks),
		tasks.WithAcquisitionLogger(logger),
	}
	if runs, err := r.runRepository(); err != nil {
		r.logger.Warn("run history disabled", "error", err)
	} else {
		opts = append(opts, tasks.WithRecorder(runs))
	}

	return tasks.NewAcquisition(r.config.Acquisition, r.config.Rescan, executor, client, source, opts...), nil
}

// saveTokens stores a user token in the config and writes it to the config file when one is set.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	if r.config == nil {
		return fmt.Errorf("%w: config is nil", shared.ErrMissingConfig)
	}
	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}
	if r.configPath == "" {
		return nil
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
