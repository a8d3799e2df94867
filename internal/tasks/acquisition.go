package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/aarriolsal/spotify-nextcloud/internal/catalog"
	"github.com/aarriolsal/spotify-nextcloud/internal/library"
	"github.com/aarriolsal/spotify-nextcloud/internal/models"
	"github.com/aarriolsal/spotify-nextcloud/internal/services"
	"github.com/aarriolsal/spotify-nextcloud/internal/shared"
	"github.com/charmbracelet/log"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultScanTimeout  = 5 * time.Minute
)

// Mode selects which stages a run goes through.
type Mode int

const (
	ModeDownload Mode = iota // download, transfer, rescan
	ModeComplete             // download, transfer, rescan, resolve, create playlist
	ModePlaylist             // resolve, create playlist
)

func (m Mode) String() string {
	switch m {
	case ModeDownload:
		return "download"
	case ModeComplete:
		return "complete"
	case ModePlaylist:
		return "playlist"
	default:
		return ""
	}
}

// ParseMode is the inverse of [Mode.String].
func ParseMode(s string) (Mode, error) {
	for m := ModeDownload; m <= ModePlaylist; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, &shared.ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", s)}
}

// Stages returns the working stages of m in execution order.
func (m Mode) Stages() []Stage {
	switch m {
	case ModeDownload:
		return []Stage{Downloading, Transferring, Rescanning}
	case ModeComplete:
		return []Stage{Downloading, Transferring, Rescanning, Resolving, PlaylistCreating}
	case ModePlaylist:
		return []Stage{Resolving, PlaylistCreating}
	default:
		return nil
	}
}

func (m Mode) createsPlaylist() bool {
	return m == ModeComplete || m == ModePlaylist
}

// Catalog is the media-server surface an acquisition run talks to.
type Catalog interface {
	Searcher
	PlaylistWriter
	StartScan(ctx context.Context) (*catalog.ScanStatus, error)
	GetScanStatus(ctx context.Context) (*catalog.ScanStatus, error)
}

// RunRecorder persists run records.
type RunRecorder interface {
	SaveRun(ctx context.Context, run *models.Run) error
}

// Runner executes acquisition runs.
type Runner interface {
	// Run drives req through its stages. The result is never nil; on failure err is a [*StageError].
	Run(ctx context.Context, req Request, progress chan<- ProgressUpdate) (*RunResult, error)
}

// Request is one user request to acquire music.
//
// Playlist names the target playlist for modes that create one. When both its ID and Name are
// empty the source playlist's name is used.
type Request struct {
	Reference string
	Mode      Mode
	Playlist  models.Playlist
}

// RunResult is the outcome of a run: Completed with counts, or Failed at FailedStage with Err.
type RunResult struct {
	RunID       string                 `json:"id"`
	Reference   string                 `json:"reference"`
	Mode        Mode                   `json:"-"`
	Stage       Stage                  `json:"-"`
	FailedStage Stage                  `json:"-"`
	Err         error                  `json:"-"`
	Source      *models.SourcePlaylist `json:"source,omitempty"`
	Tracks      []models.ResolvedTrack `json:"tracks,omitempty"`
	Playlist    *MaterializeResult     `json:"playlist,omitempty"`
	Files       []library.File         `json:"files,omitempty"`
	ScanCount   int                    `json:"scan_count,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	FinishedAt  time.Time              `json:"finished_at"`
}

// Resolved returns the number of tracks matched to catalog songs.
func (r *RunResult) Resolved() int {
	return len(models.ResolvedIDs(r.Tracks))
}

// Total returns the number of source tracks considered.
func (r *RunResult) Total() int {
	return len(r.Tracks)
}

// Unresolved returns the tracks left out of the playlist.
func (r *RunResult) Unresolved() []models.ResolvedTrack {
	return models.Unresolved(r.Tracks)
}

// Summary is the one-line outcome shown to the user.
func (r *RunResult) Summary() string {
	switch r.Stage {
	case Failed:
		return fmt.Sprintf("Failed at %s: %v", r.FailedStage, r.Err)
	case Completed:
		if r.Mode.createsPlaylist() {
			s := fmt.Sprintf("Completed: %d/%d tracks added", r.Resolved(), r.Total())
			if r.Playlist != nil && r.Playlist.Name != "" {
				s += fmt.Sprintf(" to %q", r.Playlist.Name)
			}
			return s
		}
		return fmt.Sprintf("Completed: %d files transferred", len(r.Files))
	default:
		return fmt.Sprintf("In progress: %s", r.Stage)
	}
}

// Record converts r to its persisted form.
func (r *RunResult) Record() *models.Run {
	run := &models.Run{
		RunID:     r.RunID,
		Reference: r.Reference,
		Mode:      r.Mode.String(),
		Stage:     r.Stage.String(),
		Total:     r.Total(),
		Resolved:  r.Resolved(),
		Files:     len(r.Files),
		Tracks:    r.Tracks,
		StartedAt: r.StartedAt,
	}
	if r.Stage == Failed {
		run.FailedStage = r.FailedStage.String()
		if r.Err != nil {
			run.Error = r.Err.Error()
		}
	}
	if r.Playlist != nil {
		run.PlaylistName = r.Playlist.Name
		run.PlaylistID = r.Playlist.PlaylistID
	}
	if !r.FinishedAt.IsZero() {
		finished := r.FinishedAt
		run.FinishedAt = &finished
	}
	return run
}

// Acquisition drives download → transfer → rescan → resolve → playlist runs.
type Acquisition struct {
	cfg          shared.AcquisitionConfig
	rescan       shared.RescanConfig
	exec         Executor
	catalog      Catalog
	source       services.SourceReader
	resolver     *Resolver
	materializer *Materializer
	locks        *KeyedLock
	recorder     RunRecorder
	logger       *log.Logger
}

// AcquisitionOption customizes an [Acquisition].
type AcquisitionOption func(*Acquisition)

// WithResolver replaces the default first-match resolver.
func WithResolver(r *Resolver) AcquisitionOption {
	return func(a *Acquisition) { a.resolver = r }
}

// WithMaterializer replaces the default materializer.
func WithMaterializer(m *Materializer) AcquisitionOption {
	return func(a *Acquisition) { a.materializer = m }
}

// WithLocks shares a lock set between acquisitions.
func WithLocks(l *KeyedLock) AcquisitionOption {
	return func(a *Acquisition) { a.locks = l }
}

// WithRecorder records every run.
func WithRecorder(r RunRecorder) AcquisitionOption {
	return func(a *Acquisition) { a.recorder = r }
}

// WithAcquisitionLogger sets the logger.
func WithAcquisitionLogger(l *log.Logger) AcquisitionOption {
	return func(a *Acquisition) { a.logger = l }
}

// NewAcquisition creates an orchestrator.
func NewAcquisition(cfg shared.AcquisitionConfig, rescan shared.RescanConfig, exec Executor, cat Catalog, source services.SourceReader, opts ...AcquisitionOption) *Acquisition {
	a := &Acquisition{
		cfg:     cfg,
		rescan:  rescan,
		exec:    exec,
		catalog: cat,
		source:  source,
		locks:   NewKeyedLock(),
		logger:  shared.NopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.resolver == nil {
		a.resolver = NewResolver(cat, DefaultSearchCounts(), FirstMatch{}, a.logger)
	}
	if a.materializer == nil {
		a.materializer = NewMaterializer(cat, cfg.ReplacePlaylist, a.logger)
	}
	return a
}

// Run implements [Runner].
func (a *Acquisition) Run(ctx context.Context, req Request, progress chan<- ProgressUpdate) (*RunResult, error) {
	res := &RunResult{
		RunID:     shared.GenerateID(),
		Reference: strings.TrimSpace(req.Reference),
		Mode:      req.Mode,
		Stage:     Received,
		StartedAt: time.Now(),
	}
	logger := a.logger.With("run", res.RunID)
	logger.Info("run received", "mode", req.Mode, "ref", res.Reference)

	if err := a.validate(req); err != nil {
		return a.finish(ctx, res, &StageError{Stage: Received, Err: err}, progress)
	}

	release, err := a.locks.Acquire(ctx, a.lockKeys(req)...)
	if err != nil {
		return a.finish(ctx, res, &StageError{Stage: Received, Err: err}, progress)
	}
	defer release()

	a.record(ctx, res)

	stages := req.Mode.Stages()
	for i, stage := range stages {
		res.Stage = stage
		sendProgress(progress, stageStartedUpdate(stage, i+1, len(stages), res.Reference))
		logger.Info("stage started", "stage", stage)

		if err := a.runStage(ctx, stage, req, res, progress); err != nil {
			return a.finish(ctx, res, err, progress)
		}
	}

	res.Stage = Completed
	return a.finish(ctx, res, nil, progress)
}

func (a *Acquisition) validate(req Request) error {
	if strings.TrimSpace(req.Reference) == "" {
		return &shared.ValidationError{Field: "reference", Reason: "a playlist or track reference is required"}
	}
	if len(req.Mode.Stages()) == 0 {
		return &shared.ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %d", req.Mode)}
	}
	if !req.Mode.createsPlaylist() {
		return nil
	}
	if _, err := services.PlaylistID(req.Reference); err != nil {
		return err
	}
	if strings.TrimSpace(req.Playlist.ID) != "" && strings.TrimSpace(req.Playlist.Name) != "" {
		return req.Playlist.Validate()
	}
	return nil
}

// lockKeys names the shared resources a run touches: the download directory and the target playlist.
func (a *Acquisition) lockKeys(req Request) []string {
	var keys []string
	if req.Mode != ModePlaylist {
		keys = append(keys, "dest:"+a.cfg.DownloadDir)
	}
	if req.Mode.createsPlaylist() {
		switch {
		case strings.TrimSpace(req.Playlist.ID) != "":
			keys = append(keys, "playlist:id:"+strings.TrimSpace(req.Playlist.ID))
		case strings.TrimSpace(req.Playlist.Name) != "":
			keys = append(keys, "playlist:name:"+strings.TrimSpace(req.Playlist.Name))
		default:
			id, _ := services.PlaylistID(req.Reference)
			keys = append(keys, "playlist:ref:"+id)
		}
	}
	return keys
}

// runStage runs one stage, turning failures and panics into a [*StageError].
func (a *Acquisition) runStage(ctx context.Context, stage Stage, req Request, res *RunResult, progress chan<- ProgressUpdate) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StageError{Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	switch stage {
	case Downloading:
		err = a.download(ctx, res, progress)
	case Transferring:
		err = a.transfer(ctx, res, progress)
	case Rescanning:
		err = a.rescanLibrary(ctx, res, progress)
	case Resolving:
		err = a.resolve(ctx, res, progress)
	case PlaylistCreating:
		err = a.createPlaylist(ctx, req, res, progress)
	default:
		err = fmt.Errorf("%w: no handler for stage %s", shared.ErrNotImplemented, stage)
	}

	if err != nil {
		return &StageError{Stage: stage, Err: err}
	}
	return nil
}

func (a *Acquisition) download(ctx context.Context, res *RunResult, progress chan<- ProgressUpdate) error {
	if err := os.MkdirAll(a.cfg.DownloadDir, 0o755); err != nil {
		return &library.FSError{Op: "mkdir", Path: a.cfg.DownloadDir, Err: err}
	}
	argv := expandCommand(a.cfg.DownloaderCmd, a.vars(res.Reference), tailArg{"{ref}", res.Reference})
	if len(argv) == 0 {
		return fmt.Errorf("%w: acquisition.downloader_cmd is empty", shared.ErrInvalidConfig)
	}
	return a.execute(ctx, Downloading, argv, progress)
}

func (a *Acquisition) transfer(ctx context.Context, res *RunResult, progress chan<- ProgressUpdate) error {
	files, err := library.Scan(ctx, a.cfg.DownloadDir)
	if err != nil {
		return err
	}
	res.Files = files
	stats := library.Summarize(files)
	sendProgress(progress, inventoryUpdate(stats.Files, stats.Untagged))
	if stats.Files == 0 {
		a.logger.Warn("no audio files found after download", "dir", a.cfg.DownloadDir)
	} else {
		a.logger.Info("download inventory", "files", stats.Files, "bytes", stats.Bytes, "untagged", stats.Untagged, "duration", stats.Duration)
	}

	argv := expandCommand(a.cfg.TransferCmd, a.vars(res.Reference),
		tailArg{"{download_dir}", strings.TrimSuffix(a.cfg.DownloadDir, "/") + "/"},
		tailArg{"{library_dir}", a.cfg.LibraryDir})
	if len(argv) == 0 {
		return fmt.Errorf("%w: acquisition.transfer_cmd is empty", shared.ErrInvalidConfig)
	}
	if err := a.execute(ctx, Transferring, argv, progress); err != nil {
		return err
	}

	if a.cfg.PruneEmptyDirs {
		removed, err := library.PruneEmptyDirs(a.cfg.DownloadDir)
		if err != nil {
			return err
		}
		a.logger.Debug("pruned empty directories", "count", len(removed))
	}
	return nil
}

func (a *Acquisition) rescanLibrary(ctx context.Context, res *RunResult, progress chan<- ProgressUpdate) error {
	useREST := true
	if a.rescan.Mode == "command" {
		argv := expandCommand(a.rescan.Command, a.vars(res.Reference))
		if len(argv) == 0 {
			return fmt.Errorf("%w: rescan.command is empty", shared.ErrInvalidConfig)
		}
		if err := a.execute(ctx, Rescanning, argv, progress); err != nil {
			return err
		}
		useREST = a.rescan.AlsoREST
	}

	if useREST {
		status, err := a.catalog.StartScan(ctx)
		if err != nil {
			return fmt.Errorf("failed to start catalog scan: %w", err)
		}
		if status != nil {
			res.ScanCount = status.Count
		}
	}

	if a.rescan.Wait {
		return a.waitForScan(ctx, res, progress)
	}
	return nil
}

// waitForScan polls the scan status until indexing finishes. Only cancellation of ctx is an error;
// a poll failure or the wait timeout lets the run continue with whatever is indexed.
func (a *Acquisition) waitForScan(ctx context.Context, res *RunResult, progress chan<- ProgressUpdate) error {
	interval := a.rescan.PollInterval.Duration
	if interval <= 0 {
		interval = defaultPollInterval
	}
	timeout := a.rescan.Timeout.Duration
	if timeout <= 0 {
		timeout = defaultScanTimeout
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := a.catalog.GetScanStatus(waitCtx)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			a.logger.Warn("scan status unavailable, continuing", "error", err)
			return nil
		case status == nil:
			return nil
		case !status.Scanning:
			res.ScanCount = status.Count
			a.logger.Info("catalog scan finished", "count", status.Count)
			return nil
		}

		res.ScanCount = status.Count
		sendProgress(progress, scanWaitUpdate(status.Count))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-waitCtx.Done():
			a.logger.Warn("catalog scan still running, continuing", "timeout", timeout, "count", status.Count)
			return nil
		case <-ticker.C:
		}
	}
}

func (a *Acquisition) resolve(ctx context.Context, res *RunResult, progress chan<- ProgressUpdate) error {
	src, err := a.source.ReadPlaylist(ctx, res.Reference)
	if err != nil {
		return err
	}
	res.Source = src
	sendProgress(progress, sourcePlaylistUpdate(src))

	res.Tracks = a.resolver.ResolveAll(ctx, src.Titles(), progress)
	if missing := res.Unresolved(); len(missing) > 0 {
		a.logger.Warn("some tracks were not found in the catalog", "unresolved", len(missing), "total", res.Total())
	}
	return nil
}

func (a *Acquisition) createPlaylist(ctx context.Context, req Request, res *RunResult, progress chan<- ProgressUpdate) error {
	target := models.Playlist{
		ID:       strings.TrimSpace(req.Playlist.ID),
		Name:     strings.TrimSpace(req.Playlist.Name),
		TrackIDs: models.ResolvedIDs(res.Tracks),
	}
	if target.ID == "" && target.Name == "" && res.Source != nil {
		target.Name = res.Source.Name
	}
	if len(target.TrackIDs) == 0 {
		a.logger.Warn("no tracks resolved, playlist will be empty", "total", res.Total())
	}

	mr, err := a.materializer.Materialize(ctx, target)
	if err != nil {
		return err
	}
	res.Playlist = mr
	sendProgress(progress, playlistCreatedUpdate(mr))
	return nil
}

// execute runs argv and maps a failed start or non-zero exit to a [*ProcessError].
func (a *Acquisition) execute(ctx context.Context, stage Stage, argv []string, progress chan<- ProgressUpdate) error {
	sendProgress(progress, commandUpdate(stage, argv))
	out, err := a.exec.Run(ctx, argv[0], argv[1:]...)
	if err != nil {
		return &ProcessError{Command: argv, ExitCode: -1, Output: out.Output, Err: err}
	}
	if out.ExitCode != 0 {
		return &ProcessError{Command: argv, ExitCode: out.ExitCode, Output: out.Output}
	}
	return nil
}

func (a *Acquisition) vars(ref string) *strings.Replacer {
	return strings.NewReplacer(
		"{ref}", ref,
		"{download_dir}", a.cfg.DownloadDir,
		"{library_dir}", a.cfg.LibraryDir,
	)
}

// tailArg is appended to a command that does not reference placeholder itself.
type tailArg struct {
	placeholder string
	value       string
}

// expandCommand substitutes placeholders in a configured command. Each tail argument whose
// placeholder appears nowhere in argv is appended, in order.
func expandCommand(argv []string, vars *strings.Replacer, tail ...tailArg) []string {
	if len(argv) == 0 {
		return nil
	}
	out := make([]string, 0, len(argv)+len(tail))
	for _, arg := range argv {
		out = append(out, vars.Replace(arg))
	}
	for _, t := range tail {
		if !slices.ContainsFunc(argv, func(arg string) bool { return strings.Contains(arg, t.placeholder) }) {
			out = append(out, t.value)
		}
	}
	return out
}

// finish moves res to its terminal stage, records it and emits the final update.
func (a *Acquisition) finish(ctx context.Context, res *RunResult, err error, progress chan<- ProgressUpdate) (*RunResult, error) {
	res.FinishedAt = time.Now()
	logger := a.logger.With("run", res.RunID)

	var stageErr *StageError
	if err != nil {
		if !errors.As(err, &stageErr) {
			stageErr = &StageError{Stage: res.Stage, Err: err}
		}
		res.Stage = Failed
		res.FailedStage = stageErr.Stage
		res.Err = stageErr.Err
		logger.Error("run failed", "stage", stageErr.Stage, "error", stageErr.Err)
	} else {
		logger.Info("run completed", "resolved", res.Resolved(), "total", res.Total(), "elapsed", res.FinishedAt.Sub(res.StartedAt))
	}

	a.record(context.WithoutCancel(ctx), res)
	sendProgress(progress, finishedUpdate(res))

	if stageErr != nil {
		return res, stageErr
	}
	return res, nil
}

func (a *Acquisition) record(ctx context.Context, res *RunResult) {
	if a.recorder == nil {
		return
	}
	if err := a.recorder.SaveRun(ctx, res.Record()); err != nil {
		a.logger.Warn("failed to record run", "run", res.RunID, "error", err)
	}
}
