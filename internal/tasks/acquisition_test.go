package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/aarriolsal/spotify-nextcloud/internal/catalog"
	"github.com/aarriolsal/spotify-nextcloud/internal/models"
	"github.com/aarriolsal/spotify-nextcloud/internal/services"
	"github.com/aarriolsal/spotify-nextcloud/internal/shared"
	tu "github.com/aarriolsal/spotify-nextcloud/internal/testing"
)

const testRef = "https://open.spotify.com/playlist/37i9dQZF1DX?si=abc"

type harness struct {
	dir    string
	cfg    shared.AcquisitionConfig
	rescan shared.RescanConfig
	exec   *fakeExecutor
	cat    *fakeCatalog
	source services.SourceReader
	rec    *fakeRecorder
	locks  *KeyedLock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	return &harness{
		dir: dir,
		cfg: shared.AcquisitionConfig{
			DownloadDir:    filepath.Join(dir, "download"),
			LibraryDir:     filepath.Join(dir, "library"),
			DownloaderCmd:  []string{"spotdl"},
			TransferCmd:    []string{"rsync", "-av", "--remove-source-files"},
			PruneEmptyDirs: true,
		},
		rescan: shared.RescanConfig{Mode: "rest"},
		exec:   &fakeExecutor{},
		cat: &fakeCatalog{songs: map[string][]catalog.Song{
			"A": songs("id1"),
		}},
		source: tu.NewStaticSource(testRef, "Road Trip", "A", "B"),
		rec:    &fakeRecorder{},
		locks:  NewKeyedLock(),
	}
}

func (h *harness) acquisition() *Acquisition {
	return NewAcquisition(h.cfg, h.rescan, h.exec, h.cat, h.source,
		WithRecorder(h.rec), WithLocks(h.locks))
}

func drain(progress chan ProgressUpdate) []ProgressUpdate {
	close(progress)
	var out []ProgressUpdate
	for u := range progress {
		out = append(out, u)
	}
	return out
}

func TestAcquisitionComplete(t *testing.T) {
	h := newHarness(t)
	h.rescan.Wait = true
	h.rescan.PollInterval = shared.Duration{Duration: time.Millisecond}
	h.cat.statuses = []catalog.ScanStatus{{Scanning: true, Count: 1}, {Scanning: false, Count: 5}}

	downloaded := filepath.Join(h.cfg.DownloadDir, "Artist", "a.mp3")
	h.exec.hook = func(argv []string) (ExecResult, error) {
		switch argv[0] {
		case "spotdl":
			tu.MustWriteFile(t, downloaded, "not really audio")
		case "rsync":
			if err := os.Remove(downloaded); err != nil {
				t.Errorf("failed to simulate transfer: %v", err)
			}
		}
		return ExecResult{}, nil
	}

	progress := make(chan ProgressUpdate, 100)
	res, err := h.acquisition().Run(context.Background(), Request{
		Reference: testRef,
		Mode:      ModeComplete,
		Playlist:  models.Playlist{Name: "Test"},
	}, progress)
	updates := drain(progress)

	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Stage != Completed {
		t.Fatalf("expected Completed, got %s", res.Stage)
	}

	wantCmds := []string{
		"spotdl " + testRef,
		"rsync -av --remove-source-files " + h.cfg.DownloadDir + "/ " + h.cfg.LibraryDir,
	}
	if got := h.exec.commands(); !slices.Equal(got, wantCmds) {
		t.Errorf("commands = %q, want %q", got, wantCmds)
	}

	if len(res.Files) != 1 || res.Files[0].Path != filepath.Join("Artist", "a.mp3") {
		t.Errorf("unexpected inventory %+v", res.Files)
	}
	tu.AssertNotExists(t, filepath.Join(h.cfg.DownloadDir, "Artist"))
	tu.AssertDirExists(t, h.cfg.DownloadDir)

	if h.cat.scans != 1 {
		t.Errorf("expected 1 scan, got %d", h.cat.scans)
	}
	if res.ScanCount != 5 {
		t.Errorf("expected scan count 5, got %d", res.ScanCount)
	}

	writes := h.cat.writes()
	if len(writes) != 1 {
		t.Fatalf("expected 1 playlist write, got %d", len(writes))
	}
	if writes[0].Name != "Test" || !slices.Equal(writes[0].SongIDs, []string{"id1"}) {
		t.Errorf("unexpected playlist write %+v", writes[0])
	}

	if res.Resolved() != 1 || res.Total() != 2 {
		t.Errorf("expected 1/2, got %d/%d", res.Resolved(), res.Total())
	}
	if missing := res.Unresolved(); len(missing) != 1 || missing[0].Name != "B" {
		t.Errorf("expected B unresolved, got %+v", missing)
	}
	if !strings.Contains(res.Summary(), "1/2 tracks added") {
		t.Errorf("unexpected summary %q", res.Summary())
	}

	if len(updates) == 0 {
		t.Fatal("expected progress updates")
	}
	last := updates[len(updates)-1]
	if last.Stage != Completed || last.Step != 1 || last.Total != 2 {
		t.Errorf("unexpected final update %+v", last)
	}

	if len(h.rec.runs) != 2 {
		t.Fatalf("expected 2 recorded snapshots, got %d", len(h.rec.runs))
	}
	final := h.rec.runs[1]
	if final.Stage != "completed" || final.Resolved != 1 || final.Total != 2 || final.FinishedAt == nil {
		t.Errorf("unexpected final record %+v", final)
	}
	if final.RunID != res.RunID || h.rec.runs[0].RunID != res.RunID {
		t.Error("recorded snapshots do not share the run id")
	}
}

func TestAcquisitionDownloadFailure(t *testing.T) {
	t.Run("Non-Zero Exit", func(t *testing.T) {
		h := newHarness(t)
		h.exec.hook = func(argv []string) (ExecResult, error) {
			return ExecResult{ExitCode: 1, Output: "rate limited"}, nil
		}

		res, err := h.acquisition().Run(context.Background(), Request{Reference: testRef, Mode: ModeComplete, Playlist: models.Playlist{Name: "Test"}}, nil)

		var stageErr *StageError
		if !errors.As(err, &stageErr) || stageErr.Stage != Downloading {
			t.Fatalf("expected downloading stage error, got %v", err)
		}
		if !errors.Is(err, shared.ErrProcessExecution) {
			t.Errorf("expected ErrProcessExecution, got %v", err)
		}
		var procErr *ProcessError
		if !errors.As(err, &procErr) || procErr.ExitCode != 1 || procErr.Output != "rate limited" {
			t.Errorf("unexpected process error %+v", procErr)
		}

		if res.Stage != Failed || res.FailedStage != Downloading {
			t.Errorf("expected Failed(downloading), got %s/%s", res.Stage, res.FailedStage)
		}
		if !strings.HasPrefix(res.Summary(), "Failed at downloading") {
			t.Errorf("unexpected summary %q", res.Summary())
		}
		if n := len(h.exec.commands()); n != 1 {
			t.Errorf("expected only the downloader to run, got %d commands", n)
		}
		if h.cat.scans != 0 || len(h.cat.queries) != 0 || len(h.cat.created) != 0 {
			t.Error("expected no catalog activity after a failed download")
		}

		final := h.rec.runs[len(h.rec.runs)-1]
		if final.FailedStage != "downloading" || final.Error == "" {
			t.Errorf("unexpected final record %+v", final)
		}
	})

	t.Run("Start Failure", func(t *testing.T) {
		h := newHarness(t)
		h.exec.hook = func(argv []string) (ExecResult, error) {
			return ExecResult{ExitCode: -1}, errors.New("executable file not found")
		}

		_, err := h.acquisition().Run(context.Background(), Request{Reference: testRef, Mode: ModeDownload}, nil)
		var procErr *ProcessError
		if !errors.As(err, &procErr) || procErr.ExitCode != -1 {
			t.Fatalf("expected process error with exit -1, got %v", err)
		}
	})

	t.Run("Empty Downloader Command", func(t *testing.T) {
		h := newHarness(t)
		h.cfg.DownloaderCmd = nil
		_, err := h.acquisition().Run(context.Background(), Request{Reference: testRef, Mode: ModeDownload}, nil)
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig, got %v", err)
		}
		if len(h.exec.commands()) != 0 {
			t.Error("expected nothing to run")
		}
	})
}

func TestAcquisitionTransferFailure(t *testing.T) {
	h := newHarness(t)
	h.exec.hook = func(argv []string) (ExecResult, error) {
		if argv[0] == "rsync" {
			return ExecResult{ExitCode: 23}, nil
		}
		return ExecResult{}, nil
	}

	res, err := h.acquisition().Run(context.Background(), Request{Reference: testRef, Mode: ModeDownload}, nil)
	if err == nil || res.FailedStage != Transferring {
		t.Fatalf("expected transferring failure, got %v (%s)", err, res.FailedStage)
	}
	if h.cat.scans != 0 {
		t.Error("expected no rescan after a failed transfer")
	}
}

func TestAcquisitionDownloadMode(t *testing.T) {
	h := newHarness(t)
	h.exec.hook = func(argv []string) (ExecResult, error) {
		if argv[0] == "spotdl" {
			tu.MustWriteFile(t, filepath.Join(h.cfg.DownloadDir, "one.mp3"), "x")
			tu.MustWriteFile(t, filepath.Join(h.cfg.DownloadDir, "two.flac"), "x")
			tu.MustWriteFile(t, filepath.Join(h.cfg.DownloadDir, "cover.jpg"), "x")
		}
		return ExecResult{}, nil
	}
	counter := &tu.StaticSource{}
	h.source = counter

	res, err := h.acquisition().Run(context.Background(), Request{Reference: "spotify:track:abc", Mode: ModeDownload}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Summary() != "Completed: 2 files transferred" {
		t.Errorf("unexpected summary %q", res.Summary())
	}
	if len(counter.Calls) != 0 || len(h.cat.created) != 0 {
		t.Error("download mode must not read the source or write playlists")
	}
	if h.cat.scans != 1 {
		t.Errorf("expected 1 scan, got %d", h.cat.scans)
	}
}

func TestAcquisitionPlaylistMode(t *testing.T) {
	t.Run("Defaults To Source Name", func(t *testing.T) {
		h := newHarness(t)
		res, err := h.acquisition().Run(context.Background(), Request{Reference: testRef, Mode: ModePlaylist}, nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if len(h.exec.commands()) != 0 || h.cat.scans != 0 {
			t.Error("playlist mode must not download or rescan")
		}
		w := h.cat.writes()
		if len(w) != 1 || w[0].Name != "Road Trip" {
			t.Fatalf("expected playlist named after the source, got %+v", w)
		}
		if res.Playlist == nil || res.Playlist.Name != "Road Trip" {
			t.Errorf("unexpected playlist result %+v", res.Playlist)
		}
	})

	t.Run("Replace By ID", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.acquisition().Run(context.Background(), Request{
			Reference: testRef, Mode: ModePlaylist, Playlist: models.Playlist{ID: "55"},
		}, nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if w := h.cat.writes()[0]; w.PlaylistID != "55" || w.Name != "" {
			t.Errorf("unexpected write %+v", w)
		}
	})

	t.Run("No Matches Still Writes", func(t *testing.T) {
		h := newHarness(t)
		h.cat.songs = nil
		res, err := h.acquisition().Run(context.Background(), Request{Reference: testRef, Mode: ModePlaylist}, nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if res.Resolved() != 0 || res.Total() != 2 || len(h.cat.writes()[0].SongIDs) != 0 {
			t.Errorf("unexpected outcome %s", res.Summary())
		}
	})

	t.Run("Source Failure", func(t *testing.T) {
		h := newHarness(t)
		h.source = &tu.StaticSource{Err: shared.ErrPlaylistNotFound}
		res, err := h.acquisition().Run(context.Background(), Request{Reference: testRef, Mode: ModePlaylist}, nil)
		if !errors.Is(err, shared.ErrPlaylistNotFound) || res.FailedStage != Resolving {
			t.Fatalf("expected resolving failure, got %v", err)
		}
		if len(h.cat.created) != 0 {
			t.Error("expected no playlist write")
		}
	})

	t.Run("Create Failure", func(t *testing.T) {
		h := newHarness(t)
		h.cat.createErr = &catalog.RemoteStatusError{View: "createPlaylist", Code: catalog.CodeGeneric, Message: "boom"}
		res, err := h.acquisition().Run(context.Background(), Request{Reference: testRef, Mode: ModePlaylist}, nil)
		if !errors.Is(err, shared.ErrRemoteStatus) || res.FailedStage != PlaylistCreating {
			t.Fatalf("expected playlist_creating failure, got %v", err)
		}
		if len(res.Tracks) != 2 {
			t.Error("resolved tracks should survive a failed write")
		}
	})
}

func TestAcquisitionValidation(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{name: "empty reference", req: Request{Mode: ModeDownload}},
		{name: "unknown mode", req: Request{Reference: testRef, Mode: Mode(9)}},
		{name: "id and name", req: Request{Reference: testRef, Mode: ModeComplete, Playlist: models.Playlist{ID: "1", Name: "x"}}},
		{name: "bad playlist reference", req: Request{Reference: "https://open.spotify.com/", Mode: ModePlaylist}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			src := &tu.StaticSource{}
			h.source = src

			res, err := h.acquisition().Run(context.Background(), tt.req, nil)
			if !shared.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if res == nil || res.FailedStage != Received {
				t.Fatalf("expected failure at received, got %+v", res)
			}
			if len(h.exec.commands()) != 0 || len(src.Calls) != 0 || len(h.cat.queries) != 0 || len(h.cat.created) != 0 {
				t.Error("expected no work after a validation failure")
			}
		})
	}
}

func TestAcquisitionRescan(t *testing.T) {
	t.Run("Command Mode", func(t *testing.T) {
		h := newHarness(t)
		h.rescan = shared.RescanConfig{Mode: "command", Command: []string{"occ", "files:scan", "--path={library_dir}"}}

		if _, err := h.acquisition().Run(context.Background(), Request{Reference: testRef, Mode: ModeDownload}, nil); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		cmds := h.exec.commands()
		if want := "occ files:scan --path=" + h.cfg.LibraryDir; cmds[len(cmds)-1] != want {
			t.Errorf("rescan command = %q, want %q", cmds[len(cmds)-1], want)
		}
		if h.cat.scans != 0 {
			t.Errorf("expected no REST scan, got %d", h.cat.scans)
		}
	})

	t.Run("Command Then REST", func(t *testing.T) {
		h := newHarness(t)
		h.rescan = shared.RescanConfig{Mode: "command", Command: []string{"occ", "files:scan", "--all"}, AlsoREST: true}
		if _, err := h.acquisition().Run(context.Background(), Request{Reference: testRef, Mode: ModeDownload}, nil); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if h.cat.scans != 1 {
			t.Errorf("expected 1 REST scan, got %d", h.cat.scans)
		}
	})

	t.Run("Command Failure", func(t *testing.T) {
		h := newHarness(t)
		h.rescan = shared.RescanConfig{Mode: "command", Command: []string{"occ"}}
		h.exec.hook = func(argv []string) (ExecResult, error) {
			if argv[0] == "occ" {
				return ExecResult{ExitCode: 2}, nil
			}
			return ExecResult{}, nil
		}
		res, err := h.acquisition().Run(context.Background(), Request{Reference: testRef, Mode: ModeDownload}, nil)
		if !errors.Is(err, shared.ErrProcessExecution) || res.FailedStage != Rescanning {
			t.Fatalf("expected rescanning failure, got %v", err)
		}
	})

	t.Run("REST Failure", func(t *testing.T) {
		h := newHarness(t)
		h.cat.scanErr = &catalog.RemoteStatusError{View: "startScan", Code: catalog.CodeUnauthorized, Message: "admin only"}
		res, err := h.acquisition().Run(context.Background(), Request{Reference: testRef, Mode: ModeComplete}, nil)
		if !errors.Is(err, shared.ErrAuthFailed) || res.FailedStage != Rescanning {
			t.Fatalf("expected rescanning failure, got %v", err)
		}
		if len(h.cat.queries) != 0 {
			t.Error("expected no resolution after a failed rescan")
		}
	})

	t.Run("Wait Timeout Continues", func(t *testing.T) {
		h := newHarness(t)
		h.rescan = shared.RescanConfig{
			Mode:         "rest",
			Wait:         true,
			PollInterval: shared.Duration{Duration: time.Millisecond},
			Timeout:      shared.Duration{Duration: 20 * time.Millisecond},
		}
		h.cat.statuses = []catalog.ScanStatus{{Scanning: true, Count: 3}}

		res, err := h.acquisition().Run(context.Background(), Request{Reference: testRef, Mode: ModeComplete}, nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if h.cat.polls < 2 {
			t.Errorf("expected repeated polling, got %d", h.cat.polls)
		}
		if res.ScanCount != 3 || res.Resolved() != 1 {
			t.Errorf("unexpected result: scan count %d, %s", res.ScanCount, res.Summary())
		}
	})

	t.Run("Poll Failure Continues", func(t *testing.T) {
		h := newHarness(t)
		h.rescan = shared.RescanConfig{Mode: "rest", Wait: true}
		h.cat.pollErr = errors.New("not supported")
		if _, err := h.acquisition().Run(context.Background(), Request{Reference: testRef, Mode: ModeDownload}, nil); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if h.cat.polls != 1 {
			t.Errorf("expected a single poll, got %d", h.cat.polls)
		}
	})
}

func TestAcquisitionPanicRecovery(t *testing.T) {
	h := newHarness(t)
	h.source = panicSource{}

	res, err := h.acquisition().Run(context.Background(), Request{Reference: testRef, Mode: ModePlaylist}, nil)
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != Resolving {
		t.Fatalf("expected resolving stage error, got %v", err)
	}
	if !strings.Contains(err.Error(), "source exploded") {
		t.Errorf("expected panic value in error, got %v", err)
	}
	if res.Stage != Failed {
		t.Errorf("expected Failed, got %s", res.Stage)
	}
}

func TestAcquisitionLocking(t *testing.T) {
	h := newHarness(t)
	release, ok := h.locks.TryAcquire("dest:" + h.cfg.DownloadDir)
	if !ok {
		t.Fatal("TryAcquire() failed on an idle lock")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res, err := h.acquisition().Run(ctx, Request{Reference: testRef, Mode: ModeDownload}, nil)
	if !errors.Is(err, shared.ErrRunInProgress) || res.FailedStage != Received {
		t.Fatalf("expected ErrRunInProgress at received, got %v", err)
	}
	if len(h.exec.commands()) != 0 {
		t.Error("expected nothing to run while the destination is busy")
	}

	release()
	if _, err := h.acquisition().Run(context.Background(), Request{Reference: testRef, Mode: ModeDownload}, nil); err != nil {
		t.Fatalf("Run() after release error = %v", err)
	}

	t.Run("Playlist Runs Skip Destination", func(t *testing.T) {
		release, _ := h.locks.TryAcquire("dest:" + h.cfg.DownloadDir)
		defer release()
		if _, err := h.acquisition().Run(context.Background(), Request{Reference: testRef, Mode: ModePlaylist, Playlist: models.Playlist{Name: "x"}}, nil); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	})
}

func TestAcquisitionRecorderFailure(t *testing.T) {
	h := newHarness(t)
	h.rec.err = errors.New("disk full")
	res, err := h.acquisition().Run(context.Background(), Request{Reference: testRef, Mode: ModePlaylist}, nil)
	if err != nil {
		t.Fatalf("recorder errors must not fail a run: %v", err)
	}
	if res.Stage != Completed {
		t.Errorf("expected Completed, got %s", res.Stage)
	}
}

func TestExpandCommand(t *testing.T) {
	vars := strings.NewReplacer("{ref}", "R", "{download_dir}", "/dl", "{library_dir}", "/lib")
	ref := []tailArg{{"{ref}", "R"}}
	dirs := []tailArg{{"{download_dir}", "/dl/"}, {"{library_dir}", "/lib"}}
	tests := []struct {
		name string
		argv []string
		tail []tailArg
		want []string
	}{
		{name: "appends tail", argv: []string{"spotdl"}, tail: ref, want: []string{"spotdl", "R"}},
		{name: "placeholders", argv: []string{"spotdl", "download", "{ref}", "--output", "{download_dir}"}, tail: ref, want: []string{"spotdl", "download", "R", "--output", "/dl"}},
		{name: "ref appended after other placeholders", argv: []string{"spotdl", "--output", "{download_dir}"}, tail: ref, want: []string{"spotdl", "--output", "/dl", "R"}},
		{name: "library dir appended", argv: []string{"rsync", "-a", "{download_dir}/"}, tail: dirs, want: []string{"rsync", "-a", "/dl/", "/lib"}},
		{name: "both dirs appended", argv: []string{"rsync", "-a"}, tail: dirs, want: []string{"rsync", "-a", "/dl/", "/lib"}},
		{name: "both dirs present", argv: []string{"rsync", "{download_dir}/", "{library_dir}"}, tail: dirs, want: []string{"rsync", "/dl/", "/lib"}},
		{name: "embedded placeholder", argv: []string{"occ", "--path={library_dir}/x"}, want: []string{"occ", "--path=/lib/x"}},
		{name: "empty", argv: nil, tail: ref, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expandCommand(tt.argv, vars, tt.tail...); !slices.Equal(got, tt.want) {
				t.Errorf("expandCommand() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAcquisitionPartialPlaceholders(t *testing.T) {
	h := newHarness(t)
	h.cfg.DownloaderCmd = []string{"spotdl", "--output", "{download_dir}"}
	h.cfg.TransferCmd = []string{"rsync", "-a", "{download_dir}/"}

	res, err := h.acquisition().Run(context.Background(), Request{Reference: testRef, Mode: ModeDownload}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Stage != Completed {
		t.Fatalf("expected Completed, got %s", res.Stage)
	}

	wantCmds := []string{
		"spotdl --output " + h.cfg.DownloadDir + " " + testRef,
		"rsync -a " + h.cfg.DownloadDir + "/ " + h.cfg.LibraryDir,
	}
	if got := h.exec.commands(); !slices.Equal(got, wantCmds) {
		t.Errorf("commands = %q, want %q", got, wantCmds)
	}
}

func TestModes(t *testing.T) {
	for _, m := range []Mode{ModeDownload, ModeComplete, ModePlaylist} {
		got, err := ParseMode(m.String())
		if err != nil || got != m {
			t.Errorf("ParseMode(%q) = %v, %v", m.String(), got, err)
		}
	}
	if _, err := ParseMode("sync"); !shared.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if got := ModeDownload.Stages(); !slices.Equal(got, []Stage{Downloading, Transferring, Rescanning}) {
		t.Errorf("unexpected download stages %v", got)
	}
	if got := ModePlaylist.Stages(); !slices.Equal(got, []Stage{Resolving, PlaylistCreating}) {
		t.Errorf("unexpected playlist stages %v", got)
	}
	if got := len(ModeComplete.Stages()); got != 5 {
		t.Errorf("expected 5 complete stages, got %d", got)
	}
}

func TestStages(t *testing.T) {
	for st := Received; st <= Failed; st++ {
		got, ok := ParseStage(st.String())
		if !ok || got != st {
			t.Errorf("ParseStage(%q) = %v, %v", st.String(), got, ok)
		}
	}
	if PlaylistCreating.String() != "playlist_creating" {
		t.Errorf("unexpected name %q", PlaylistCreating.String())
	}
	if _, ok := ParseStage("paused"); ok {
		t.Error("expected unknown stage to fail")
	}
	if !Completed.Terminal() || !Failed.Terminal() || Resolving.Terminal() {
		t.Error("unexpected terminal stages")
	}
}
