package tasks

import (
	"context"
	"strings"
	"sync"

	"github.com/aarriolsal/spotify-nextcloud/internal/catalog"
	"github.com/aarriolsal/spotify-nextcloud/internal/models"
)

// fakeCatalog serves canned search results and records every write.
type fakeCatalog struct {
	mu sync.Mutex

	songs     map[string][]catalog.Song
	searchErr map[string]error
	queries   []catalog.SearchQuery

	existing  []catalog.PlaylistSummary
	echo      *catalog.PlaylistDetail
	createErr error
	findErr   error
	created   []catalog.PlaylistRequest
	lookups   int

	scanErr  error
	scans    int
	statuses []catalog.ScanStatus
	pollErr  error
	polls    int
}

func (f *fakeCatalog) Search2(ctx context.Context, q catalog.SearchQuery) (*catalog.SearchResult2, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if err := f.searchErr[q.Query]; err != nil {
		return nil, err
	}
	return &catalog.SearchResult2{Song: f.songs[q.Query]}, nil
}

func (f *fakeCatalog) CreatePlaylist(ctx context.Context, req catalog.PlaylistRequest) (*catalog.PlaylistDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.echo, nil
}

func (f *fakeCatalog) FindPlaylistByName(ctx context.Context, name string) (*catalog.PlaylistSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.findErr != nil {
		return nil, f.findErr
	}
	for i := range f.existing {
		if f.existing[i].Name == name {
			return &f.existing[i], nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) StartScan(ctx context.Context) (*catalog.ScanStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans++
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	return &catalog.ScanStatus{Scanning: true}, nil
}

// GetScanStatus walks through statuses, repeating the last one.
func (f *fakeCatalog) GetScanStatus(ctx context.Context) (*catalog.ScanStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	if len(f.statuses) == 0 {
		return &catalog.ScanStatus{}, nil
	}
	i := min(f.polls-1, len(f.statuses)-1)
	s := f.statuses[i]
	return &s, nil
}

func (f *fakeCatalog) writes() []catalog.PlaylistRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]catalog.PlaylistRequest(nil), f.created...)
}

// fakeExecutor records invocations. hook, when set, decides the outcome per call.
type fakeExecutor struct {
	mu    sync.Mutex
	calls [][]string
	hook  func(argv []string) (ExecResult, error)
}

func (f *fakeExecutor) Run(ctx context.Context, name string, args ...string) (ExecResult, error) {
	argv := append([]string{name}, args...)
	f.mu.Lock()
	f.calls = append(f.calls, argv)
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		return hook(argv)
	}
	return ExecResult{}, nil
}

func (f *fakeExecutor) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = strings.Join(c, " ")
	}
	return out
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs []models.Run
	err  error
}

func (f *fakeRecorder) SaveRun(ctx context.Context, run *models.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, *run)
	return f.err
}

type panicSource struct{}

func (panicSource) ReadPlaylist(ctx context.Context, ref string) (*models.SourcePlaylist, error) {
	panic("source exploded")
}

func songs(ids ...string) []catalog.Song {
	out := make([]catalog.Song, len(ids))
	for i, id := range ids {
		out[i] = catalog.Song{ID: id, Title: "title " + id}
	}
	return out
}
