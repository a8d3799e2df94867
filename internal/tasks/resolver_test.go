package tasks

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aarriolsal/spotify-nextcloud/internal/catalog"
	"github.com/aarriolsal/spotify-nextcloud/internal/shared"
)

func TestMatchPolicies(t *testing.T) {
	hits := []catalog.Song{
		{ID: "1", Title: "Intro"},
		{ID: "2", Title: "Hello  World"},
	}

	tests := []struct {
		name   string
		policy MatchPolicy
		query  string
		songs  []catalog.Song
		wantID string
		wantOK bool
	}{
		{name: "first takes first", policy: FirstMatch{}, query: "Hello World", songs: hits, wantID: "1", wantOK: true},
		{name: "first without hits", policy: FirstMatch{}, query: "x", songs: nil, wantOK: false},
		{name: "exact matches normalized title", policy: ExactTitle{}, query: "hello world", songs: hits, wantID: "2", wantOK: true},
		{name: "exact without match", policy: ExactTitle{}, query: "Outro", songs: hits, wantOK: false},
		{name: "exact falls back", policy: ExactTitle{Fallback: true}, query: "Outro", songs: hits, wantID: "1", wantOK: true},
		{name: "exact fallback without hits", policy: ExactTitle{Fallback: true}, query: "Outro", songs: nil, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.policy.Select(tt.query, tt.songs)
			if ok != tt.wantOK {
				t.Fatalf("Select() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.ID != tt.wantID {
				t.Errorf("Select() id = %s, want %s", got.ID, tt.wantID)
			}
		})
	}
}

func TestPolicyByName(t *testing.T) {
	tests := []struct {
		name    string
		want    MatchPolicy
		wantErr bool
	}{
		{name: "", want: FirstMatch{}},
		{name: "first", want: FirstMatch{}},
		{name: " Exact ", want: ExactTitle{Fallback: true}},
		{name: "strict", want: ExactTitle{}},
		{name: "fuzzy", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PolicyByName(tt.name)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidConfig) {
					t.Fatalf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("PolicyByName() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("PolicyByName() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestResolver(t *testing.T) {
	t.Run("Uses Default Bounds", func(t *testing.T) {
		cat := &fakeCatalog{songs: map[string][]catalog.Song{"A": songs("id1", "id9")}}
		r := NewResolver(cat, SearchCounts{}, nil, nil)

		got := r.Resolve(context.Background(), "A")
		if got.CatalogID != "id1" || !got.Resolved() {
			t.Fatalf("expected id1, got %+v", got)
		}
		q := cat.queries[0]
		if q.Query != "A" || q.ArtistCount != 1 || q.AlbumCount != 1 || q.SongCount != 5 {
			t.Errorf("unexpected search query %+v", q)
		}
	})

	t.Run("Custom Bounds", func(t *testing.T) {
		cat := &fakeCatalog{}
		r := NewResolver(cat, SearchCounts{Artist: 2, Album: 3, Song: 10}, FirstMatch{}, nil)
		r.Resolve(context.Background(), "A")
		q := cat.queries[0]
		if q.ArtistCount != 2 || q.AlbumCount != 3 || q.SongCount != 10 {
			t.Errorf("unexpected search query %+v", q)
		}
	})

	t.Run("Zero Matches Is Unresolved", func(t *testing.T) {
		cat := &fakeCatalog{}
		got := NewResolver(cat, DefaultSearchCounts(), FirstMatch{}, nil).Resolve(context.Background(), "Nothing")
		if got.Resolved() {
			t.Fatalf("expected unresolved, got %+v", got)
		}
		if got.Name != "Nothing" || got.Reason != "no results" {
			t.Errorf("unexpected gap %+v", got)
		}
	})

	t.Run("Search Failure Is Unresolved", func(t *testing.T) {
		cat := &fakeCatalog{searchErr: map[string]error{"A": errors.New("boom")}}
		got := NewResolver(cat, DefaultSearchCounts(), FirstMatch{}, nil).Resolve(context.Background(), "A")
		if got.Resolved() {
			t.Fatal("expected unresolved track")
		}
		if !strings.HasPrefix(got.Reason, "search failed:") || !strings.Contains(got.Reason, "boom") {
			t.Errorf("unexpected reason %q", got.Reason)
		}
	})

	t.Run("Blank Title Is Not Searched", func(t *testing.T) {
		cat := &fakeCatalog{}
		got := NewResolver(cat, DefaultSearchCounts(), FirstMatch{}, nil).Resolve(context.Background(), "   ")
		if got.Resolved() || got.Reason == "" {
			t.Errorf("expected unresolved with reason, got %+v", got)
		}
		if len(cat.queries) != 0 {
			t.Errorf("expected no search, got %d", len(cat.queries))
		}
	})

	t.Run("Song Without ID Is Unresolved", func(t *testing.T) {
		cat := &fakeCatalog{songs: map[string][]catalog.Song{"A": {{Title: "A"}}}}
		got := NewResolver(cat, DefaultSearchCounts(), FirstMatch{}, nil).Resolve(context.Background(), "A")
		if got.Resolved() {
			t.Errorf("expected unresolved, got %+v", got)
		}
	})
}

func TestResolveAll(t *testing.T) {
	cat := &fakeCatalog{songs: map[string][]catalog.Song{
		"A": songs("id1"),
		"C": songs("id3"),
	}}
	r := NewResolver(cat, DefaultSearchCounts(), FirstMatch{}, nil)
	progress := make(chan ProgressUpdate, 10)

	got := r.ResolveAll(context.Background(), []string{"A", "B", "C"}, progress)
	close(progress)

	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	wantIDs := []string{"id1", "", "id3"}
	for i, want := range wantIDs {
		if got[i].CatalogID != want {
			t.Errorf("result %d id = %q, want %q", i, got[i].CatalogID, want)
		}
	}
	if got[1].Name != "B" {
		t.Errorf("unresolved entry lost its name: %+v", got[1])
	}

	var updates []ProgressUpdate
	for u := range progress {
		updates = append(updates, u)
	}
	if len(updates) != 3 {
		t.Fatalf("expected 3 progress updates, got %d", len(updates))
	}
	if updates[2].Step != 3 || updates[2].Total != 3 || updates[2].Stage != Resolving {
		t.Errorf("unexpected last update %+v", updates[2])
	}

	t.Run("Cancelled Context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		cat := &fakeCatalog{}
		got := NewResolver(cat, DefaultSearchCounts(), FirstMatch{}, nil).ResolveAll(ctx, []string{"A", "B"}, nil)
		if len(got) != 2 || got[0].Resolved() || got[1].Resolved() {
			t.Errorf("expected two unresolved tracks, got %+v", got)
		}
		if len(cat.queries) != 0 {
			t.Errorf("expected no searches, got %d", len(cat.queries))
		}
	})
}
