package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/aarriolsal/spotify-nextcloud/internal/catalog"
	"github.com/aarriolsal/spotify-nextcloud/internal/models"
	"github.com/aarriolsal/spotify-nextcloud/internal/shared"
	"github.com/charmbracelet/log"
)

// Searcher is the catalog search used for resolution.
type Searcher interface {
	Search2(ctx context.Context, q catalog.SearchQuery) (*catalog.SearchResult2, error)
}

// SearchCounts bounds the number of artists, albums and songs requested per search.
type SearchCounts struct {
	Artist int
	Album  int
	Song   int
}

// DefaultSearchCounts returns the 1/1/5 bounds.
func DefaultSearchCounts() SearchCounts {
	return SearchCounts{Artist: catalog.DefaultArtistCount, Album: catalog.DefaultAlbumCount, Song: catalog.DefaultSongCount}
}

// MatchPolicy picks the catalog song for a track name out of the search hits.
type MatchPolicy interface {
	Select(name string, songs []catalog.Song) (catalog.Song, bool)
}

// FirstMatch takes the first song hit.
type FirstMatch struct{}

func (FirstMatch) Select(_ string, songs []catalog.Song) (catalog.Song, bool) {
	if len(songs) == 0 {
		return catalog.Song{}, false
	}
	return songs[0], true
}

// ExactTitle takes the first song whose title equals the name, ignoring case and spacing.
// With Fallback it settles for the first hit when no title matches.
type ExactTitle struct {
	Fallback bool
}

func (p ExactTitle) Select(name string, songs []catalog.Song) (catalog.Song, bool) {
	want := shared.NormalizeTitle(name)
	for _, s := range songs {
		if shared.NormalizeTitle(s.Title) == want {
			return s, true
		}
	}
	if p.Fallback {
		return FirstMatch{}.Select(name, songs)
	}
	return catalog.Song{}, false
}

// PolicyByName maps the resolver.policy setting to a [MatchPolicy].
//
// "first" (or empty) is [FirstMatch]; "exact" is [ExactTitle] with fallback; "strict" is [ExactTitle] without.
func PolicyByName(name string) (MatchPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "first":
		return FirstMatch{}, nil
	case "exact":
		return ExactTitle{Fallback: true}, nil
	case "strict":
		return ExactTitle{}, nil
	}
	return nil, fmt.Errorf("%w: unknown resolver policy %q", shared.ErrInvalidConfig, name)
}

// Resolver maps source track names to catalog song ids.
type Resolver struct {
	searcher Searcher
	counts   SearchCounts
	policy   MatchPolicy
	logger   *log.Logger
}

// NewResolver creates a resolver. Zero counts use [DefaultSearchCounts] and a nil policy uses [FirstMatch].
func NewResolver(searcher Searcher, counts SearchCounts, policy MatchPolicy, logger *log.Logger) *Resolver {
	def := DefaultSearchCounts()
	if counts.Artist <= 0 {
		counts.Artist = def.Artist
	}
	if counts.Album <= 0 {
		counts.Album = def.Album
	}
	if counts.Song <= 0 {
		counts.Song = def.Song
	}
	if policy == nil {
		policy = FirstMatch{}
	}
	if logger == nil {
		logger = shared.NopLogger()
	}
	return &Resolver{searcher: searcher, counts: counts, policy: policy, logger: logger}
}

// Resolve searches the catalog for name. It never fails: a missing match or a failed search
// yields an unresolved track whose Reason says why.
func (r *Resolver) Resolve(ctx context.Context, name string) models.ResolvedTrack {
	rt := models.ResolvedTrack{Name: name}
	if strings.TrimSpace(name) == "" {
		rt.Reason = "empty title"
		return rt
	}

	result, err := r.searcher.Search2(ctx, catalog.SearchQuery{
		Query:       name,
		ArtistCount: r.counts.Artist,
		AlbumCount:  r.counts.Album,
		SongCount:   r.counts.Song,
	})
	if err != nil {
		r.logger.Warn("search failed", "track", name, "error", err)
		rt.Reason = fmt.Sprintf("search failed: %v", err)
		return rt
	}

	song, ok := r.policy.Select(name, result.Song)
	if !ok || song.ID == "" {
		r.logger.Debug("no catalog match", "track", name, "hits", len(result.Song))
		rt.Reason = "no results"
		return rt
	}

	rt.CatalogID = song.ID
	r.logger.Debug("resolved track", "track", name, "id", song.ID, "title", song.Title)
	return rt
}

// ResolveAll resolves names in order, one search at a time, reporting each result on progress.
func (r *Resolver) ResolveAll(ctx context.Context, names []string, progress chan<- ProgressUpdate) []models.ResolvedTrack {
	out := make([]models.ResolvedTrack, len(names))
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			out[i] = models.ResolvedTrack{Name: name, Reason: fmt.Sprintf("not searched: %v", err)}
		} else {
			out[i] = r.Resolve(ctx, name)
		}
		sendProgress(progress, resolveTrackUpdate(i+1, len(names), out[i]))
	}
	return out
}
