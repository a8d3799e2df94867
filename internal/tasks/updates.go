package tasks

import (
	"fmt"

	"github.com/aarriolsal/spotify-nextcloud/internal/models"
)

// ProgressUpdate represents a progress event during a run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Stage   Stage  // Stage the run is in
	Step    int    // Current step number within the stage
	Total   int    // Total steps in this stage
	Message string // Human-readable message for display
	Data    any    // Optional stage-specific data for advanced UIs
}

// Stage is a state of the acquisition run machine.
type Stage int

const (
	Received Stage = iota
	Downloading
	Transferring
	Rescanning
	Resolving
	PlaylistCreating
	Completed
	Failed
)

func (s Stage) String() string {
	switch s {
	case Received:
		return "received"
	case Downloading:
		return "downloading"
	case Transferring:
		return "transferring"
	case Rescanning:
		return "rescanning"
	case Resolving:
		return "resolving"
	case PlaylistCreating:
		return "playlist_creating"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

// ParseStage is the inverse of [Stage.String].
func ParseStage(s string) (Stage, bool) {
	for st := Received; st <= Failed; st++ {
		if st.String() == s {
			return st, true
		}
	}
	return 0, false
}

// Terminal reports whether no stage follows s.
func (s Stage) Terminal() bool {
	return s == Completed || s == Failed
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func stageStartedUpdate(stage Stage, step, total int, detail string) ProgressUpdate {
	return ProgressUpdate{
		Stage:   stage,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s", step, total, stage, detail),
	}
}

func commandUpdate(stage Stage, argv []string) ProgressUpdate {
	return ProgressUpdate{
		Stage:   stage,
		Message: fmt.Sprintf("Running %s...", argv[0]),
		Data:    argv,
	}
}

func inventoryUpdate(files, untagged int) ProgressUpdate {
	return ProgressUpdate{
		Stage:   Transferring,
		Step:    files,
		Total:   files,
		Message: fmt.Sprintf("Found %d audio files to transfer (%d untagged)", files, untagged),
	}
}

func scanWaitUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Stage:   Rescanning,
		Message: fmt.Sprintf("Waiting for catalog scan (%d items indexed)...", count),
		Data:    count,
	}
}

func sourcePlaylistUpdate(p *models.SourcePlaylist) ProgressUpdate {
	return ProgressUpdate{
		Stage:   Resolving,
		Total:   len(p.Tracks),
		Message: fmt.Sprintf("Found playlist: %s (%d tracks)", p.Name, len(p.Tracks)),
		Data:    p,
	}
}

func resolveTrackUpdate(step, total int, rt models.ResolvedTrack) ProgressUpdate {
	mark := "✓"
	if !rt.Resolved() {
		mark = "✗"
	}
	return ProgressUpdate{
		Stage:   Resolving,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s", step, total, mark, rt.Name),
		Data:    rt,
	}
}

func playlistCreatedUpdate(res *MaterializeResult) ProgressUpdate {
	verb := "created"
	if res.Replaced {
		verb = "replaced"
	}
	return ProgressUpdate{
		Stage:   PlaylistCreating,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist %s: %s (ID: %s, %d tracks)", verb, res.Name, res.PlaylistID, res.TrackCount),
		Data:    res,
	}
}

func finishedUpdate(res *RunResult) ProgressUpdate {
	return ProgressUpdate{
		Stage:   res.Stage,
		Step:    res.Resolved(),
		Total:   res.Total(),
		Message: res.Summary(),
		Data:    res,
	}
}
