package models

import (
	"fmt"
	"time"

	"github.com/aarriolsal/spotify-nextcloud/internal/shared"
)

// Run is the persisted record of one acquisition run.
type Run struct {
	RunID        string          `json:"id"`
	Sequence     int             `json:"sequence"`
	Reference    string          `json:"reference"`
	Mode         string          `json:"mode"`
	Stage        string          `json:"stage"`
	FailedStage  string          `json:"failed_stage,omitempty"`
	Error        string          `json:"error,omitempty"`
	PlaylistName string          `json:"playlist_name,omitempty"`
	PlaylistID   string          `json:"playlist_id,omitempty"`
	Total        int             `json:"total"`
	Resolved     int             `json:"resolved"`
	Files        int             `json:"files"`
	Tracks       []ResolvedTrack `json:"tracks,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
	Created      time.Time       `json:"created_at"`
	Updated      time.Time       `json:"updated_at"`
	DeletedAt    *time.Time      `json:"deleted_at,omitempty"`
}

func (r *Run) ID() string           { return r.RunID }
func (r *Run) CreatedAt() time.Time { return r.Created }
func (r *Run) UpdatedAt() time.Time { return r.Updated }

func (r *Run) Validate() error {
	if r.RunID == "" {
		return fmt.Errorf("%w: run id is required", shared.ErrMissingArgument)
	}
	if r.Reference == "" {
		return fmt.Errorf("%w: reference is required", shared.ErrMissingArgument)
	}
	if r.Mode == "" {
		return fmt.Errorf("%w: mode is required", shared.ErrMissingArgument)
	}
	if r.Resolved > r.Total {
		return fmt.Errorf("%w: resolved count %d exceeds total %d", shared.ErrInvalidArgument, r.Resolved, r.Total)
	}
	return nil
}

// Failed reports whether the run stopped at a failed stage.
func (r *Run) Failed() bool {
	return r.FailedStage != ""
}

// Duration returns how long the run took, or zero while it is still in flight.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
