package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aarriolsal/spotify-nextcloud/internal/models"
	"github.com/aarriolsal/spotify-nextcloud/internal/shared"
)

const runColumns = `id, sequence, reference, mode, stage, failed_stage, error, playlist_name, playlist_id,
	total, resolved, files, started_at, finished_at, created_at, updated_at, deleted_at`

// RunRepository implements models.Repository[*models.Run] for run history.
//
// Runs are written with their resolution outcome; Get loads the tracks back, List does not.
type RunRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.Run] = (*RunRepository)(nil)

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run with a fresh sequence. An empty RunID is generated.
func (r *RunRepository) Create(run *models.Run) error {
	if run.RunID == "" {
		run.RunID = shared.GenerateID()
	}
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return r.inTx(context.Background(), func(tx *sql.Tx) error {
		return r.insert(context.Background(), tx, run)
	})
}

// Get retrieves a run and its tracks by ID, excluding soft-deleted runs
func (r *RunRepository) Get(id string) (*models.Run, error) {
	return r.get(context.Background(), "id = ?", id)
}

// GetBySequence retrieves a run by its sequence number
func (r *RunRepository) GetBySequence(sequence int) (*models.Run, error) {
	return r.get(context.Background(), "sequence = ?", sequence)
}

// Find looks a run up by full ID, by sequence number, or by a unique ID prefix.
func (r *RunRepository) Find(key string) (*models.Run, error) {
	key = strings.TrimSpace(strings.TrimPrefix(key, "#"))
	if key == "" {
		return nil, &shared.ValidationError{Field: "run", Reason: "run id is empty"}
	}

	if run, err := r.Get(key); err == nil || !errors.Is(err, shared.ErrNotFound) {
		return run, err
	}
	if seq, err := strconv.Atoi(key); err == nil {
		if run, err := r.GetBySequence(seq); err == nil || !errors.Is(err, shared.ErrNotFound) {
			return run, err
		}
	}

	rows, err := r.db.Query(`SELECT id FROM runs WHERE substr(id, 1, length(?)) = ? AND deleted_at IS NULL LIMIT 2`, key, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	switch len(ids) {
	case 0:
		return nil, fmt.Errorf("%w: run %s", shared.ErrNotFound, key)
	case 1:
		return r.Get(ids[0])
	default:
		return nil, &shared.ValidationError{Field: "run", Reason: fmt.Sprintf("prefix %q matches more than one run", key)}
	}
}

// Update modifies an existing run and replaces its tracks
func (r *RunRepository) Update(run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return r.inTx(context.Background(), func(tx *sql.Tx) error {
		return r.update(context.Background(), tx, run)
	})
}

// SaveRun inserts run the first time it is seen and updates it afterwards.
func (r *RunRepository) SaveRun(ctx context.Context, run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return r.inTx(ctx, func(tx *sql.Tx) error {
		var sequence int
		err := tx.QueryRowContext(ctx, `SELECT sequence FROM runs WHERE id = ?`, run.RunID).Scan(&sequence)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return r.insert(ctx, tx, run)
		case err != nil:
			return fmt.Errorf("failed to look up run: %w", err)
		}
		run.Sequence = sequence
		return r.update(ctx, tx, run)
	})
}

// Delete soft-deletes a run by ID
func (r *RunRepository) Delete(id string) error {
	now := time.Now()

	result, err := r.db.Exec(`UPDATE runs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: run not found or already deleted: %s", shared.ErrNotFound, id)
	}

	return nil
}

// List retrieves runs newest first, excluding soft-deleted runs.
//
// Criteria: "reference", "mode", "stage" (strings), "failed" (bool) and "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE deleted_at IS NULL`
	args := []any{}

	for _, col := range []string{"reference", "mode", "stage"} {
		if v, ok := criteria[col].(string); ok && v != "" {
			query += " AND " + col + " = ?"
			args = append(args, v)
		}
	}

	if failed, ok := criteria["failed"].(bool); ok {
		if failed {
			query += " AND failed_stage != ''"
		} else {
			query += " AND failed_stage = ''"
		}
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

// Tracks returns the resolution outcome of a run in playlist order.
func (r *RunRepository) Tracks(runID string) ([]models.ResolvedTrack, error) {
	rows, err := r.db.Query(`SELECT name, catalog_id, reason FROM run_tracks WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run tracks: %w", err)
	}
	defer rows.Close()

	var tracks []models.ResolvedTrack
	for rows.Next() {
		var t models.ResolvedTrack
		if err := rows.Scan(&t.Name, &t.CatalogID, &t.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan run track: %w", err)
		}
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

func (r *RunRepository) get(ctx context.Context, where string, arg any) (*models.Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE `+where+` AND deleted_at IS NULL`, arg)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %v", shared.ErrNotFound, arg)
	}
	if err != nil {
		return nil, err
	}

	if run.Tracks, err = r.Tracks(run.RunID); err != nil {
		return nil, err
	}
	return run, nil
}

func (r *RunRepository) insert(ctx context.Context, tx *sql.Tx, run *models.Run) error {
	sequence, err := nextSequence(ctx, tx, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := time.Now()
	run.Sequence = sequence
	run.Created = now
	run.Updated = now
	if run.StartedAt.IsZero() {
		run.StartedAt = now
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`,
		run.RunID,
		run.Sequence,
		run.Reference,
		run.Mode,
		run.Stage,
		run.FailedStage,
		run.Error,
		run.PlaylistName,
		run.PlaylistID,
		run.Total,
		run.Resolved,
		run.Files,
		run.StartedAt,
		nullTime(run.FinishedAt),
		run.Created,
		run.Updated,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return writeTracks(ctx, tx, run)
}

func (r *RunRepository) update(ctx context.Context, tx *sql.Tx, run *models.Run) error {
	now := time.Now()

	result, err := tx.ExecContext(ctx, `
		UPDATE runs
		SET stage = ?, failed_stage = ?, error = ?, playlist_name = ?, playlist_id = ?,
			total = ?, resolved = ?, files = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`,
		run.Stage,
		run.FailedStage,
		run.Error,
		run.PlaylistName,
		run.PlaylistID,
		run.Total,
		run.Resolved,
		run.Files,
		nullTime(run.FinishedAt),
		now,
		run.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: run not found or already deleted: %s", shared.ErrNotFound, run.RunID)
	}

	run.Updated = now
	return writeTracks(ctx, tx, run)
}

func (r *RunRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// writeTracks replaces the stored tracks of run with run.Tracks.
func writeTracks(ctx context.Context, tx *sql.Tx, run *models.Run) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM run_tracks WHERE run_id = ?`, run.RunID); err != nil {
		return fmt.Errorf("failed to clear run tracks: %w", err)
	}
	if len(run.Tracks) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_tracks (run_id, position, name, catalog_id, reason) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare run track insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range run.Tracks {
		if _, err := stmt.ExecContext(ctx, run.RunID, i, t.Name, t.CatalogID, t.Reason); err != nil {
			return fmt.Errorf("failed to insert run track %d: %w", i, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRun scans a runs row (as selected by runColumns) into a [models.Run]
func scanRun(row rowScanner) (*models.Run, error) {
	var (
		run        models.Run
		finishedAt sql.NullTime
		deletedAt  sql.NullTime
	)

	err := row.Scan(
		&run.RunID, &run.Sequence, &run.Reference, &run.Mode, &run.Stage, &run.FailedStage, &run.Error,
		&run.PlaylistName, &run.PlaylistID, &run.Total, &run.Resolved, &run.Files,
		&run.StartedAt, &finishedAt, &run.Created, &run.Updated, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	if deletedAt.Valid {
		run.DeletedAt = &deletedAt.Time
	}
	return &run, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
