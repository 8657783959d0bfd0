package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"funnypdf/internal/models"
)

// RunRepository handles run-history database operations.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a run record and returns its ID.
func (r *RunRepository) Create(ctx context.Context, run *models.Run) (uuid.UUID, error) {
	newID := run.ID
	if newID == uuid.Nil {
		newID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs
		 (id, input_file_name, style, ai_mode, status, error_kind,
		  pages, paragraphs, fallbacks, duration_ms, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, NOW())`,
		newID, run.InputFileName, run.Style, run.AIMode, run.Status, run.ErrorKind,
		run.Pages, run.Paragraphs, run.Fallbacks, run.DurationMS,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating run record: %w", err)
	}
	return newID, nil
}

// List returns the most recent runs, optionally filtered by status.
func (r *RunRepository) List(ctx context.Context, status string, limit int) ([]models.Run, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `SELECT id, input_file_name, style, ai_mode, status, error_kind,
	                 pages, paragraphs, fallbacks, duration_ms, created_at
	          FROM runs`
	args := []interface{}{}

	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		var run models.Run
		if err := rows.Scan(
			&run.ID, &run.InputFileName, &run.Style, &run.AIMode, &run.Status, &run.ErrorKind,
			&run.Pages, &run.Paragraphs, &run.Fallbacks, &run.DurationMS, &run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Stats aggregates run counts by status.
func (r *RunRepository) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("aggregating run stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning stats row: %w", err)
		}
		stats[status] = count
	}
	return stats, nil
}
