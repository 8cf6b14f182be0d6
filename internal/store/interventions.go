package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/nyashahama/wellbeing-risk-assessment/internal/intervention"
)

// foreignKeyViolation is the Postgres SQLSTATE for a missing referenced row.
const foreignKeyViolation = "23503"

const selectIntervention = `
	SELECT i.id, i.student_id, s.first_name || ' ' || s.last_name, s.grade,
	       i.type, i.status, i.priority, i.professional, i.start_date, i.expected_end_date,
	       i.total_sessions, i.completed_sessions, i.next_session, i.objectives,
	       i.progress, i.notes, i.location, i.frequency
	FROM interventions i
	JOIN students s ON s.id = i.student_id`

func scanIntervention(row interface{ Scan(...any) error }) (intervention.Intervention, error) {
	var (
		iv   intervention.Intervention
		next sql.NullTime
	)
	if err := row.Scan(
		&iv.ID, &iv.StudentID, &iv.StudentName, &iv.StudentGrade,
		&iv.Type, &iv.Status, &iv.Priority, &iv.Professional, &iv.StartDate, &iv.ExpectedEndDate,
		&iv.TotalSessions, &iv.CompletedSessions, &next, pq.Array(&iv.Objectives),
		&iv.Progress, &iv.Notes, &iv.Location, &iv.Frequency,
	); err != nil {
		return intervention.Intervention{}, err
	}
	if next.Valid {
		t := next.Time
		iv.NextSession = &t
	}
	return iv, nil
}

// CreateIntervention inserts iv. A zero ID is replaced with a fresh one; the
// stored row is returned.
func (s *Store) CreateIntervention(ctx context.Context, iv intervention.Intervention) (intervention.Intervention, error) {
	if err := intervention.ValidateProgress(iv.Progress); err != nil {
		return intervention.Intervention{}, err
	}
	if iv.ID == uuid.Nil {
		iv.ID = uuid.New()
	}
	if iv.Status == "" {
		iv.Status = intervention.StatusPlanned
	}
	if iv.Priority == "" {
		iv.Priority = intervention.PriorityMedium
	}
	// pq.Array binds a nil slice as NULL; the column is NOT NULL.
	if iv.Objectives == nil {
		iv.Objectives = []string{}
	}
	var next sql.NullTime
	if iv.NextSession != nil {
		next = sql.NullTime{Time: *iv.NextSession, Valid: true}
	}

	_, err := s.pool.ExecContext(ctx, `
		INSERT INTO interventions
			(id, student_id, type, status, priority, professional, start_date, expected_end_date,
			 total_sessions, completed_sessions, next_session, objectives, progress, notes,
			 location, frequency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		iv.ID, iv.StudentID, string(iv.Type), string(iv.Status), string(iv.Priority), iv.Professional,
		iv.StartDate, iv.ExpectedEndDate, iv.TotalSessions, iv.CompletedSessions, next,
		pq.Array(iv.Objectives), iv.Progress, iv.Notes, iv.Location, iv.Frequency,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		return intervention.Intervention{}, ErrSubjectNotFound
	}
	if err != nil {
		return intervention.Intervention{}, fmt.Errorf("CreateIntervention: %w", err)
	}
	return s.GetIntervention(ctx, iv.ID)
}

// ListInterventions returns every intervention, soonest expected end first.
func (s *Store) ListInterventions(ctx context.Context) ([]intervention.Intervention, error) {
	rows, err := s.pool.QueryContext(ctx, selectIntervention+` ORDER BY i.expected_end_date, i.id`)
	if err != nil {
		return nil, fmt.Errorf("ListInterventions: %w", err)
	}
	defer rows.Close()

	var out []intervention.Intervention
	for rows.Next() {
		iv, err := scanIntervention(rows)
		if err != nil {
			return nil, fmt.Errorf("ListInterventions: scan: %w", err)
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

// GetIntervention loads one intervention.
func (s *Store) GetIntervention(ctx context.Context, id uuid.UUID) (intervention.Intervention, error) {
	iv, err := scanIntervention(s.pool.QueryRowContext(ctx, selectIntervention+` WHERE i.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return intervention.Intervention{}, intervention.ErrNotFound
	}
	if err != nil {
		return intervention.Intervention{}, fmt.Errorf("GetIntervention: %w", err)
	}
	return iv, nil
}

// UpdateInterventionProgress sets progress and notes. Progress outside
// [0,100] is rejected before touching the database.
func (s *Store) UpdateInterventionProgress(ctx context.Context, id uuid.UUID, progress int, notes string) (intervention.Intervention, error) {
	if err := intervention.ValidateProgress(progress); err != nil {
		return intervention.Intervention{}, err
	}
	return s.updateIntervention(ctx, id,
		`UPDATE interventions SET progress = $2, notes = $3 WHERE id = $1`,
		progress, notes)
}

// CompleteIntervention marks an intervention completed at 100% progress.
func (s *Store) CompleteIntervention(ctx context.Context, id uuid.UUID) (intervention.Intervention, error) {
	return s.updateIntervention(ctx, id,
		`UPDATE interventions SET status = $2, progress = 100, next_session = NULL WHERE id = $1`,
		string(intervention.StatusCompleted))
}

func (s *Store) updateIntervention(ctx context.Context, id uuid.UUID, query string, args ...any) (intervention.Intervention, error) {
	var out intervention.Intervention
	err := s.withTx(ctx, func(ctx context.Context, tx dbtx) error {
		result, err := tx.ExecContext(ctx, query, append([]any{id}, args...)...)
		if err != nil {
			return fmt.Errorf("update intervention: %w", err)
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return intervention.ErrNotFound
		}
		out, err = scanIntervention(tx.QueryRowContext(ctx, selectIntervention+` WHERE i.id = $1`, id))
		if err != nil {
			return fmt.Errorf("reload intervention: %w", err)
		}
		return nil
	})
	return out, err
}
