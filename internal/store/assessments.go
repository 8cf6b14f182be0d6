package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/nyashahama/wellbeing-risk-assessment/internal/assessment"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/scoring"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/wizard"
)

// ─── TYPES ───────────────────────────────────────────────────────────────────

// AssessmentRecord is a persisted assessment joined with its student.
type AssessmentRecord struct {
	ID              uuid.UUID
	StudentID       string
	StudentName     string
	StudentGrade    string
	RiskLevel       scoring.RiskLevel
	Indicators      []assessment.SelectedIndicator
	TotalSeverity   int
	Notes           string
	ConfidenceLevel int
	CatalogVersion  string
	CreatedAt       time.Time
	AlertSentAt     sql.NullTime
}

// ─── ERRORS ──────────────────────────────────────────────────────────────────

// ErrAssessmentNotFound is returned when no assessment has the requested id.
var ErrAssessmentNotFound = errors.New("store: assessment not found")

// ─── METHODS ─────────────────────────────────────────────────────────────────

// SaveAssessment persists a completed assessment. It satisfies wizard.Sink.
// In one transaction it:
//
//  1. Updates the student's current risk level (and so checks it exists).
//  2. Inserts the risk_assessments row with the indicator snapshot as JSONB.
//
// If the student row does not exist, nothing is written and
// ErrSubjectNotFound is returned.
func (s *Store) SaveAssessment(ctx context.Context, snap assessment.Snapshot) (wizard.SaveResult, error) {
	indicatorsJSON, err := json.Marshal(snap.Indicators)
	if err != nil {
		return wizard.SaveResult{}, fmt.Errorf("SaveAssessment: marshal indicators: %w", err)
	}

	res := wizard.SaveResult{AssessmentID: uuid.New()}
	total := scoring.Analyze(snap.Severities()).TotalSeverity

	err = s.withTx(ctx, func(ctx context.Context, tx dbtx) error {
		// now() is the transaction start time, so both rows carry the same
		// timestamp.
		result, err := tx.ExecContext(ctx, `
			UPDATE students
			SET current_risk_level = $2, risk_assessed_at = now()
			WHERE id = $1`,
			snap.SubjectID, string(snap.RiskLevel),
		)
		if err != nil {
			return fmt.Errorf("SaveAssessment: update student: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("SaveAssessment: rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrSubjectNotFound, snap.SubjectID)
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO risk_assessments
				(id, student_id, overall_risk_level, indicators, total_severity,
				 notes, confidence_level, catalog_version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at`,
			res.AssessmentID,
			snap.SubjectID,
			string(snap.RiskLevel),
			pqtype.NullRawMessage{RawMessage: indicatorsJSON, Valid: true},
			total,
			snap.Notes,
			snap.ConfidenceLevel,
			snap.CatalogVersion,
		).Scan(&res.CreatedAt)
		if err != nil {
			return fmt.Errorf("SaveAssessment: insert assessment: %w", err)
		}
		return nil
	})
	if err != nil {
		return wizard.SaveResult{}, err
	}
	return res, nil
}

const selectAssessment = `
	SELECT a.id, a.student_id, s.first_name || ' ' || s.last_name, s.grade,
	       a.overall_risk_level, a.indicators, a.total_severity, a.notes,
	       a.confidence_level, a.catalog_version, a.created_at, a.alert_sent_at
	FROM risk_assessments a
	JOIN students s ON s.id = a.student_id`

func scanAssessment(row interface{ Scan(...any) error }) (AssessmentRecord, error) {
	var (
		rec   AssessmentRecord
		level string
		raw   pqtype.NullRawMessage
	)
	if err := row.Scan(
		&rec.ID, &rec.StudentID, &rec.StudentName, &rec.StudentGrade,
		&level, &raw, &rec.TotalSeverity, &rec.Notes,
		&rec.ConfidenceLevel, &rec.CatalogVersion, &rec.CreatedAt, &rec.AlertSentAt,
	); err != nil {
		return AssessmentRecord{}, err
	}
	rec.RiskLevel = scoring.RiskLevel(level)
	if raw.Valid {
		if err := json.Unmarshal(raw.RawMessage, &rec.Indicators); err != nil {
			return AssessmentRecord{}, fmt.Errorf("decode indicators: %w", err)
		}
	}
	return rec, nil
}

// GetAssessmentByID loads one assessment with its student's name and grade.
func (s *Store) GetAssessmentByID(ctx context.Context, id uuid.UUID) (AssessmentRecord, error) {
	rec, err := scanAssessment(s.pool.QueryRowContext(ctx, selectAssessment+` WHERE a.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return AssessmentRecord{}, ErrAssessmentNotFound
	}
	if err != nil {
		return AssessmentRecord{}, fmt.Errorf("GetAssessmentByID: %w", err)
	}
	return rec, nil
}

// ListAssessmentsByStudent returns a student's assessments, newest first.
func (s *Store) ListAssessmentsByStudent(ctx context.Context, studentID string) ([]AssessmentRecord, error) {
	rows, err := s.pool.QueryContext(ctx,
		selectAssessment+` WHERE a.student_id = $1 ORDER BY a.created_at DESC`, studentID)
	if err != nil {
		return nil, fmt.Errorf("ListAssessmentsByStudent: %w", err)
	}
	defer rows.Close()

	var out []AssessmentRecord
	for rows.Next() {
		rec, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("ListAssessmentsByStudent: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListPendingAlerts returns the ids of high and critical assessments whose
// alert has neither been sent nor permanently failed, oldest first.
func (s *Store) ListPendingAlerts(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.pool.QueryContext(ctx, `
		SELECT id FROM risk_assessments
		WHERE alert_sent_at IS NULL AND alert_failed_at IS NULL
		  AND overall_risk_level IN ('high', 'critical')
		ORDER BY created_at
		LIMIT 100`)
	if err != nil {
		return nil, fmt.Errorf("ListPendingAlerts: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ListPendingAlerts: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkAlertSent records that the alert for an assessment was delivered.
func (s *Store) MarkAlertSent(ctx context.Context, id uuid.UUID) error {
	if _, err := s.pool.ExecContext(ctx,
		`UPDATE risk_assessments SET alert_sent_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("MarkAlertSent: %w", err)
	}
	return nil
}

// MarkAlertFailed records that alert delivery was given up on, so the poller
// stops picking the assessment up.
func (s *Store) MarkAlertFailed(ctx context.Context, id uuid.UUID, reason string) error {
	if _, err := s.pool.ExecContext(ctx,
		`UPDATE risk_assessments SET alert_failed_at = now(), alert_error = $2 WHERE id = $1`,
		id, reason); err != nil {
		return fmt.Errorf("MarkAlertFailed: %w", err)
	}
	return nil
}
