package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/nyashahama/wellbeing-risk-assessment/internal/wizard"
)

// ErrSubjectNotFound is returned when no student has the requested id.
var ErrSubjectNotFound = errors.New("store: student not found")

// GetSubjectSummary loads the overview data for a student. It satisfies
// wizard.SubjectLookup.
func (s *Store) GetSubjectSummary(ctx context.Context, subjectID string) (wizard.SubjectSummary, error) {
	var (
		first, last string
		sum         wizard.SubjectSummary
	)
	err := s.pool.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, grade, avg_grade, attendance_rate, behavior_score
		FROM students
		WHERE id = $1`, subjectID,
	).Scan(
		&sum.ID, &first, &last, &sum.Grade,
		&sum.Academic.AverageGrade, &sum.Academic.AttendanceRate, &sum.Academic.BehaviorScore,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return wizard.SubjectSummary{}, fmt.Errorf("%w: %s", ErrSubjectNotFound, subjectID)
	}
	if err != nil {
		return wizard.SubjectSummary{}, fmt.Errorf("GetSubjectSummary: %w", err)
	}

	sum.Name = strings.TrimSpace(first + " " + last)
	return sum, nil
}
