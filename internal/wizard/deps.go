// Package wizard sequences an assessor through the indicator catalog, one
// category per step, and hands the finished assessment to a persistence sink.
//
// A Controller owns exactly one assessment.Session. It is not safe for
// concurrent use; the Registry serialises access when controllers are shared
// with the HTTP layer.
package wizard

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nyashahama/wellbeing-risk-assessment/internal/assessment"
)

// ─── ERRORS ──────────────────────────────────────────────────────────────────

// ErrInvalidState is returned when an operation is not allowed from the
// current step, e.g. Complete before the last category. The session is left
// untouched and the call can be retried after navigating.
var ErrInvalidState = errors.New("wizard: operation not allowed in current step")

// ErrUnknownIndicator is returned by Toggle when the catalog has no such
// indicator in the given category.
var ErrUnknownIndicator = errors.New("wizard: unknown indicator")

// ErrFinished is returned by every mutating call after the wizard was
// cancelled or completed.
var ErrFinished = errors.New("wizard: assessment already finished")

// ─── COLLABORATORS ───────────────────────────────────────────────────────────

// AcademicSummary is the read-only performance data shown on the overview.
type AcademicSummary struct {
	AverageGrade   float64 `json:"average_grade"`
	AttendanceRate float64 `json:"attendance_rate"`
	BehaviorScore  float64 `json:"behavior_score"`
}

// SubjectSummary describes the student being assessed. It is display data
// only and never feeds into scoring.
type SubjectSummary struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Grade    string          `json:"grade"`
	Academic AcademicSummary `json:"academic"`
}

// SubjectLookup loads the overview data for a student.
type SubjectLookup interface {
	GetSubjectSummary(ctx context.Context, subjectID string) (SubjectSummary, error)
}

// SaveResult identifies the persisted assessment.
type SaveResult struct {
	AssessmentID uuid.UUID `json:"assessment_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Sink persists completed assessments. Called once per successful Complete.
type Sink interface {
	SaveAssessment(ctx context.Context, snap assessment.Snapshot) (SaveResult, error)
}

// Observer is notified when a wizard reaches a terminal state. Implementations
// must not block; long work belongs on a queue.
type Observer interface {
	AssessmentCancelled(ctx context.Context, subjectID string)
	AssessmentCompleted(ctx context.Context, snap assessment.Snapshot, res SaveResult)
}

// Deps groups the collaborators a Controller needs. Observer may be nil.
type Deps struct {
	Subjects SubjectLookup
	Sink     Sink
	Observer Observer
}
