package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nyashahama/wellbeing-risk-assessment/internal/catalog"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/email"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/scoring"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/store"
)

// AlertStore is the persistence the alert job needs. *store.Store satisfies it.
type AlertStore interface {
	GetAssessmentByID(ctx context.Context, id uuid.UUID) (store.AssessmentRecord, error)
	MarkAlertSent(ctx context.Context, id uuid.UUID) error
}

// AlertThreshold is the lowest risk level that triggers an alert.
const AlertThreshold = scoring.LevelHigh

// Job sends the risk alert for one assessment.
type Job struct {
	store      AlertStore
	mailer     email.Sender
	catalog    *catalog.Catalog
	recipients []string
	logger     *slog.Logger
}

// NewJob constructs a Job. The catalog is only used for category labels.
func NewJob(
	st AlertStore,
	mailer email.Sender,
	cat *catalog.Catalog,
	recipients []string,
	logger *slog.Logger,
) *Job {
	return &Job{
		store:      st,
		mailer:     mailer,
		catalog:    cat,
		recipients: recipients,
		logger:     logger,
	}
}

// Run executes the alert pipeline for a single assessment:
//
//  1. Load the assessment with its student.
//  2. Skip it if the alert went out already or the level is below threshold.
//  3. Send the alert email.
//  4. Mark the alert as sent.
//
// Any error is returned to the Runner, which retries up to MaxRetries times
// before calling MarkAlertFailed.
func (j *Job) Run(ctx context.Context, assessmentID uuid.UUID) error {
	log := j.logger.With("assessment_id", assessmentID)

	rec, err := j.store.GetAssessmentByID(ctx, assessmentID)
	if err != nil {
		return fmt.Errorf("job: get assessment: %w", err)
	}

	if rec.AlertSentAt.Valid {
		log.Debug("job: alert already sent")
		return nil
	}
	if !rec.RiskLevel.AtLeast(AlertThreshold) {
		log.Debug("job: below alert threshold", "risk_level", rec.RiskLevel)
		return nil
	}

	if err := j.mailer.SendRiskAlert(ctx, j.alertParams(rec)); err != nil {
		return fmt.Errorf("job: send alert: %w", err)
	}

	if err := j.store.MarkAlertSent(ctx, assessmentID); err != nil {
		return fmt.Errorf("job: mark alert sent: %w", err)
	}

	log.Info("job: alert sent",
		"student_id", rec.StudentID,
		"risk_level", rec.RiskLevel,
		"recipients", len(j.recipients),
	)
	return nil
}

func (j *Job) alertParams(rec store.AssessmentRecord) email.RiskAlertParams {
	indicators := make([]email.AlertIndicator, len(rec.Indicators))
	for i, ind := range rec.Indicators {
		label := string(ind.Category)
		if j.catalog != nil {
			label = j.catalog.Label(ind.Category)
		}
		indicators[i] = email.AlertIndicator{
			Category: label,
			Name:     ind.Name,
			Severity: ind.Severity,
		}
	}

	return email.RiskAlertParams{
		To:              j.recipients,
		AssessmentID:    rec.ID,
		StudentID:       rec.StudentID,
		StudentName:     rec.StudentName,
		StudentGrade:    rec.StudentGrade,
		RiskLevel:       string(rec.RiskLevel),
		RiskLabel:       rec.RiskLevel.Label(),
		TotalSeverity:   rec.TotalSeverity,
		Indicators:      indicators,
		Notes:           rec.Notes,
		ConfidenceLevel: rec.ConfidenceLevel,
		AssessedAt:      rec.CreatedAt,
	}
}
