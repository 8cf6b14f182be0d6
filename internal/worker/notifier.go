package worker

import (
	"context"
	"log/slog"

	"github.com/nyashahama/wellbeing-risk-assessment/internal/assessment"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/wizard"
)

// Notifier is the wizard.Observer that feeds the alert queue. Assessments
// below AlertThreshold are only logged.
type Notifier struct {
	queue  Enqueuer
	logger *slog.Logger
}

var _ wizard.Observer = (*Notifier)(nil)

// NewNotifier returns a Notifier that enqueues onto q.
func NewNotifier(q Enqueuer, logger *slog.Logger) *Notifier {
	return &Notifier{queue: q, logger: logger}
}

// AssessmentCompleted enqueues an alert for high and critical assessments.
// An enqueue failure is logged only; the poller recovers the alert from the
// database.
func (n *Notifier) AssessmentCompleted(ctx context.Context, snap assessment.Snapshot, res wizard.SaveResult) {
	log := n.logger.With(
		"assessment_id", res.AssessmentID,
		"student_id", snap.SubjectID,
		"risk_level", snap.RiskLevel,
	)
	if !snap.RiskLevel.AtLeast(AlertThreshold) {
		log.Info("assessment completed")
		return
	}
	log.Warn("assessment completed above alert threshold")
	if err := n.queue.Enqueue(ctx, res.AssessmentID); err != nil {
		log.Error("notifier: enqueue alert", "error", err)
	}
}

// AssessmentCancelled records the abandoned assessment.
func (n *Notifier) AssessmentCancelled(ctx context.Context, subjectID string) {
	n.logger.InfoContext(ctx, "assessment cancelled", "student_id", subjectID)
}
