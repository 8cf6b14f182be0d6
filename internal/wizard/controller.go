package wizard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nyashahama/wellbeing-risk-assessment/internal/assessment"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/catalog"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/scoring"
)

// OverviewStep is the index of the read-only subject summary. Category steps
// follow at 1..len(catalog.Categories()).
const OverviewStep = 0

// State is the lifecycle state of a Controller.
type State string

const (
	StateActive    State = "active"
	StateCancelled State = "cancelled"
	StateDone      State = "done"
)

// Controller walks one assessment from the overview through every catalog
// category to completion.
type Controller struct {
	catalog    *catalog.Catalog
	categories []catalog.Category
	subject    SubjectSummary

	session assessment.Session
	step    int
	state   State
	result  SaveResult

	deps   Deps
	logger *slog.Logger
}

// Start loads the subject summary and returns a controller positioned on the
// overview step. A lookup failure is returned unchanged.
func Start(ctx context.Context, cat *catalog.Catalog, subjectID string, deps Deps, logger *slog.Logger) (*Controller, error) {
	subject, err := deps.Subjects.GetSubjectSummary(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if subject.ID == "" {
		subject.ID = subjectID
	}

	c := &Controller{
		catalog:    cat,
		categories: catalog.Categories(),
		subject:    subject,
		session:    assessment.New(subjectID),
		step:       OverviewStep,
		state:      StateActive,
		deps:       deps,
		logger:     logger.With("subject_id", subjectID),
	}
	c.logger.Debug("wizard: started", "catalog_version", cat.Version())
	return c, nil
}

// ─── READS ───────────────────────────────────────────────────────────────────

// Session returns the current session value.
func (c *Controller) Session() assessment.Session { return c.session }

// Step returns the current step index.
func (c *Controller) Step() int { return c.step }

// LastStep returns the index of the final category step.
func (c *Controller) LastStep() int { return len(c.categories) }

// State returns the lifecycle state.
func (c *Controller) State() State { return c.state }

// Result returns the persistence result once the wizard is done.
func (c *Controller) Result() SaveResult { return c.result }

// currentCategory returns the category of the current step, or false on the
// overview.
func (c *Controller) currentCategory() (catalog.Category, bool) {
	if c.step == OverviewStep {
		return "", false
	}
	return c.categories[c.step-1], true
}

// ─── NAVIGATION ──────────────────────────────────────────────────────────────

// Next advances one step. At the last step it does nothing.
func (c *Controller) Next() {
	if c.state != StateActive {
		return
	}
	if c.step < c.LastStep() {
		c.step++
	}
}

// Previous goes back one step. On the overview it does nothing.
func (c *Controller) Previous() {
	if c.state != StateActive {
		return
	}
	if c.step > OverviewStep {
		c.step--
	}
}

// ─── MUTATIONS ───────────────────────────────────────────────────────────────

// Toggle flips the selection of an indicator of the current category: a
// selected indicator is removed, an unselected one added. The risk level is
// recomputed before Toggle returns.
func (c *Controller) Toggle(category catalog.Category, name string) error {
	if c.state != StateActive {
		return ErrFinished
	}
	current, ok := c.currentCategory()
	if !ok || current != category {
		return fmt.Errorf("%w: cannot toggle %q indicator on step %d", ErrInvalidState, category, c.step)
	}

	ind, ok := c.catalog.Lookup(category, name)
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnknownIndicator, category, name)
	}

	if sel, selected := c.session.Find(category, name); selected {
		c.session = c.session.RemoveIndicator(sel.ID)
		c.logger.Debug("wizard: indicator removed", "category", category, "name", name, "risk_level", c.session.RiskLevel())
		return nil
	}

	c.session, _ = c.session.AddIndicator(ind)
	c.logger.Debug("wizard: indicator added", "category", category, "name", name, "risk_level", c.session.RiskLevel())
	return nil
}

// SetNotes replaces the assessor's notes.
func (c *Controller) SetNotes(text string) error {
	if c.state != StateActive {
		return ErrFinished
	}
	c.session = c.session.SetNotes(text)
	return nil
}

// SetConfidenceLevel replaces the assessor's confidence value.
func (c *Controller) SetConfidenceLevel(n int) error {
	if c.state != StateActive {
		return ErrFinished
	}
	c.session = c.session.SetConfidenceLevel(n)
	return nil
}

// ─── TERMINAL TRANSITIONS ────────────────────────────────────────────────────

// Cancel discards the session and notifies the observer. Cancelling twice is
// a no-op.
func (c *Controller) Cancel(ctx context.Context) {
	if c.state != StateActive {
		return
	}
	c.state = StateCancelled
	c.session = assessment.New(c.session.SubjectID())
	c.logger.Info("wizard: cancelled")

	if c.deps.Observer != nil {
		c.deps.Observer.AssessmentCancelled(ctx, c.subject.ID)
	}
}

// Complete snapshots the session and hands it to the sink. It is only allowed
// on the last category step.
//
// A sink error is returned unchanged and the controller stays active, so the
// caller can retry. On success the controller is done and the observer is
// notified.
func (c *Controller) Complete(ctx context.Context) (assessment.Snapshot, error) {
	if c.state != StateActive {
		return assessment.Snapshot{}, ErrFinished
	}
	if c.step != c.LastStep() {
		return assessment.Snapshot{}, fmt.Errorf("%w: complete requires step %d, at step %d",
			ErrInvalidState, c.LastStep(), c.step)
	}

	snap := c.session.Complete()
	snap.CatalogVersion = c.catalog.Version()
	res, err := c.deps.Sink.SaveAssessment(ctx, snap)
	if err != nil {
		c.logger.Warn("wizard: save failed", "error", err)
		return assessment.Snapshot{}, err
	}

	c.state = StateDone
	c.result = res
	c.logger.Info("wizard: completed",
		"assessment_id", res.AssessmentID,
		"risk_level", snap.RiskLevel,
		"indicators", len(snap.Indicators),
	)

	if c.deps.Observer != nil {
		c.deps.Observer.AssessmentCompleted(ctx, snap, res)
	}
	return snap, nil
}

// ─── STEP DESCRIPTOR ─────────────────────────────────────────────────────────

// StepKind distinguishes the overview from category steps.
type StepKind string

const (
	KindOverview StepKind = "overview"
	KindCategory StepKind = "category"
)

// IndicatorState is one catalog indicator as presented on a category step.
type IndicatorState struct {
	Name        string     `json:"name"`
	Severity    int        `json:"severity"`
	Selected    bool       `json:"selected"`
	SelectionID *uuid.UUID `json:"selection_id,omitempty"`
}

// StepDescriptor is everything the presentation layer needs to render the
// current step.
type StepDescriptor struct {
	Index           int               `json:"index"`
	Total           int               `json:"total"`
	Progress        int               `json:"progress"` // percent of steps reached
	Kind            StepKind          `json:"kind"`
	Category        catalog.Category  `json:"category,omitempty"`
	CategoryLabel   string            `json:"category_label,omitempty"`
	Indicators      []IndicatorState  `json:"indicators,omitempty"`
	Subject         *SubjectSummary   `json:"subject,omitempty"`
	RiskLevel       scoring.RiskLevel `json:"overall_risk_level"`
	RiskLabel       string            `json:"risk_label"`
	SelectedCount   int               `json:"selected_count"`
	Notes           string            `json:"notes"`
	ConfidenceLevel int               `json:"confidence_level"`
	CanComplete     bool              `json:"can_complete"`
	State           State             `json:"state"`
}

// CurrentStep describes the current step.
func (c *Controller) CurrentStep() StepDescriptor {
	total := c.LastStep() + 1
	d := StepDescriptor{
		Index:           c.step,
		Total:           total,
		Progress:        ((c.step+1)*100 + total/2) / total,
		RiskLevel:       c.session.RiskLevel(),
		RiskLabel:       c.session.RiskLevel().Label(),
		SelectedCount:   c.session.Len(),
		Notes:           c.session.Notes(),
		ConfidenceLevel: c.session.ConfidenceLevel(),
		CanComplete:     c.state == StateActive && c.step == c.LastStep(),
		State:           c.state,
	}

	cat, ok := c.currentCategory()
	if !ok {
		d.Kind = KindOverview
		subject := c.subject
		d.Subject = &subject
		return d
	}

	d.Kind = KindCategory
	d.Category = cat
	d.CategoryLabel = c.catalog.Label(cat)
	for _, ind := range c.catalog.Indicators(cat) {
		st := IndicatorState{Name: ind.Name, Severity: ind.Severity}
		if sel, ok := c.session.Find(cat, ind.Name); ok {
			id := sel.ID
			st.Selected = true
			st.SelectionID = &id
		}
		d.Indicators = append(d.Indicators, st)
	}
	return d
}
