package wizard_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/nyashahama/wellbeing-risk-assessment/internal/assessment"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/catalog"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/scoring"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/wizard"
)

// ─── STUBS ────────────────────────────────────────────────────────────────────

type stubSubjects struct {
	summary wizard.SubjectSummary
	err     error
}

func (s *stubSubjects) GetSubjectSummary(_ context.Context, id string) (wizard.SubjectSummary, error) {
	if s.err != nil {
		return wizard.SubjectSummary{}, s.err
	}
	out := s.summary
	out.ID = id
	return out, nil
}

type stubSink struct {
	saved []assessment.Snapshot
	err   error
}

func (s *stubSink) SaveAssessment(_ context.Context, snap assessment.Snapshot) (wizard.SaveResult, error) {
	if s.err != nil {
		return wizard.SaveResult{}, s.err
	}
	s.saved = append(s.saved, snap)
	return wizard.SaveResult{AssessmentID: uuid.New(), CreatedAt: time.Now()}, nil
}

type stubObserver struct {
	cancelled []string
	completed []assessment.Snapshot
}

func (o *stubObserver) AssessmentCancelled(_ context.Context, subjectID string) {
	o.cancelled = append(o.cancelled, subjectID)
}

func (o *stubObserver) AssessmentCompleted(_ context.Context, snap assessment.Snapshot, _ wizard.SaveResult) {
	o.completed = append(o.completed, snap)
}

// ─── HELPERS ─────────────────────────────────────────────────────────────────

type fixture struct {
	ctrl     *wizard.Controller
	sink     *stubSink
	observer *stubObserver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sink := &stubSink{}
	obs := &stubObserver{}
	subjects := &stubSubjects{summary: wizard.SubjectSummary{
		Name:     "María González",
		Grade:    "7° Básico A",
		Academic: wizard.AcademicSummary{AverageGrade: 4.2, AttendanceRate: 75.5, BehaviorScore: 6.8},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctrl, err := wizard.Start(context.Background(), catalog.Default(), "stu_1",
		wizard.Deps{Subjects: subjects, Sink: sink, Observer: obs}, logger)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return &fixture{ctrl: ctrl, sink: sink, observer: obs}
}

// goTo navigates to step n from wherever the controller is.
func goTo(c *wizard.Controller, n int) {
	for c.Step() > n {
		c.Previous()
	}
	for c.Step() < n {
		c.Next()
	}
}

func mustToggle(t *testing.T, c *wizard.Controller, cat catalog.Category, name string) {
	t.Helper()
	if err := c.Toggle(cat, name); err != nil {
		t.Fatalf("Toggle(%s, %s): %v", cat, name, err)
	}
}

// ─── Start ───────────────────────────────────────────────────────────────────

func TestStart_BeginsOnOverview(t *testing.T) {
	f := newFixture(t)
	step := f.ctrl.CurrentStep()

	if step.Index != wizard.OverviewStep || step.Kind != wizard.KindOverview {
		t.Errorf("expected overview, got index=%d kind=%s", step.Index, step.Kind)
	}
	if step.Total != 6 {
		t.Errorf("total steps: got %d, want 6", step.Total)
	}
	if step.Subject == nil || step.Subject.Name != "María González" || step.Subject.ID != "stu_1" {
		t.Errorf("subject: %+v", step.Subject)
	}
	if step.RiskLevel != scoring.LevelLow || step.ConfidenceLevel != assessment.DefaultConfidence {
		t.Errorf("initial level=%s confidence=%d", step.RiskLevel, step.ConfidenceLevel)
	}
	if step.Progress != 17 {
		t.Errorf("progress: got %d, want 17", step.Progress)
	}
}

func TestStart_LookupErrorIsRelayed(t *testing.T) {
	lookupErr := errors.New("student not found")
	_, err := wizard.Start(context.Background(), catalog.Default(), "missing",
		wizard.Deps{Subjects: &stubSubjects{err: lookupErr}, Sink: &stubSink{}},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	if !errors.Is(err, lookupErr) {
		t.Errorf("expected lookup error, got %v", err)
	}
}

// ─── Navigation ──────────────────────────────────────────────────────────────

func TestNavigation_CategoriesInCatalogOrder(t *testing.T) {
	f := newFixture(t)
	var got []catalog.Category
	for range 5 {
		f.ctrl.Next()
		got = append(got, f.ctrl.CurrentStep().Category)
	}
	if diff := cmp.Diff(catalog.Categories(), got); diff != "" {
		t.Errorf("category order (-want +got):\n%s", diff)
	}
}

func TestNavigation_ClampedAtBothEnds(t *testing.T) {
	f := newFixture(t)

	for range 20 {
		f.ctrl.Next()
	}
	if f.ctrl.Step() != f.ctrl.LastStep() || f.ctrl.LastStep() != 5 {
		t.Errorf("next beyond last: step=%d", f.ctrl.Step())
	}
	if step := f.ctrl.CurrentStep(); step.Category != catalog.Family || step.Progress != 100 {
		t.Errorf("last step: category=%s progress=%d", step.Category, step.Progress)
	}

	for range 20 {
		f.ctrl.Previous()
	}
	if f.ctrl.Step() != wizard.OverviewStep {
		t.Errorf("previous beyond first: step=%d", f.ctrl.Step())
	}
}

// ─── Toggle ──────────────────────────────────────────────────────────────────

func TestToggle_AddsThenRemoves(t *testing.T) {
	f := newFixture(t)
	goTo(f.ctrl, 4) // behavioral

	mustToggle(t, f.ctrl, catalog.Behavioral, "Autolesión")
	step := f.ctrl.CurrentStep()
	if step.RiskLevel != scoring.LevelCritical {
		t.Errorf("after selecting severity 5: got %s", step.RiskLevel)
	}
	var found bool
	for _, ind := range step.Indicators {
		if ind.Name == "Autolesión" {
			found = ind.Selected && ind.SelectionID != nil
		}
	}
	if !found {
		t.Error("indicator should be marked selected with an id")
	}

	mustToggle(t, f.ctrl, catalog.Behavioral, "Autolesión")
	if f.ctrl.Session().Len() != 0 || f.ctrl.CurrentStep().RiskLevel != scoring.LevelLow {
		t.Errorf("second toggle should deselect: len=%d level=%s",
			f.ctrl.Session().Len(), f.ctrl.CurrentStep().RiskLevel)
	}
}

func TestToggle_LevelTracksSelectionAcrossSteps(t *testing.T) {
	f := newFixture(t)

	goTo(f.ctrl, 2) // social
	mustToggle(t, f.ctrl, catalog.Social, "Víctima de bullying") // 4
	if got := f.ctrl.CurrentStep().RiskLevel; got != scoring.LevelMedium {
		t.Errorf("one high: got %s", got)
	}

	goTo(f.ctrl, 3) // emotional
	mustToggle(t, f.ctrl, catalog.Emotional, "Ansiedad severa") // 4
	if got := f.ctrl.CurrentStep().RiskLevel; got != scoring.LevelHigh {
		t.Errorf("two high: got %s", got)
	}
}

func TestToggle_WrongStepIsInvalidState(t *testing.T) {
	f := newFixture(t)

	if err := f.ctrl.Toggle(catalog.Academic, "Ausencias frecuentes"); !errors.Is(err, wizard.ErrInvalidState) {
		t.Errorf("toggle on overview: expected ErrInvalidState, got %v", err)
	}

	goTo(f.ctrl, 1) // academic
	if err := f.ctrl.Toggle(catalog.Family, "Violencia intrafamiliar"); !errors.Is(err, wizard.ErrInvalidState) {
		t.Errorf("toggle other category: expected ErrInvalidState, got %v", err)
	}
	if f.ctrl.Session().Len() != 0 {
		t.Error("failed toggle must not change the selection")
	}
}

func TestToggle_UnknownIndicator(t *testing.T) {
	f := newFixture(t)
	goTo(f.ctrl, 1)
	if err := f.ctrl.Toggle(catalog.Academic, "Nope"); !errors.Is(err, wizard.ErrUnknownIndicator) {
		t.Errorf("expected ErrUnknownIndicator, got %v", err)
	}
}

// ─── Complete ────────────────────────────────────────────────────────────────

func TestComplete_BeforeLastStepFails(t *testing.T) {
	f := newFixture(t)
	goTo(f.ctrl, 1)
	mustToggle(t, f.ctrl, catalog.Academic, "Bajo rendimiento académico")
	goTo(f.ctrl, 3)
	before := f.ctrl.Session().Indicators()

	_, err := f.ctrl.Complete(context.Background())
	if !errors.Is(err, wizard.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if diff := cmp.Diff(before, f.ctrl.Session().Indicators()); diff != "" {
		t.Errorf("selection changed (-before +after):\n%s", diff)
	}
	if len(f.sink.saved) != 0 {
		t.Error("sink must not be called")
	}
	if f.ctrl.State() != wizard.StateActive {
		t.Errorf("state: got %s", f.ctrl.State())
	}

	// Retry after advancing succeeds.
	goTo(f.ctrl, f.ctrl.LastStep())
	if _, err := f.ctrl.Complete(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestComplete_SavesAndNotifies(t *testing.T) {
	f := newFixture(t)
	goTo(f.ctrl, 5)
	mustToggle(t, f.ctrl, catalog.Family, "Negligencia parental")
	if err := f.ctrl.SetNotes("derivar a orientación"); err != nil {
		t.Fatal(err)
	}
	if err := f.ctrl.SetConfidenceLevel(8); err != nil {
		t.Fatal(err)
	}

	snap, err := f.ctrl.Complete(context.Background())
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if snap.SubjectID != "stu_1" || snap.RiskLevel != scoring.LevelMedium ||
		snap.Notes != "derivar a orientación" || snap.ConfidenceLevel != 8 || len(snap.Indicators) != 1 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if len(f.sink.saved) != 1 {
		t.Fatalf("expected 1 save, got %d", len(f.sink.saved))
	}
	if len(f.observer.completed) != 1 {
		t.Errorf("observer should be notified once, got %d", len(f.observer.completed))
	}
	if f.ctrl.State() != wizard.StateDone || f.ctrl.Result().AssessmentID == uuid.Nil {
		t.Errorf("state=%s result=%+v", f.ctrl.State(), f.ctrl.Result())
	}

	// Finished controllers reject further work.
	if _, err := f.ctrl.Complete(context.Background()); !errors.Is(err, wizard.ErrFinished) {
		t.Errorf("second complete: expected ErrFinished, got %v", err)
	}
	if err := f.ctrl.Toggle(catalog.Family, "Negligencia parental"); !errors.Is(err, wizard.ErrFinished) {
		t.Errorf("toggle after done: expected ErrFinished, got %v", err)
	}
}

func TestComplete_SinkErrorAllowsRetry(t *testing.T) {
	f := newFixture(t)
	goTo(f.ctrl, 5)
	mustToggle(t, f.ctrl, catalog.Family, "Violencia intrafamiliar")

	saveErr := errors.New("db unavailable")
	f.sink.err = saveErr

	if _, err := f.ctrl.Complete(context.Background()); !errors.Is(err, saveErr) {
		t.Fatalf("expected sink error relayed, got %v", err)
	}
	if f.ctrl.State() != wizard.StateActive || f.ctrl.Session().Len() != 1 {
		t.Errorf("session should survive: state=%s len=%d", f.ctrl.State(), f.ctrl.Session().Len())
	}
	if len(f.observer.completed) != 0 {
		t.Error("observer must not be notified on failure")
	}

	f.sink.err = nil
	snap, err := f.ctrl.Complete(context.Background())
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if snap.RiskLevel != scoring.LevelCritical {
		t.Errorf("level: got %s", snap.RiskLevel)
	}
}

// ─── Cancel ──────────────────────────────────────────────────────────────────

func TestCancel_DiscardsAndNotifies(t *testing.T) {
	f := newFixture(t)
	goTo(f.ctrl, 1)
	mustToggle(t, f.ctrl, catalog.Academic, "Ausencias frecuentes")

	f.ctrl.Cancel(context.Background())
	f.ctrl.Cancel(context.Background()) // idempotent

	if f.ctrl.State() != wizard.StateCancelled {
		t.Errorf("state: got %s", f.ctrl.State())
	}
	if f.ctrl.Session().Len() != 0 {
		t.Error("cancel should discard the selection")
	}
	if diff := cmp.Diff([]string{"stu_1"}, f.observer.cancelled); diff != "" {
		t.Errorf("cancel notifications (-want +got):\n%s", diff)
	}
	if _, err := f.ctrl.Complete(context.Background()); !errors.Is(err, wizard.ErrFinished) {
		t.Errorf("complete after cancel: expected ErrFinished, got %v", err)
	}
	if err := f.ctrl.SetNotes("x"); !errors.Is(err, wizard.ErrFinished) {
		t.Errorf("set notes after cancel: expected ErrFinished, got %v", err)
	}

	step := f.ctrl.Step()
	f.ctrl.Next()
	if f.ctrl.Step() != step {
		t.Error("navigation after cancel must be ignored")
	}
}
