package store_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/nyashahama/wellbeing-risk-assessment/internal/assessment"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/catalog"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/intervention"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/scoring"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/store"
)

// ─── TEST INFRASTRUCTURE ──────────────────────────────────────────────────────

// openTestDB returns a migrated *sql.DB from DATABASE_URL. Skips if the env var
// is not set so the suite still passes in CI without a Postgres instance.
func openTestDB(t *testing.T) (*sql.DB, *store.Store) {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping store integration tests")
	}
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if err := pool.PingContext(context.Background()); err != nil {
		pool.Close()
		t.Fatalf("ping: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	st := store.New(pool)
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool, st
}

// seedStudent inserts a student with a unique id and removes it, together
// with its dependent rows, when the test ends.
func seedStudent(t *testing.T, pool *sql.DB) string {
	t.Helper()
	ctx := context.Background()
	id := "test-" + uuid.NewString()
	_, err := pool.ExecContext(ctx, `
		INSERT INTO students (id, first_name, last_name, grade, avg_grade, attendance_rate, behavior_score)
		VALUES ($1, 'Ana', 'García', '3ºB', 6.5, 92.5, 7)`, id)
	if err != nil {
		t.Fatalf("seed student: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.ExecContext(ctx, `DELETE FROM interventions WHERE student_id = $1`, id)
		_, _ = pool.ExecContext(ctx, `DELETE FROM risk_assessments WHERE student_id = $1`, id)
		_, _ = pool.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	})
	return id
}

func highSnapshot(t *testing.T, subjectID string) assessment.Snapshot {
	t.Helper()
	cat := catalog.Default()
	s := assessment.New(subjectID)
	for _, c := range []catalog.Category{catalog.Academic, catalog.Emotional} {
		for _, ind := range cat.Indicators(c) {
			if ind.Severity == 4 {
				s, _ = s.AddIndicator(ind)
				break
			}
		}
	}
	s = s.SetNotes("seguimiento semanal")
	if s.RiskLevel() != scoring.LevelHigh {
		t.Fatalf("fixture level = %s, want high", s.RiskLevel())
	}
	snap := s.Complete()
	snap.CatalogVersion = cat.Version()
	return snap
}

// ─── SUBJECTS ─────────────────────────────────────────────────────────────────

func TestGetSubjectSummary(t *testing.T) {
	pool, st := openTestDB(t)
	id := seedStudent(t, pool)

	sum, err := st.GetSubjectSummary(context.Background(), id)
	if err != nil {
		t.Fatalf("GetSubjectSummary: %v", err)
	}
	if sum.Name != "Ana García" || sum.Grade != "3ºB" {
		t.Errorf("summary = %+v", sum)
	}
	if sum.Academic.AttendanceRate != 92.5 {
		t.Errorf("AttendanceRate = %v, want 92.5", sum.Academic.AttendanceRate)
	}

	_, err = st.GetSubjectSummary(context.Background(), "missing-"+uuid.NewString())
	if !errors.Is(err, store.ErrSubjectNotFound) {
		t.Errorf("missing student err = %v, want ErrSubjectNotFound", err)
	}
}

// ─── ASSESSMENTS ──────────────────────────────────────────────────────────────

func TestSaveAssessment_RoundTrip(t *testing.T) {
	pool, st := openTestDB(t)
	ctx := context.Background()
	id := seedStudent(t, pool)
	snap := highSnapshot(t, id)

	res, err := st.SaveAssessment(ctx, snap)
	if err != nil {
		t.Fatalf("SaveAssessment: %v", err)
	}
	if res.AssessmentID == uuid.Nil || res.CreatedAt.IsZero() {
		t.Fatalf("SaveResult = %+v", res)
	}

	rec, err := st.GetAssessmentByID(ctx, res.AssessmentID)
	if err != nil {
		t.Fatalf("GetAssessmentByID: %v", err)
	}
	if rec.RiskLevel != scoring.LevelHigh || rec.TotalSeverity != 8 {
		t.Errorf("level=%s total=%d, want high/8", rec.RiskLevel, rec.TotalSeverity)
	}
	if diff := cmp.Diff(snap.Indicators, rec.Indicators); diff != "" {
		t.Errorf("indicators mismatch (-want +got):\n%s", diff)
	}
	if rec.CatalogVersion != catalog.DefaultVersion || rec.Notes != "seguimiento semanal" {
		t.Errorf("record = %+v", rec)
	}

	var current string
	if err := pool.QueryRowContext(ctx,
		`SELECT current_risk_level FROM students WHERE id = $1`, id).Scan(&current); err != nil {
		t.Fatalf("read student: %v", err)
	}
	if current != string(scoring.LevelHigh) {
		t.Errorf("current_risk_level = %q, want high", current)
	}

	list, err := st.ListAssessmentsByStudent(ctx, id)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListAssessmentsByStudent = %d rows, err %v", len(list), err)
	}
}

func TestSaveAssessment_UnknownStudentWritesNothing(t *testing.T) {
	pool, st := openTestDB(t)
	ctx := context.Background()
	missing := "missing-" + uuid.NewString()

	_, err := st.SaveAssessment(ctx, highSnapshot(t, missing))
	if !errors.Is(err, store.ErrSubjectNotFound) {
		t.Fatalf("err = %v, want ErrSubjectNotFound", err)
	}

	var n int
	if err := pool.QueryRowContext(ctx,
		`SELECT count(*) FROM risk_assessments WHERE student_id = $1`, missing).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("rows written = %d, want 0", n)
	}
}

func TestGetAssessmentByID_NotFound(t *testing.T) {
	_, st := openTestDB(t)
	_, err := st.GetAssessmentByID(context.Background(), uuid.New())
	if !errors.Is(err, store.ErrAssessmentNotFound) {
		t.Errorf("err = %v, want ErrAssessmentNotFound", err)
	}
}

func TestPendingAlerts_Lifecycle(t *testing.T) {
	pool, st := openTestDB(t)
	ctx := context.Background()
	id := seedStudent(t, pool)

	sent, err := st.SaveAssessment(ctx, highSnapshot(t, id))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	failed, err := st.SaveAssessment(ctx, highSnapshot(t, id))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	low, err := st.SaveAssessment(ctx, assessment.New(id).Complete())
	if err != nil {
		t.Fatalf("save low: %v", err)
	}

	pending := pendingSet(t, st)
	if !pending[sent.AssessmentID] || !pending[failed.AssessmentID] {
		t.Fatalf("high assessments missing from pending set")
	}
	if pending[low.AssessmentID] {
		t.Errorf("low assessment should never be pending")
	}

	if err := st.MarkAlertSent(ctx, sent.AssessmentID); err != nil {
		t.Fatalf("MarkAlertSent: %v", err)
	}
	if err := st.MarkAlertFailed(ctx, failed.AssessmentID, "smtp down"); err != nil {
		t.Fatalf("MarkAlertFailed: %v", err)
	}

	pending = pendingSet(t, st)
	if pending[sent.AssessmentID] || pending[failed.AssessmentID] {
		t.Errorf("resolved assessments still pending")
	}

	rec, err := st.GetAssessmentByID(ctx, sent.AssessmentID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !rec.AlertSentAt.Valid {
		t.Errorf("AlertSentAt not set")
	}
}

func pendingSet(t *testing.T, st *store.Store) map[uuid.UUID]bool {
	t.Helper()
	ids, err := st.ListPendingAlerts(context.Background())
	if err != nil {
		t.Fatalf("ListPendingAlerts: %v", err)
	}
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// ─── INTERVENTIONS ────────────────────────────────────────────────────────────

func TestInterventions_ProgressAndComplete(t *testing.T) {
	pool, st := openTestDB(t)
	ctx := context.Background()
	id := seedStudent(t, pool)

	start := time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)
	next := time.Date(2024, 10, 7, 10, 0, 0, 0, time.UTC)
	iv, err := st.CreateIntervention(ctx, intervention.Intervention{
		StudentID:       id,
		Type:            intervention.TypePsychological,
		Status:          intervention.StatusActive,
		Priority:        intervention.PriorityHigh,
		Professional:    "Dra. López",
		StartDate:       start,
		ExpectedEndDate: start.AddDate(0, 3, 0),
		TotalSessions:   12,
		NextSession:     &next,
		Objectives:      []string{"reducir ansiedad", "mejorar asistencia"},
		Progress:        40,
	})
	if err != nil {
		t.Fatalf("CreateIntervention: %v", err)
	}
	if iv.StudentName != "Ana García" {
		t.Errorf("StudentName = %q", iv.StudentName)
	}
	if diff := cmp.Diff([]string{"reducir ansiedad", "mejorar asistencia"}, iv.Objectives); diff != "" {
		t.Errorf("objectives (-want +got):\n%s", diff)
	}

	iv, err = st.UpdateInterventionProgress(ctx, iv.ID, 75, "buena evolución")
	if err != nil {
		t.Fatalf("UpdateInterventionProgress: %v", err)
	}
	if iv.Progress != 75 || iv.Notes != "buena evolución" {
		t.Errorf("after update = %+v", iv)
	}

	if _, err := st.UpdateInterventionProgress(ctx, iv.ID, 101, ""); !errors.Is(err, intervention.ErrInvalidProgress) {
		t.Errorf("progress 101 err = %v, want ErrInvalidProgress", err)
	}

	iv, err = st.CompleteIntervention(ctx, iv.ID)
	if err != nil {
		t.Fatalf("CompleteIntervention: %v", err)
	}
	if iv.Status != intervention.StatusCompleted || iv.Progress != 100 || iv.NextSession != nil {
		t.Errorf("after complete = %+v", iv)
	}

	all, err := st.ListInterventions(ctx)
	if err != nil {
		t.Fatalf("ListInterventions: %v", err)
	}
	found := false
	for _, x := range all {
		if x.ID == iv.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("created intervention missing from list")
	}
}

func TestInterventions_NotFound(t *testing.T) {
	_, st := openTestDB(t)
	ctx := context.Background()
	if _, err := st.GetIntervention(ctx, uuid.New()); !errors.Is(err, intervention.ErrNotFound) {
		t.Errorf("GetIntervention err = %v", err)
	}
	if _, err := st.CompleteIntervention(ctx, uuid.New()); !errors.Is(err, intervention.ErrNotFound) {
		t.Errorf("CompleteIntervention err = %v", err)
	}
}

func TestCreateIntervention_UnknownStudent(t *testing.T) {
	_, st := openTestDB(t)
	start := time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)
	_, err := st.CreateIntervention(context.Background(), intervention.Intervention{
		StudentID:       "no-such-student",
		Type:            intervention.TypeFamily,
		Professional:    "Trabajo social",
		StartDate:       start,
		ExpectedEndDate: start.AddDate(0, 1, 0),
	})
	if !errors.Is(err, store.ErrSubjectNotFound) {
		t.Errorf("err = %v, want ErrSubjectNotFound", err)
	}
}

func TestCreateIntervention_NoObjectives(t *testing.T) {
	pool, st := openTestDB(t)
	ctx := context.Background()
	id := seedStudent(t, pool)

	start := time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)
	iv, err := st.CreateIntervention(ctx, intervention.Intervention{
		StudentID:       id,
		Type:            intervention.TypeSocial,
		Professional:    "Orientación",
		StartDate:       start,
		ExpectedEndDate: start.AddDate(0, 2, 0),
	})
	if err != nil {
		t.Fatalf("CreateIntervention: %v", err)
	}
	if iv.Objectives == nil || len(iv.Objectives) != 0 {
		t.Errorf("Objectives = %#v, want empty slice", iv.Objectives)
	}
	if iv.Status != intervention.StatusPlanned || iv.Priority != intervention.PriorityMedium {
		t.Errorf("defaults: status=%s priority=%s", iv.Status, iv.Priority)
	}
}

func TestSaveAssessment_ConcurrentSameStudent(t *testing.T) {
	pool, st := openTestDB(t)
	ctx := context.Background()
	id := seedStudent(t, pool)

	snap := highSnapshot(t, id)

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.SaveAssessment(ctx, snap)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("SaveAssessment: %v", err)
		}
	}
	recs, err := st.ListAssessmentsByStudent(ctx, id)
	if err != nil {
		t.Fatalf("ListAssessmentsByStudent: %v", err)
	}
	if len(recs) != n {
		t.Errorf("stored %d assessments, want %d", len(recs), n)
	}
}
