package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nyashahama/wellbeing-risk-assessment/internal/assessment"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/scoring"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/store"
)

// recordResponse is the JSON shape of a persisted assessment. It flattens
// store.AssessmentRecord into a clean structure.
type recordResponse struct {
	AssessmentID    string                         `json:"assessment_id"`
	StudentID       string                         `json:"student_id"`
	StudentName     string                         `json:"student_name"`
	StudentGrade    string                         `json:"student_grade"`
	RiskLevel       scoring.RiskLevel              `json:"overall_risk_level"`
	RiskLabel       string                         `json:"risk_label"`
	TotalSeverity   int                            `json:"total_severity"`
	Indicators      []assessment.SelectedIndicator `json:"indicators"`
	Notes           string                         `json:"notes"`
	ConfidenceLevel int                            `json:"confidence_level"`
	CatalogVersion  string                         `json:"catalog_version,omitempty"`
	CreatedAt       string                         `json:"created_at"`
	AlertSentAt     string                         `json:"alert_sent_at,omitempty"`
}

func toRecordResponse(rec store.AssessmentRecord) recordResponse {
	resp := recordResponse{
		AssessmentID:    rec.ID.String(),
		StudentID:       rec.StudentID,
		StudentName:     rec.StudentName,
		StudentGrade:    rec.StudentGrade,
		RiskLevel:       rec.RiskLevel,
		RiskLabel:       rec.RiskLevel.Label(),
		TotalSeverity:   rec.TotalSeverity,
		Indicators:      rec.Indicators,
		Notes:           rec.Notes,
		ConfidenceLevel: rec.ConfidenceLevel,
		CatalogVersion:  rec.CatalogVersion,
		CreatedAt:       rec.CreatedAt.UTC().Format(time.RFC3339),
	}
	if resp.Indicators == nil {
		resp.Indicators = []assessment.SelectedIndicator{}
	}
	if rec.AlertSentAt.Valid {
		resp.AlertSentAt = rec.AlertSentAt.Time.UTC().Format(time.RFC3339)
	}
	return resp
}

// ─── GET /api/records/:assessmentID ───────────────────────────────────────────

// handleGetRecord serves one persisted assessment.
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "assessmentID"))
	if err != nil {
		respondErr(w, http.StatusBadRequest, "invalid assessment_id")
		return
	}

	rec, err := s.history.GetAssessmentByID(r.Context(), id)
	if errors.Is(err, store.ErrAssessmentNotFound) {
		respondErr(w, http.StatusNotFound, "assessment not found")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("get assessment: %w", err))
		return
	}

	respond(w, http.StatusOK, toRecordResponse(rec))
}

// ─── GET /api/students/:studentID/assessments ─────────────────────────────────

// handleListStudentRecords serves a student's assessment history, newest
// first. An unknown student yields an empty list.
func (s *Server) handleListStudentRecords(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")

	recs, err := s.history.ListAssessmentsByStudent(r.Context(), studentID)
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("list assessments: %w", err))
		return
	}

	out := make([]recordResponse, len(recs))
	for i, rec := range recs {
		out[i] = toRecordResponse(rec)
	}
	respond(w, http.StatusOK, map[string]any{"assessments": out})
}
