package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nyashahama/wellbeing-risk-assessment/internal/intervention"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/store"
)

// ─── GET /api/interventions?status=&type= ─────────────────────────────────────

type interventionView struct {
	intervention.Intervention
	NearlyDone bool `json:"nearly_done"`
}

type listInterventionsResponse struct {
	Interventions []interventionView `json:"interventions"`
	Stats         intervention.Stats `json:"stats"`
}

// handleListInterventions returns the filtered interventions. Stats are
// computed over the unfiltered list so the tracker header does not change as
// filters are applied.
func (s *Server) handleListInterventions(w http.ResponseWriter, r *http.Request) {
	f := intervention.Filter{
		Status: r.URL.Query().Get("status"),
		Type:   r.URL.Query().Get("type"),
	}

	all, err := s.interventions.ListInterventions(r.Context())
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("list interventions: %w", err))
		return
	}

	filtered := f.Apply(all)
	out := make([]interventionView, len(filtered))
	for i, iv := range filtered {
		out[i] = interventionView{Intervention: iv, NearlyDone: intervention.NearlyDone(iv)}
	}

	respond(w, http.StatusOK, listInterventionsResponse{
		Interventions: out,
		Stats:         intervention.Summarize(all),
	})
}

// ─── POST /api/interventions ─────────────────────────────────────────────────

type createInterventionRequest struct {
	StudentID       string                `json:"student_id" validate:"required,max=64"`
	Type            intervention.Type     `json:"type" validate:"required,oneof=psychological academic social behavioral family"`
	Status          intervention.Status   `json:"status" validate:"omitempty,oneof=planned active completed suspended"`
	Priority        intervention.Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
	Professional    string                `json:"professional" validate:"required,max=200"`
	StartDate       time.Time             `json:"start_date" validate:"required"`
	ExpectedEndDate time.Time             `json:"expected_end_date" validate:"required,gtfield=StartDate"`
	TotalSessions   int                   `json:"total_sessions" validate:"min=0,max=500"`
	NextSession     *time.Time            `json:"next_session"`
	Objectives      []string              `json:"objectives" validate:"max=20,dive,required,max=500"`
	Notes           string                `json:"notes" validate:"max=5000"`
	Location        string                `json:"location" validate:"max=200"`
	Frequency       string                `json:"frequency" validate:"max=100"`
}

// handleCreateIntervention opens a follow-up plan, usually right after a high
// risk assessment. New plans start at zero progress.
func (s *Server) handleCreateIntervention(w http.ResponseWriter, r *http.Request) {
	var req createInterventionRequest
	if !s.decode(w, r, &req) {
		return
	}

	iv, err := s.interventions.CreateIntervention(r.Context(), intervention.Intervention{
		StudentID:       req.StudentID,
		Type:            req.Type,
		Status:          req.Status,
		Priority:        req.Priority,
		Professional:    req.Professional,
		StartDate:       req.StartDate,
		ExpectedEndDate: req.ExpectedEndDate,
		TotalSessions:   req.TotalSessions,
		NextSession:     req.NextSession,
		Objectives:      req.Objectives,
		Notes:           req.Notes,
		Location:        req.Location,
		Frequency:       req.Frequency,
	})
	if errors.Is(err, store.ErrSubjectNotFound) {
		respondErr(w, http.StatusNotFound, "student not found")
		return
	}
	if err != nil {
		s.respondInterventionErr(w, r, err)
		return
	}
	respond(w, http.StatusCreated, interventionView{Intervention: iv})
}

// ─── GET /api/interventions/:interventionID ──────────────────────────────────

func (s *Server) handleGetIntervention(w http.ResponseWriter, r *http.Request) {
	id, ok := interventionID(w, r)
	if !ok {
		return
	}

	iv, err := s.interventions.GetIntervention(r.Context(), id)
	if err != nil {
		s.respondInterventionErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, interventionView{Intervention: iv, NearlyDone: intervention.NearlyDone(iv)})
}

// ─── PATCH /api/interventions/:interventionID/progress ────────────────────────

type updateProgressRequest struct {
	Progress *int   `json:"progress" validate:"required,min=0,max=100"`
	Notes    string `json:"notes" validate:"max=5000"`
}

func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := interventionID(w, r)
	if !ok {
		return
	}

	var req updateProgressRequest
	if !s.decode(w, r, &req) {
		return
	}

	iv, err := s.interventions.UpdateInterventionProgress(r.Context(), id, *req.Progress, req.Notes)
	if err != nil {
		s.respondInterventionErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, interventionView{Intervention: iv, NearlyDone: intervention.NearlyDone(iv)})
}

// ─── POST /api/interventions/:interventionID/complete ─────────────────────────

func (s *Server) handleCompleteIntervention(w http.ResponseWriter, r *http.Request) {
	id, ok := interventionID(w, r)
	if !ok {
		return
	}

	iv, err := s.interventions.CompleteIntervention(r.Context(), id)
	if err != nil {
		s.respondInterventionErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, interventionView{Intervention: iv})
}

// ─── HELPERS ─────────────────────────────────────────────────────────────────

func interventionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "interventionID"))
	if err != nil {
		respondErr(w, http.StatusBadRequest, "invalid intervention_id")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) respondInterventionErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, intervention.ErrNotFound):
		respondErr(w, http.StatusNotFound, "intervention not found")
	case errors.Is(err, intervention.ErrInvalidProgress):
		respondErr(w, http.StatusBadRequest, err.Error())
	default:
		s.respondInternalErr(w, r, fmt.Errorf("intervention: %w", err))
	}
}
