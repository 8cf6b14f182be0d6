package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nyashahama/wellbeing-risk-assessment/internal/assessment"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/catalog"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/store"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/wizard"
)

// ─── POST /api/assessments ────────────────────────────────────────────────────

type startAssessmentRequest struct {
	SubjectID string `json:"subject_id" validate:"required,max=64"`
}

type startAssessmentResponse struct {
	Handle string                `json:"handle"`
	Token  string                `json:"token"`
	Step   wizard.StepDescriptor `json:"step"`
}

// handleStartAssessment opens a wizard for a student and returns the handle
// plus the token the client sends as X-Assessment-Token from then on.
func (s *Server) handleStartAssessment(w http.ResponseWriter, r *http.Request) {
	var req startAssessmentRequest
	if !s.decode(w, r, &req) {
		return
	}

	logger := s.logger.With(logField(r))
	ctrl, err := wizard.Start(r.Context(), s.catalog, req.SubjectID, s.wizardDeps, logger)
	if errors.Is(err, store.ErrSubjectNotFound) {
		respondErr(w, http.StatusNotFound, "student not found")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("start assessment: %w", err))
		return
	}

	h, err := s.registry.Add(ctrl)
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("register assessment: %w", err))
		return
	}

	respond(w, http.StatusCreated, startAssessmentResponse{
		Handle: h.ID.String(),
		Token:  h.Token,
		Step:   ctrl.CurrentStep(),
	})
}

// ─── GET /api/assessments/:handle ─────────────────────────────────────────────

func (s *Server) handleGetStep(w http.ResponseWriter, r *http.Request) {
	s.withStep(w, r, func(*wizard.Controller) error { return nil })
}

// ─── POST /api/assessments/:handle/next | /previous ───────────────────────────

// Navigation is clamped to the first and last step and never fails.
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.withStep(w, r, func(c *wizard.Controller) error {
		c.Next()
		return nil
	})
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	s.withStep(w, r, func(c *wizard.Controller) error {
		c.Previous()
		return nil
	})
}

// ─── POST /api/assessments/:handle/toggle ─────────────────────────────────────

type toggleRequest struct {
	Category catalog.Category `json:"category" validate:"required,oneof=academic social emotional behavioral family"`
	Name     string           `json:"name" validate:"required,max=200"`
}

// handleToggle selects or deselects an indicator of the current category.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.withStep(w, r, func(c *wizard.Controller) error {
		return c.Toggle(req.Category, req.Name)
	})
}

// ─── PUT /api/assessments/:handle/notes ───────────────────────────────────────

type notesRequest struct {
	Notes string `json:"notes" validate:"max=5000"`
}

func (s *Server) handleSetNotes(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.withStep(w, r, func(c *wizard.Controller) error {
		return c.SetNotes(req.Notes)
	})
}

// ─── PUT /api/assessments/:handle/confidence ──────────────────────────────────

type confidenceRequest struct {
	ConfidenceLevel *int `json:"confidence_level" validate:"required,min=1,max=10"`
}

// handleSetConfidence sets the assessor's confidence. The wizard accepts any
// integer; the 1..10 range is enforced here.
func (s *Server) handleSetConfidence(w http.ResponseWriter, r *http.Request) {
	var req confidenceRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.withStep(w, r, func(c *wizard.Controller) error {
		return c.SetConfidenceLevel(*req.ConfidenceLevel)
	})
}

// ─── DELETE /api/assessments/:handle ──────────────────────────────────────────

// handleCancel discards the assessment. Nothing is persisted.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	handle := handleFrom(r.Context())
	err := s.registry.With(handle, func(c *wizard.Controller) error {
		c.Cancel(r.Context())
		return nil
	})
	if err != nil {
		s.respondWizardErr(w, r, err)
		return
	}
	s.registry.Remove(handle)
	w.WriteHeader(http.StatusNoContent)
}

// ─── POST /api/assessments/:handle/complete ───────────────────────────────────

type completeResponse struct {
	AssessmentID uuid.UUID           `json:"assessment_id"`
	CreatedAt    time.Time           `json:"created_at"`
	Assessment   assessment.Snapshot `json:"assessment"`
}

// handleComplete persists the assessment. It is only allowed on the last
// category step. A persistence failure is relayed as 502 and the wizard stays
// open so the client can retry.
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	handle := handleFrom(r.Context())

	var (
		snap assessment.Snapshot
		res  wizard.SaveResult
	)
	err := s.registry.With(handle, func(c *wizard.Controller) error {
		var err error
		snap, err = c.Complete(r.Context())
		res = c.Result()
		return err
	})
	if err != nil {
		if isWizardErr(err) {
			s.respondWizardErr(w, r, err)
			return
		}
		s.logger.Warn("complete: save failed", "handle", handle, "error", err, logField(r))
		respondErr(w, http.StatusBadGateway, "could not save assessment: "+err.Error())
		return
	}

	s.registry.Remove(handle)
	respond(w, http.StatusCreated, completeResponse{
		AssessmentID: res.AssessmentID,
		CreatedAt:    res.CreatedAt,
		Assessment:   snap,
	})
}

// ─── HELPERS ─────────────────────────────────────────────────────────────────

// withStep runs fn against the wizard behind the verified handle and responds
// with the resulting step.
func (s *Server) withStep(w http.ResponseWriter, r *http.Request, fn func(*wizard.Controller) error) {
	var step wizard.StepDescriptor
	err := s.registry.With(handleFrom(r.Context()), func(c *wizard.Controller) error {
		if err := fn(c); err != nil {
			return err
		}
		step = c.CurrentStep()
		return nil
	})
	if err != nil {
		s.respondWizardErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, step)
}

func isWizardErr(err error) bool {
	return errors.Is(err, wizard.ErrInvalidState) ||
		errors.Is(err, wizard.ErrFinished) ||
		errors.Is(err, wizard.ErrUnknownIndicator) ||
		errors.Is(err, wizard.ErrHandleNotFound)
}

// respondWizardErr maps wizard errors to status codes.
func (s *Server) respondWizardErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, wizard.ErrInvalidState), errors.Is(err, wizard.ErrFinished):
		respondErr(w, http.StatusConflict, err.Error())
	case errors.Is(err, wizard.ErrUnknownIndicator):
		respondErr(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, wizard.ErrHandleNotFound):
		respondErr(w, http.StatusNotFound, "assessment not found or expired")
	default:
		s.respondInternalErr(w, r, err)
	}
}
