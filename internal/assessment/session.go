// Package assessment models one in-progress risk evaluation of a student.
//
// Session is a value type. Every transition returns a new Session and leaves
// the receiver untouched, and every transition that changes the selection
// recomputes the overall risk level before returning. A Session therefore
// never carries a stale level.
package assessment

import (
	"slices"

	"github.com/google/uuid"

	"github.com/nyashahama/wellbeing-risk-assessment/internal/catalog"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/scoring"
)

// DefaultConfidence is the mid-scale confidence value a new session starts at.
const DefaultConfidence = 5

// SelectedIndicator is a catalog entry captured at selection time. Later
// catalog changes do not affect it.
type SelectedIndicator struct {
	ID       uuid.UUID        `json:"id"`
	Category catalog.Category `json:"category"`
	Name     string           `json:"name"`
	Severity int              `json:"severity"`
}

// Session is the working record of an assessment. The zero value is not
// usable; call New.
type Session struct {
	subjectID  string
	selected   []SelectedIndicator
	level      scoring.RiskLevel
	notes      string
	confidence int
}

// New starts an empty session for subjectID.
func New(subjectID string) Session {
	return Session{
		subjectID:  subjectID,
		level:      scoring.LevelLow,
		confidence: DefaultConfidence,
	}
}

// SubjectID returns the student the session is about.
func (s Session) SubjectID() string { return s.subjectID }

// RiskLevel returns the level derived from the current selection.
func (s Session) RiskLevel() scoring.RiskLevel { return s.level }

// Notes returns the free-text notes.
func (s Session) Notes() string { return s.notes }

// ConfidenceLevel returns the assessor's confidence value.
func (s Session) ConfidenceLevel() int { return s.confidence }

// Indicators returns a copy of the selection in insertion order.
func (s Session) Indicators() []SelectedIndicator {
	return slices.Clone(s.selected)
}

// Len returns the number of selected indicators.
func (s Session) Len() int { return len(s.selected) }

// Find returns the selection for (category, name), if any.
func (s Session) Find(category catalog.Category, name string) (SelectedIndicator, bool) {
	for _, si := range s.selected {
		if si.Category == category && si.Name == name {
			return si, true
		}
	}
	return SelectedIndicator{}, false
}

// IsSelected reports whether (category, name) is part of the selection.
func (s Session) IsSelected(category catalog.Category, name string) bool {
	_, ok := s.Find(category, name)
	return ok
}

// Breakdown returns the scoring counts for the current selection.
func (s Session) Breakdown() scoring.Breakdown {
	return scoring.Analyze(severities(s.selected))
}

// ─── TRANSITIONS ─────────────────────────────────────────────────────────────

// AddIndicator selects ind. Selecting an indicator that is already part of
// the session returns the session unchanged together with the existing
// selection, so repeated clicks never produce duplicates.
func (s Session) AddIndicator(ind catalog.Indicator) (Session, SelectedIndicator) {
	if existing, ok := s.Find(ind.Category, ind.Name); ok {
		return s, existing
	}

	si := SelectedIndicator{
		ID:       uuid.New(),
		Category: ind.Category,
		Name:     ind.Name,
		Severity: ind.Severity,
	}

	next := s
	next.selected = append(slices.Clone(s.selected), si)
	return next.rescore(), si
}

// RemoveIndicator drops the selection with id. Unknown ids are ignored.
func (s Session) RemoveIndicator(id uuid.UUID) Session {
	idx := slices.IndexFunc(s.selected, func(si SelectedIndicator) bool { return si.ID == id })
	if idx < 0 {
		return s
	}

	next := s
	next.selected = slices.Delete(slices.Clone(s.selected), idx, idx+1)
	return next.rescore()
}

// SetNotes replaces the notes.
func (s Session) SetNotes(text string) Session {
	s.notes = text
	return s
}

// SetConfidenceLevel replaces the confidence value. The range is not checked
// here; request validation in the api package enforces [1,10].
func (s Session) SetConfidenceLevel(n int) Session {
	s.confidence = n
	return s
}

// rescore recomputes the derived level from the selection.
func (s Session) rescore() Session {
	s.level = scoring.ComputeRiskLevel(severities(s.selected))
	return s
}

func severities(selected []SelectedIndicator) []int {
	out := make([]int, len(selected))
	for i, si := range selected {
		out[i] = si.Severity
	}
	return out
}
