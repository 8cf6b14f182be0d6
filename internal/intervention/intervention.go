// Package intervention holds the follow-up plans the wellbeing team opens for
// at-risk students, plus the filtering and summary rules of the tracker view.
package intervention

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type is the discipline an intervention belongs to.
type Type string

const (
	TypePsychological Type = "psychological"
	TypeAcademic      Type = "academic"
	TypeSocial        Type = "social"
	TypeBehavioral    Type = "behavioral"
	TypeFamily        Type = "family"
)

// Status is the lifecycle state of an intervention.
type Status string

const (
	StatusPlanned   Status = "planned"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusSuspended Status = "suspended"
)

// Priority of an intervention.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// nearlyDoneProgress is the progress from which an active intervention is
// offered for completion.
const nearlyDoneProgress = 90

// ErrInvalidProgress is returned for progress values outside [0,100].
var ErrInvalidProgress = errors.New("intervention: progress must be between 0 and 100")

// ErrNotFound is returned when no intervention has the requested id.
var ErrNotFound = errors.New("intervention: not found")

// Intervention is one follow-up plan for a student.
type Intervention struct {
	ID                uuid.UUID  `json:"intervention_id"`
	StudentID         string     `json:"student_id"`
	StudentName       string     `json:"student_name"`
	StudentGrade      string     `json:"student_grade"`
	Type              Type       `json:"type"`
	Status            Status     `json:"status"`
	Priority          Priority   `json:"priority"`
	Professional      string     `json:"professional"`
	StartDate         time.Time  `json:"start_date"`
	ExpectedEndDate   time.Time  `json:"expected_end_date"`
	TotalSessions     int        `json:"total_sessions"`
	CompletedSessions int        `json:"completed_sessions"`
	NextSession       *time.Time `json:"next_session,omitempty"`
	Objectives        []string   `json:"objectives"`
	Progress          int        `json:"progress"`
	Notes             string     `json:"notes"`
	Location          string     `json:"location"`
	Frequency         string     `json:"frequency"`
}

// ValidateProgress checks a progress percentage.
func ValidateProgress(p int) error {
	if p < 0 || p > 100 {
		return fmt.Errorf("%w: got %d", ErrInvalidProgress, p)
	}
	return nil
}

// NearlyDone reports whether the tracker should suggest completing i.
func NearlyDone(i Intervention) bool {
	return i.Status == StatusActive && i.Progress >= nearlyDoneProgress
}

// ─── FILTERING ───────────────────────────────────────────────────────────────

// All matches every status or type in a Filter.
const All = "all"

// Filter narrows a list by status and type. Empty or "all" means no
// constraint on that field.
type Filter struct {
	Status string
	Type   string
}

// Match reports whether i passes the filter.
func (f Filter) Match(i Intervention) bool {
	statusOK := f.Status == "" || f.Status == All || string(i.Status) == f.Status
	typeOK := f.Type == "" || f.Type == All || string(i.Type) == f.Type
	return statusOK && typeOK
}

// Apply returns the matching interventions, preserving order.
func (f Filter) Apply(list []Intervention) []Intervention {
	out := make([]Intervention, 0, len(list))
	for _, i := range list {
		if f.Match(i) {
			out = append(out, i)
		}
	}
	return out
}

// ─── STATS ───────────────────────────────────────────────────────────────────

// Stats summarises a list of interventions for the tracker header.
type Stats struct {
	Total       int     `json:"total"`
	Active      int     `json:"active"`
	Completed   int     `json:"completed"`
	Planned     int     `json:"planned"`
	AvgProgress float64 `json:"avg_progress"`
}

// Summarize computes Stats over list. AvgProgress is 0 for an empty list.
func Summarize(list []Intervention) Stats {
	s := Stats{Total: len(list)}
	if len(list) == 0 {
		return s
	}
	sum := 0
	for _, i := range list {
		switch i.Status {
		case StatusActive:
			s.Active++
		case StatusCompleted:
			s.Completed++
		case StatusPlanned:
			s.Planned++
		}
		sum += i.Progress
	}
	s.AvgProgress = float64(sum) / float64(len(list))
	return s
}
