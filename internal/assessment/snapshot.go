package assessment

import (
	"slices"

	"github.com/nyashahama/wellbeing-risk-assessment/internal/scoring"
)

// Snapshot is the immutable hand-off record produced when an assessment is
// completed. It is what the persistence sink stores.
type Snapshot struct {
	SubjectID       string              `json:"subject_id"`
	Indicators      []SelectedIndicator `json:"indicators"`
	RiskLevel       scoring.RiskLevel   `json:"overall_risk_level"`
	Notes           string              `json:"notes"`
	ConfidenceLevel int                 `json:"confidence_level"`
	CatalogVersion  string              `json:"catalog_version,omitempty"`
}

// Complete returns a snapshot of the session. The session itself is not
// changed; discarding it afterwards is the caller's job.
func (s Session) Complete() Snapshot {
	indicators := slices.Clone(s.selected)
	if indicators == nil {
		indicators = []SelectedIndicator{}
	}
	return Snapshot{
		SubjectID:       s.subjectID,
		Indicators:      indicators,
		RiskLevel:       s.level,
		Notes:           s.notes,
		ConfidenceLevel: s.confidence,
	}
}

// Severities lists the severity of every indicator in the snapshot.
func (s Snapshot) Severities() []int {
	return severities(s.Indicators)
}
