// Package scoring implements the aggregate risk classification for a set of
// selected indicators. It is intentionally dependency-free: it imports nothing
// from internal/ and can be tested without a database.
package scoring

// ─── CONSTANTS ────────────────────────────────────────────────────────────────

// Per-indicator severity thresholds.
const (
	criticalSeverity = 5 // severity >= 5 → critical indicator
	highSeverity     = 4 // severity >= 4 → high indicator
)

// Total-severity thresholds, checked after the per-indicator counts of the
// same level.
const (
	criticalTotal = 20
	highTotal     = 15
	mediumTotal   = 8
)

// ─── TYPES ────────────────────────────────────────────────────────────────────

// RiskLevel is the four-bucket classification. String values match the
// risk_level column so they can be stored without conversion.
type RiskLevel string

const (
	LevelLow      RiskLevel = "low"
	LevelMedium   RiskLevel = "medium"
	LevelHigh     RiskLevel = "high"
	LevelCritical RiskLevel = "critical"
)

var levelRank = map[RiskLevel]int{
	LevelLow:      0,
	LevelMedium:   1,
	LevelHigh:     2,
	LevelCritical: 3,
}

// Valid reports whether l is one of the four known levels.
func (l RiskLevel) Valid() bool {
	_, ok := levelRank[l]
	return ok
}

// AtLeast reports whether l is as severe as, or more severe than, other.
func (l RiskLevel) AtLeast(other RiskLevel) bool {
	return levelRank[l] >= levelRank[other]
}

// Label returns the display text shown to the wellbeing team.
func (l RiskLevel) Label() string {
	switch l {
	case LevelCritical:
		return "Crítico"
	case LevelHigh:
		return "Alto"
	case LevelMedium:
		return "Medio"
	default:
		return "Bajo"
	}
}

// Breakdown holds the intermediate counts the classification is based on.
type Breakdown struct {
	CriticalCount int // severities >= 5
	HighCount     int // severities >= 4 (includes critical ones)
	TotalSeverity int
	Level         RiskLevel
}

// ─── CORE FUNCTIONS ───────────────────────────────────────────────────────────

// Analyze counts the severities and classifies them. Order of the input does
// not matter; callers are responsible for passing each selected indicator once.
func Analyze(severities []int) Breakdown {
	var b Breakdown
	for _, s := range severities {
		if s >= criticalSeverity {
			b.CriticalCount++
		}
		if s >= highSeverity {
			b.HighCount++
		}
		b.TotalSeverity += s
	}
	b.Level = classify(b)
	return b
}

// ComputeRiskLevel maps a set of indicator severities to an overall level.
//
//	critical: any severity >= 5, or total >= 20
//	high: two or more severities >= 4, or total >= 15
//	medium: one severity >= 4, or total >= 8
//	low: everything else, including no selection at all
func ComputeRiskLevel(severities []int) RiskLevel {
	return Analyze(severities).Level
}

// classify applies the rules in order; the first match wins.
func classify(b Breakdown) RiskLevel {
	switch {
	case b.CriticalCount > 0 || b.TotalSeverity >= criticalTotal:
		return LevelCritical
	case b.HighCount >= 2 || b.TotalSeverity >= highTotal:
		return LevelHigh
	case b.HighCount >= 1 || b.TotalSeverity >= mediumTotal:
		return LevelMedium
	default:
		return LevelLow
	}
}
