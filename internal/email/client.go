// Package email defines the interface for alert delivery and provides a
// Resend-backed implementation plus a console implementation for development.
package email

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AlertIndicator is one selected indicator as shown in an alert.
type AlertIndicator struct {
	Category string // human label, e.g. "Emocional"
	Name     string
	Severity int
}

// RiskAlertParams holds the data for a high or critical risk alert.
type RiskAlertParams struct {
	To              []string // wellbeing team addresses
	AssessmentID    uuid.UUID
	StudentID       string
	StudentName     string
	StudentGrade    string
	RiskLevel       string // machine value, e.g. "critical"
	RiskLabel       string // human label, e.g. "Crítico"
	TotalSeverity   int
	Indicators      []AlertIndicator
	Notes           string
	ConfidenceLevel int
	AssessedAt      time.Time
}

// Sender is the interface the alert worker uses to send email.
// Tests inject a stub that records calls without hitting the network.
type Sender interface {
	// SendRiskAlert notifies the wellbeing team of a completed assessment at
	// high or critical risk.
	SendRiskAlert(ctx context.Context, p RiskAlertParams) error
}
