package email

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// ConsoleSender logs alerts instead of delivering them. It is used when no
// RESEND_API_KEY is configured and keeps every alert it has seen.
type ConsoleSender struct {
	log      *slog.Logger
	fromAddr string

	mu   sync.Mutex
	sent []RiskAlertParams
}

var _ Sender = (*ConsoleSender)(nil)

// NewConsoleSender returns a ConsoleSender writing to log. A nil log
// discards output.
func NewConsoleSender(log *slog.Logger, fromAddr string) *ConsoleSender {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &ConsoleSender{log: log, fromAddr: fromAddr}
}

// SendRiskAlert logs the rendered alert.
func (c *ConsoleSender) SendRiskAlert(ctx context.Context, p RiskAlertParams) error {
	if len(p.To) == 0 {
		return ErrNoRecipients
	}
	c.log.InfoContext(ctx, "email: risk alert",
		"from", c.fromAddr,
		"to", strings.Join(p.To, ", "),
		"subject", alertSubject(p),
		"body", alertText(p),
	)

	c.mu.Lock()
	c.sent = append(c.sent, p)
	c.mu.Unlock()
	return nil
}

// Sent returns a copy of the alerts logged so far.
func (c *ConsoleSender) Sent() []RiskAlertParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]RiskAlertParams, len(c.sent))
	copy(out, c.sent)
	return out
}
