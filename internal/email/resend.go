package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const resendEndpoint = "https://api.resend.com/emails"

// ErrNoRecipients is returned when an alert has no addresses to go to.
var ErrNoRecipients = errors.New("email: no recipients")

// resendClient is the concrete Sender backed by the Resend API.
type resendClient struct {
	apiKey     string
	fromAddr   string // e.g. "alertas@colegio.example"
	fromName   string // e.g. "Bienestar Estudiantil"
	baseURL    string // dashboard base, e.g. "https://bienestar.colegio.example"
	endpoint   string
	httpClient *http.Client
}

// NewResendClient returns a Sender that delivers email via Resend.
func NewResendClient(apiKey, fromAddr, fromName, baseURL string) Sender {
	return &resendClient{
		apiKey:   apiKey,
		fromAddr: fromAddr,
		fromName: fromName,
		baseURL:  strings.TrimRight(baseURL, "/"),
		endpoint: resendEndpoint,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ─── RESEND API SHAPES ────────────────────────────────────────────────────────

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendResponse struct {
	ID    string `json:"id"`
	Error *struct {
		Name       string `json:"name"`
		Message    string `json:"message"`
		StatusCode int    `json:"statusCode"`
	} `json:"error"`
}

// ─── SENDER IMPLEMENTATION ────────────────────────────────────────────────────

// SendRiskAlert sends the risk alert to every recipient in one message.
func (c *resendClient) SendRiskAlert(ctx context.Context, p RiskAlertParams) error {
	if len(p.To) == 0 {
		return ErrNoRecipients
	}
	studentURL := fmt.Sprintf("%s/students/%s", c.baseURL, url.PathEscape(p.StudentID))
	return c.send(ctx, p.To, alertSubject(p), riskAlertHTML(p, studentURL))
}

// ─── HTTP SEND ────────────────────────────────────────────────────────────────

func (c *resendClient) send(ctx context.Context, to []string, subject, body string) error {
	from := fmt.Sprintf("%s <%s>", c.fromName, c.fromAddr)

	reqBody := resendRequest{
		From:    from,
		To:      to,
		Subject: subject,
		HTML:    body,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("email: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("email: build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email: http request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("email: read response: %w", err)
	}

	var parsed resendResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return fmt.Errorf("email: unmarshal response (status %d): %w", resp.StatusCode, err)
	}

	if parsed.Error != nil {
		return fmt.Errorf("email: Resend error %s: %s", parsed.Error.Name, parsed.Error.Message)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("email: unexpected status %d: %.200s", resp.StatusCode, string(respBytes))
	}

	return nil
}

// ─── TEMPLATES ────────────────────────────────────────────────────────────────

func alertSubject(p RiskAlertParams) string {
	return fmt.Sprintf("Alerta de riesgo %s: %s (%s)", p.RiskLabel, p.StudentName, p.StudentGrade)
}

// alertText is the plain-text rendition used by the console sender.
func alertText(p RiskAlertParams) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Estudiante: %s (%s, %s)\n", p.StudentName, p.StudentGrade, p.StudentID)
	fmt.Fprintf(&b, "Nivel de riesgo: %s (severidad total %d)\n", p.RiskLabel, p.TotalSeverity)
	fmt.Fprintf(&b, "Confianza: %d/10\n", p.ConfidenceLevel)
	b.WriteString("Indicadores:\n")
	for _, ind := range p.Indicators {
		fmt.Fprintf(&b, "  - [%s] %s (%d)\n", ind.Category, ind.Name, ind.Severity)
	}
	if p.Notes != "" {
		fmt.Fprintf(&b, "Notas: %s\n", p.Notes)
	}
	return b.String()
}

func riskAlertHTML(p RiskAlertParams, studentURL string) string {
	var rows strings.Builder
	for _, ind := range p.Indicators {
		fmt.Fprintf(&rows, `
      <tr>
        <td style="padding: 4px 8px;">%s</td>
        <td style="padding: 4px 8px;">%s</td>
        <td style="padding: 4px 8px; text-align: center;">%d</td>
      </tr>`, html.EscapeString(ind.Category), html.EscapeString(ind.Name), ind.Severity)
	}

	notes := "Sin notas."
	if p.Notes != "" {
		notes = html.EscapeString(p.Notes)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; color: #1a1a1a; max-width: 560px; margin: 0 auto; padding: 24px;">
  <h2 style="margin-bottom: 8px;">Alerta de riesgo %s</h2>
  <p><strong>%s</strong> (%s) ha sido evaluado con nivel de riesgo
  <strong>%s</strong>, severidad total %d, confianza %d/10.</p>
  <table style="border-collapse: collapse; width: 100%%; font-size: 14px;">
    <tr style="background: #f3f4f6;">
      <th style="padding: 4px 8px; text-align: left;">Categoría</th>
      <th style="padding: 4px 8px; text-align: left;">Indicador</th>
      <th style="padding: 4px 8px;">Severidad</th>
    </tr>%s
  </table>
  <p style="margin-top: 16px;"><em>%s</em></p>
  <p style="margin: 32px 0;">
    <a href="%s"
       style="background: #0f172a; color: #ffffff; padding: 12px 24px;
              border-radius: 6px; text-decoration: none; font-weight: 600;">
      Ver estudiante
    </a>
  </p>
  <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 32px 0;">
  <p style="color: #9ca3af; font-size: 12px;">
    Evaluación %s · %s
  </p>
</body>
</html>`,
		html.EscapeString(p.RiskLabel),
		html.EscapeString(p.StudentName), html.EscapeString(p.StudentGrade),
		html.EscapeString(p.RiskLabel), p.TotalSeverity, p.ConfidenceLevel,
		rows.String(),
		notes,
		html.EscapeString(studentURL),
		p.AssessmentID, p.AssessedAt.Format("02/01/2006 15:04"),
	)
}
