package email

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func sampleAlert() RiskAlertParams {
	return RiskAlertParams{
		To:            []string{"orientacion@colegio.example", "direccion@colegio.example"},
		AssessmentID:  uuid.MustParse("6f1c2b1e-8f0a-4f5e-9a44-3c1d2e0b7a10"),
		StudentID:     "st-42",
		StudentName:   "Ana <García>",
		StudentGrade:  "3ºB",
		RiskLevel:     "critical",
		RiskLabel:     "Crítico",
		TotalSeverity: 9,
		Indicators: []AlertIndicator{
			{Category: "Conductual", Name: "Autolesión", Severity: 5},
			{Category: "Emocional", Name: "Ansiedad severa", Severity: 4},
		},
		Notes:           "Derivar a orientación",
		ConfidenceLevel: 8,
		AssessedAt:      time.Date(2024, 10, 7, 9, 30, 0, 0, time.UTC),
	}
}

func newTestResend(t *testing.T, handler http.HandlerFunc) *resendClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewResendClient("re_test", "alertas@colegio.example", "Bienestar", "https://bienestar.example/").(*resendClient)
	c.endpoint = srv.URL
	return c
}

func TestResend_SendRiskAlert(t *testing.T) {
	var got resendRequest
	c := newTestResend(t, func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer re_test" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"id":"em_1"}`))
	})

	if err := c.SendRiskAlert(context.Background(), sampleAlert()); err != nil {
		t.Fatalf("SendRiskAlert: %v", err)
	}

	if diff := cmp.Diff(sampleAlert().To, got.To); diff != "" {
		t.Errorf("recipients (-want +got):\n%s", diff)
	}
	if got.From != "Bienestar <alertas@colegio.example>" {
		t.Errorf("From = %q", got.From)
	}
	if !strings.Contains(got.Subject, "Crítico") {
		t.Errorf("Subject = %q, want risk label", got.Subject)
	}
	if strings.Contains(got.HTML, "<García>") || !strings.Contains(got.HTML, "&lt;García&gt;") {
		t.Error("student name not escaped in HTML body")
	}
	if !strings.Contains(got.HTML, "https://bienestar.example/students/st-42") {
		t.Error("student link missing from HTML body")
	}
}

func TestResend_StudentLinkEscaped(t *testing.T) {
	var got resendRequest
	c := newTestResend(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"id":"em_2"}`))
	})

	p := sampleAlert()
	p.StudentID = "3B/12?x"
	if err := c.SendRiskAlert(context.Background(), p); err != nil {
		t.Fatalf("SendRiskAlert: %v", err)
	}
	if !strings.Contains(got.HTML, "https://bienestar.example/students/3B%2F12%3Fx") {
		t.Errorf("student id not path-escaped in link:\n%s", got.HTML)
	}
}

func TestResend_ErrorResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"api error", http.StatusUnprocessableEntity, `{"error":{"name":"validation_error","message":"bad from"}}`, "validation_error"},
		{"bad status", http.StatusBadGateway, `{}`, "unexpected status 502"},
		{"not json", http.StatusOK, `oops`, "unmarshal response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestResend(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			err := c.SendRiskAlert(context.Background(), sampleAlert())
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestSenders_RejectEmptyRecipients(t *testing.T) {
	p := sampleAlert()
	p.To = nil

	senders := map[string]Sender{
		"resend":  NewResendClient("k", "a@b.c", "n", "http://x"),
		"console": NewConsoleSender(nil, "a@b.c"),
	}
	for name, s := range senders {
		if err := s.SendRiskAlert(context.Background(), p); !errors.Is(err, ErrNoRecipients) {
			t.Errorf("%s: err = %v, want ErrNoRecipients", name, err)
		}
	}
}

func TestConsoleSender_RecordsAlerts(t *testing.T) {
	c := NewConsoleSender(nil, "alertas@colegio.example")
	if err := c.SendRiskAlert(context.Background(), sampleAlert()); err != nil {
		t.Fatalf("SendRiskAlert: %v", err)
	}
	sent := c.Sent()
	if len(sent) != 1 || sent[0].StudentID != "st-42" {
		t.Fatalf("Sent() = %+v", sent)
	}
}

func TestAlertText_ListsIndicators(t *testing.T) {
	text := alertText(sampleAlert())
	for _, want := range []string{"[Conductual] Autolesión (5)", "Confianza: 8/10", "Notas: Derivar"} {
		if !strings.Contains(text, want) {
			t.Errorf("alert text missing %q:\n%s", want, text)
		}
	}
}
