// Package notification sends follow-up email to patients and staff. It
// provides template rendering, an SMTP sender driven by runtime settings,
// and a logging sender for deployments without a mail relay.
package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Notification records a single outbound message.
type Notification struct {
	ID        string     `json:"id"`
	Recipient string     `json:"recipient"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// ---------------------------------------------------------------------------
// Template engine
// ---------------------------------------------------------------------------

// Template defines a reusable message template with {{key}} placeholders.
type Template struct {
	ID      string
	Subject string
	Body    string
}

// TemplateCaseConfirmed is sent to the patient when a clinician confirms
// their screening result.
const TemplateCaseConfirmed = "case-confirmed"

// TemplateFollowUpDue is sent to the worker who owns a reviewed case.
const TemplateFollowUpDue = "follow-up-due"

type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates
// pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.RegisterTemplate(Template{
		ID:      TemplateCaseConfirmed,
		Subject: "Screening result for {{patient_name}}",
		Body: "Dear {{patient_name}}, your recent chest X-ray screening has been " +
			"reviewed by a clinician and requires follow-up. A health worker will " +
			"contact you shortly to arrange next steps.",
	})
	e.RegisterTemplate(Template{
		ID:      TemplateFollowUpDue,
		Subject: "Follow-up required: case {{case_id}}",
		Body: "Case {{case_id}} ({{patient_name}}) has been reviewed and is " +
			"awaiting patient follow-up and closure.",
	})
	return e
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement. Keys
// present in the template but absent from data are left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// ---------------------------------------------------------------------------
// Senders
// ---------------------------------------------------------------------------

// SMTPConfig is the relay configuration resolved per send, so admin edits
// take effect without a restart.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// ConfigSource supplies the current SMTP configuration.
type ConfigSource func(ctx context.Context) (SMTPConfig, error)

// SMTPSender delivers mail through the relay described by its ConfigSource.
type SMTPSender struct {
	config ConfigSource
}

func NewSMTPSender(config ConfigSource) *SMTPSender {
	return &SMTPSender{config: config}
}

func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, body string) error {
	cfg, err := s.config(ctx)
	if err != nil {
		return fmt.Errorf("resolving smtp config: %w", err)
	}
	if cfg.Host == "" {
		return fmt.Errorf("smtp relay not configured")
	}

	msg := strings.Join([]string{
		"From: " + cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="utf-8"`,
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	var a smtp.Auth
	if cfg.Username != "" {
		a = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return smtp.SendMail(addr, a, cfg.From, []string{to}, []byte(msg))
}

// LogSender writes would-be emails to the log instead of delivering them.
// Used in development and as the fallback when no relay is configured.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.log.Info().
		Str("to", to).
		Str("subject", subject).
		Int("body_bytes", len(body)).
		Msg("email suppressed (log sender)")
	return nil
}

// MockEmailSender is a test double that records calls.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
}

// EmailCall records a single call to SendEmail.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return fmt.Errorf("send failed")
	}
	return nil
}

// Calls returns a copy of recorded email calls.
func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// ---------------------------------------------------------------------------
// Manager
// ---------------------------------------------------------------------------

// Manager renders templates, dispatches mail, and keeps an in-memory record
// of what was sent.
type Manager struct {
	sender    EmailSender
	templates *TemplateEngine

	mu   sync.RWMutex
	sent map[string]*Notification
}

func NewManager(sender EmailSender, templates *TemplateEngine) *Manager {
	return &Manager{
		sender:    sender,
		templates: templates,
		sent:      make(map[string]*Notification),
	}
}

// SendFromTemplate renders a template and dispatches the result. The
// notification record is kept either way, with status sent or failed.
func (m *Manager) SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*Notification, error) {
	subject, body, err := m.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	n := &Notification{
		ID:        uuid.New().String(),
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}

	sendErr := m.sender.SendEmail(ctx, recipient, subject, body)
	if sendErr != nil {
		n.Status = "failed"
		n.Error = sendErr.Error()
	} else {
		n.Status = "sent"
		sentAt := time.Now().UTC()
		n.SentAt = &sentAt
	}

	m.mu.Lock()
	m.sent[n.ID] = n
	m.mu.Unlock()

	return n, sendErr
}

// History returns a copy of every recorded notification.
func (m *Manager) History() []*Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Notification, 0, len(m.sent))
	for _, n := range m.sent {
		cp := *n
		out = append(out, &cp)
	}
	return out
}
