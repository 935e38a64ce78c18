package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/redmonkez12/fitcoach-api/internal/config"
	"github.com/redmonkez12/fitcoach-api/internal/logging"
	"github.com/redmonkez12/fitcoach-api/internal/metrics"
	"github.com/redmonkez12/fitcoach-api/templates"
)

type Service struct {
	cfg              config.EmailConfig
	passwordResetTTL time.Duration
	emailChangeTTL   time.Duration
	pages            map[string]*template.Template
	deliver          func(m *gomail.Message) error
	now              func() time.Time
}

func NewService(cfg config.EmailConfig, passwordResetTTL, emailChangeTTL time.Duration) (*Service, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{"welcome", "password_reset", "email_change"} {
		t, err := template.ParseFS(templates.EmailFS, "email/layout.html", "email/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		pages[name] = t
	}

	s := &Service{
		cfg:              cfg,
		passwordResetTTL: passwordResetTTL,
		emailChangeTTL:   emailChangeTTL,
		pages:            pages,
		now:              time.Now,
	}
	s.deliver = s.dialAndSend
	return s, nil
}

// Enabled reports whether SMTP is configured. Without it mails are logged and dropped.
func (s *Service) Enabled() bool {
	return s.cfg.SMTPHost != "" && s.cfg.FromEmail != ""
}

type pageData struct {
	Name        string
	Link        string
	TrialEndsAt string
	ExpiresIn   string
	Year        int
}

// SendWelcomeEmail greets a new user and states when the trial ends.
func (s *Service) SendWelcomeEmail(ctx context.Context, toEmail, name string, trialEndsAt time.Time) error {
	return s.send(ctx, "welcome", toEmail, "Welcome to FitCoach, your trial has started", pageData{
		Name:        name,
		Link:        s.cfg.FrontendURL + "/",
		TrialEndsAt: trialEndsAt.UTC().Format("January 2, 2006"),
	})
}

// SendPasswordResetEmail sends a password reset link to the user
func (s *Service) SendPasswordResetEmail(ctx context.Context, toEmail, token string) error {
	return s.send(ctx, "password_reset", toEmail, "Reset your password", pageData{
		Link:      s.link("/reset-password", token),
		ExpiresIn: humanDuration(s.passwordResetTTL),
	})
}

// SendEmailChangeEmail goes to the new address and carries the confirmation link.
func (s *Service) SendEmailChangeEmail(ctx context.Context, toEmail, token string) error {
	return s.send(ctx, "email_change", toEmail, "Confirm your new email address", pageData{
		Link:      s.link("/auth/email-change/confirm", token),
		ExpiresIn: humanDuration(s.emailChangeTTL),
	})
}

func (s *Service) link(path, token string) string {
	return s.cfg.FrontendURL + path + "?token=" + url.QueryEscape(token)
}

func (s *Service) send(ctx context.Context, kind, toEmail, subject string, data pageData) error {
	logger := logging.GetLoggerFromContext(ctx).With("kind", kind)

	if !s.Enabled() {
		logger.Warn("email config missing, skip sending", "email", toEmail)
		metrics.EmailsSentTotal.WithLabelValues(kind, "skipped").Inc()
		return nil
	}
	if strings.TrimSpace(toEmail) == "" {
		return fmt.Errorf("send %s email: empty recipient", kind)
	}

	data.Year = s.now().Year()
	body, err := s.render(kind, data)
	if err != nil {
		logger.Error("failed to render email template", "error", err)
		metrics.EmailsSentTotal.WithLabelValues(kind, "error").Inc()
		return fmt.Errorf("render template: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.FromEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.deliver(m); err != nil {
		logger.Error("failed to send email", "email", toEmail, "error", err)
		metrics.EmailsSentTotal.WithLabelValues(kind, "error").Inc()
		return fmt.Errorf("send email: %w", err)
	}

	metrics.EmailsSentTotal.WithLabelValues(kind, "sent").Inc()
	logger.Info("email sent", "email", toEmail)
	return nil
}

func (s *Service) render(kind string, data pageData) (string, error) {
	t, ok := s.pages[kind]
	if !ok {
		return "", fmt.Errorf("unknown template %q", kind)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

func (s *Service) dialAndSend(m *gomail.Message) error {
	d := gomail.NewDialer(s.cfg.SMTPHost, s.cfg.SMTPPort, s.cfg.SMTPUser, s.cfg.SMTPPassword)
	return d.DialAndSend(m)
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= 48*time.Hour:
		return fmt.Sprintf("%d days", int(d/(24*time.Hour)))
	case d >= 2*time.Hour:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	case d >= time.Hour:
		return "1 hour"
	default:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
}
