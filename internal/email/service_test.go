package email

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/quotedprintable"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/redmonkez12/fitcoach-api/internal/config"
)

func newTestService(t *testing.T, cfg config.EmailConfig) (*Service, *[]*gomail.Message) {
	t.Helper()
	svc, err := NewService(cfg, time.Hour, 24*time.Hour)
	require.NoError(t, err)

	var sent []*gomail.Message
	svc.deliver = func(m *gomail.Message) error {
		sent = append(sent, m)
		return nil
	}
	svc.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	return svc, &sent
}

func configured() config.EmailConfig {
	return config.EmailConfig{
		SMTPHost:    "smtp.example.com",
		SMTPPort:    587,
		SMTPUser:    "mailer",
		FromEmail:   "no-reply@fitcoach.test",
		FrontendURL: "https://app.fitcoach.test",
	}
}

// body returns the decoded HTML part of a single-part message.
func body(t *testing.T, m *gomail.Message) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)

	_, encoded, ok := strings.Cut(buf.String(), "\r\n\r\n")
	require.True(t, ok)
	decoded, err := io.ReadAll(quotedprintable.NewReader(strings.NewReader(encoded)))
	require.NoError(t, err)
	return string(decoded)
}

func TestRender(t *testing.T) {
	svc, _ := newTestService(t, configured())

	html, err := svc.render("welcome", pageData{Name: "Ada", TrialEndsAt: "June 8, 2026", Link: "https://app.fitcoach.test/", Year: 2026})
	require.NoError(t, err)
	assert.Contains(t, html, "Hi Ada,")
	assert.Contains(t, html, "June 8, 2026")
	assert.Contains(t, html, "Welcome to FitCoach")
	assert.Contains(t, html, "&copy; 2026 FitCoach")

	html, err = svc.render("password_reset", pageData{Link: "https://x.test/reset-password?token=a%2Bb", ExpiresIn: "1 hour"})
	require.NoError(t, err)
	assert.Contains(t, html, "Reset your password")
	assert.Contains(t, html, "This link will expire in 1 hour.")

	html, err = svc.render("welcome", pageData{Name: "<script>alert(1)</script>"})
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")

	_, err = svc.render("missing", pageData{})
	assert.Error(t, err)
}

func TestSendEmails(t *testing.T) {
	svc, sent := newTestService(t, configured())
	ctx := context.Background()

	require.NoError(t, svc.SendWelcomeEmail(ctx, "ada@example.com", "Ada", time.Date(2026, 6, 8, 9, 0, 0, 0, time.UTC)))
	require.NoError(t, svc.SendPasswordResetEmail(ctx, "ada@example.com", "tok-123"))
	require.NoError(t, svc.SendEmailChangeEmail(ctx, "new@example.com", "tok-456"))
	require.Len(t, *sent, 3)

	welcome := (*sent)[0]
	assert.Equal(t, []string{"ada@example.com"}, welcome.GetHeader("To"))
	assert.Equal(t, []string{"no-reply@fitcoach.test"}, welcome.GetHeader("From"))
	assert.Contains(t, body(t, welcome), "June 8, 2026")

	reset := body(t, (*sent)[1])
	assert.Contains(t, reset, "https://app.fitcoach.test/reset-password?token=tok-123")
	assert.Contains(t, reset, "1 hour")

	change := (*sent)[2]
	assert.Equal(t, []string{"new@example.com"}, change.GetHeader("To"))
	assert.Contains(t, body(t, change), "24 hours")
}

func TestSend_SkipsWithoutSMTP(t *testing.T) {
	cfg := configured()
	cfg.SMTPHost = ""
	svc, sent := newTestService(t, cfg)

	assert.False(t, svc.Enabled())
	require.NoError(t, svc.SendPasswordResetEmail(context.Background(), "ada@example.com", "tok"))
	assert.Empty(t, *sent)
}

func TestSend_DeliveryError(t *testing.T) {
	svc, _ := newTestService(t, configured())
	svc.deliver = func(*gomail.Message) error { return errors.New("connection refused") }

	err := svc.SendPasswordResetEmail(context.Background(), "ada@example.com", "tok")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	assert.Error(t, svc.SendPasswordResetEmail(context.Background(), " ", "tok"))
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "30 minutes", humanDuration(30*time.Minute))
	assert.Equal(t, "1 hour", humanDuration(time.Hour))
	assert.Equal(t, "24 hours", humanDuration(24*time.Hour))
	assert.Equal(t, "3 days", humanDuration(72*time.Hour))
}
