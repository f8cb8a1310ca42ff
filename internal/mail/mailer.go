// Package mail delivers the new-comment notification. Delivery is
// best-effort: the caller fires and forgets, and failures end up in the logs
// and the notification metric, nowhere else.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/bumbayash/blogicum/internal/blog"
	"github.com/bumbayash/blogicum/internal/metrics"
	"go.uber.org/zap"
)

// Mailer sends comment notifications over SMTP. When no SMTP address is
// configured it only logs, so dev setups need no mail relay.
type Mailer struct {
	addr     string
	from     string
	auth     smtp.Auth
	logger   *zap.SugaredLogger
	metrics  *metrics.Metrics
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

var _ blog.Notifier = (*Mailer)(nil)

func NewMailer(addr, username, password, from string, logger *zap.SugaredLogger, m *metrics.Metrics) *Mailer {
	var auth smtp.Auth
	if username != "" {
		host := addr
		if i := strings.IndexByte(addr, ':'); i >= 0 {
			host = addr[:i]
		}
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &Mailer{
		addr:     addr,
		from:     from,
		auth:     auth,
		logger:   logger,
		metrics:  m,
		sendMail: smtp.SendMail,
	}
}

// NotifyNewComment mails the post's author about a new comment. The
// recipient is derived from the post author; the comment author is never
// notified.
func (m *Mailer) NotifyNewComment(ctx context.Context, post *blog.Post, comment *blog.Comment) error {
	if post.Author == nil || post.Author.Email == "" {
		m.logger.Debugw("Skipping comment notification, author has no email", "post_id", post.ID)
		return nil
	}

	subject := fmt.Sprintf("New comment on %q", post.Title)
	body := fmt.Sprintf("Your post %q received a new comment:\r\n\r\n%s\r\n", post.Title, comment.Text)

	if m.addr == "" {
		m.logger.Infow("SMTP not configured, logging notification instead",
			"to", post.Author.Email,
			"subject", subject,
		)
		m.record(ctx, "logged")
		return nil
	}

	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.from, post.Author.Email, subject, body))

	if err := m.sendMail(m.addr, m.auth, m.from, []string{post.Author.Email}, msg); err != nil {
		m.record(ctx, "error")
		return fmt.Errorf("failed to send notification mail: %w", err)
	}
	m.record(ctx, "sent")
	return nil
}

func (m *Mailer) record(ctx context.Context, outcome string) {
	if m.metrics != nil {
		m.metrics.RecordNotification(ctx, outcome)
	}
}
