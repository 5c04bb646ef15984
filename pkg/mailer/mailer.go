// Package mailer drains the outbound mail queue over SMTP. It retries
// indefinitely on send failure; a message row is removed only after an
// SMTP success is observed, never before.
package mailer

import (
	"context"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/fbksd/fbksd-server/pkg/config"
	"github.com/fbksd/fbksd-server/pkg/log"
	"github.com/fbksd/fbksd-server/pkg/queue"
)

// Mailer is the single-threaded retry loop described in the
// concurrency model: it peeks the oldest pending message, attempts
// delivery, and pops it only on success, sleeping the polling interval
// between attempts regardless of outcome.
type Mailer struct {
	queue   *queue.Queue
	dialer  *gomail.Dialer
	from    string
	polling time.Duration
}

// New builds a Mailer from system config: SMTP host/credentials, the
// connect timeout, and the polling interval between drain attempts.
func New(q *queue.Queue, sys *config.System) *Mailer {
	dialer := gomail.NewDialer(sys.MailerSMTPDomain, 587, sys.MailerEmailUser, sys.MailerEmailPassword)
	dialer.Timeout = sys.MailerTimeoutDuration()
	return &Mailer{
		queue:   q,
		dialer:  dialer,
		from:    sys.MailerEmailUser,
		polling: sys.MailerPollingInterval(),
	}
}

// Run drains the mail queue until ctx is cancelled.
func (m *Mailer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := m.drainOne(); err != nil {
			log.Logger.Warn().Err(err).Msg("mailer: send failed, will retry")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.polling):
		}
	}
}

func (m *Mailer) drainOne() error {
	msg, err := m.queue.PeekMail()
	if err != nil {
		return err
	}
	if msg == nil {
		return nil
	}

	mail := gomail.NewMessage()
	mail.SetHeader("From", m.from)
	mail.SetHeader("To", msg.To)
	mail.SetHeader("Subject", msg.Subject)
	mail.SetBody("text/plain", msg.Text)

	if err := m.dialer.DialAndSend(mail); err != nil {
		return err
	}
	return m.queue.PopMail(msg.ID)
}
