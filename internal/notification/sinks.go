package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"zeiterfassung-backend/config"
	"zeiterfassung-backend/internal/store"
)

// LogSink writes warnings to the structured log.
type LogSink struct {
	log logrus.FieldLogger
}

// NewLogSink creates a LogSink writing through log.
func NewLogSink(log logrus.FieldLogger) *LogSink {
	return &LogSink{log: log}
}

// Name implements Sink.
func (s *LogSink) Name() string { return "log" }

// Send logs msg at warning level.
func (s *LogSink) Send(_ context.Context, msg Message) error {
	s.log.WithFields(logrus.Fields{
		"employee":     msg.EmployeeName,
		"warning_type": msg.WarningType,
	}).Warn(msg.Text)
	return nil
}

// Mailer sends composed messages. *gomail.Dialer implements it.
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSink mails warnings to the office.
type EmailSink struct {
	mailer Mailer
	from   string
	to     []string
}

// NewEmailSink returns nil when no SMTP host or recipient is configured.
func NewEmailSink(cfg config.EmailConfig) *EmailSink {
	if cfg.Host == "" || len(cfg.To) == 0 {
		return nil
	}
	return &EmailSink{
		mailer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		to:     cfg.To,
	}
}

// Name implements Sink.
func (s *EmailSink) Name() string { return "email" }

// Send mails msg to every configured recipient.
func (s *EmailSink) Send(_ context.Context, msg Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", s.to...)
	m.SetHeader("Subject", fmt.Sprintf("Warnung %s: %s", msg.WarningType, msg.EmployeeName))
	m.SetBody("text/plain", fmt.Sprintf("%s\n\nMitarbeiter: %s\nZeit: %s\n",
		msg.Text, msg.EmployeeName, msg.RaisedAt.Format("02.01.2006 15:04")))
	if err := s.mailer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send warning mail: %w", err)
	}
	return nil
}

// PushSender defines the interface for sending a web push notification.
type PushSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// webPushSender sends through the webpush library.
type webPushSender struct{}

func (webPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WebPushSink pushes warnings to every stored admin subscription. Expired
// subscriptions are deleted.
type WebPushSink struct {
	store   store.Store
	options *webpush.Options
	sender  PushSender
	log     logrus.FieldLogger
}

// NewWebPushSink returns nil when the VAPID keys are missing.
func NewWebPushSink(s store.Store, cfg config.PushConfig, log logrus.FieldLogger) *WebPushSink {
	if cfg.PublicKey == "" || cfg.PrivateKey == "" {
		return nil
	}
	return &WebPushSink{
		store: s,
		options: &webpush.Options{
			Subscriber:      cfg.Subject,
			VAPIDPublicKey:  cfg.PublicKey,
			VAPIDPrivateKey: cfg.PrivateKey,
			TTL:             cfg.TTL,
		},
		sender: webPushSender{},
		log:    log,
	}
}

// Name implements Sink.
func (s *WebPushSink) Name() string { return "webpush" }

// Send pushes msg to every subscription. A 404 or 410 answer deletes the
// subscription; transport failures are joined into one error.
func (s *WebPushSink) Send(ctx context.Context, msg Message) error {
	subs, err := s.store.ListSubscriptions(ctx)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode push payload: %w", err)
	}

	var failed []string
	for _, sub := range subs {
		resp, err := s.sender.Send(payload, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.P256DH, Auth: sub.Auth},
		}, s.options)
		if err != nil {
			failed = append(failed, sub.Endpoint)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
			s.log.WithField("endpoint", sub.Endpoint).Info("push subscription expired, deleting")
			if err := s.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
				s.log.WithError(err).WithField("endpoint", sub.Endpoint).Warn("failed to delete expired subscription")
			}
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("push failed for %d of %d subscriptions: %s", len(failed), len(subs), strings.Join(failed, ", "))
	}
	return nil
}

// Sinks collects the configured sinks. The log sink is always present.
func Sinks(cfg config.NotificationConfig, s store.Store, log logrus.FieldLogger) []Sink {
	sinks := []Sink{NewLogSink(log)}
	if email := NewEmailSink(cfg.Email); email != nil {
		sinks = append(sinks, email)
	}
	if push := NewWebPushSink(s, cfg.Push, log); push != nil {
		sinks = append(sinks, push)
	}
	return sinks
}
