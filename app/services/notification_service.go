// Package services provides external service integrations: notification sinks and the matrix placement collaborator
package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gopkg.in/gomail.v2"
)

// EventType names a notification the engine can emit
type EventType string

const (
	EventCommissionEarned      EventType = "commission.earned"
	EventCommissionClawedBack  EventType = "commission.clawed_back"
	EventTierUpgraded          EventType = "tier.upgraded"
	EventDistributionAllocated EventType = "distribution.allocated"
	EventDistributionCompleted EventType = "distribution.completed"
	EventWorkUnitAttemptFailed EventType = "work_unit.attempt_failed"
	EventWorkUnitEscalated     EventType = "work_unit.escalated"
)

// RoleAdmin addresses whoever operates the platform. Sinks decide who that is.
const RoleAdmin = "admin"

// Recipient identifies who an event is for
type Recipient struct {
	AccountID uint   `json:"account_id,omitempty"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
}

// AccountRecipient addresses an account holder
func AccountRecipient(accountID uint, email string) Recipient {
	return Recipient{AccountID: accountID, Email: email}
}

// AdminRecipient addresses the operators
func AdminRecipient() Recipient {
	return Recipient{Role: RoleAdmin}
}

// IsAdmin reports whether the recipient is the operator role
func (r Recipient) IsAdmin() bool {
	return r.Role == RoleAdmin
}

// Event is a structured notification payload
type Event struct {
	Type       EventType      `json:"type"`
	Subject    string         `json:"subject"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewEvent stamps an event with the current time
func NewEvent(eventType EventType, subject string, payload map[string]any) Event {
	return Event{Type: eventType, Subject: subject, Payload: payload, OccurredAt: time.Now().UTC()}
}

// NotificationSink receives engine events
type NotificationSink interface {
	Notify(ctx context.Context, recipient Recipient, event Event) error
}

// Deliver sends an event and logs failures. Delivery never fails the caller.
func Deliver(ctx context.Context, sink NotificationSink, logger *zap.Logger, recipient Recipient, event Event) {
	if sink == nil {
		return
	}
	if err := sink.Notify(ctx, recipient, event); err != nil {
		logger.Warn("notification delivery failed",
			zap.String("event", string(event.Type)),
			zap.Uint("account_id", recipient.AccountID),
			zap.String("role", recipient.Role),
			zap.Error(err),
		)
	}
}

// LogSink writes events to the structured log
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(_ context.Context, recipient Recipient, event Event) error {
	level := s.logger.Info
	if event.Type == EventWorkUnitEscalated {
		level = s.logger.Error
	}
	level("notification",
		zap.String("event", string(event.Type)),
		zap.String("subject", event.Subject),
		zap.Uint("account_id", recipient.AccountID),
		zap.String("role", recipient.Role),
		zap.Any("payload", event.Payload),
	)
	return nil
}

// EmailProvider interface for email sending
type EmailProvider interface {
	SendEmail(email, subject, message string) error
}

// SMTPEmailProvider delivers mail through an SMTP relay
type SMTPEmailProvider struct {
	dialer    *gomail.Dialer
	fromEmail string
	fromName  string
}

func NewSMTPEmailProvider(host string, port int, username, password, fromEmail, fromName string) EmailProvider {
	return &SMTPEmailProvider{
		dialer:    gomail.NewDialer(host, port, username, password),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (p *SMTPEmailProvider) SendEmail(email, subject, message string) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", p.fromEmail, p.fromName)
	m.SetHeader("To", email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", message)

	if err := p.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", email, err)
	}
	return nil
}

// EmailSink mails account holders and the configured admin addresses.
// Admin mail is throttled so an outage cannot flood operators.
type EmailSink struct {
	provider     EmailProvider
	adminEmails  []string
	adminLimiter *rate.Limiter
	logger       *zap.Logger
}

// NewEmailSink creates an email sink. adminPerMinute bounds admin messages; zero disables the bound.
func NewEmailSink(provider EmailProvider, adminEmails []string, adminPerMinute int, logger *zap.Logger) *EmailSink {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if adminPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(adminPerMinute)), adminPerMinute)
	}
	return &EmailSink{
		provider:     provider,
		adminEmails:  adminEmails,
		adminLimiter: limiter,
		logger:       logger,
	}
}

func (s *EmailSink) Notify(_ context.Context, recipient Recipient, event Event) error {
	body := renderEventBody(event)

	if recipient.IsAdmin() {
		if !s.adminLimiter.Allow() {
			s.logger.Warn("admin notification throttled", zap.String("event", string(event.Type)))
			return nil
		}
		var failed []string
		for _, addr := range s.adminEmails {
			if err := s.provider.SendEmail(addr, "[Susanoo] "+event.Subject, body); err != nil {
				failed = append(failed, addr)
			}
		}
		if len(failed) > 0 {
			return fmt.Errorf("admin notification failed for %s", strings.Join(failed, ", "))
		}
		return nil
	}

	if recipient.Email == "" {
		return nil
	}
	return s.provider.SendEmail(recipient.Email, event.Subject, body)
}

func renderEventBody(event Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nevent: %s\nat: %s\n", event.Subject, event.Type, event.OccurredAt.Format(time.RFC3339))
	keys := make([]string, 0, len(event.Payload))
	for k := range event.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, event.Payload[k])
	}
	return b.String()
}

// FanoutSink forwards every event to each wrapped sink
type FanoutSink struct {
	sinks []NotificationSink
}

func NewFanoutSink(sinks ...NotificationSink) *FanoutSink {
	return &FanoutSink{sinks: sinks}
}

func (s *FanoutSink) Notify(ctx context.Context, recipient Recipient, event Event) error {
	var errs []string
	for _, sink := range s.sinks {
		if err := sink.Notify(ctx, recipient, event); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notification fan-out: %s", strings.Join(errs, "; "))
	}
	return nil
}
