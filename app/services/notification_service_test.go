package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentEmail struct {
	to, subject, body string
}

type fakeEmailProvider struct {
	sent   []sentEmail
	failTo string
}

func (p *fakeEmailProvider) SendEmail(email, subject, message string) error {
	if email == p.failTo {
		return errors.New("mailbox unavailable")
	}
	p.sent = append(p.sent, sentEmail{to: email, subject: subject, body: message})
	return nil
}

type failingSink struct{ err error }

func (s failingSink) Notify(context.Context, Recipient, Event) error { return s.err }

func TestEmailSink_Accounts(t *testing.T) {
	provider := &fakeEmailProvider{}
	sink := NewEmailSink(provider, nil, 0, zap.NewNop())
	event := NewEvent(EventCommissionEarned, "You earned a commission", map[string]any{"amount": "30.00", "level": 1})

	require.NoError(t, sink.Notify(context.Background(), AccountRecipient(1, "a@example.com"), event))
	require.NoError(t, sink.Notify(context.Background(), AccountRecipient(2, ""), event))

	require.Len(t, provider.sent, 1)
	assert.Equal(t, "a@example.com", provider.sent[0].to)
	assert.Equal(t, "You earned a commission", provider.sent[0].subject)
	assert.Contains(t, provider.sent[0].body, "event: commission.earned")
	assert.Contains(t, provider.sent[0].body, "amount: 30.00\nlevel: 1\n")
}

func TestEmailSink_AdminThrottled(t *testing.T) {
	provider := &fakeEmailProvider{}
	sink := NewEmailSink(provider, []string{"ops@example.com", "cto@example.com"}, 2, zap.NewNop())
	event := NewEvent(EventWorkUnitEscalated, "CRITICAL: unit failed", nil)

	for i := 0; i < 5; i++ {
		require.NoError(t, sink.Notify(context.Background(), AdminRecipient(), event))
	}
	assert.Len(t, provider.sent, 4, "two admin messages per burst, each to both addresses")
	assert.Equal(t, "[Susanoo] CRITICAL: unit failed", provider.sent[0].subject)
}

func TestEmailSink_AdminPartialFailure(t *testing.T) {
	provider := &fakeEmailProvider{failTo: "cto@example.com"}
	sink := NewEmailSink(provider, []string{"ops@example.com", "cto@example.com"}, 0, zap.NewNop())

	err := sink.Notify(context.Background(), AdminRecipient(), NewEvent(EventDistributionCompleted, "done", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cto@example.com")
	assert.Len(t, provider.sent, 1)
}

func TestFanoutSink(t *testing.T) {
	provider := &fakeEmailProvider{}
	fanout := NewFanoutSink(
		NewLogSink(zap.NewNop()),
		failingSink{err: errors.New("webhook down")},
		NewEmailSink(provider, nil, 0, zap.NewNop()),
	)

	err := fanout.Notify(context.Background(), AccountRecipient(3, "c@example.com"), NewEvent(EventTierUpgraded, "Tier up", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook down")
	assert.Len(t, provider.sent, 1, "a failing sink does not stop the others")
}

func TestDeliver_ToleratesNilAndFailingSinks(t *testing.T) {
	assert.NotPanics(t, func() {
		Deliver(context.Background(), nil, zap.NewNop(), AdminRecipient(), NewEvent(EventWorkUnitEscalated, "x", nil))
		Deliver(context.Background(), failingSink{err: errors.New("boom")}, zap.NewNop(), AdminRecipient(), NewEvent(EventWorkUnitEscalated, "x", nil))
	})
}
