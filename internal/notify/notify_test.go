package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/wneessen/go-mail"

	"github.com/shaiso/etlflows/internal/domain"
	"github.com/shaiso/etlflows/internal/mq"
)

func testEvent(kind domain.EventKind) domain.Event {
	return domain.Event{
		Kind:       kind,
		Detail:     "business rule: stargazers_count(18000) < min_stars(20000)",
		RunID:      uuid.MustParse("11111111-2222-3333-4444-555555555555"),
		Repository: "PrefectHQ/prefect",
		OccurredAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// --- Render Tests ---

func TestRender_Rejected(t *testing.T) {
	msg, err := Render(testEvent(domain.EventRejected), "https://ui.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Subject != SubjectRejected {
		t.Errorf("expected subject %q, got %q", SubjectRejected, msg.Subject)
	}
	if !strings.Contains(msg.Body, "stargazers_count(18000) < min_stars(20000)") {
		t.Errorf("body should contain the reason:\n%s", msg.Body)
	}
	if !strings.Contains(msg.Body, "https://ui.example.com/runs/11111111-2222-3333-4444-555555555555") {
		t.Errorf("body should contain the run link:\n%s", msg.Body)
	}
}

func TestRender_CompletedWithoutLink(t *testing.T) {
	event := testEvent(domain.EventCompleted)
	event.Detail = "total_engagement=20300 engagement_ratio=35.93"
	event.Location = "s3://bucket/r1/aggregated-data.json"

	msg, err := Render(event, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Subject != SubjectCompleted {
		t.Errorf("unexpected subject %q", msg.Subject)
	}
	if !strings.Contains(msg.Body, "Data available at: s3://bucket/r1/aggregated-data.json") {
		t.Errorf("body should contain location:\n%s", msg.Body)
	}
	if strings.Contains(msg.Body, "Flow run link") {
		t.Errorf("no link expected without FLOW_UI_URL:\n%s", msg.Body)
	}
}

func TestRender_UnknownKind(t *testing.T) {
	if _, err := Render(domain.Event{Kind: "paused"}, ""); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}

// --- EmailNotifier Tests ---

type fakeSender struct {
	sent []*mail.Msg
	err  error
}

func (s *fakeSender) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, messages...)
	return nil
}

func TestEmailNotifier_Send(t *testing.T) {
	sender := &fakeSender{}
	n := NewEmailNotifier(sender, EmailConfig{
		From: "etl@example.com",
		To:   []string{"ops@example.com", "data@example.com"},
	})

	if err := n.Notify(context.Background(), testEvent(domain.EventRejected)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sender.sent))
	}

	msg := sender.sent[0]
	if subj := msg.GetGenHeader(mail.HeaderSubject); len(subj) != 1 || subj[0] != SubjectRejected {
		t.Errorf("unexpected subject %v", subj)
	}
	if to := msg.GetToString(); len(to) != 2 {
		t.Errorf("expected 2 recipients, got %v", to)
	}

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatalf("write message: %v", err)
	}
	if !strings.Contains(buf.String(), "Data Validation Failed") {
		t.Errorf("message body missing:\n%s", buf.String())
	}
}

func TestEmailNotifier_SendError(t *testing.T) {
	n := NewEmailNotifier(&fakeSender{err: errors.New("dial tcp: refused")}, EmailConfig{
		From: "etl@example.com",
		To:   []string{"ops@example.com"},
	})

	err := n.Notify(context.Background(), testEvent(domain.EventCompleted))
	if !errors.Is(err, ErrSend) {
		t.Errorf("expected ErrSend, got %v", err)
	}
}

func TestEmailNotifier_NoRecipients(t *testing.T) {
	n := NewEmailNotifier(&fakeSender{}, EmailConfig{From: "etl@example.com"})
	if err := n.Notify(context.Background(), testEvent(domain.EventCompleted)); !errors.Is(err, ErrNoRecipients) {
		t.Errorf("expected ErrNoRecipients, got %v", err)
	}
}

func TestEmailNotifier_InvalidFrom(t *testing.T) {
	n := NewEmailNotifier(&fakeSender{}, EmailConfig{From: "not an address", To: []string{"ops@example.com"}})
	if err := n.Notify(context.Background(), testEvent(domain.EventCompleted)); err == nil {
		t.Error("expected error for invalid from address")
	}
}

func TestNewSMTPClient(t *testing.T) {
	if _, err := NewSMTPClient(SMTPConfig{Host: "smtp.example.com", Port: 2525, Username: "u", Password: "p"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := NewSMTPClient(SMTPConfig{}); err == nil {
		t.Error("expected error without host")
	}
}

// --- QueueNotifier Tests ---

type fakePublisher struct {
	events []domain.Event
	err    error
}

func (p *fakePublisher) PublishNotification(_ context.Context, event domain.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func TestQueueNotifier(t *testing.T) {
	pub := &fakePublisher{}
	if err := NewQueueNotifier(pub).Notify(context.Background(), testEvent(domain.EventCompleted)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.events) != 1 || pub.events[0].Kind != domain.EventCompleted {
		t.Errorf("unexpected events %v", pub.events)
	}

	pub.err = errors.New("channel closed")
	if err := NewQueueNotifier(pub).Notify(context.Background(), testEvent(domain.EventCompleted)); !errors.Is(err, ErrSend) {
		t.Errorf("expected ErrSend, got %v", err)
	}
}

// --- LogNotifier / Multi Tests ---

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	if err := NewLogNotifier(logger).Notify(context.Background(), testEvent(domain.EventRejected)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), `"level":"WARN"`) || !strings.Contains(buf.String(), "PrefectHQ/prefect") {
		t.Errorf("unexpected log output %s", buf.String())
	}
}

func TestMulti_ContinuesOnError(t *testing.T) {
	var called int
	failing := NotifierFunc(func(context.Context, domain.Event) error {
		called++
		return errors.New("boom")
	})
	ok := NotifierFunc(func(context.Context, domain.Event) error {
		called++
		return nil
	})

	err := Multi{failing, ok, Nop}.Notify(context.Background(), testEvent(domain.EventCompleted))
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected joined error, got %v", err)
	}
	if called != 2 {
		t.Errorf("all notifiers should be called, got %d", called)
	}
}

// --- MessageHandler Tests ---

func notificationDelivery(event domain.Event, redelivered bool) *mq.Delivery {
	msg := mq.NewMessage(mq.MessageTypeNotification, mq.NotificationPayload{Event: event})
	return &mq.Delivery{Message: *msg, Raw: amqp.Delivery{Redelivered: redelivered}}
}

func TestMessageHandler_Delivers(t *testing.T) {
	var got domain.Event
	n := NotifierFunc(func(_ context.Context, e domain.Event) error {
		got = e
		return nil
	})

	err := MessageHandler(n, nil)(context.Background(), notificationDelivery(testEvent(domain.EventRejected), false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RunID != testEvent(domain.EventRejected).RunID || got.Kind != domain.EventRejected {
		t.Errorf("unexpected event: %+v", got)
	}
}

func TestMessageHandler_WrongType(t *testing.T) {
	msg := mq.NewMessage(mq.MessageTypeRunCompleted, map[string]any{})

	err := MessageHandler(Nop, nil)(context.Background(), &mq.Delivery{Message: *msg})
	if mq.AckFor(err) != mq.AckReject {
		t.Errorf("unexpected type must be rejected, got %v", err)
	}
}

func TestMessageHandler_RetryOnce(t *testing.T) {
	failing := NotifierFunc(func(context.Context, domain.Event) error { return ErrSend })
	handler := MessageHandler(failing, nil)

	err := handler(context.Background(), notificationDelivery(testEvent(domain.EventCompleted), false))
	if mq.AckFor(err) != mq.AckRequeue {
		t.Errorf("first failure should requeue, got %v", err)
	}

	err = handler(context.Background(), notificationDelivery(testEvent(domain.EventCompleted), true))
	if mq.AckFor(err) != mq.AckReject {
		t.Errorf("failure on redelivery should reject, got %v", err)
	}
	if !errors.Is(err, mq.ErrReject) {
		t.Errorf("expected ErrReject in chain, got %v", err)
	}
}
