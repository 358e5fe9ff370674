package eventing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"certificate-engine/internal/eventing"
	"certificate-engine/internal/eventing/eventbus"
	"certificate-engine/internal/eventing/infrastructure/memory"
)

type pingEvent struct {
	GSRN       string    `json:"gsrn"`
	OccurredAt time.Time `json:"occurred_at"`
}

func newHarness(t *testing.T) (*eventing.Publisher, *eventbus.InMemoryBus, *memory.OutboxStore, *memory.DLQStore) {
	t.Helper()
	bus := eventbus.NewInMemoryBus()
	outbox := memory.NewOutboxStore()
	dlq := memory.NewDLQStore()
	registry := eventing.NewRegistry()
	registry.Register(pingEvent{})
	dispatcher := eventing.NewDispatcher(bus, outbox, registry, dlq)
	publisher, err := eventing.NewPublisher(outbox, dispatcher, bus)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	return publisher, bus, outbox, dlq
}

func TestPublishDelivers(t *testing.T) {
	publisher, bus, outbox, _ := newHarness(t)

	var got []pingEvent
	bus.Subscribe(eventbus.EventTypeOf[pingEvent](), func(ctx context.Context, event any) error {
		got = append(got, event.(pingEvent))
		return nil
	})

	payload := pingEvent{GSRN: "571313000000000001", OccurredAt: time.Now().UTC()}
	if err := publisher.Publish(context.Background(), payload); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("delivered = %d, want 1", len(got))
	}
	if got[0].GSRN != payload.GSRN {
		t.Fatalf("payload gsrn = %s, want %s", got[0].GSRN, payload.GSRN)
	}
	if n := outbox.PendingCount(); n != 0 {
		t.Fatalf("pending = %d, want 0 after dispatch", n)
	}
}

func TestEnvelopeSubjectFromPayload(t *testing.T) {
	env, err := eventing.BuildEnvelope(pingEvent{GSRN: "571313000000000001"}, eventing.Meta{})
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	if env.Subject != "571313000000000001" {
		t.Fatalf("subject = %q, want gsrn", env.Subject)
	}
	if env.EventID == "" || env.CorrelationID != env.EventID {
		t.Fatalf("event id %q / correlation id %q", env.EventID, env.CorrelationID)
	}
}

func TestIdempotentConsumerAbsorbsDuplicate(t *testing.T) {
	publisher, bus, _, _ := newHarness(t)
	processed := memory.NewProcessedStore()

	count := 0
	eventing.Subscribe(bus, eventbus.EventTypeOf[pingEvent](), "consumer-a", func(ctx context.Context, event any) error {
		count++
		return nil
	}, processed)

	ctx := eventing.WithEventID(context.Background(), "evt-dup-001")
	payload := pingEvent{GSRN: "571313000000000001", OccurredAt: time.Now().UTC()}

	if err := publisher.Publish(ctx, payload); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := publisher.Publish(ctx, payload); err != nil {
		t.Fatalf("publish duplicate: %v", err)
	}
	if count != 1 {
		t.Fatalf("handler ran %d times, want 1", count)
	}
}

func TestFailingHandlerGoesToDLQ(t *testing.T) {
	publisher, bus, outbox, dlq := newHarness(t)

	bus.Subscribe(eventbus.EventTypeOf[pingEvent](), func(ctx context.Context, event any) error {
		return errors.New("boom")
	})

	if err := publisher.Publish(context.Background(), pingEvent{GSRN: "571313000000000001"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(dlq.Failures()) != 1 {
		t.Fatalf("dlq records = %d, want 1", len(dlq.Failures()))
	}
	if n := outbox.PendingCount(); n != 0 {
		t.Fatalf("pending = %d, want 0 after failure marked", n)
	}
}

func TestUnknownEventTypeGoesToDLQ(t *testing.T) {
	bus := eventbus.NewInMemoryBus()
	outbox := memory.NewOutboxStore()
	dlq := memory.NewDLQStore()
	dispatcher := eventing.NewDispatcher(bus, outbox, eventing.NewRegistry(), dlq)
	publisher, err := eventing.NewPublisher(outbox, dispatcher, bus)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}

	if err := publisher.Publish(context.Background(), pingEvent{GSRN: "571313000000000001"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(dlq.Failures()) != 1 {
		t.Fatalf("dlq records = %d, want 1 for unregistered type", len(dlq.Failures()))
	}
}

func TestFailedHandlerRetriesOnRedelivery(t *testing.T) {
	publisher, bus, _, _ := newHarness(t)
	processed := memory.NewProcessedStore()

	attempts := 0
	eventing.Subscribe(bus, eventbus.EventTypeOf[pingEvent](), "consumer-b", func(ctx context.Context, event any) error {
		attempts++
		if attempts == 1 {
			return errors.New("transient")
		}
		return nil
	}, processed)

	ctx := eventing.WithEventID(context.Background(), "evt-retry-001")
	payload := pingEvent{GSRN: "571313000000000001"}

	// First delivery fails; the event stays unmarked.
	_ = publisher.Publish(ctx, payload)
	if err := publisher.Publish(ctx, payload); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}

func TestFanOutUnderOneInboundMessage(t *testing.T) {
	publisher, bus, _, _ := newHarness(t)
	processed := memory.NewProcessedStore()

	var delivered []string
	var correlations []string
	eventing.Subscribe(bus, eventbus.EventTypeOf[pingEvent](), "consumer-fanout", func(ctx context.Context, event any) error {
		delivered = append(delivered, event.(pingEvent).GSRN)
		if env, ok := eventing.EnvelopeFromContext(ctx); ok {
			correlations = append(correlations, env.CorrelationID)
		}
		return nil
	}, processed)

	// One inbound message producing two distinct events, as when a reading
	// is covered by overlapping contracts.
	ctx := eventing.WithEventID(context.Background(), "inbound-msg-1")
	first := pingEvent{GSRN: "571313000000000001", OccurredAt: time.Now().UTC()}
	second := pingEvent{GSRN: "571313000000000002", OccurredAt: time.Now().UTC()}

	if err := publisher.Publish(ctx, first); err != nil {
		t.Fatalf("publish first: %v", err)
	}
	if err := publisher.Publish(ctx, second); err != nil {
		t.Fatalf("publish second: %v", err)
	}

	if len(delivered) != 2 {
		t.Fatalf("delivered = %d events %v, want 2", len(delivered), delivered)
	}
	if delivered[0] == delivered[1] {
		t.Fatalf("both deliveries carried gsrn %s", delivered[0])
	}
	for _, corr := range correlations {
		if corr != "inbound-msg-1" {
			t.Fatalf("correlation id = %q, want inbound message id", corr)
		}
	}
}

func TestDerivedEventIDStableAcrossRedelivery(t *testing.T) {
	a := eventing.DeriveEventID("inbound-msg-1", "events.CertificateCreated", "cert-1")
	b := eventing.DeriveEventID("inbound-msg-1", "events.CertificateCreated", "cert-1")
	c := eventing.DeriveEventID("inbound-msg-1", "events.CertificateCreated", "cert-2")
	if a != b {
		t.Fatalf("same cause derived %q and %q", a, b)
	}
	if a == c {
		t.Fatalf("distinct subjects derived the same id %q", a)
	}
}

func TestSubscriberCount(t *testing.T) {
	bus := eventbus.NewInMemoryBus()
	eventType := eventbus.EventTypeOf[pingEvent]()

	if n := bus.SubscriberCount(eventType); n != 0 {
		t.Fatalf("count = %d, want 0", n)
	}
	bus.Subscribe(eventType, func(ctx context.Context, event any) error { return nil })
	bus.Subscribe(eventType, func(ctx context.Context, event any) error { return nil })
	if n := bus.SubscriberCount(eventType); n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
}

func TestCancelledContextStopsDelivery(t *testing.T) {
	bus := eventbus.NewInMemoryBus()
	eventType := eventbus.EventTypeOf[pingEvent]()

	calls := 0
	bus.Subscribe(eventType, func(ctx context.Context, event any) error {
		calls++
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := bus.Publish(ctx, pingEvent{GSRN: "571313000000000001"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Fatalf("handler ran %d times after cancel, want 0", calls)
	}
}
