package eventing

import (
	"context"
	"errors"

	"certificate-engine/internal/eventing/eventbus"
)

// OutboxWriter inserts outbox records.
type OutboxWriter interface {
	Insert(ctx context.Context, env Envelope) (string, error)
}

// Publisher writes events to the outbox and triggers dispatch, so an event
// survives a crash between the write and its delivery. It also exposes the
// underlying bus for in-process subscriptions.
type Publisher struct {
	outbox   OutboxWriter
	dispatch *Dispatcher
	sub      eventbus.EventBus
}

// NewPublisher constructs a publisher.
func NewPublisher(outbox OutboxWriter, dispatch *Dispatcher, sub eventbus.EventBus) (*Publisher, error) {
	if outbox == nil {
		return nil, errors.New("eventing: nil outbox writer")
	}
	return &Publisher{outbox: outbox, dispatch: dispatch, sub: sub}, nil
}

// Publish writes the event to the outbox and triggers a dispatch pass.
// Dispatch failures are not surfaced here: the record stays pending and a
// later pass retries it.
func (p *Publisher) Publish(ctx context.Context, event any) error {
	env, err := BuildEnvelope(event, MetaFromContext(ctx))
	if err != nil {
		return err
	}
	if _, err := p.outbox.Insert(ctx, env); err != nil {
		return err
	}
	if p.dispatch != nil {
		_ = p.dispatch.Dispatch(ctx, 1)
	}
	return nil
}

// Subscribe delegates to the underlying bus when available.
func (p *Publisher) Subscribe(eventType string, handler eventbus.EventHandler) {
	if p == nil || p.sub == nil {
		return
	}
	p.sub.Subscribe(eventType, handler)
}
