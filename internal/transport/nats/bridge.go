package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"certificate-engine/internal/eventing"
	"certificate-engine/internal/eventing/eventbus"
	meteringevents "certificate-engine/internal/metering/application/events"
	registryevents "certificate-engine/internal/registry/events"
)

// Bridge connects JetStream subjects to in-process event handlers. Delivery
// is at-least-once: a handler error naks the message for redelivery, so
// handlers are expected to carry their own idempotency guard.
type Bridge struct {
	cfg    Config
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger *log.Logger

	mu   sync.Mutex
	subs []*nats.Subscription
}

// Connect dials the server and prepares a JetStream context.
func Connect(cfg Config, logger *log.Logger) (*Bridge, error) {
	if logger == nil {
		logger = log.Default()
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Printf("nats: disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Printf("nats: reconnected to %s", nc.ConnectedUrl())
		}),
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats: connect %s: %w", cfg.URL, err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("nats: jetstream context: %w", err)
	}
	return &Bridge{cfg: cfg, conn: conn, js: js, logger: logger}, nil
}

// SubscribeMeasurements delivers MeasurementReceived messages.
func (b *Bridge) SubscribeMeasurements(handler eventbus.EventHandler) error {
	return b.subscribe(b.cfg.Subjects.Measurements, decodeMeasurement, handler)
}

// SubscribeRegistryIssued delivers RegistryIssued confirmations.
func (b *Bridge) SubscribeRegistryIssued(handler eventbus.EventHandler) error {
	return b.subscribe(b.cfg.Subjects.RegistryIssued, decodeRegistryIssued, handler)
}

// SubscribeRegistryRejected delivers RegistryRejected confirmations.
func (b *Bridge) SubscribeRegistryRejected(handler eventbus.EventHandler) error {
	return b.subscribe(b.cfg.Subjects.RegistryRejected, decodeRegistryRejected, handler)
}

func (b *Bridge) subscribe(sc SubjectConfig, decode func([]byte) (any, string, time.Time, error), handler eventbus.EventHandler) error {
	opts := []nats.SubOpt{
		nats.Durable(sc.Durable),
		nats.ManualAck(),
		nats.AckWait(b.cfg.AckWait),
		nats.MaxDeliver(b.cfg.MaxDeliver),
		nats.DeliverAll(),
	}
	if b.cfg.Stream != "" {
		opts = append(opts, nats.BindStream(b.cfg.Stream))
	}
	sub, err := b.js.QueueSubscribe(sc.Subject, b.cfg.QueueGroup, func(msg *nats.Msg) {
		b.handle(msg, sc, decode, handler)
	}, opts...)
	if err != nil {
		return fmt.Errorf("nats: subscribe %s: %w", sc.Subject, err)
	}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return nil
}

func (b *Bridge) handle(msg *nats.Msg, sc SubjectConfig, decode func([]byte) (any, string, time.Time, error), handler eventbus.EventHandler) {
	event, subject, occurredAt, err := decode(msg.Data)
	if err != nil {
		// Malformed payloads never become valid; terminate instead of
		// cycling through redeliveries.
		b.logger.Printf("nats: %s: drop malformed message: %v", sc.Subject, err)
		_ = msg.Term()
		return
	}

	env := eventing.Envelope{
		EventID:    messageID(msg),
		EventType:  eventbus.EventType(event),
		OccurredAt: occurredAt,
		Subject:    subject,
	}
	ctx := eventing.WithEnvelope(context.Background(), env)
	ctx = eventing.WithEventID(ctx, env.EventID)
	ctx = eventing.WithCorrelationID(ctx, env.EventID)

	if err := handler(ctx, event); err != nil {
		b.logger.Printf("nats: %s: handler error, nak for redelivery: %v", sc.Subject, err)
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}

// messageID prefers the publisher-set message id and falls back to the
// stream sequence, which is stable across redeliveries of the same message.
func messageID(msg *nats.Msg) string {
	if id := msg.Header.Get(nats.MsgIdHdr); id != "" {
		return id
	}
	if meta, err := msg.Metadata(); err == nil {
		return fmt.Sprintf("%s:%d", meta.Stream, meta.Sequence.Stream)
	}
	return ""
}

// Drain unsubscribes and flushes in-flight messages.
func (b *Bridge) Drain() error {
	b.mu.Lock()
	subs := append([]*nats.Subscription(nil), b.subs...)
	b.subs = nil
	b.mu.Unlock()
	for _, sub := range subs {
		_ = sub.Drain()
	}
	if b.conn != nil {
		return b.conn.Drain()
	}
	return nil
}

// Close closes the connection.
func (b *Bridge) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

func decodeMeasurement(data []byte) (any, string, time.Time, error) {
	var event meteringevents.MeasurementReceived
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, "", time.Time{}, fmt.Errorf("decode measurement: %w", err)
	}
	if event.GSRN == "" {
		return nil, "", time.Time{}, fmt.Errorf("decode measurement: missing gsrn")
	}
	return event, event.GSRN, event.OccurredAt, nil
}

func decodeRegistryIssued(data []byte) (any, string, time.Time, error) {
	var event registryevents.RegistryIssued
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, "", time.Time{}, fmt.Errorf("decode registry issued: %w", err)
	}
	return event, event.CertificateID.String(), event.OccurredAt, nil
}

func decodeRegistryRejected(data []byte) (any, string, time.Time, error) {
	var event registryevents.RegistryRejected
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, "", time.Time{}, fmt.Errorf("decode registry rejected: %w", err)
	}
	return event, event.CertificateID.String(), event.OccurredAt, nil
}
