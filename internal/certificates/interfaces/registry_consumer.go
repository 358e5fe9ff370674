package interfaces

import (
	"context"
	"errors"
	"fmt"

	registryevents "certificate-engine/internal/registry/events"
)

// ReconcileHandler drives certificates to their registry-confirmed state.
type ReconcileHandler interface {
	HandleRegistryIssued(ctx context.Context, event registryevents.RegistryIssued) error
	HandleRegistryRejected(ctx context.Context, event registryevents.RegistryRejected) error
}

// RegistryConsumer adapts registry confirmation messages into the
// reconciliation service.
type RegistryConsumer struct {
	app ReconcileHandler
}

// NewRegistryConsumer constructs a consumer adapter.
func NewRegistryConsumer(app ReconcileHandler) (*RegistryConsumer, error) {
	if app == nil {
		return nil, errors.New("registry consumer: nil reconcile service")
	}
	return &RegistryConsumer{app: app}, nil
}

// ConsumeIssued handles one RegistryIssued message.
func (c *RegistryConsumer) ConsumeIssued(ctx context.Context, event registryevents.RegistryIssued) error {
	return c.app.HandleRegistryIssued(ctx, event)
}

// ConsumeRejected handles one RegistryRejected message.
func (c *RegistryConsumer) ConsumeRejected(ctx context.Context, event registryevents.RegistryRejected) error {
	return c.app.HandleRegistryRejected(ctx, event)
}

// HandleIssued adapts ConsumeIssued to an event bus handler.
func (c *RegistryConsumer) HandleIssued(ctx context.Context, event any) error {
	issued, ok := event.(registryevents.RegistryIssued)
	if !ok {
		return fmt.Errorf("registry consumer: unexpected event %T", event)
	}
	return c.ConsumeIssued(ctx, issued)
}

// HandleRejected adapts ConsumeRejected to an event bus handler.
func (c *RegistryConsumer) HandleRejected(ctx context.Context, event any) error {
	rejected, ok := event.(registryevents.RegistryRejected)
	if !ok {
		return fmt.Errorf("registry consumer: unexpected event %T", event)
	}
	return c.ConsumeRejected(ctx, rejected)
}
