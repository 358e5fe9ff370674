package interfaces

import (
	"context"
	"errors"
	"fmt"

	meteringevents "certificate-engine/internal/metering/application/events"
)

// MeasurementHandler runs one issuance pipeline for a reading.
type MeasurementHandler interface {
	HandleMeasurement(ctx context.Context, event meteringevents.MeasurementReceived) error
}

// MeasurementConsumer fans one inbound reading out to every issuance
// pipeline. Both the production and the consumption pipeline see each
// reading; each filters by its own contract point type.
type MeasurementConsumer struct {
	pipelines []MeasurementHandler
}

// NewMeasurementConsumer constructs a consumer adapter.
func NewMeasurementConsumer(pipelines ...MeasurementHandler) (*MeasurementConsumer, error) {
	if len(pipelines) == 0 {
		return nil, errors.New("measurement consumer: no pipelines")
	}
	for _, pipeline := range pipelines {
		if pipeline == nil {
			return nil, errors.New("measurement consumer: nil pipeline")
		}
	}
	return &MeasurementConsumer{pipelines: pipelines}, nil
}

// Consume handles one MeasurementReceived message.
func (c *MeasurementConsumer) Consume(ctx context.Context, event meteringevents.MeasurementReceived) error {
	var firstErr error
	for _, pipeline := range c.pipelines {
		if err := pipeline.HandleMeasurement(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Handle adapts the consumer to an event bus handler.
func (c *MeasurementConsumer) Handle(ctx context.Context, event any) error {
	received, ok := event.(meteringevents.MeasurementReceived)
	if !ok {
		return fmt.Errorf("measurement consumer: unexpected event %T", event)
	}
	return c.Consume(ctx, received)
}
