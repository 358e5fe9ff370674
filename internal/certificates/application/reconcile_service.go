package application

import (
	"context"
	"errors"
	"log"
	"time"

	appevents "certificate-engine/internal/certificates/application/events"
	certificate "certificate-engine/internal/certificates/domain"
	metering "certificate-engine/internal/metering/domain"
	"certificate-engine/internal/observability/metrics"
	registryevents "certificate-engine/internal/registry/events"
)

const (
	confirmationIssued   = "issued"
	confirmationRejected = "rejected"
)

// ReconcileService drives certificates to their authoritative terminal state
// from the registry's asynchronous answers. Delivery is at-least-once: a
// confirmation that finds the aggregate already in its target state is
// absorbed silently, and the first recorded rejection reason stays
// authoritative on duplicates.
type ReconcileService struct {
	repo      CertificateRepository
	publisher EventPublisher
	logger    *log.Logger
	now       func() time.Time
}

// NewReconcileService constructs the reconciliation handlers.
func NewReconcileService(repo CertificateRepository, publisher EventPublisher, logger *log.Logger) (*ReconcileService, error) {
	if repo == nil {
		return nil, errors.New("reconcile service: nil certificate repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ReconcileService{repo: repo, publisher: publisher, logger: logger, now: time.Now}, nil
}

// HandleRegistryIssued records the registry's confirmation. A not-found
// aggregate is returned as an error so the transport redelivers: the
// confirmation may have raced ahead of the local creation.
func (s *ReconcileService) HandleRegistryIssued(ctx context.Context, event registryevents.RegistryIssued) error {
	started := s.now()
	if _, err := metering.ParsePointType(event.PointType); err != nil {
		s.logger.Printf("reconcile: issued id=%s: %v", event.CertificateID, err)
		metrics.ObserveReconcile(confirmationIssued, metrics.ResultError, s.now().Sub(started))
		return certificate.ErrUnsupportedPointType
	}

	cert, err := s.repo.Load(ctx, event.CertificateID)
	if err != nil {
		metrics.ObserveReconcile(confirmationIssued, metrics.ResultError, s.now().Sub(started))
		return err
	}
	if cert.Status() == certificate.StatusIssued {
		metrics.DuplicateConfirmation(confirmationIssued)
		metrics.ObserveReconcile(confirmationIssued, metrics.ResultSuccess, s.now().Sub(started))
		return nil
	}

	cert, issued, err := cert.Issue()
	if err != nil {
		metrics.ObserveReconcile(confirmationIssued, metrics.ResultError, s.now().Sub(started))
		return err
	}
	if err := s.repo.Save(ctx, cert, []certificate.Event{issued}); err != nil {
		metrics.ObserveReconcile(confirmationIssued, metrics.ResultError, s.now().Sub(started))
		return err
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, appevents.CertificateIssued{
			CertificateID: cert.ID(),
			PointType:     event.PointType,
			Owner:         cert.Owner(),
			OccurredAt:    s.now().UTC(),
		}); err != nil {
			s.logger.Printf("reconcile: publish certificate issued id=%s: %v", cert.ID(), err)
		}
	}
	metrics.ObserveReconcile(confirmationIssued, metrics.ResultSuccess, s.now().Sub(started))
	return nil
}

// HandleRegistryRejected records the registry's rejection.
func (s *ReconcileService) HandleRegistryRejected(ctx context.Context, event registryevents.RegistryRejected) error {
	started := s.now()
	if _, err := metering.ParsePointType(event.PointType); err != nil {
		s.logger.Printf("reconcile: rejected id=%s: %v", event.CertificateID, err)
		metrics.ObserveReconcile(confirmationRejected, metrics.ResultError, s.now().Sub(started))
		return certificate.ErrUnsupportedPointType
	}

	cert, err := s.repo.Load(ctx, event.CertificateID)
	if err != nil {
		metrics.ObserveReconcile(confirmationRejected, metrics.ResultError, s.now().Sub(started))
		return err
	}
	if cert.Status() == certificate.StatusRejected {
		// First recorded reason stays authoritative.
		metrics.DuplicateConfirmation(confirmationRejected)
		metrics.ObserveReconcile(confirmationRejected, metrics.ResultSuccess, s.now().Sub(started))
		return nil
	}

	cert, rejected, err := cert.Reject(event.Reason)
	if err != nil {
		metrics.ObserveReconcile(confirmationRejected, metrics.ResultError, s.now().Sub(started))
		return err
	}
	if err := s.repo.Save(ctx, cert, []certificate.Event{rejected}); err != nil {
		metrics.ObserveReconcile(confirmationRejected, metrics.ResultError, s.now().Sub(started))
		return err
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, appevents.CertificateRejected{
			CertificateID: cert.ID(),
			PointType:     event.PointType,
			Reason:        event.Reason,
			OccurredAt:    s.now().UTC(),
		}); err != nil {
			s.logger.Printf("reconcile: publish certificate rejected id=%s: %v", cert.ID(), err)
		}
	}
	metrics.ObserveReconcile(confirmationRejected, metrics.ResultSuccess, s.now().Sub(started))
	return nil
}
