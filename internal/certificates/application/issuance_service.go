package application

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	appevents "certificate-engine/internal/certificates/application/events"
	certificate "certificate-engine/internal/certificates/domain"
	contracts "certificate-engine/internal/contracts/domain"
	meteringevents "certificate-engine/internal/metering/application/events"
	metering "certificate-engine/internal/metering/domain"
	"certificate-engine/internal/observability/metrics"
	"certificate-engine/internal/registry"
)

// ContractResolver yields the contracts covering a reading's period start.
type ContractResolver interface {
	ActiveCovering(ctx context.Context, gsrn metering.GSRN, at int64) ([]contracts.IssuanceContract, error)
}

// CertificateRepository persists certificate event streams.
type CertificateRepository interface {
	Save(ctx context.Context, cert certificate.Certificate, events []certificate.Event) error
	Load(ctx context.Context, id uuid.UUID) (certificate.Certificate, error)
}

// RegistryIssuer requests on-ledger issuance from the external registry.
type RegistryIssuer interface {
	RequestIssuance(ctx context.Context, req registry.IssuanceRequest) error
}

// EventPublisher emits integration events through the outbox.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// IssuanceService is the measurement-to-certificate pipeline for one
// certificate kind. Each inbound reading is resolved against the issuance
// contracts, filtered for eligibility, turned into a new aggregate with a
// provisional local issue, persisted, and handed to the registry. The
// registry's asynchronous answer is the authoritative one; the local issued
// state only marks intent.
type IssuanceService struct {
	pointType metering.PointType
	resolver  ContractResolver
	repo      CertificateRepository
	registry  RegistryIssuer
	publisher EventPublisher
	logger    *log.Logger
	newID     func() uuid.UUID
	now       func() time.Time
}

// NewIssuanceService constructs the pipeline for one point type.
func NewIssuanceService(
	pointType metering.PointType,
	resolver ContractResolver,
	repo CertificateRepository,
	registryClient RegistryIssuer,
	publisher EventPublisher,
	logger *log.Logger,
) (*IssuanceService, error) {
	if !pointType.Valid() {
		return nil, metering.ErrUnknownPointType
	}
	if resolver == nil {
		return nil, errors.New("issuance service: nil contract resolver")
	}
	if repo == nil {
		return nil, errors.New("issuance service: nil certificate repository")
	}
	if registryClient == nil {
		return nil, errors.New("issuance service: nil registry client")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &IssuanceService{
		pointType: pointType,
		resolver:  resolver,
		repo:      repo,
		registry:  registryClient,
		publisher: publisher,
		logger:    logger,
		newID:     uuid.New,
		now:       time.Now,
	}, nil
}

// HandleMeasurement runs the pipeline for one reported reading. Readings
// arrive at-least-once; callers wrap this handler with the eventing
// idempotency guard. A concurrency conflict is returned unhandled so the
// transport redelivers.
func (s *IssuanceService) HandleMeasurement(ctx context.Context, event meteringevents.MeasurementReceived) error {
	started := s.now()
	metrics.MeasurementReceived()

	m := event.Measurement()
	if err := m.Validate(); err != nil {
		s.logger.Printf("issuance: invalid measurement for gsrn=%s: %v", m.GSRN, err)
		metrics.MeasurementDropped("invalid")
		return nil
	}
	if reason, ok := EligibleReading(m); !ok {
		metrics.MeasurementDropped(string(reason))
		return nil
	}

	covering, err := s.resolver.ActiveCovering(ctx, m.GSRN, m.PeriodStart)
	if err != nil {
		metrics.ObserveIssuance(metrics.ResultError, s.now().Sub(started))
		return err
	}
	if len(covering) == 0 {
		metrics.MeasurementDropped(string(DropNoContract))
		return nil
	}

	var firstErr error
	for _, contract := range covering {
		if reason, ok := EligibleUnderContract(contract, m, s.pointType); !ok {
			metrics.MeasurementDropped(string(reason))
			continue
		}
		if err := s.issueUnder(ctx, contract, m); err != nil {
			s.logger.Printf("issuance: contract=%s gsrn=%s: %v", contract.ID, m.GSRN, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	result := metrics.ResultSuccess
	if firstErr != nil {
		result = metrics.ResultError
	}
	metrics.ObserveIssuance(result, s.now().Sub(started))
	return firstErr
}

func (s *IssuanceService) issueUnder(ctx context.Context, contract contracts.IssuanceContract, m metering.Measurement) error {
	cert, created, err := certificate.New(certificate.NewArgs{
		ID:             s.newID(),
		PointType:      s.pointType,
		GSRN:           m.GSRN,
		GridArea:       contract.GridArea,
		PeriodStart:    m.PeriodStart,
		PeriodEnd:      m.PeriodEnd,
		Technology:     contract.Technology,
		OrganizationID: contract.OrganizationID,
		Quantity:       m.Quantity,
	})
	if err != nil {
		return err
	}

	// Provisional local issue. The registry confirmation is authoritative.
	cert, issued, err := cert.Issue()
	if err != nil {
		return err
	}
	if err := s.repo.Save(ctx, cert, []certificate.Event{created, issued}); err != nil {
		return err
	}
	metrics.CertificateCreated(string(s.pointType))

	position, _ := certificate.Position(m.PeriodStart)
	if err := s.registry.RequestIssuance(ctx, registry.IssuanceRequest{
		CertificateID:  cert.ID(),
		PointType:      string(s.pointType),
		GSRN:           string(m.GSRN),
		GridArea:       contract.GridArea,
		PeriodStart:    m.PeriodStart,
		PeriodEnd:      m.PeriodEnd,
		Technology:     contract.Technology,
		Quantity:       m.Quantity,
		WalletPosition: position,
	}); err != nil {
		metrics.RegistryRequest(metrics.ResultError)
		return err
	}
	metrics.RegistryRequest(metrics.ResultSuccess)

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, appevents.CertificateCreated{
			CertificateID:  cert.ID(),
			PointType:      string(s.pointType),
			GSRN:           string(m.GSRN),
			GridArea:       contract.GridArea,
			PeriodStart:    m.PeriodStart,
			PeriodEnd:      m.PeriodEnd,
			OrganizationID: contract.OrganizationID,
			Quantity:       m.Quantity,
			OccurredAt:     s.now().UTC(),
		}); err != nil {
			s.logger.Printf("issuance: publish certificate created id=%s: %v", cert.ID(), err)
		}
	}
	return nil
}
