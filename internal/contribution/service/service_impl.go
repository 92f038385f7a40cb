package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/erinfolamirukayat/theweddingplace/internal/contribution/domain"
	"github.com/erinfolamirukayat/theweddingplace/internal/observability/metrics"
	registrydomain "github.com/erinfolamirukayat/theweddingplace/internal/registry/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Gateway  domain.Gateway
	Ledger   domain.Ledger
	Registry registrydomain.Repository
	Metrics  *metrics.Metrics
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	gateway  domain.Gateway
	ledger   domain.Ledger
	registry registrydomain.Repository
	metrics  *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("contribution.service"),
		genID:    p.GenID,
		gateway:  p.Gateway,
		ledger:   p.Ledger,
		registry: p.Registry,
		metrics:  p.Metrics,
	}
}

// Initiate validates the request against the registry item's remaining
// balance, opens a checkout session with the gateway, and records the
// pending contribution under the gateway's reference.
func (s *Service) Initiate(ctx context.Context, req domain.InitiateRequest) (*domain.CheckoutSession, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.ErrInvalidEmail
	}
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	kobo := int64(math.Round(req.Amount * 100))
	if kobo < domain.MinimumAmount {
		return nil, domain.ErrAmountBelowMinimum
	}

	item, err := s.registry.FindItem(ctx, s.db, req.RegistryItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrRegistryItemNotFound
	}
	if item.IsFullyFunded {
		return nil, domain.ErrRegistryItemCompleted
	}
	if kobo > item.RemainingAmount {
		return nil, domain.ErrAmountExceedsBalance
	}

	meta := domain.Metadata{
		RegistryItemID: item.ID,
		Name:           name,
		Email:          email,
		Message:        strings.TrimSpace(req.Message),
	}
	checkout, err := s.gateway.Initialize(ctx, email, req.Amount, meta)
	if err != nil {
		s.metrics.RecordGatewayError(ctx, "initialize")
		return nil, err
	}

	contribution := &domain.Contribution{
		ID:               s.genID.Generate(),
		RegistryItemID:   item.ID,
		Name:             meta.Name,
		Email:            meta.Email,
		Amount:           kobo,
		Message:          meta.Message,
		PaymentReference: checkout.Reference,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.ledger.InsertInitiated(ctx, s.db, contribution); err != nil {
		return nil, err
	}

	s.log.Info("checkout session opened",
		zap.String("reference", checkout.Reference),
		zap.Int64("registry_item_id", int64(item.ID)),
		zap.Int64("amount", kobo),
	)
	return &domain.CheckoutSession{
		AuthorizationURL: checkout.AuthorizationURL,
		AccessCode:       checkout.AccessCode,
		Reference:        checkout.Reference,
		Contribution:     contribution,
	}, nil
}

// Reconcile turns one confirmed-success signal into at most one committed
// contribution. Replays return the committed row with ErrAlreadyProcessed;
// a success signal for a reference that already failed is ErrConflict.
func (s *Service) Reconcile(ctx context.Context, reference string, amount int64, metadata domain.Metadata) (*domain.Contribution, error) {
	if reference == "" {
		return nil, domain.ErrInvalidReference
	}
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	existing, err := s.ledger.FindByReference(ctx, s.db, reference)
	if err != nil {
		return nil, err
	}

	params := domain.CommitParams{
		Amount:           amount,
		PaymentReference: reference,
	}
	switch {
	case existing == nil:
		// reference never initiated here: the row is built entirely from
		// gateway metadata (a webhook can outrun the initiate response)
		if metadata.RegistryItemID == 0 {
			return nil, domain.ErrInvalidPayload
		}
		params.ID = s.genID.Generate()
		params.RegistryItemID = metadata.RegistryItemID
		params.Name = metadata.Name
		params.Email = metadata.Email
		params.Message = metadata.Message
	case existing.Status == domain.StatusCompleted:
		return existing, domain.ErrAlreadyProcessed
	case existing.Status == domain.StatusFailed:
		return nil, domain.ErrConflict
	default:
		params.ID = existing.ID
		params.RegistryItemID = existing.RegistryItemID
		params.Name = existing.Name
		params.Email = existing.Email
		params.Message = existing.Message
	}

	row, committed, err := s.ledger.CommitCompleted(ctx, s.db, params)
	if err != nil {
		return nil, err
	}
	if committed {
		s.metrics.RecordContribution(ctx, "reconcile")
		s.log.Info("contribution committed",
			zap.String("reference", reference),
			zap.Int64("registry_item_id", int64(row.RegistryItemID)),
			zap.Int64("amount", row.Amount),
		)
		return row, nil
	}

	// lost the race; the winner's row is authoritative
	winner, err := s.ledger.FindByReference(ctx, s.db, reference)
	if err != nil {
		return nil, err
	}
	if winner == nil {
		return nil, domain.ErrConflict
	}
	if winner.Status == domain.StatusFailed {
		return nil, domain.ErrConflict
	}
	return winner, domain.ErrAlreadyProcessed
}

// RecordFailure settles a pending contribution as failed. A reference that
// already completed keeps its success (ErrConflict); an unknown or already
// failed reference is a no-op.
func (s *Service) RecordFailure(ctx context.Context, reference string) error {
	if reference == "" {
		return domain.ErrInvalidReference
	}
	rows, err := s.ledger.MarkFailed(ctx, s.db, reference)
	if err != nil {
		return err
	}
	if rows > 0 {
		s.log.Info("contribution marked failed", zap.String("reference", reference))
		return nil
	}
	existing, err := s.ledger.FindByReference(ctx, s.db, reference)
	if err != nil {
		return err
	}
	if existing != nil && existing.Status == domain.StatusCompleted {
		return domain.ErrConflict
	}
	return nil
}

// ConfirmByReference answers the redirect-back poll. A reference already
// committed is returned without touching the gateway; otherwise the
// gateway's verify endpoint decides.
func (s *Service) ConfirmByReference(ctx context.Context, reference string) (*domain.Contribution, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, domain.ErrInvalidReference
	}

	existing, err := s.ledger.FindByReference(ctx, s.db, reference)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		switch existing.Status {
		case domain.StatusCompleted:
			return existing, nil
		case domain.StatusFailed:
			return nil, domain.ErrPaymentDeclined
		}
	}

	verification, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		// indistinguishable from a slow gateway; the caller retries,
		// nothing is marked failed
		s.metrics.RecordGatewayError(ctx, "verify")
		return nil, err
	}

	switch verification.Status {
	case domain.VerifySucceeded:
		row, err := s.Reconcile(ctx, verification.Reference, verification.Amount, verification.Metadata)
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			return row, nil
		}
		return row, err
	case domain.VerifyFailed:
		if err := s.RecordFailure(ctx, reference); err != nil && !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		return nil, domain.ErrPaymentDeclined
	default:
		return nil, domain.ErrUnconfirmed
	}
}

// IngestWebhook is the push path. The signature check is a hard gate: a
// payload that fails it is never parsed, recorded, or acted on.
func (s *Service) IngestWebhook(ctx context.Context, payload []byte, signature string) error {
	if !s.gateway.VerifyWebhookSignature(payload, signature) {
		s.log.Warn("webhook rejected", zap.String("reason", "signature_mismatch"))
		return domain.ErrInvalidSignature
	}

	event, err := s.gateway.ParseWebhookEvent(payload)
	if err != nil {
		return err
	}
	s.metrics.RecordWebhookEvent(ctx, string(event.Type))

	audit := &domain.GatewayEvent{
		ID:         s.genID.Generate(),
		Provider:   s.gateway.Provider(),
		EventType:  string(event.Type),
		Reference:  event.Reference,
		Payload:    datatypes.JSON(payload),
		ReceivedAt: time.Now().UTC(),
	}
	if err := s.ledger.InsertEvent(ctx, s.db, audit); err != nil {
		return err
	}

	switch event.Type {
	case domain.EventChargeSuccess:
		if _, err := s.Reconcile(ctx, event.Reference, event.Amount, event.Metadata); err != nil {
			switch {
			case errors.Is(err, domain.ErrAlreadyProcessed):
				// redelivery: the work is already done
			case errors.Is(err, domain.ErrConflict):
				s.log.Error("success event for a failed payment",
					zap.String("reference", event.Reference))
			case errors.Is(err, domain.ErrInvalidPayload):
				s.log.Error("charge event missing registry item metadata",
					zap.String("reference", event.Reference))
			default:
				return err
			}
			// redelivering these events can never change the outcome
			return s.ledger.MarkEventProcessed(ctx, s.db, audit.ID)
		}
	case domain.EventChargeFailed:
		if err := s.RecordFailure(ctx, event.Reference); err != nil && !errors.Is(err, domain.ErrConflict) {
			return err
		}
	}
	return s.ledger.MarkEventProcessed(ctx, s.db, audit.ID)
}

func (s *Service) History(ctx context.Context, registryItemID snowflake.ID) ([]domain.Contribution, error) {
	if registryItemID == 0 {
		return nil, domain.ErrRegistryItemNotFound
	}
	return s.ledger.ListByItem(ctx, s.db, registryItemID)
}
