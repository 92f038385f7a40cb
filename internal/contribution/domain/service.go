package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrAlreadyProcessed = errors.New("contribution_already_processed")
	ErrConflict         = errors.New("contribution_conflict")
	ErrNotFound         = errors.New("contribution_not_found")

	ErrInvalidSignature = errors.New("invalid_webhook_signature")
	ErrInvalidPayload   = errors.New("invalid_webhook_payload")
	ErrEventIgnored     = errors.New("webhook_event_ignored")

	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrAmountBelowMinimum    = errors.New("amount_below_minimum")
	ErrAmountExceedsBalance  = errors.New("amount_exceeds_remaining_balance")
	ErrInvalidEmail          = errors.New("invalid_email")
	ErrInvalidName           = errors.New("invalid_name")
	ErrInvalidReference      = errors.New("invalid_reference")
	ErrUnconfirmed           = errors.New("payment_unconfirmed")
	ErrGatewayUnavailable    = errors.New("payment_gateway_unavailable")
	ErrPaymentDeclined       = errors.New("payment_declined")
	ErrRegistryItemNotFound  = errors.New("registry_item_not_found")
	ErrRegistryItemCompleted = errors.New("registry_item_fully_funded")
)

// MinimumAmount is the smallest accepted contribution, in kobo (₦5,000).
const MinimumAmount int64 = 500_000

// InitiateRequest starts a hosted-checkout contribution. Amount is in
// naira; it is converted to kobo exactly once at the gateway boundary.
type InitiateRequest struct {
	RegistryItemID snowflake.ID `json:"registry_item_id"`
	Name           string       `json:"name"`
	Email          string       `json:"email"`
	Amount         float64      `json:"amount"`
	Message        string       `json:"message"`
}

// CheckoutSession is what the guest needs to pay on the gateway's page.
type CheckoutSession struct {
	AuthorizationURL string        `json:"authorization_url"`
	AccessCode       string        `json:"access_code"`
	Reference        string        `json:"reference"`
	Contribution     *Contribution `json:"contribution"`
}

type VerifyStatus string

const (
	VerifySucceeded VerifyStatus = "success"
	VerifyFailed    VerifyStatus = "failed"
	VerifyPending   VerifyStatus = "pending"
)

// Verification is the gateway's authoritative answer for a reference.
// Amount is in kobo. A gateway communication problem is never expressed
// here; it surfaces as ErrGatewayUnavailable instead.
type Verification struct {
	Status          VerifyStatus
	Reference       string
	Amount          int64
	Metadata        Metadata
	GatewayResponse string
}

type EventType string

const (
	EventChargeSuccess EventType = "charge.success"
	EventChargeFailed  EventType = "charge.failed"
)

// WebhookEvent is a provider push notification mapped to the canonical
// shape; unknown event types are reported as ErrEventIgnored by the parser.
type WebhookEvent struct {
	Type      EventType
	Reference string
	Amount    int64
	Metadata  Metadata
}

// Gateway is the outbound payment provider boundary.
type Gateway interface {
	Initialize(ctx context.Context, email string, amount float64, metadata Metadata) (*GatewayCheckout, error)
	Verify(ctx context.Context, reference string) (*Verification, error)
	VerifyWebhookSignature(payload []byte, signature string) bool
	ParseWebhookEvent(payload []byte) (*WebhookEvent, error)
	Provider() string
}

// GatewayCheckout is the gateway's response to an initialize call.
type GatewayCheckout struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// Service is the reconciliation engine plus the pre-payment paths.
type Service interface {
	Initiate(ctx context.Context, req InitiateRequest) (*CheckoutSession, error)
	Reconcile(ctx context.Context, reference string, amount int64, metadata Metadata) (*Contribution, error)
	RecordFailure(ctx context.Context, reference string) error
	ConfirmByReference(ctx context.Context, reference string) (*Contribution, error)
	IngestWebhook(ctx context.Context, payload []byte, signature string) error
	History(ctx context.Context, registryItemID snowflake.ID) ([]Contribution, error)
}

// CommitParams describes one idempotent completed-contribution commit.
type CommitParams struct {
	ID               snowflake.ID
	RegistryItemID   snowflake.ID
	Name             string
	Email            string
	Amount           int64
	Message          string
	PaymentReference string
}

// Ledger is the sole writer of contribution rows and registry item totals.
type Ledger interface {
	FindByReference(ctx context.Context, db *gorm.DB, reference string) (*Contribution, error)
	InsertInitiated(ctx context.Context, db *gorm.DB, contribution *Contribution) error
	CommitCompleted(ctx context.Context, db *gorm.DB, params CommitParams) (*Contribution, bool, error)
	MarkFailed(ctx context.Context, db *gorm.DB, reference string) (int64, error)
	ListByItem(ctx context.Context, db *gorm.DB, registryItemID snowflake.ID) ([]Contribution, error)
	InsertEvent(ctx context.Context, db *gorm.DB, event *GatewayEvent) error
	MarkEventProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
