package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusInitiated Status = "initiated"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Contribution is one guest payment toward a registry item. The gateway's
// PaymentReference is the idempotency key: at most one row exists per
// reference, and status only moves initiated -> completed or
// initiated -> failed. Amount is in kobo and, once completed, is the
// gateway's authoritative figure, not the amount the guest requested.
type Contribution struct {
	ID               snowflake.ID `json:"id" gorm:"primaryKey"`
	RegistryItemID   snowflake.ID `json:"registry_item_id" gorm:"not null;index"`
	Name             string       `json:"name" gorm:"type:text;not null"`
	Email            string       `json:"email" gorm:"type:text"`
	Amount           int64        `json:"amount" gorm:"not null"`
	Message          string       `json:"message" gorm:"type:text"`
	PaymentReference string       `json:"payment_reference" gorm:"type:text;not null;uniqueIndex"`
	Status           Status       `json:"status" gorm:"type:text;not null"`
	CreatedAt        time.Time    `json:"created_at" gorm:"not null"`
}

func (Contribution) TableName() string { return "contributions" }

// GatewayEvent is the audit record of one accepted webhook delivery.
// Deliveries are recorded as received; idempotency of the ledger is carried
// by the contribution's unique payment reference, not by this table.
type GatewayEvent struct {
	ID          snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider    string         `json:"provider" gorm:"type:text;not null"`
	EventType   string         `json:"event_type" gorm:"type:text;not null"`
	Reference   string         `json:"reference" gorm:"type:text;not null;index"`
	Payload     datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	ReceivedAt  time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt *time.Time     `json:"processed_at"`
}

func (GatewayEvent) TableName() string { return "gateway_events" }

// Metadata travels to the gateway on initialize and comes back on verify
// and webhook events. It carries everything needed to commit a
// contribution for a reference the service has never seen.
type Metadata struct {
	RegistryItemID snowflake.ID
	Name           string
	Email          string
	Message        string
}
