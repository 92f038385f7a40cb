package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("registry_not_found")
	ErrItemNotFound     = errors.New("registry_item_not_found")
	ErrPictureNotFound  = errors.New("registry_picture_not_found")
	ErrInvalidNames     = errors.New("invalid_couple_names")
	ErrInvalidQuantity  = errors.New("invalid_quantity")
	ErrInvalidImageURL  = errors.New("invalid_image_url")
	ErrHasContributions = errors.New("registry_item_has_contributions")
)

type Registry struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	CoupleNames string       `json:"couple_names" gorm:"type:text;not null"`
	WeddingDate time.Time    `json:"wedding_date"`
	Story       string       `json:"story" gorm:"type:text"`
	ShareURL    string       `json:"share_url" gorm:"type:text;uniqueIndex"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
}

func (Registry) TableName() string { return "registries" }

// RegistryItem tracks cumulative contributions toward one product on a
// registry. ContributionsReceived is in kobo and only ever grows; the
// contribution ledger is its sole writer.
type RegistryItem struct {
	ID                    snowflake.ID `json:"id" gorm:"primaryKey"`
	RegistryID            snowflake.ID `json:"registry_id" gorm:"not null;index"`
	ProductID             snowflake.ID `json:"product_id" gorm:"not null"`
	Quantity              int          `json:"quantity" gorm:"not null"`
	ContributionsReceived int64        `json:"contributions_received" gorm:"not null;default:0"`
	IsFullyFunded         bool         `json:"is_fully_funded" gorm:"not null;default:false"`
	CreatedAt             time.Time    `json:"created_at" gorm:"not null"`
}

func (RegistryItem) TableName() string { return "registry_items" }

type RegistryPicture struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	RegistryID snowflake.ID `json:"registry_id" gorm:"not null;index"`
	ImageURL   string       `json:"image_url" gorm:"type:text;not null"`
	CreatedAt  time.Time    `json:"created_at" gorm:"not null"`
}

func (RegistryPicture) TableName() string { return "registry_pictures" }

// ItemView is a registry item joined with its product, plus the remaining
// balance computed fresh as quantity * product price minus contributions.
type ItemView struct {
	RegistryItem
	ProductName     string `json:"product_name"`
	ProductPrice    int64  `json:"product_price"`
	ProductImageURL string `json:"product_image_url"`
	TargetAmount    int64  `json:"target_amount"`
	RemainingAmount int64  `json:"remaining_amount"`
}

type CreateRequest struct {
	CoupleNames string    `json:"couple_names"`
	WeddingDate time.Time `json:"wedding_date"`
	Story       string    `json:"story"`
}

type UpdateRequest struct {
	CoupleNames *string    `json:"couple_names"`
	WeddingDate *time.Time `json:"wedding_date"`
	Story       *string    `json:"story"`
}

type AddItemRequest struct {
	ProductID snowflake.ID `json:"product_id"`
	Quantity  int          `json:"quantity"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Registry, error)
	Get(ctx context.Context, id snowflake.ID) (*Registry, error)
	GetByShareURL(ctx context.Context, shareURL string) (*Registry, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateRequest) (*Registry, error)
	Delete(ctx context.Context, id snowflake.ID) error

	ListItems(ctx context.Context, registryID snowflake.ID) ([]ItemView, error)
	GetItem(ctx context.Context, itemID snowflake.ID) (*ItemView, error)
	AddItem(ctx context.Context, registryID snowflake.ID, req AddItemRequest) (*RegistryItem, error)
	RemoveItem(ctx context.Context, registryID, itemID snowflake.ID) error

	ListPictures(ctx context.Context, registryID snowflake.ID) ([]RegistryPicture, error)
	AddPicture(ctx context.Context, registryID snowflake.ID, imageURL string) (*RegistryPicture, error)
	RemovePicture(ctx context.Context, registryID, pictureID snowflake.ID) error
}

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Registry, error)
	FindByShareURL(ctx context.Context, db *gorm.DB, shareURL string) (*Registry, error)
	Insert(ctx context.Context, db *gorm.DB, registry *Registry) error
	Update(ctx context.Context, db *gorm.DB, registry *Registry) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)

	ListItems(ctx context.Context, db *gorm.DB, registryID snowflake.ID) ([]ItemView, error)
	FindItem(ctx context.Context, db *gorm.DB, itemID snowflake.ID) (*ItemView, error)
	InsertItem(ctx context.Context, db *gorm.DB, item *RegistryItem) error
	DeleteItem(ctx context.Context, db *gorm.DB, registryID, itemID snowflake.ID) (int64, error)

	ListPictures(ctx context.Context, db *gorm.DB, registryID snowflake.ID) ([]RegistryPicture, error)
	InsertPicture(ctx context.Context, db *gorm.DB, picture *RegistryPicture) error
	DeletePicture(ctx context.Context, db *gorm.DB, registryID, pictureID snowflake.ID) (int64, error)
}
