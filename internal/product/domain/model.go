package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("product_not_found")
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidPrice    = errors.New("invalid_price")
	ErrInvalidCategory = errors.New("invalid_category")
)

// Product is a catalog entry couples can add to a registry.
// Price and SuggestedAmount are stored in kobo.
type Product struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	Name            string       `json:"name" gorm:"type:text;not null"`
	Category        string       `json:"category" gorm:"type:text;not null;index"`
	Description     string       `json:"description" gorm:"type:text"`
	Price           int64        `json:"price" gorm:"not null"`
	ImageURL        string       `json:"image_url" gorm:"type:text"`
	SuggestedAmount int64        `json:"suggested_amount"`
	CreatedAt       time.Time    `json:"created_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }

type CreateRequest struct {
	Name            string `json:"name"`
	Category        string `json:"category"`
	Description     string `json:"description"`
	Price           int64  `json:"price"`
	ImageURL        string `json:"image_url"`
	SuggestedAmount int64  `json:"suggested_amount"`
}

type UpdateRequest struct {
	Name            *string `json:"name"`
	Category        *string `json:"category"`
	Description     *string `json:"description"`
	Price           *int64  `json:"price"`
	ImageURL        *string `json:"image_url"`
	SuggestedAmount *int64  `json:"suggested_amount"`
}

type Service interface {
	List(ctx context.Context, category string) ([]Product, error)
	Get(ctx context.Context, id snowflake.ID) (*Product, error)
	Create(ctx context.Context, req CreateRequest) (*Product, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateRequest) (*Product, error)
	Delete(ctx context.Context, id snowflake.ID) error
}

type Repository interface {
	List(ctx context.Context, db *gorm.DB, category string) ([]Product, error)
	Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Product, error)
	Insert(ctx context.Context, db *gorm.DB, product *Product) error
	Update(ctx context.Context, db *gorm.DB, product *Product) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	Count(ctx context.Context, db *gorm.DB) (int64, error)
}
