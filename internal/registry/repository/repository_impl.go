package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/erinfolamirukayat/theweddingplace/internal/registry/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Registry, error) {
	var item domain.Registry
	err := db.WithContext(ctx).Raw(
		`SELECT id, couple_names, wedding_date, story, share_url, created_at
		 FROM registries
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByShareURL(ctx context.Context, db *gorm.DB, shareURL string) (*domain.Registry, error) {
	var item domain.Registry
	err := db.WithContext(ctx).Raw(
		`SELECT id, couple_names, wedding_date, story, share_url, created_at
		 FROM registries
		 WHERE share_url = ?
		 LIMIT 1`,
		strings.TrimSpace(shareURL),
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, registry *domain.Registry) error {
	return db.WithContext(ctx).Create(registry).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, registry *domain.Registry) error {
	return db.WithContext(ctx).Save(registry).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM registries WHERE id = ?`, id)
	return res.RowsAffected, res.Error
}

const itemViewQuery = `
SELECT ri.id, ri.registry_id, ri.product_id, ri.quantity,
	ri.contributions_received, ri.is_fully_funded, ri.created_at,
	p.name AS product_name, p.price AS product_price, p.image_url AS product_image_url,
	p.price * ri.quantity AS target_amount,
	p.price * ri.quantity - ri.contributions_received AS remaining_amount
FROM registry_items ri
JOIN products p ON p.id = ri.product_id`

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, registryID snowflake.ID) ([]domain.ItemView, error) {
	var items []domain.ItemView
	err := db.WithContext(ctx).Raw(
		itemViewQuery+`
		WHERE ri.registry_id = ?
		ORDER BY ri.created_at DESC`,
		registryID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindItem(ctx context.Context, db *gorm.DB, itemID snowflake.ID) (*domain.ItemView, error) {
	var item domain.ItemView
	err := db.WithContext(ctx).Raw(
		itemViewQuery+`
		WHERE ri.id = ?
		LIMIT 1`,
		itemID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) InsertItem(ctx context.Context, db *gorm.DB, item *domain.RegistryItem) error {
	return db.WithContext(ctx).Create(item).Error
}

func (r *repo) DeleteItem(ctx context.Context, db *gorm.DB, registryID, itemID snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM registry_items
		 WHERE id = ? AND registry_id = ? AND contributions_received = 0`,
		itemID,
		registryID,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) ListPictures(ctx context.Context, db *gorm.DB, registryID snowflake.ID) ([]domain.RegistryPicture, error) {
	var pictures []domain.RegistryPicture
	err := db.WithContext(ctx).
		Where("registry_id = ?", registryID).
		Order("created_at DESC").
		Find(&pictures).Error
	if err != nil {
		return nil, err
	}
	return pictures, nil
}

func (r *repo) InsertPicture(ctx context.Context, db *gorm.DB, picture *domain.RegistryPicture) error {
	return db.WithContext(ctx).Create(picture).Error
}

func (r *repo) DeletePicture(ctx context.Context, db *gorm.DB, registryID, pictureID snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM registry_pictures WHERE id = ? AND registry_id = ?`,
		pictureID,
		registryID,
	)
	return res.RowsAffected, res.Error
}
