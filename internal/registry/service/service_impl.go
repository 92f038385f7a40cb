package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/erinfolamirukayat/theweddingplace/internal/registry/domain"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("registry.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Registry, error) {
	names := strings.TrimSpace(req.CoupleNames)
	if names == "" {
		return nil, domain.ErrInvalidNames
	}

	id := s.genID.Generate()
	registry := &domain.Registry{
		ID:          id,
		CoupleNames: names,
		WeddingDate: req.WeddingDate,
		Story:       strings.TrimSpace(req.Story),
		ShareURL:    shareURL(names, id),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, s.db, registry); err != nil {
		return nil, err
	}
	return registry, nil
}

// shareURL builds a human-readable public slug; the id suffix keeps it
// unique across couples with the same names.
func shareURL(coupleNames string, id snowflake.ID) string {
	return fmt.Sprintf("%s-%s", slug.Make(coupleNames), id.Base36())
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Registry, error) {
	registry, err := s.repo.Find(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, domain.ErrNotFound
	}
	return registry, nil
}

func (s *Service) GetByShareURL(ctx context.Context, shareURL string) (*domain.Registry, error) {
	if strings.TrimSpace(shareURL) == "" {
		return nil, domain.ErrNotFound
	}
	registry, err := s.repo.FindByShareURL(ctx, s.db, shareURL)
	if err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, domain.ErrNotFound
	}
	return registry, nil
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateRequest) (*domain.Registry, error) {
	registry, err := s.repo.Find(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, domain.ErrNotFound
	}

	if req.CoupleNames != nil {
		names := strings.TrimSpace(*req.CoupleNames)
		if names == "" {
			return nil, domain.ErrInvalidNames
		}
		registry.CoupleNames = names
	}
	if req.WeddingDate != nil {
		registry.WeddingDate = *req.WeddingDate
	}
	if req.Story != nil {
		registry.Story = strings.TrimSpace(*req.Story)
	}

	if err := s.repo.Update(ctx, s.db, registry); err != nil {
		return nil, err
	}
	return registry, nil
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	affected, err := s.repo.Delete(ctx, s.db, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Service) ListItems(ctx context.Context, registryID snowflake.ID) ([]domain.ItemView, error) {
	return s.repo.ListItems(ctx, s.db, registryID)
}

func (s *Service) GetItem(ctx context.Context, itemID snowflake.ID) (*domain.ItemView, error) {
	item, err := s.repo.FindItem(ctx, s.db, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrItemNotFound
	}
	return item, nil
}

func (s *Service) AddItem(ctx context.Context, registryID snowflake.ID, req domain.AddItemRequest) (*domain.RegistryItem, error) {
	if req.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	registry, err := s.repo.Find(ctx, s.db, registryID)
	if err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, domain.ErrNotFound
	}

	item := &domain.RegistryItem{
		ID:         s.genID.Generate(),
		RegistryID: registryID,
		ProductID:  req.ProductID,
		Quantity:   req.Quantity,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.InsertItem(ctx, s.db, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) RemoveItem(ctx context.Context, registryID, itemID snowflake.ID) error {
	item, err := s.repo.FindItem(ctx, s.db, itemID)
	if err != nil {
		return err
	}
	if item == nil || item.RegistryID != registryID {
		return domain.ErrItemNotFound
	}
	if item.ContributionsReceived > 0 {
		return domain.ErrHasContributions
	}

	// the delete re-checks the contributions guard so a contribution that
	// lands between the read and the delete cannot orphan ledger rows
	affected, err := s.repo.DeleteItem(ctx, s.db, registryID, itemID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrHasContributions
	}
	return nil
}

func (s *Service) ListPictures(ctx context.Context, registryID snowflake.ID) ([]domain.RegistryPicture, error) {
	return s.repo.ListPictures(ctx, s.db, registryID)
}

func (s *Service) AddPicture(ctx context.Context, registryID snowflake.ID, imageURL string) (*domain.RegistryPicture, error) {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return nil, domain.ErrInvalidImageURL
	}
	registry, err := s.repo.Find(ctx, s.db, registryID)
	if err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, domain.ErrNotFound
	}

	picture := &domain.RegistryPicture{
		ID:         s.genID.Generate(),
		RegistryID: registryID,
		ImageURL:   imageURL,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.InsertPicture(ctx, s.db, picture); err != nil {
		return nil, err
	}
	return picture, nil
}

func (s *Service) RemovePicture(ctx context.Context, registryID, pictureID snowflake.ID) error {
	affected, err := s.repo.DeletePicture(ctx, s.db, registryID, pictureID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrPictureNotFound
	}
	return nil
}
