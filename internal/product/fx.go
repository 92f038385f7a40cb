package product

import (
	"github.com/erinfolamirukayat/theweddingplace/internal/product/repository"
	"github.com/erinfolamirukayat/theweddingplace/internal/product/service"
	"go.uber.org/fx"
)

var Module = fx.Module("product.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
