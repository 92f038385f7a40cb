package registry

import (
	"github.com/erinfolamirukayat/theweddingplace/internal/registry/repository"
	"github.com/erinfolamirukayat/theweddingplace/internal/registry/service"
	"go.uber.org/fx"
)

var Module = fx.Module("registry.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
