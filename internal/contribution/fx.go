package contribution

import (
	"github.com/erinfolamirukayat/theweddingplace/internal/contribution/ledger"
	"github.com/erinfolamirukayat/theweddingplace/internal/contribution/service"
	"go.uber.org/fx"
)

var Module = fx.Module("contribution.service",
	fx.Provide(ledger.Provide),
	fx.Provide(service.NewService),
)
