package gateway

import (
	"github.com/erinfolamirukayat/theweddingplace/internal/gateway/paystack"
	"go.uber.org/fx"
)

var Module = fx.Module("gateway.paystack",
	fx.Provide(paystack.NewClient),
)
