package payment

import (
	"github.com/smallbiznis/classbook/internal/payment/adapters"
	"github.com/smallbiznis/classbook/internal/payment/adapters/hosted"
	"github.com/smallbiznis/classbook/internal/payment/adapters/manual"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.gateway",
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(hosted.NewFactory(), manual.NewFactory())
	}),
	fx.Provide(NewGateway),
)
