package booking

import (
	"github.com/smallbiznis/classbook/internal/booking/domain"
	"github.com/smallbiznis/classbook/internal/booking/repository"
	"github.com/smallbiznis/classbook/internal/booking/service"
	"github.com/smallbiznis/classbook/internal/payment"
	"go.uber.org/fx"
)

var Module = fx.Module("booking.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(g *payment.Gateway) domain.PaymentGateway { return g }),
)
