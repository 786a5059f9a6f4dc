package notification

import (
	"github.com/smallbiznis/classbook/internal/notification/domain"
	"github.com/smallbiznis/classbook/internal/notification/repository"
	"github.com/smallbiznis/classbook/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(NewDispatcher),
	fx.Provide(func(d *Dispatcher) domain.Notifier { return d }),
)
