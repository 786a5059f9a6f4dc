package club

import (
	"github.com/smallbiznis/classbook/internal/club/repository"
	"github.com/smallbiznis/classbook/internal/club/service"
	"go.uber.org/fx"
)

var Module = fx.Module("club.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
