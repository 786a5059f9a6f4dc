package classdef

import (
	"github.com/smallbiznis/classbook/internal/classdef/repository"
	"github.com/smallbiznis/classbook/internal/classdef/service"
	"go.uber.org/fx"
)

var Module = fx.Module("classdef.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
