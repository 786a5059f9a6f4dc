package promotion

import (
	"github.com/smallbiznis/classbook/internal/booking/domain"
	"github.com/smallbiznis/classbook/internal/scheduler/task"
	"go.uber.org/fx"
)

var Module = fx.Module("promotion",
	task.Module,
	fx.Provide(New),
	fx.Provide(func(p *Promoter) domain.Promoter { return p }),
)
