package scheduler

import (
	"context"

	"github.com/smallbiznis/classbook/internal/promotion"
	"github.com/smallbiznis/classbook/internal/ratelimit"
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(func(p *promotion.Promoter) Rearmer { return p }),
	fx.Provide(provideLocker),
	fx.Provide(New),
	fx.Invoke(NewScheduler),
)

type lockerParams struct {
	fx.In

	Locker *ratelimit.Locker `optional:"true"`
}

func provideLocker(p lockerParams) SweepLocker {
	if p.Locker == nil {
		return nil
	}
	return p.Locker
}

// NewScheduler runs the sweep loop for the lifetime of the app and waits for
// the in-flight run to wind down on stop.
func NewScheduler(lc fx.Lifecycle, sched *Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				sched.RunForever(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}
