// Package task runs keyed periodic work that can be cancelled individually
// and stops itself once the work reports it is done.
package task

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Func is one tick of a periodic task. Returning done ends the task.
// Errors are logged and the task ticks again on the next interval.
type Func func(ctx context.Context) (done bool, err error)

type entry struct {
	key    string
	cancel context.CancelFunc
}

type Runner struct {
	log *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	stop    context.CancelFunc
	tasks   map[string]*entry
	stopped bool
	wg      sync.WaitGroup

	observe func(active int)
}

var Module = fx.Module("scheduler.task",
	fx.Provide(New),
	fx.Invoke(registerLifecycle),
)

func New(log *zap.Logger) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		log:   log.Named("task.runner"),
		ctx:   ctx,
		stop:  cancel,
		tasks: map[string]*entry{},
	}
}

func registerLifecycle(lc fx.Lifecycle, r *Runner) {
	lc.Append(fx.Hook{
		OnStop: r.Stop,
	})
}

// OnChange registers a callback that receives the number of live tasks
// whenever a task starts or ends.
func (r *Runner) OnChange(fn func(active int)) {
	r.mu.Lock()
	r.observe = fn
	r.mu.Unlock()
}

// Schedule starts fn under key unless a task with that key is already
// running. The first tick runs immediately. The returned func cancels the
// task; scheduled is false when nothing new was started.
func (r *Runner) Schedule(key string, interval time.Duration, fn Func) (cancel func(), scheduled bool) {
	if interval <= 0 {
		interval = time.Second
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return func() {}, false
	}
	if _, ok := r.tasks[key]; ok {
		r.mu.Unlock()
		return func() { r.Cancel(key) }, false
	}
	ctx, stop := context.WithCancel(r.ctx)
	e := &entry{key: key, cancel: stop}
	r.tasks[key] = e
	r.wg.Add(1)
	r.notifyLocked()
	r.mu.Unlock()

	go r.loop(ctx, e, interval, fn)
	return func() { r.Cancel(key) }, true
}

func (r *Runner) loop(ctx context.Context, e *entry, interval time.Duration, fn Func) {
	defer r.wg.Done()
	defer r.remove(e)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := r.tick(ctx, e.key, fn)
		if err != nil && ctx.Err() == nil {
			r.log.Warn("task tick failed", zap.String("key", e.key), zap.Error(err))
		}
		if done {
			r.log.Debug("task finished", zap.String("key", e.key))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Runner) tick(ctx context.Context, key string, fn Func) (done bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("task panicked", zap.String("key", key), zap.Any("panic", rec))
			done, err = true, nil
		}
	}()
	return fn(ctx)
}

func (r *Runner) remove(e *entry) {
	e.cancel()
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.tasks[e.key]; ok && current == e {
		delete(r.tasks, e.key)
		r.notifyLocked()
	}
}

func (r *Runner) notifyLocked() {
	if r.observe != nil {
		r.observe(len(r.tasks))
	}
}

// Cancel stops the task under key. It reports whether one was running.
func (r *Runner) Cancel(key string) bool {
	r.mu.Lock()
	e, ok := r.tasks[key]
	if ok {
		delete(r.tasks, key)
		r.notifyLocked()
	}
	r.mu.Unlock()
	if ok {
		e.cancel()
	}
	return ok
}

func (r *Runner) Active(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[key]
	return ok
}

func (r *Runner) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Stop cancels every task and waits for running ticks to return.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	r.stopped = true
	r.tasks = map[string]*entry{}
	r.notifyLocked()
	r.mu.Unlock()
	r.stop()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
