// Package lifecycle связывает события жизненного цикла хоста с Activate/Deactivate.
package lifecycle

import (
	"context"
	"log/slog"
	"sync"

	"mcastguard/internal/util/logger/sl"
)

// Controller переводит события хоста в вызовы Activator
type Controller struct {
	activator Activator
	onError   func(err error)
	log       *slog.Logger
}

// NewController создает контроллер. onError получает ошибки активации и может быть nil.
func NewController(a Activator, onError func(err error), log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		activator: a,
		onError:   onError,
		log:       log.With(slog.String("component", "lifecycle")),
	}
}

// Handle обрабатывает одно событие
func (c *Controller) Handle(ev Event) {
	const op = "lifecycle.Controller.Handle"
	log := c.log.With(slog.String("op", op), slog.String("event", ev.String()))

	switch ev {
	case EventActive:
		if err := c.activator.Activate(); err != nil {
			log.Error("activation failed, continuing without multicast", sl.Err(err))
			if c.onError != nil {
				c.onError(err)
			}
			return
		}
		log.Debug("host became active")
	case EventInactive, EventTeardown:
		c.activator.Deactivate()
		log.Debug("host became inactive")
	default:
		log.Warn("unknown lifecycle event")
	}
}

// Run обрабатывает события из sources, пока не придет EventTeardown,
// не отменится ctx или не закроются все источники (если они были). При выходе всегда вызывает Deactivate.
func (c *Controller) Run(ctx context.Context, sources ...Source) error {
	const op = "lifecycle.Controller.Run"
	log := c.log.With(slog.String("op", op))

	defer c.activator.Deactivate()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	merged := make(chan Event, DefaultBufferSize)
	var wg sync.WaitGroup

	for _, src := range sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-src.Events():
					if !ok {
						return
					}
					select {
					case merged <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}(src)
	}

	// без источников ждем только отмены ctx
	if len(sources) > 0 {
		go func() {
			wg.Wait()
			close(merged)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("lifecycle context cancelled")
			return nil
		case ev, ok := <-merged:
			if !ok {
				log.Info("all lifecycle sources closed")
				return nil
			}
			c.Handle(ev)
			if ev == EventTeardown {
				log.Info("teardown requested")
				return nil
			}
		}
	}
}
