package lifecycle

import (
	"context"
	"time"
)

// Event - сигнал хост-приложения о смене состояния
type Event int

const (
	// EventActive - приложение на переднем плане, сеть может понадобиться
	EventActive Event = iota + 1
	// EventInactive - приложение ушло в фон или уничтожено
	EventInactive
	// EventTeardown - процесс завершается
	EventTeardown
)

func (e Event) String() string {
	switch e {
	case EventActive:
		return "active"
	case EventInactive:
		return "inactive"
	case EventTeardown:
		return "teardown"
	default:
		return "unknown"
	}
}

// Activator - то, что хост включает и выключает (capability.Guard)
type Activator interface {
	Activate() error
	Deactivate()
}

// Source - источник событий жизненного цикла
type Source interface {
	Events() <-chan Event
	Close() error
}

const (
	DefaultDebounceDuration = 200 * time.Millisecond
	DefaultBufferSize       = 16
)

// Run активирует a, выполняет fn и деактивирует a на любом пути выхода,
// включая панику внутри fn.
func Run(ctx context.Context, a Activator, fn func(ctx context.Context) error) error {
	if err := a.Activate(); err != nil {
		return err
	}
	defer a.Deactivate()

	return fn(ctx)
}
