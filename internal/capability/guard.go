// Package capability управляет временем жизни системного разрешения multicast:
// захватывает его при активации приложения и гарантированно освобождает при остановке.
package capability

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"mcastguard/internal/util/logger/sl"
)

// Guard владеет разрешением multicast. Activate и Deactivate идемпотентны
// и могут вызываться в любом порядке из нескольких горутин.
type Guard struct {
	provider ServiceProvider
	config   Config
	log      *slog.Logger

	mu     sync.Mutex
	handle handle
}

// NewGuard создает новый Guard в состоянии UNHELD
func NewGuard(provider ServiceProvider, config Config, log *slog.Logger) *Guard {
	if config.Tag == "" {
		config.Tag = DefaultLockTag
	}
	if log == nil {
		log = slog.Default()
	}

	return &Guard{
		provider: provider,
		config:   config,
		log:      log.With(slog.String("lock_tag", config.Tag)),
	}
}

// Activate захватывает разрешение multicast, если оно еще не захвачено.
// Повторный вызов при захваченном разрешении ничего не делает.
func (g *Guard) Activate() error {
	const op = "capability.Guard.Activate"
	log := g.log.With(slog.String("op", op))

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.handle.held {
		log.Debug("multicast capability already held")
		return nil
	}

	lock, err := g.acquire()
	if err != nil {
		g.config.Metrics.recordAcquireFailure()
		log.Warn("multicast capability unavailable", sl.Err(err))
		return fmt.Errorf("%s: %w: %w", op, ErrCapabilityUnavailable, err)
	}

	g.handle = handle{held: true, lock: lock}
	g.config.Metrics.recordAcquire()

	log.Info("multicast capability acquired")
	return nil
}

// acquire проходит весь протокол захвата. Частично созданный токен наружу не попадает.
func (g *Guard) acquire() (MulticastLock, error) {
	if g.provider == nil {
		return nil, errors.New("network service provider is not configured")
	}

	var service NetworkService
	err := safeCall(func() error {
		var err error
		service, err = g.provider()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get network service: %w", err)
	}
	if service == nil {
		return nil, errors.New("network service is nil")
	}

	var lock MulticastLock
	err = safeCall(func() error {
		var err error
		lock, err = service.CreateMulticastLock(g.config.Tag)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create multicast lock: %w", err)
	}
	if lock == nil {
		return nil, errors.New("multicast lock is nil")
	}

	err = safeCall(func() error {
		lock.SetReferenceCounted(true)
		return lock.Acquire()
	})
	if err != nil {
		return nil, fmt.Errorf("acquire multicast lock: %w", err)
	}

	return lock, nil
}

// Deactivate освобождает разрешение, если оно захвачено.
// Ошибка освобождения только логируется: локальное состояние всегда сбрасывается в UNHELD.
func (g *Guard) Deactivate() {
	err := g.release()
	if err != nil && g.config.OnReleaseError != nil {
		// вызывается без g.mu: обработчик может обращаться к Guard
		g.config.OnReleaseError(err)
	}
}

func (g *Guard) release() error {
	const op = "capability.Guard.Deactivate"
	log := g.log.With(slog.String("op", op))

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.handle.held {
		log.Debug("multicast capability not held")
		return nil
	}

	lock := g.handle.lock
	g.handle = handle{}
	g.config.Metrics.recordRelease()

	if err := safeCall(lock.Release); err != nil {
		err = fmt.Errorf("%s: %w: %w", op, ErrReleaseFailed, err)
		g.config.Metrics.recordReleaseFailure()
		log.Error("failed to release multicast capability", sl.Err(err))
		return err
	}

	log.Info("multicast capability released")
	return nil
}

// Held сообщает, захвачено ли разрешение в данный момент
func (g *Guard) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.handle.held
}

// Close эквивалентен Deactivate, удобен для defer
func (g *Guard) Close() error {
	g.Deactivate()
	return nil
}

// safeCall превращает панику платформенного кода в ошибку
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("platform panic: %v", r)
		}
	}()
	return fn()
}
