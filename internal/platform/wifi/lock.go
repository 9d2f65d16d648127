package wifi

import (
	"fmt"
	"sync"
)

// Lock - блокировка multicast. Со счетчиком ссылок каждый Acquire требует
// своего Release; без счетчика повторный Acquire ничего не делает.
type Lock struct {
	service *Service
	tag     string

	mu         sync.Mutex
	refCounted bool
	refCount   int
	held       bool
}

func (l *Lock) SetReferenceCounted(refCounted bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refCounted = refCounted
}

func (l *Lock) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.refCounted {
		if l.refCount == 0 {
			if err := l.service.engage(l.tag); err != nil {
				return err
			}
		}
		l.refCount++
		l.held = true
		return nil
	}

	if l.held {
		return nil
	}
	if err := l.service.engage(l.tag); err != nil {
		return err
	}
	l.held = true
	return nil
}

func (l *Lock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.refCounted {
		if l.refCount == 0 {
			return fmt.Errorf("%w: %s", ErrUnderLocked, l.tag)
		}
		l.refCount--
		if l.refCount > 0 {
			return nil
		}
	} else if !l.held {
		return nil
	}

	l.refCount = 0
	l.held = false
	return l.service.disengage()
}

func (l *Lock) IsHeld() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

