package lifecycle

import (
	"sync"
	"time"
)

// Debouncer склеивает серию событий по одному ключу в один вызов:
// запись состояния хостом обычно дает несколько событий fsnotify подряд.
type Debouncer struct {
	duration time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewDebouncer(duration time.Duration) *Debouncer {
	return &Debouncer{
		duration: duration,
		timers:   make(map[string]*time.Timer),
	}
}

// Debounce откладывает fn на duration. Новый вызов с тем же ключом
// отменяет предыдущий и начинает отсчет заново.
func (d *Debouncer) Debounce(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, ok := d.timers[key]; ok {
		timer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(d.duration, func() {
		d.mu.Lock()
		// таймер мог быть уже заменен более новым
		if d.timers[key] != timer {
			d.mu.Unlock()
			return
		}
		delete(d.timers, key)
		d.mu.Unlock()
		fn()
	})
	d.timers[key] = timer
}

// Stop отменяет все отложенные вызовы
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, timer := range d.timers {
		timer.Stop()
		delete(d.timers, key)
	}
}
