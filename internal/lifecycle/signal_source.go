package lifecycle

import (
	"os"
	"os/signal"
	"sync"
)

// SignalSource переводит сигналы ОС в события жизненного цикла
type SignalSource struct {
	signals  chan os.Signal
	mapping  map[os.Signal]Event
	events   chan Event
	stopChan chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
	notify   bool
}

// NewSignalSource подписывается на сигналы из DefaultSignalMapping
func NewSignalSource() *SignalSource {
	mapping := DefaultSignalMapping()
	s := newSignalSource(make(chan os.Signal, 1), mapping)

	sigs := make([]os.Signal, 0, len(mapping))
	for sig := range mapping {
		sigs = append(sigs, sig)
	}
	signal.Notify(s.signals, sigs...)
	s.notify = true

	return s
}

func newSignalSource(signals chan os.Signal, mapping map[os.Signal]Event) *SignalSource {
	s := &SignalSource{
		signals:  signals,
		mapping:  mapping,
		events:   make(chan Event, DefaultBufferSize),
		stopChan: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.run()

	return s
}

func (s *SignalSource) run() {
	defer s.wg.Done()
	defer close(s.events)

	for {
		select {
		case <-s.stopChan:
			return
		case sig := <-s.signals:
			ev, ok := s.mapping[sig]
			if !ok {
				continue
			}
			select {
			case s.events <- ev:
			case <-s.stopChan:
				return
			}
		}
	}
}

func (s *SignalSource) Events() <-chan Event {
	return s.events
}

func (s *SignalSource) Close() error {
	s.once.Do(func() {
		if s.notify {
			signal.Stop(s.signals)
		}
		close(s.stopChan)
	})
	s.wg.Wait()
	return nil
}
