package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mcastguard/internal/util/logger/sl"

	"github.com/fsnotify/fsnotify"
)

var (
	ErrSourceClosed = errors.New("lifecycle source is closed")
	ErrUnknownState = errors.New("unknown lifecycle state")
)

// События файла, после которых перечитываем состояние
var stateFileEvents = fsnotify.Create | fsnotify.Write | fsnotify.Rename

// StateFileConfig содержит настройки StateFileSource
type StateFileConfig struct {
	Path             string
	DebounceDuration time.Duration
	BufferSize       int
	Logger           *slog.Logger
}

// StateFileSource следит за файлом, в который хост пишет свое состояние
// (active/inactive, а также resumed/paused/detached/hidden из жизненного цикла Flutter).
// Следим за каталогом, чтобы переживать атомарную замену файла через rename.
type StateFileSource struct {
	watcher   *fsnotify.Watcher
	path      string
	events    chan Event
	errors    chan error
	log       *slog.Logger
	debouncer *Debouncer

	mu       sync.Mutex
	closed   bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewStateFileSource начинает следить за файлом. Если файл уже существует,
// его текущее состояние отправляется первым событием.
func NewStateFileSource(config StateFileConfig) (*StateFileSource, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("state file path is empty")
	}
	if config.DebounceDuration == 0 {
		config.DebounceDuration = DefaultDebounceDuration
	}
	if config.BufferSize == 0 {
		config.BufferSize = DefaultBufferSize
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	path, err := filepath.Abs(config.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve state file path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", filepath.Dir(path), err)
	}

	s := &StateFileSource{
		watcher:   watcher,
		path:      path,
		events:    make(chan Event, config.BufferSize),
		errors:    make(chan error, config.BufferSize),
		log:       config.Logger.With(slog.String("state_file", path)),
		debouncer: NewDebouncer(config.DebounceDuration),
		stopChan:  make(chan struct{}),
	}

	if _, err := os.Stat(path); err == nil {
		s.reload()
	}

	s.wg.Add(1)
	go s.run()

	return s, nil
}

func (s *StateFileSource) run() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopChan:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != s.path || event.Op&stateFileEvents == 0 {
				continue
			}
			s.debouncer.Debounce(s.path, s.reload)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.handleError(err)
		}
	}
}

// reload читает файл и отправляет текущее состояние. Повтор того же состояния
// тоже отправляется: guard мог быть переключен другим источником.
func (s *StateFileSource) reload() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.handleError(fmt.Errorf("read state file: %w", err))
		}
		return
	}

	ev, err := ParseState(string(data))
	if err != nil {
		s.handleError(err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case s.events <- ev:
		s.log.Debug("host state changed", slog.String("event", ev.String()))
	default:
		s.log.Warn("event buffer full, dropping state change", slog.String("event", ev.String()))
	}
}

func (s *StateFileSource) handleError(err error) {
	select {
	case s.errors <- err:
	default:
		s.log.Warn("error buffer full, dropping error", sl.Err(err))
	}
}

// ParseState разбирает содержимое файла состояния
func ParseState(raw string) (Event, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active", "foreground", "resumed":
		return EventActive, nil
	case "inactive", "background", "paused", "hidden", "detached", "destroyed":
		return EventInactive, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownState, strings.TrimSpace(raw))
	}
}

func (s *StateFileSource) Events() <-chan Event {
	return s.events
}

func (s *StateFileSource) Errors() <-chan error {
	return s.errors
}

func (s *StateFileSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSourceClosed
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stopChan)
	s.wg.Wait()
	s.debouncer.Stop()

	if err := s.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	s.mu.Lock()
	close(s.events)
	s.mu.Unlock()

	return nil
}
