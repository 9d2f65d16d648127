//go:build unix

package lifecycle

import (
	"os"
	"syscall"
)

// DefaultSignalMapping: SIGUSR1 - активен, SIGUSR2 - неактивен, SIGINT/SIGTERM/SIGHUP - завершение
func DefaultSignalMapping() map[os.Signal]Event {
	return map[os.Signal]Event{
		syscall.SIGUSR1: EventActive,
		syscall.SIGUSR2: EventInactive,
		syscall.SIGINT:  EventTeardown,
		syscall.SIGTERM: EventTeardown,
		syscall.SIGHUP:  EventTeardown,
	}
}
