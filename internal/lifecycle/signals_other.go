//go:build !unix

package lifecycle

import (
	"os"
)

func DefaultSignalMapping() map[os.Signal]Event {
	return map[os.Signal]Event{
		os.Interrupt: EventTeardown,
	}
}
