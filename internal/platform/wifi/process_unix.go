//go:build unix

package wifi

import (
	"errors"

	"golang.org/x/sys/unix"
)

// ProcessAlive проверяет процесс сигналом 0. EPERM значит, что процесс есть, но чужой.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
