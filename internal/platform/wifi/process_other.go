//go:build !unix

package wifi

// ProcessAlive без поддержки платформы считает процесс живым, чтобы recover ничего не трогал
func ProcessAlive(pid int) bool {
	return pid > 0
}
