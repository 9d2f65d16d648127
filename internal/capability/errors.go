package capability

import "errors"

var (
	// ErrCapabilityUnavailable - платформа не может выдать разрешение multicast
	ErrCapabilityUnavailable = errors.New("multicast capability unavailable")
	// ErrReleaseFailed - освобождение захваченного токена завершилось ошибкой платформы
	ErrReleaseFailed = errors.New("multicast capability release failed")
)
