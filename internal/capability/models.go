package capability

const (
	// DefaultLockTag - тег блокировки по умолчанию
	DefaultLockTag = "webrtcLock"
)

// Config содержит настройки для Guard
type Config struct {
	// Tag передается платформе при создании блокировки
	Tag string
	// Metrics может быть nil
	Metrics *Metrics
	// OnReleaseError вызывается, если платформа не смогла освободить токен
	OnReleaseError func(err error)
}

// handle - состояние захвата. lock != nil тогда и только тогда, когда held == true
type handle struct {
	held bool
	lock MulticastLock
}
