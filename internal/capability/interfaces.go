package capability

// NetworkService представляет системный сетевой сервис, который умеет выдавать
// блокировки, разрешающие приём multicast на интерфейсе
type NetworkService interface {
	// CreateMulticastLock создает новую (еще не захваченную) блокировку с тегом
	CreateMulticastLock(tag string) (MulticastLock, error)
}

// MulticastLock - системный токен разрешения multicast.
// Может быть со счетчиком ссылок: тогда каждый Acquire требует своего Release.
type MulticastLock interface {
	SetReferenceCounted(refCounted bool)
	Acquire() error
	Release() error
	IsHeld() bool
}

// ServiceProvider возвращает сетевой сервис платформы.
// Ошибка означает, что сервис недоступен (например, нет Wi-Fi подсистемы).
type ServiceProvider func() (NetworkService, error)
