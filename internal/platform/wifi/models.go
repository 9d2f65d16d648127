package wifi

import (
	"io"
	"net"

	leasestorage "mcastguard/internal/storage/lease_storage"
)

const (
	DefaultSysClassNet = "/sys/class/net"
)

// Config содержит настройки Wi-Fi сервиса
type Config struct {
	// Interface - имя интерфейса. Пусто - первый поднятый беспроводной интерфейс.
	Interface string
	// Groups - multicast-группы, в которые вступаем на время захвата
	Groups []string
	// SysClassNet - корень sysfs для поиска беспроводных интерфейсов
	SysClassNet string
}

// FlagController читает и меняет IFF_ALLMULTI на интерфейсе
type FlagController interface {
	AllMulti(iface string) (bool, error)
	SetAllMulti(iface string, on bool) error
}

// GroupJoiner вступает в multicast-группы на интерфейсе.
// Закрытие возвращенного io.Closer выходит из групп.
type GroupJoiner interface {
	Join(iface *net.Interface, groups []net.IP) (io.Closer, error)
}

// LeaseJournal - журнал аренд (реализуется leasestorage.LeaseDB)
type LeaseJournal interface {
	SaveLease(lease *leasestorage.Lease) error
	ListLeases() ([]*leasestorage.Lease, error)
	DeleteLease(id string) error
}

// Deps - платформенные зависимости сервиса. Пустые поля заполняются реализациями по умолчанию.
type Deps struct {
	Flags   FlagController
	Joiner  GroupJoiner
	Journal LeaseJournal
	Lookup  func(name string) (*net.Interface, error)
	// Alive проверяет, жив ли процесс-держатель чужой аренды
	Alive func(pid int) bool
}

// engagement - активное включение multicast на интерфейсе
type engagement struct {
	lease      *leasestorage.Lease
	membership io.Closer
}
