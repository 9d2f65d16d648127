// Package wifi реализует сетевой сервис, выдающий блокировки multicast на
// беспроводном интерфейсе Linux: IFF_ALLMULTI плюс (опционально) членство в группах.
package wifi

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"mcastguard/internal/capability"
	leasestorage "mcastguard/internal/storage/lease_storage"
	"mcastguard/internal/util/logger/sl"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Service - сетевой сервис процесса. Держит общий счетчик захватов по всем
// блокировкам: первый захват включает multicast, последний освобождает.
type Service struct {
	iface   *net.Interface
	groups  []net.IP
	flags   FlagController
	joiner  GroupJoiner
	journal LeaseJournal
	alive   func(pid int) bool
	log     *slog.Logger

	mu      sync.Mutex
	holders int
	active  *engagement
}

// NewService находит беспроводной интерфейс и создает сервис
func NewService(cfg Config, deps Deps, log *slog.Logger) (*Service, error) {
	const op = "wifi.NewService"

	if cfg.SysClassNet == "" {
		cfg.SysClassNet = DefaultSysClassNet
	}
	if deps.Flags == nil {
		deps.Flags = IoctlFlags{}
	}
	if deps.Joiner == nil {
		deps.Joiner = IPv4Joiner{}
	}
	if deps.Lookup == nil {
		deps.Lookup = net.InterfaceByName
	}
	if deps.Alive == nil {
		deps.Alive = ProcessAlive
	}
	if log == nil {
		log = slog.Default()
	}

	groups, err := parseGroups(cfg.Groups)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	iface, err := resolveInterface(cfg, deps.Lookup)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("wifi network service ready",
		slog.String("op", op),
		slog.String("interface", iface.Name),
		slog.Int("groups", len(groups)),
	)

	return &Service{
		iface:   iface,
		groups:  groups,
		flags:   deps.Flags,
		joiner:  deps.Joiner,
		journal: deps.Journal,
		alive:   deps.Alive,
		log:     log.With(slog.String("interface", iface.Name)),
	}, nil
}

// CreateMulticastLock создает блокировку. По умолчанию она со счетчиком ссылок.
func (s *Service) CreateMulticastLock(tag string) (capability.MulticastLock, error) {
	return &Lock{
		service:    s,
		tag:        tag,
		refCounted: true,
	}, nil
}

// Holders возвращает число блокировок, удерживающих multicast
func (s *Service) Holders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holders
}

// engage увеличивает счетчик; на переходе 0 -> 1 включает multicast
func (s *Service) engage(tag string) error {
	const op = "wifi.Service.engage"
	log := s.log.With(slog.String("op", op), slog.String("tag", tag))

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.holders > 0 {
		s.holders++
		log.Debug("multicast already enabled", slog.Int("holders", s.holders))
		return nil
	}

	prev, err := s.flags.AllMulti(s.iface.Name)
	if err != nil {
		return fmt.Errorf("read interface flags: %w", err)
	}

	if !prev {
		if err := s.flags.SetAllMulti(s.iface.Name, true); err != nil {
			return fmt.Errorf("enable allmulti: %w", err)
		}
	}

	var member io.Closer
	if len(s.groups) > 0 {
		member, err = s.joiner.Join(s.iface, s.groups)
		if err != nil {
			err = fmt.Errorf("join multicast groups: %w", err)
			if !prev {
				err = multierr.Append(err, s.flags.SetAllMulti(s.iface.Name, false))
			}
			return err
		}
	}

	lease := &leasestorage.Lease{
		ID:           uuid.New().String(),
		Interface:    s.iface.Name,
		Tag:          tag,
		PID:          os.Getpid(),
		PrevAllMulti: prev,
		Groups:       groupStrings(s.groups),
		AcquiredAt:   time.Now(),
	}

	if s.journal != nil {
		if err := s.journal.SaveLease(lease); err != nil {
			// без записи в журнале теряется только восстановление после падения
			log.Warn("failed to record lease", sl.Err(err))
		}
	}

	s.holders = 1
	s.active = &engagement{lease: lease, membership: member}

	log.Info("multicast enabled",
		slog.Bool("prev_allmulti", prev),
		slog.String("lease_id", lease.ID),
	)
	return nil
}

// disengage уменьшает счетчик; на переходе 1 -> 0 возвращает интерфейс в исходное состояние
func (s *Service) disengage() error {
	const op = "wifi.Service.disengage"
	log := s.log.With(slog.String("op", op))

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.holders == 0 {
		return ErrUnderLocked
	}

	s.holders--
	if s.holders > 0 {
		log.Debug("multicast still held", slog.Int("holders", s.holders))
		return nil
	}

	e := s.active
	s.active = nil
	if e == nil {
		return nil
	}

	var err error
	if e.membership != nil {
		err = multierr.Append(err, e.membership.Close())
	}

	prev, heirs := s.coholders(e.lease, log)

	switch {
	case len(heirs) > 0:
		// интерфейс держит другой процесс: флаг не трогаем, исходное состояние передаем ему
		if !prev {
			if herr := handOver(s.journal, heirs[0]); herr != nil {
				return multierr.Append(err, fmt.Errorf("hand over allmulti state: %w", herr))
			}
		}
		log.Info("multicast still held by another process",
			slog.String("lease_id", e.lease.ID),
			slog.String("heir", heirs[0].ID),
		)
	case !prev:
		if ferr := s.flags.SetAllMulti(s.iface.Name, false); ferr != nil {
			// запись остается в журнале, recover вернет флаг после завершения процесса
			return multierr.Append(err, fmt.Errorf("disable allmulti: %w", ferr))
		}
	}

	if s.journal != nil {
		err = multierr.Append(err, s.journal.DeleteLease(e.lease.ID))
	}

	if err != nil {
		return err
	}

	log.Info("multicast disabled", slog.String("lease_id", e.lease.ID))
	return nil
}

// coholders читает журнал: исходное состояние флага по своей аренде (его мог
// передать уходящий держатель) и живые чужие аренды на том же интерфейсе.
func (s *Service) coholders(own *leasestorage.Lease, log *slog.Logger) (bool, []*leasestorage.Lease) {
	prev := own.PrevAllMulti
	if s.journal == nil {
		return prev, nil
	}

	leases, err := s.journal.ListLeases()
	if err != nil {
		log.Warn("failed to read lease journal", sl.Err(err))
		return prev, nil
	}

	var heirs []*leasestorage.Lease
	for _, lease := range leases {
		if lease.Interface != own.Interface {
			continue
		}
		if lease.ID == own.ID {
			prev = lease.PrevAllMulti
			continue
		}
		if s.alive(lease.PID) {
			heirs = append(heirs, lease)
		}
	}
	return prev, heirs
}

func groupStrings(groups []net.IP) []string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.String())
	}
	return out
}

// NewProvider возвращает capability.ServiceProvider, создающий сервис один раз.
// Неудачная попытка не кэшируется: следующая активация попробует снова.
func NewProvider(cfg Config, deps Deps, log *slog.Logger) capability.ServiceProvider {
	var (
		mu      sync.Mutex
		service *Service
	)

	return func() (capability.NetworkService, error) {
		mu.Lock()
		defer mu.Unlock()

		if service != nil {
			return service, nil
		}

		s, err := NewService(cfg, deps, log)
		if err != nil {
			return nil, err
		}
		service = s
		return service, nil
	}
}

// IsUnavailable сообщает, что ошибка означает отсутствие подходящего интерфейса
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrNoWirelessInterface) ||
		errors.Is(err, ErrNotWireless) ||
		errors.Is(err, ErrUnsupportedPlatform)
}
