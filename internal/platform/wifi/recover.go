package wifi

import (
	"fmt"
	"log/slog"

	leasestorage "mcastguard/internal/storage/lease_storage"
	"mcastguard/internal/util/logger/sl"

	"go.uber.org/multierr"
)

// RecoveryReport - результат восстановления после аварийного завершения
type RecoveryReport struct {
	// Stale - аренды умерших процессов, найденные в журнале
	Stale []*leasestorage.Lease
	// Restored - интерфейсы, на которых IFF_ALLMULTI был выключен
	Restored []string
	// Live - аренды живых процессов, которые не трогаем
	Live int
}

// Recover удаляет из журнала аренды процессов, завершившихся без освобождения,
// и выключает IFF_ALLMULTI, если его включили они и живых держателей не осталось.
func Recover(journal LeaseJournal, flags FlagController, alive func(pid int) bool, log *slog.Logger) (RecoveryReport, error) {
	const op = "wifi.Recover"
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("op", op))

	var report RecoveryReport

	if alive == nil {
		alive = ProcessAlive
	}
	if flags == nil {
		flags = IoctlFlags{}
	}

	leases, err := journal.ListLeases()
	if err != nil {
		return report, fmt.Errorf("%s: list leases: %w", op, err)
	}

	liveByIface := make(map[string][]*leasestorage.Lease)
	staleByIface := make(map[string][]*leasestorage.Lease)
	var order []string

	for _, lease := range leases {
		if alive(lease.PID) {
			liveByIface[lease.Interface] = append(liveByIface[lease.Interface], lease)
			report.Live++
			continue
		}
		if _, seen := staleByIface[lease.Interface]; !seen {
			order = append(order, lease.Interface)
		}
		staleByIface[lease.Interface] = append(staleByIface[lease.Interface], lease)
		report.Stale = append(report.Stale, lease)
	}

	var errs error
	for _, iface := range order {
		stale := staleByIface[iface]

		if live := liveByIface[iface]; len(live) > 0 {
			// исходное состояние флага переходит самому старому живому держателю
			if !stale[0].PrevAllMulti {
				if err := handOver(journal, live[0]); err != nil {
					log.Error("failed to hand over interface state",
						slog.String("interface", iface),
						sl.Err(err),
					)
					errs = multierr.Append(errs, fmt.Errorf("hand over %s: %w", iface, err))
					continue
				}
			}
			log.Info("interface still held by a live process, dropping stale leases only",
				slog.String("interface", iface),
				slog.Int("stale", len(stale)),
				slog.String("heir", live[0].ID),
			)
		} else if !stale[0].PrevAllMulti {
			if err := flags.SetAllMulti(iface, false); err != nil {
				log.Error("failed to restore interface flags",
					slog.String("interface", iface),
					sl.Err(err),
				)
				errs = multierr.Append(errs, fmt.Errorf("restore %s: %w", iface, err))
				continue
			}
			report.Restored = append(report.Restored, iface)
		}

		for _, lease := range stale {
			if err := journal.DeleteLease(lease.ID); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("delete lease %s: %w", lease.ID, err))
				continue
			}
			log.Info("stale lease removed",
				slog.String("lease_id", lease.ID),
				slog.String("interface", iface),
				slog.Int("pid", lease.PID),
			)
		}
	}

	return report, errs
}

// handOver записывает наследнику, что до захвата ALLMULTI был выключен:
// снимать флаг теперь должен он.
func handOver(journal LeaseJournal, heir *leasestorage.Lease) error {
	if !heir.PrevAllMulti {
		return nil
	}
	updated := *heir
	updated.PrevAllMulti = false
	if err := journal.SaveLease(&updated); err != nil {
		return err
	}
	heir.PrevAllMulti = false
	return nil
}
