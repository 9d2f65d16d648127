package cliplugins

import (
	"log/slog"

	"mcastguard/internal/capability"
	"mcastguard/internal/config"
	"mcastguard/internal/platform/wifi"
	leasestorage "mcastguard/internal/storage/lease_storage"

	"go.etcd.io/bbolt"
)

// AppContext хранит зависимости, которые используются в командах CLI.
// Config и Log заполняются в PersistentPreRunE после разбора флагов.
type AppContext struct {
	Config *config.Config
	Log    *slog.Logger

	// Flags и NewProvider подменяются в тестах
	Flags       wifi.FlagController
	NewProvider func(journal wifi.LeaseJournal) capability.ServiceProvider
}

func NewAppContext() *AppContext {
	return &AppContext{}
}

func (a *AppContext) flags() wifi.FlagController {
	if a.Flags != nil {
		return a.Flags
	}
	return wifi.IoctlFlags{}
}

// Journal возвращает журнал аренд, открываемый на время операции
func (a *AppContext) Journal() *leasestorage.OnDemand {
	return leasestorage.NewOnDemand(leasestorage.Config{
		Path:     a.Config.Journal.Path,
		FileMode: 0600,
		Options:  &bbolt.Options{Timeout: a.Config.Journal.Timeout},
	})
}

func (a *AppContext) wifiConfig() wifi.Config {
	return wifi.Config{
		Interface:   a.Config.Wifi.Interface,
		Groups:      a.Config.Wifi.Groups,
		SysClassNet: a.Config.Wifi.SysClassNet,
	}
}

func (a *AppContext) provider(journal wifi.LeaseJournal) capability.ServiceProvider {
	if a.NewProvider != nil {
		return a.NewProvider(journal)
	}
	return wifi.NewProvider(a.wifiConfig(), wifi.Deps{
		Flags:   a.flags(),
		Journal: journal,
	}, a.Log)
}

// NewGuard собирает Guard поверх Wi-Fi сервиса
func (a *AppContext) NewGuard(metrics *capability.Metrics, onReleaseError func(error)) *capability.Guard {
	return capability.NewGuard(a.provider(a.Journal()), capability.Config{
		Tag:            a.Config.Lock.Tag,
		Metrics:        metrics,
		OnReleaseError: onReleaseError,
	}, a.Log)
}
