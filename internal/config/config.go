package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env     string        `yaml:"env" env-default:"local" env:"ENV"`
	LogFile string        `yaml:"log_file" env:"LOG_FILE"`
	Lock    LockConfig    `yaml:"lock"`
	Wifi    WifiConfig    `yaml:"wifi"`
	Journal JournalConfig `yaml:"journal"`
	Host    HostConfig    `yaml:"host"`
	Metrics MetricsConfig `yaml:"metrics"`
	Probe   ProbeConfig   `yaml:"probe"`
}

type LockConfig struct {
	Tag string `yaml:"tag" env:"MCAST_LOCK_TAG" env-default:"webrtcLock"`
}

type WifiConfig struct {
	Interface   string   `yaml:"interface" env:"MCAST_INTERFACE"`
	Groups      []string `yaml:"groups" env:"MCAST_GROUPS" env-separator:","`
	SysClassNet string   `yaml:"sys_class_net" env:"MCAST_SYS_CLASS_NET" env-default:"/sys/class/net"`
}

type JournalConfig struct {
	Path    string        `yaml:"path" env:"MCAST_JOURNAL" env-default:"/var/lib/mcastguard/leases.db"`
	Timeout time.Duration `yaml:"timeout" env:"MCAST_JOURNAL_TIMEOUT" env-default:"1s"`
}

type HostConfig struct {
	// StateFile - файл, куда хост пишет active/inactive. Пусто - только сигналы.
	StateFile string        `yaml:"state_file" env:"MCAST_STATE_FILE"`
	Debounce  time.Duration `yaml:"debounce" env:"MCAST_STATE_DEBOUNCE" env-default:"200ms"`
	// Deferred - не захватывать multicast при старте, ждать события active от хоста
	Deferred bool `yaml:"deferred" env:"MCAST_DEFERRED"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr" env:"MCAST_METRICS_ADDR"`
}

type ProbeConfig struct {
	Group    string        `yaml:"group" env:"MCAST_PROBE_GROUP" env-default:"239.0.0.1:9999"`
	Interval time.Duration `yaml:"interval" env:"MCAST_PROBE_INTERVAL" env-default:"250ms"`
	Timeout  time.Duration `yaml:"timeout" env:"MCAST_PROBE_TIMEOUT" env-default:"3s"`
}

// Load читает конфигурацию из файла (если путь не пустой) и окружения
func Load(configPath string) (*Config, error) {
	var cfg Config

	if configPath == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("cannot read env: %w", err)
		}
		return &cfg, nil
	}

	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}

	return &cfg, nil
}

func MustLoadConfig(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

// ResolvePath возвращает путь к конфигу.
// Priority: flag > env > default.
// default value is empty string.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("CONFIG_PATH")
}
