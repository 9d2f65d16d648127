package wifi

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
)

// IsWireless проверяет наличие каталога wireless или phy80211 в sysfs
func IsWireless(sysRoot, name string) bool {
	for _, marker := range []string{"wireless", "phy80211"} {
		if info, err := os.Stat(filepath.Join(sysRoot, name, marker)); err == nil && info.IsDir() {
			return true
		}
	}
	return false
}

// WirelessInterfaces возвращает имена беспроводных интерфейсов в алфавитном порядке
func WirelessInterfaces(sysRoot string) ([]string, error) {
	entries, err := os.ReadDir(sysRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sysRoot, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if IsWireless(sysRoot, entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// resolveInterface выбирает интерфейс для захвата multicast
func resolveInterface(cfg Config, lookup func(string) (*net.Interface, error)) (*net.Interface, error) {
	if cfg.Interface != "" {
		if !IsWireless(cfg.SysClassNet, cfg.Interface) {
			return nil, fmt.Errorf("%w: %s", ErrNotWireless, cfg.Interface)
		}
		iface, err := lookup(cfg.Interface)
		if err != nil {
			return nil, fmt.Errorf("failed to look up interface %s: %w", cfg.Interface, err)
		}
		return iface, nil
	}

	names, err := WirelessInterfaces(cfg.SysClassNet)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoWirelessInterface, err)
	}

	for _, name := range names {
		iface, err := lookup(name)
		if err != nil {
			continue
		}
		if iface.Flags&net.FlagUp != 0 {
			return iface, nil
		}
	}

	return nil, ErrNoWirelessInterface
}

// parseGroups разбирает адреса групп, допускаются только IPv4 multicast
func parseGroups(groups []string) ([]net.IP, error) {
	ips := make([]net.IP, 0, len(groups))
	for _, g := range groups {
		ip := net.ParseIP(g)
		if ip == nil || ip.To4() == nil || !ip.IsMulticast() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidGroup, g)
		}
		ips = append(ips, ip.To4())
	}
	return ips, nil
}
