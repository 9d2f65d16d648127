//go:build linux

package wifi

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// IoctlFlags управляет IFF_ALLMULTI через SIOCGIFFLAGS/SIOCSIFFLAGS.
// Изменение флагов требует CAP_NET_ADMIN.
type IoctlFlags struct{}

func (IoctlFlags) AllMulti(iface string) (bool, error) {
	flags, err := withIfreq(iface, func(fd int, ifr *unix.Ifreq) (uint16, error) {
		if err := unix.IoctlIfreq(fd, unix.SIOCGIFFLAGS, ifr); err != nil {
			return 0, fmt.Errorf("SIOCGIFFLAGS %s: %w", iface, err)
		}
		return ifr.Uint16(), nil
	})
	if err != nil {
		return false, err
	}
	return flags&unix.IFF_ALLMULTI != 0, nil
}

func (IoctlFlags) SetAllMulti(iface string, on bool) error {
	_, err := withIfreq(iface, func(fd int, ifr *unix.Ifreq) (uint16, error) {
		if err := unix.IoctlIfreq(fd, unix.SIOCGIFFLAGS, ifr); err != nil {
			return 0, fmt.Errorf("SIOCGIFFLAGS %s: %w", iface, err)
		}

		flags := ifr.Uint16()
		if on {
			flags |= unix.IFF_ALLMULTI
		} else {
			flags &^= unix.IFF_ALLMULTI
		}
		ifr.SetUint16(flags)

		if err := unix.IoctlIfreq(fd, unix.SIOCSIFFLAGS, ifr); err != nil {
			return 0, fmt.Errorf("SIOCSIFFLAGS %s: %w", iface, err)
		}
		return flags, nil
	})
	return err
}

func withIfreq(iface string, fn func(fd int, ifr *unix.Ifreq) (uint16, error)) (uint16, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return 0, fmt.Errorf("open control socket: %w", err)
	}
	defer unix.Close(fd)

	ifr, err := unix.NewIfreq(iface)
	if err != nil {
		return 0, fmt.Errorf("interface name %q: %w", iface, err)
	}

	return fn(fd, ifr)
}
