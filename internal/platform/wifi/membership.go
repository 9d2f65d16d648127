package wifi

import (
	"fmt"
	"io"
	"net"

	"go.uber.org/multierr"
	"golang.org/x/net/ipv4"
)

// IPv4Joiner вступает в группы через отдельный UDP-сокет.
// Членство живет, пока сокет открыт.
type IPv4Joiner struct{}

type membership struct {
	conn   net.PacketConn
	pc     *ipv4.PacketConn
	iface  *net.Interface
	groups []net.IP
}

func (IPv4Joiner) Join(iface *net.Interface, groups []net.IP) (_ io.Closer, err error) {
	conn, err := net.ListenPacket("udp4", "0.0.0.0:0")
	if err != nil {
		return nil, fmt.Errorf("open membership socket: %w", err)
	}

	m := &membership{
		conn:  conn,
		pc:    ipv4.NewPacketConn(conn),
		iface: iface,
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, m.Close())
		}
	}()

	for _, group := range groups {
		if err := m.pc.JoinGroup(iface, &net.UDPAddr{IP: group}); err != nil {
			return nil, fmt.Errorf("join %s on %s: %w", group, iface.Name, err)
		}
		m.groups = append(m.groups, group)
	}

	return m, nil
}

func (m *membership) Close() error {
	var err error
	for _, group := range m.groups {
		err = multierr.Append(err, m.pc.LeaveGroup(m.iface, &net.UDPAddr{IP: group}))
	}
	m.groups = nil
	return multierr.Append(err, m.conn.Close())
}
