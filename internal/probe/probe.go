// Package probe проверяет, что multicast на интерфейсе действительно доходит:
// шлет пакеты в группу и ждет своих же пакетов через loopback.
package probe

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"mcastguard/internal/util/logger/sl"

	"golang.org/x/net/ipv4"
)

// Prober выполняет проверку multicast
type Prober struct {
	config Config
	log    *slog.Logger
}

// NewProber создает новый Prober
func NewProber(config Config, log *slog.Logger) *Prober {
	if config.Group == "" {
		config.Group = DefaultGroup
	}
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	return &Prober{
		config: config,
		log:    log.With(slog.String("component", "probe")),
	}
}

// Run отправляет пробы, пока не получит свою или не истечет таймаут
func (p *Prober) Run(ctx context.Context) (Result, error) {
	const op = "probe.Prober.Run"
	log := p.log.With(slog.String("op", op))

	result := Result{Group: p.config.Group}

	addr, err := net.ResolveUDPAddr("udp4", p.config.Group)
	if err != nil {
		return result, fmt.Errorf("%s: resolve group: %w", op, err)
	}
	if !addr.IP.IsMulticast() {
		return result, fmt.Errorf("%s: %w: %s", op, ErrNotMulticast, addr)
	}

	var ifi *net.Interface
	if p.config.Interface != "" {
		ifi, err = net.InterfaceByName(p.config.Interface)
		if err != nil {
			return result, fmt.Errorf("%s: interface %s: %w", op, p.config.Interface, err)
		}
	}

	listener, err := net.ListenMulticastUDP("udp4", ifi, addr)
	if err != nil {
		return result, fmt.Errorf("%s: listen multicast UDP: %w", op, err)
	}
	defer listener.Close()

	if err := listener.SetReadBuffer(readBuffer * 64); err != nil {
		log.Warn("set read buffer", sl.Err(err))
	}

	sender, err := p.newSender(ifi)
	if err != nil {
		return result, fmt.Errorf("%s: %w", op, err)
	}
	defer sender.Close()

	nonce, err := newNonce()
	if err != nil {
		return result, fmt.Errorf("%s: %w", op, err)
	}
	payload := EncodeBeacon(p.config.Tag, nonce)

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	start := time.Now()
	received := make(chan time.Time, 1)
	go p.listen(ctx, listener, nonce, received)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		if _, err := sender.WriteTo(payload, nil, addr); err != nil {
			log.Error("probe send failed", sl.Err(err))
		} else {
			result.Sent++
		}

		select {
		case at := <-received:
			result.Received++
			result.Reachable = true
			result.Latency = at.Sub(start)
			log.Info("multicast loopback confirmed",
				slog.String("group", addr.String()),
				slog.Duration("latency", result.Latency),
			)
			return result, nil
		case <-ctx.Done():
			log.Warn("multicast probe timed out",
				slog.String("group", addr.String()),
				slog.Int("sent", result.Sent),
			)
			return result, nil
		case <-ticker.C:
		}
	}
}

func (p *Prober) newSender(ifi *net.Interface) (*ipv4.PacketConn, error) {
	conn, err := net.ListenPacket("udp4", "0.0.0.0:0")
	if err != nil {
		return nil, fmt.Errorf("create UDP sender: %w", err)
	}

	pc := ipv4.NewPacketConn(conn)
	if ifi != nil {
		if err := pc.SetMulticastInterface(ifi); err != nil {
			pc.Close()
			return nil, fmt.Errorf("set multicast interface: %w", err)
		}
	}
	if err := pc.SetMulticastLoopback(true); err != nil {
		pc.Close()
		return nil, fmt.Errorf("enable multicast loopback: %w", err)
	}
	if err := pc.SetMulticastTTL(1); err != nil {
		pc.Close()
		return nil, fmt.Errorf("set multicast TTL: %w", err)
	}

	return pc, nil
}

// listen читает пакеты группы и сообщает о первом пакете со своим nonce
func (p *Prober) listen(ctx context.Context, conn *net.UDPConn, nonce string, received chan<- time.Time) {
	go func() {
		<-ctx.Done()
		conn.SetReadDeadline(time.Now())
	}()

	buffer := make([]byte, readBuffer)
	for {
		n, remoteAddr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Debug("error reading UDP", sl.Err(err))
			continue
		}

		beacon, err := ParseBeacon(buffer[:n], remoteAddr)
		if err != nil {
			p.log.Debug("ignoring foreign datagram", slog.String("from", remoteAddr.String()))
			continue
		}

		if beacon.Nonce == nonce {
			select {
			case received <- time.Now():
			default:
			}
			return
		}
	}
}

// EncodeBeacon формирует сообщение mcg:Tag:Nonce
func EncodeBeacon(tag, nonce string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", payloadPrefix, tag, nonce))
}

// ParseBeacon разбирает сообщение пробы
func ParseBeacon(message []byte, from *net.UDPAddr) (Beacon, error) {
	parts := strings.Split(string(message), ":")
	if len(parts) != 3 || parts[0] != payloadPrefix {
		return Beacon{}, ErrInvalidPayload
	}

	if _, err := hex.DecodeString(parts[2]); err != nil || len(parts[2]) != nonceSize*2 {
		return Beacon{}, fmt.Errorf("%w: bad nonce", ErrInvalidPayload)
	}

	return Beacon{
		Tag:   parts[1],
		Nonce: parts[2],
		From:  from,
	}, nil
}

func newNonce() (string, error) {
	token := make([]byte, nonceSize)
	if _, err := rand.Read(token); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return hex.EncodeToString(token), nil
}
