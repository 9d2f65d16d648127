package probe

import (
	"errors"
	"net"
	"time"
)

const (
	DefaultGroup    = "239.0.0.1:9999"
	DefaultInterval = 250 * time.Millisecond
	DefaultTimeout  = 3 * time.Second

	payloadPrefix = "mcg"
	nonceSize     = 16
	readBuffer    = 1024
)

var (
	ErrInvalidPayload = errors.New("invalid probe payload")
	ErrNotMulticast   = errors.New("probe address is not a multicast group")
)

// Config содержит настройки проверки multicast
type Config struct {
	// Group - адрес группы host:port
	Group string
	// Interface - имя интерфейса; пусто - выбор системы
	Interface string
	Tag       string
	Interval  time.Duration
	Timeout   time.Duration
}

// Result - итог проверки
type Result struct {
	Group     string
	Sent      int
	Received  int
	Reachable bool
	// Latency - время до получения первого собственного пакета
	Latency time.Duration
}

// Beacon - разобранное сообщение пробы: mcg:Tag:Nonce
type Beacon struct {
	Tag   string
	Nonce string
	From  *net.UDPAddr
}
