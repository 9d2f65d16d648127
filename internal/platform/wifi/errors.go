package wifi

import "errors"

var (
	ErrNoWirelessInterface = errors.New("no wireless interface found")
	ErrNotWireless         = errors.New("interface is not wireless")
	ErrUnsupportedPlatform = errors.New("multicast flag control is not supported on this platform")
	ErrUnderLocked         = errors.New("multicast lock under-released")
	ErrInvalidGroup        = errors.New("invalid multicast group")
)
