//go:build !linux

package wifi

type IoctlFlags struct{}

func (IoctlFlags) AllMulti(string) (bool, error) {
	return false, ErrUnsupportedPlatform
}

func (IoctlFlags) SetAllMulti(string, bool) error {
	return ErrUnsupportedPlatform
}
