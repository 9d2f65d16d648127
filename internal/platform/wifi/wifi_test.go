package wifi

import (
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mcastguard/internal/capability"
	leasestorage "mcastguard/internal/storage/lease_storage"
	"mcastguard/internal/util/logger/handlers/slogdiscard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeFlags хранит IFF_ALLMULTI в памяти
type fakeFlags struct {
	mu       sync.Mutex
	allMulti map[string]bool
	setCalls int
	setErr   error
	getErr   error
}

func newFakeFlags() *fakeFlags {
	return &fakeFlags{allMulti: make(map[string]bool)}
}

func (f *fakeFlags) AllMulti(iface string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return false, f.getErr
	}
	return f.allMulti[iface], nil
}

func (f *fakeFlags) SetAllMulti(iface string, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	if f.setErr != nil {
		return f.setErr
	}
	f.allMulti[iface] = on
	return nil
}

func (f *fakeFlags) get(iface string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.allMulti[iface]
}

// MockJoiner implements GroupJoiner for testing
type MockJoiner struct {
	mock.Mock
}

func (m *MockJoiner) Join(iface *net.Interface, groups []net.IP) (io.Closer, error) {
	args := m.Called(iface.Name, len(groups))
	closer, _ := args.Get(0).(io.Closer)
	return closer, args.Error(1)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// makeSysfs создает поддельный /sys/class/net
func makeSysfs(t *testing.T, wireless []string, wired []string) string {
	t.Helper()

	root := t.TempDir()
	for _, name := range wireless {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name, "wireless"), 0755))
	}
	for _, name := range wired {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name), 0755))
	}
	return root
}

func lookupUp(down ...string) func(string) (*net.Interface, error) {
	return func(name string) (*net.Interface, error) {
		flags := net.FlagUp | net.FlagMulticast
		for _, d := range down {
			if d == name {
				flags = net.FlagMulticast
			}
		}
		return &net.Interface{Index: 3, Name: name, Flags: flags}, nil
	}
}

func openJournal(t *testing.T) *leasestorage.LeaseDB {
	t.Helper()

	journal, err := leasestorage.New(leasestorage.Config{Path: filepath.Join(t.TempDir(), "leases.db")})
	require.NoError(t, err)
	t.Cleanup(func() {
		journal.Close()
	})
	return journal
}

func TestResolveInterface(t *testing.T) {
	tests := []struct {
		name        string
		wireless    []string
		wired       []string
		down        []string
		preferred   string
		expected    string
		expectedErr error
	}{
		{
			name:     "First wireless interface that is up",
			wireless: []string{"wlan1", "wlan0"},
			wired:    []string{"eth0", "lo"},
			down:     []string{"wlan0"},
			expected: "wlan1",
		},
		{
			name:      "Preferred interface",
			wireless:  []string{"wlan0", "wlp2s0"},
			preferred: "wlp2s0",
			expected:  "wlp2s0",
		},
		{
			name:        "Preferred interface is wired",
			wireless:    []string{"wlan0"},
			wired:       []string{"eth0"},
			preferred:   "eth0",
			expectedErr: ErrNotWireless,
		},
		{
			name:        "No wireless interfaces",
			wired:       []string{"eth0", "lo"},
			expectedErr: ErrNoWirelessInterface,
		},
		{
			name:        "All wireless interfaces down",
			wireless:    []string{"wlan0"},
			down:        []string{"wlan0"},
			expectedErr: ErrNoWirelessInterface,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				Interface:   tt.preferred,
				SysClassNet: makeSysfs(t, tt.wireless, tt.wired),
			}

			iface, err := resolveInterface(cfg, lookupUp(tt.down...))
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.True(t, IsUnavailable(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, iface.Name)
		})
	}
}

func TestResolveInterface_MissingSysfs(t *testing.T) {
	_, err := resolveInterface(Config{SysClassNet: filepath.Join(t.TempDir(), "missing")}, lookupUp())
	assert.ErrorIs(t, err, ErrNoWirelessInterface)
}

func TestParseGroups(t *testing.T) {
	ips, err := parseGroups([]string{"239.0.0.1", "224.0.0.251"})
	require.NoError(t, err)
	require.Len(t, ips, 2)
	assert.Equal(t, "224.0.0.251", ips[1].String())

	for _, bad := range []string{"10.0.0.1", "ff02::fb", "nonsense"} {
		_, err := parseGroups([]string{bad})
		assert.ErrorIs(t, err, ErrInvalidGroup, bad)
	}
}

func newTestService(t *testing.T, flags FlagController, joiner GroupJoiner, journal LeaseJournal, groups ...string) *Service {
	t.Helper()

	s, err := NewService(Config{
		Interface:   "wlan0",
		Groups:      groups,
		SysClassNet: makeSysfs(t, []string{"wlan0"}, nil),
	}, Deps{
		Flags:   flags,
		Joiner:  joiner,
		Journal: journal,
		Lookup:  lookupUp(),
	}, slogdiscard.NewDiscardLogger())
	require.NoError(t, err)
	return s
}

func TestLock_ReferenceCounted(t *testing.T) {
	flags := newFakeFlags()
	journal := openJournal(t)
	s := newTestService(t, flags, nil, journal)

	lock, err := s.CreateMulticastLock("webrtcLock")
	require.NoError(t, err)
	lock.SetReferenceCounted(true)

	require.NoError(t, lock.Acquire())
	require.NoError(t, lock.Acquire())
	assert.True(t, flags.get("wlan0"))
	assert.Equal(t, 1, s.Holders())

	leases, err := journal.ListLeases()
	require.NoError(t, err)
	require.Len(t, leases, 1)
	assert.Equal(t, os.Getpid(), leases[0].PID)
	assert.Equal(t, "webrtcLock", leases[0].Tag)

	require.NoError(t, lock.Release())
	assert.True(t, lock.IsHeld())
	assert.True(t, flags.get("wlan0"))

	require.NoError(t, lock.Release())
	assert.False(t, lock.IsHeld())
	assert.False(t, flags.get("wlan0"))
	assert.Equal(t, 0, s.Holders())

	leases, err = journal.ListLeases()
	require.NoError(t, err)
	assert.Empty(t, leases)

	err = lock.Release()
	assert.ErrorIs(t, err, ErrUnderLocked)
}

func TestLock_NotReferenceCounted(t *testing.T) {
	flags := newFakeFlags()
	s := newTestService(t, flags, nil, nil)

	lock, err := s.CreateMulticastLock("probe")
	require.NoError(t, err)
	lock.SetReferenceCounted(false)

	require.NoError(t, lock.Acquire())
	require.NoError(t, lock.Acquire())
	require.NoError(t, lock.Release())
	assert.False(t, lock.IsHeld())
	assert.False(t, flags.get("wlan0"))

	// освобождение без захвата ничего не делает
	assert.NoError(t, lock.Release())
	assert.Equal(t, 2, flags.setCalls)
}

func TestService_SharedAcrossLocks(t *testing.T) {
	flags := newFakeFlags()
	s := newTestService(t, flags, nil, nil)

	first, _ := s.CreateMulticastLock("first")
	second, _ := s.CreateMulticastLock("second")

	require.NoError(t, first.Acquire())
	require.NoError(t, second.Acquire())
	assert.Equal(t, 2, s.Holders())

	require.NoError(t, first.Release())
	assert.True(t, flags.get("wlan0"))

	require.NoError(t, second.Release())
	assert.False(t, flags.get("wlan0"))
	assert.Equal(t, 2, flags.setCalls)
}

func TestService_KeepsPreexistingAllMulti(t *testing.T) {
	flags := newFakeFlags()
	flags.allMulti["wlan0"] = true
	s := newTestService(t, flags, nil, nil)

	lock, _ := s.CreateMulticastLock("webrtcLock")
	require.NoError(t, lock.Acquire())
	require.NoError(t, lock.Release())

	assert.True(t, flags.get("wlan0"))
	assert.Zero(t, flags.setCalls)
}

func TestService_AcquireErrors(t *testing.T) {
	permErr := errors.New("operation not permitted")

	t.Run("Read flags fails", func(t *testing.T) {
		flags := newFakeFlags()
		flags.getErr = permErr
		s := newTestService(t, flags, nil, nil)

		lock, _ := s.CreateMulticastLock("webrtcLock")
		assert.ErrorIs(t, lock.Acquire(), permErr)
		assert.False(t, lock.IsHeld())
		assert.Equal(t, 0, s.Holders())
	})

	t.Run("Set flags fails", func(t *testing.T) {
		flags := newFakeFlags()
		flags.setErr = permErr
		s := newTestService(t, flags, nil, nil)

		lock, _ := s.CreateMulticastLock("webrtcLock")
		assert.ErrorIs(t, lock.Acquire(), permErr)
		assert.False(t, lock.IsHeld())
		assert.Equal(t, 0, s.Holders())
	})

	t.Run("Join fails rolls back flag", func(t *testing.T) {
		flags := newFakeFlags()
		joiner := new(MockJoiner)
		joiner.On("Join", "wlan0", 1).Return(nil, permErr)
		s := newTestService(t, flags, joiner, nil, "239.0.0.1")

		lock, _ := s.CreateMulticastLock("webrtcLock")
		assert.ErrorIs(t, lock.Acquire(), permErr)
		assert.False(t, flags.get("wlan0"))
		assert.Equal(t, 0, s.Holders())
	})
}

func TestService_GroupMembership(t *testing.T) {
	flags := newFakeFlags()
	left := 0
	joiner := new(MockJoiner)
	joiner.On("Join", "wlan0", 2).Return(closerFunc(func() error {
		left++
		return nil
	}), nil)

	s := newTestService(t, flags, joiner, nil, "239.0.0.1", "224.0.0.251")

	lock, _ := s.CreateMulticastLock("webrtcLock")
	require.NoError(t, lock.Acquire())
	joiner.AssertNumberOfCalls(t, "Join", 1)

	require.NoError(t, lock.Release())
	assert.Equal(t, 1, left)
}

func TestService_ReleaseFlagFailureKeepsLease(t *testing.T) {
	flags := newFakeFlags()
	journal := openJournal(t)
	s := newTestService(t, flags, nil, journal)

	lock, _ := s.CreateMulticastLock("webrtcLock")
	require.NoError(t, lock.Acquire())

	flags.setErr = errors.New("device busy")
	err := lock.Release()
	require.Error(t, err)
	assert.False(t, lock.IsHeld())
	assert.Equal(t, 0, s.Holders())

	leases, err := journal.ListLeases()
	require.NoError(t, err)
	assert.Len(t, leases, 1)
}

func TestService_SharedInterfaceAcrossServices(t *testing.T) {
	tests := []struct {
		name     string
		firstOut int
	}{
		{name: "First holder leaves first", firstOut: 0},
		{name: "Second holder leaves first", firstOut: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := newFakeFlags()
			journal := openJournal(t)

			// два процесса на одном интерфейсе: общий флаг и общий журнал
			services := []*Service{
				newTestService(t, flags, nil, journal),
				newTestService(t, flags, nil, journal),
			}
			locks := make([]capability.MulticastLock, len(services))
			for i, s := range services {
				lock, err := s.CreateMulticastLock("webrtcLock")
				require.NoError(t, err)
				require.NoError(t, lock.Acquire())
				locks[i] = lock
			}

			leases, err := journal.ListLeases()
			require.NoError(t, err)
			require.Len(t, leases, 2)
			assert.False(t, leases[0].PrevAllMulti)
			assert.True(t, leases[1].PrevAllMulti)

			first, second := locks[tt.firstOut], locks[1-tt.firstOut]

			require.NoError(t, first.Release())
			assert.True(t, flags.get("wlan0"), "remaining holder keeps multicast")
			assert.True(t, second.IsHeld())

			require.NoError(t, second.Release())
			assert.False(t, flags.get("wlan0"))

			leases, err = journal.ListLeases()
			require.NoError(t, err)
			assert.Empty(t, leases)
		})
	}
}

func TestService_ReleaseIgnoresDeadCoholders(t *testing.T) {
	flags := newFakeFlags()
	journal := openJournal(t)
	s := newTestService(t, flags, nil, journal)

	lock, _ := s.CreateMulticastLock("webrtcLock")
	require.NoError(t, lock.Acquire())

	require.NoError(t, journal.SaveLease(&leasestorage.Lease{
		ID: "dead", Interface: "wlan0", PID: 0, PrevAllMulti: true, AcquiredAt: time.Now(),
	}))

	require.NoError(t, lock.Release())
	assert.False(t, flags.get("wlan0"))
}

func TestNewProvider_CachesService(t *testing.T) {
	sysfs := makeSysfs(t, []string{"wlan0"}, nil)
	calls := 0
	lookup := func(name string) (*net.Interface, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("not yet")
		}
		return &net.Interface{Index: 3, Name: name, Flags: net.FlagUp}, nil
	}

	provider := NewProvider(Config{Interface: "wlan0", SysClassNet: sysfs}, Deps{
		Flags:  newFakeFlags(),
		Lookup: lookup,
	}, slogdiscard.NewDiscardLogger())

	_, err := provider()
	require.Error(t, err)

	first, err := provider()
	require.NoError(t, err)
	second, err := provider()
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 2, calls)
}

func TestRecover(t *testing.T) {
	flags := newFakeFlags()
	flags.allMulti["wlan0"] = true
	flags.allMulti["wlan1"] = true
	flags.allMulti["wlan2"] = true
	journal := openJournal(t)

	now := time.Now()
	leases := []*leasestorage.Lease{
		// wlan0: умерший процесс сам включил ALLMULTI
		{ID: "a", Interface: "wlan0", PID: 100, PrevAllMulti: false, AcquiredAt: now.Add(-3 * time.Minute)},
		// wlan1: ALLMULTI был включен до умершего процесса
		{ID: "b", Interface: "wlan1", PID: 101, PrevAllMulti: true, AcquiredAt: now.Add(-2 * time.Minute)},
		// wlan2: есть живой держатель
		{ID: "c", Interface: "wlan2", PID: 102, PrevAllMulti: false, AcquiredAt: now.Add(-time.Minute)},
		{ID: "d", Interface: "wlan2", PID: 200, PrevAllMulti: true, AcquiredAt: now},
	}
	for _, l := range leases {
		require.NoError(t, journal.SaveLease(l))
	}

	alive := func(pid int) bool { return pid == 200 }

	report, err := Recover(journal, flags, alive, slogdiscard.NewDiscardLogger())
	require.NoError(t, err)

	assert.Len(t, report.Stale, 3)
	assert.Equal(t, 1, report.Live)
	assert.Equal(t, []string{"wlan0"}, report.Restored)

	assert.False(t, flags.get("wlan0"))
	assert.True(t, flags.get("wlan1"))
	assert.True(t, flags.get("wlan2"))

	remaining, err := journal.ListLeases()
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "d", remaining[0].ID)
	// живой держатель wlan2 теперь отвечает за выключение флага
	assert.False(t, remaining[0].PrevAllMulti)

	// держатель wlan2 тоже упал: следующий проход выключает флаг
	report, err = Recover(journal, flags, func(int) bool { return false }, slogdiscard.NewDiscardLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"wlan2"}, report.Restored)
	assert.False(t, flags.get("wlan2"))
}

func TestRecover_LiveHolderRestoresAfterRelease(t *testing.T) {
	flags := newFakeFlags()
	journal := openJournal(t)

	// упавший процесс включил ALLMULTI
	flags.allMulti["wlan0"] = true
	require.NoError(t, journal.SaveLease(&leasestorage.Lease{
		ID: "stale", Interface: "wlan0", PID: 100, PrevAllMulti: false, AcquiredAt: time.Now().Add(-time.Minute),
	}))

	// живой процесс застал флаг уже включенным
	s := newTestService(t, flags, nil, journal)
	lock, _ := s.CreateMulticastLock("webrtcLock")
	require.NoError(t, lock.Acquire())

	alive := func(pid int) bool { return pid == os.Getpid() }
	report, err := Recover(journal, flags, alive, slogdiscard.NewDiscardLogger())
	require.NoError(t, err)
	assert.Len(t, report.Stale, 1)
	assert.Empty(t, report.Restored)
	assert.True(t, flags.get("wlan0"))

	require.NoError(t, lock.Release())
	assert.False(t, flags.get("wlan0"))

	remaining, err := journal.ListLeases()
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestRecover_RestoreFailureKeepsLease(t *testing.T) {
	flags := newFakeFlags()
	flags.setErr = errors.New("operation not permitted")
	journal := openJournal(t)

	require.NoError(t, journal.SaveLease(&leasestorage.Lease{
		ID: "a", Interface: "wlan0", PID: 100, AcquiredAt: time.Now(),
	}))

	report, err := Recover(journal, flags, func(int) bool { return false }, slogdiscard.NewDiscardLogger())
	require.Error(t, err)
	assert.Empty(t, report.Restored)

	remaining, err := journal.ListLeases()
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestProcessAlive(t *testing.T) {
	assert.True(t, ProcessAlive(os.Getpid()))
	assert.False(t, ProcessAlive(0))
	assert.False(t, ProcessAlive(-1))
}
