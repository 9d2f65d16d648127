package leasestorage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testHelper struct {
	db  *LeaseDB
	dir string
}

func setupTest(t *testing.T) *testHelper {
	t.Helper()

	dir := t.TempDir()
	cfg := Config{
		Path:       filepath.Join(dir, "test.db"),
		FileMode:   0600,
		Serializer: &GobSerializer{},
	}

	db, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, db)

	t.Cleanup(func() {
		db.Close()
	})

	return &testHelper{
		db:  db,
		dir: dir,
	}
}

func createTestLease(iface string, acquiredAt time.Time) *Lease {
	return &Lease{
		ID:           uuid.New().String(),
		Interface:    iface,
		Tag:          "webrtcLock",
		PID:          4242,
		PrevAllMulti: false,
		Groups:       []string{"239.0.0.1"},
		AcquiredAt:   acquiredAt,
	}
}

func TestLeaseDB_SaveAndGet(t *testing.T) {
	h := setupTest(t)
	lease := createTestLease("wlan0", time.Now().UTC().Truncate(time.Second))

	require.NoError(t, h.db.SaveLease(lease))

	got, err := h.db.GetLease(lease.ID)
	require.NoError(t, err)
	assert.Equal(t, lease.Interface, got.Interface)
	assert.Equal(t, lease.PID, got.PID)
	assert.Equal(t, lease.Groups, got.Groups)
	assert.True(t, lease.AcquiredAt.Equal(got.AcquiredAt))
}

func TestLeaseDB_SaveInvalid(t *testing.T) {
	h := setupTest(t)

	tests := []struct {
		name        string
		lease       *Lease
		expectedErr error
	}{
		{
			name:        "Nil lease",
			lease:       nil,
			expectedErr: ErrNilLease,
		},
		{
			name:        "Empty ID",
			lease:       &Lease{Interface: "wlan0"},
			expectedErr: ErrEmptyLeaseID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.db.SaveLease(tt.lease)
			assert.ErrorIs(t, err, tt.expectedErr)
		})
	}
}

func TestLeaseDB_GetMissing(t *testing.T) {
	h := setupTest(t)

	_, err := h.db.GetLease("missing")
	assert.ErrorIs(t, err, ErrLeaseNotFound)
}

func TestLeaseDB_ListSortedByAcquireTime(t *testing.T) {
	h := setupTest(t)
	now := time.Now()

	newer := createTestLease("wlan0", now)
	older := createTestLease("wlan1", now.Add(-time.Hour))

	require.NoError(t, h.db.SaveLease(newer))
	require.NoError(t, h.db.SaveLease(older))

	leases, err := h.db.ListLeases()
	require.NoError(t, err)
	require.Len(t, leases, 2)
	assert.Equal(t, older.ID, leases[0].ID)
	assert.Equal(t, newer.ID, leases[1].ID)
}

func TestLeaseDB_Delete(t *testing.T) {
	h := setupTest(t)
	lease := createTestLease("wlan0", time.Now())

	require.NoError(t, h.db.SaveLease(lease))
	require.NoError(t, h.db.DeleteLease(lease.ID))

	_, err := h.db.GetLease(lease.ID)
	assert.ErrorIs(t, err, ErrLeaseNotFound)

	// повторное удаление не ошибка
	assert.NoError(t, h.db.DeleteLease(lease.ID))
}

func TestLeaseDB_Reopen(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Path: filepath.Join(dir, "nested", "journal.db")}

	db, err := New(cfg)
	require.NoError(t, err)
	lease := createTestLease("wlan0", time.Now())
	require.NoError(t, db.SaveLease(lease))
	require.NoError(t, db.Close())

	db, err = New(cfg)
	require.NoError(t, err)
	defer db.Close()

	leases, err := db.ListLeases()
	require.NoError(t, err)
	require.Len(t, leases, 1)
	assert.Equal(t, lease.ID, leases[0].ID)
}

func TestOnDemand(t *testing.T) {
	cfg := Config{Path: filepath.Join(t.TempDir(), "journal.db")}
	journal := NewOnDemand(cfg)

	lease := createTestLease("wlan0", time.Now())
	require.NoError(t, journal.SaveLease(lease))

	// между операциями файл не заблокирован
	db, err := New(cfg)
	require.NoError(t, err)
	got, err := db.GetLease(lease.ID)
	require.NoError(t, err)
	assert.Equal(t, lease.Interface, got.Interface)
	require.NoError(t, db.Close())

	leases, err := journal.ListLeases()
	require.NoError(t, err)
	assert.Len(t, leases, 1)

	require.NoError(t, journal.DeleteLease(lease.ID))
	_, err = journal.GetLease(lease.ID)
	assert.ErrorIs(t, err, ErrLeaseNotFound)
}
