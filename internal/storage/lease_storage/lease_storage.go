// Package leasestorage хранит журнал захватов multicast в bbolt, чтобы после
// аварийного завершения процесса можно было вернуть интерфейс в исходное состояние.
package leasestorage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

const (
	LeasesBucket = "leases"
)

// Config содержит конфигурацию для LeaseDB
type Config struct {
	Path       string
	FileMode   os.FileMode
	Options    *bbolt.Options
	Serializer Serializer
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		Path:     filepath.Join(os.TempDir(), "mcastguard.db"),
		FileMode: 0600,
		Options:  &bbolt.Options{Timeout: time.Second},
	}
}

// LeaseDB представляет журнал аренд multicast
type LeaseDB struct {
	db         *bbolt.DB
	mu         sync.RWMutex
	serializer Serializer
}

// New открывает (или создает) журнал
func New(cfg Config) (*LeaseDB, error) {
	if cfg.Serializer == nil {
		cfg.Serializer = &GobSerializer{}
	}

	if cfg.FileMode == 0 {
		cfg.FileMode = 0600
	}

	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := bbolt.Open(cfg.Path, cfg.FileMode, cfg.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", cfg.Path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(LeasesBucket))
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &LeaseDB{
		db:         db,
		serializer: cfg.Serializer,
	}, nil
}

func (ldb *LeaseDB) Close() error {
	if ldb.db == nil {
		return ErrNilDB
	}
	return ldb.db.Close()
}

// SaveLease сохраняет аренду, перезаписывая запись с тем же ID
func (ldb *LeaseDB) SaveLease(lease *Lease) error {
	if lease == nil {
		return ErrNilLease
	}
	if lease.ID == "" {
		return ErrEmptyLeaseID
	}

	data, err := ldb.serializer.Serialize(lease)
	if err != nil {
		return fmt.Errorf("failed to serialize lease: %w", err)
	}

	ldb.mu.Lock()
	defer ldb.mu.Unlock()

	return ldb.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(LeasesBucket))
		if err != nil {
			return err
		}
		return bucket.Put([]byte(lease.ID), data)
	})
}

// GetLease загружает аренду по ID
func (ldb *LeaseDB) GetLease(id string) (*Lease, error) {
	var lease Lease

	ldb.mu.RLock()
	defer ldb.mu.RUnlock()

	err := ldb.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(LeasesBucket))
		if bucket == nil {
			return ErrBucketNotFound
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return ErrLeaseNotFound
		}

		return ldb.serializer.Deserialize(data, &lease)
	})

	if err != nil {
		return nil, err
	}
	return &lease, nil
}

// ListLeases возвращает все аренды, старые первыми
func (ldb *LeaseDB) ListLeases() ([]*Lease, error) {
	var leases []*Lease

	ldb.mu.RLock()
	defer ldb.mu.RUnlock()

	err := ldb.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(LeasesBucket))
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var lease Lease
			if err := ldb.serializer.Deserialize(v, &lease); err != nil {
				return fmt.Errorf("failed to decode lease %s: %w", k, err)
			}
			leases = append(leases, &lease)
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	sort.SliceStable(leases, func(i, j int) bool {
		return leases[i].AcquiredAt.Before(leases[j].AcquiredAt)
	})
	return leases, nil
}

// DeleteLease удаляет аренду. Отсутствующая запись не считается ошибкой.
func (ldb *LeaseDB) DeleteLease(id string) error {
	ldb.mu.Lock()
	defer ldb.mu.Unlock()

	return ldb.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(LeasesBucket))
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(id))
	})
}
