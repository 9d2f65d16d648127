package leasestorage

import (
	"fmt"

	"go.uber.org/multierr"
)

// OnDemand открывает журнал на время одной операции. bbolt держит
// эксклюзивную блокировку файла, а журнал нужен и долгоживущему процессу,
// и командам status/recover.
type OnDemand struct {
	config Config
}

func NewOnDemand(config Config) *OnDemand {
	return &OnDemand{config: config}
}

func (o *OnDemand) with(fn func(db *LeaseDB) error) (err error) {
	db, err := New(o.config)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer func() {
		err = multierr.Append(err, db.Close())
	}()

	return fn(db)
}

func (o *OnDemand) SaveLease(lease *Lease) error {
	return o.with(func(db *LeaseDB) error {
		return db.SaveLease(lease)
	})
}

func (o *OnDemand) GetLease(id string) (*Lease, error) {
	var lease *Lease
	err := o.with(func(db *LeaseDB) error {
		var err error
		lease, err = db.GetLease(id)
		return err
	})
	return lease, err
}

func (o *OnDemand) ListLeases() ([]*Lease, error) {
	var leases []*Lease
	err := o.with(func(db *LeaseDB) error {
		var err error
		leases, err = db.ListLeases()
		return err
	})
	return leases, err
}

func (o *OnDemand) DeleteLease(id string) error {
	return o.with(func(db *LeaseDB) error {
		return db.DeleteLease(id)
	})
}
