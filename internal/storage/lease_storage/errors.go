package leasestorage

import "errors"

var (
	ErrLeaseNotFound  = errors.New("lease not found")
	ErrBucketNotFound = errors.New("bucket not found")
	ErrNilDB          = errors.New("database connection is nil")
	ErrNilLease       = errors.New("lease is nil")
	ErrEmptyLeaseID   = errors.New("lease id is empty")
)
